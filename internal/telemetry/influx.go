package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// MeasurementStatus is the InfluxDB measurement for status snapshots.
const MeasurementStatus = "device_status"

// PointWriter is the write half of the InfluxDB client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxSink turns status snapshots into InfluxDB points.
type InfluxSink struct {
	writer PointWriter
	now    func() time.Time
}

// NewInfluxSink creates a sink over writer.
func NewInfluxSink(writer PointWriter) *InfluxSink {
	return &InfluxSink{writer: writer, now: time.Now}
}

// Run writes every snapshot from updates until it closes or ctx ends.
func (s *InfluxSink) Run(ctx context.Context, updates <-chan rcp.Status) {
	consume(ctx, updates, s.Write)
}

// Write queues one point. Tags carry the low-cardinality dimensions;
// counters and the working state are fields.
func (s *InfluxSink) Write(st rcp.Status) {
	tags := map[string]string{
		"device_id": st.ID,
		"mode":      string(st.Mode),
	}
	fields := map[string]any{
		"sequence":      st.Sequence,
		"event_seq":     st.EventSeq,
		"working_state": string(st.WorkingState),
		"error_count":   len(st.ErrorCodes),
	}
	if st.CompletionReason != "" {
		fields["completion_reason"] = string(st.CompletionReason)
	}
	if st.JobID != "" {
		fields["job_id"] = st.JobID
	}
	if st.CarrierPresent != nil {
		fields["carrier_present"] = *st.CarrierPresent
	}
	s.writer.WritePointWithTime(MeasurementStatus, tags, fields, s.now())
}
