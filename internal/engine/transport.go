package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// Publisher is the outbound half of the MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// StatusTransport publishes device snapshots on their status topics.
type StatusTransport struct {
	client Publisher
	topics rcp.Topics
	qos    byte
	retain bool
	style  rcp.EnumStyle
}

// NewStatusTransport creates a transport over client.
func NewStatusTransport(client Publisher, topics rcp.Topics, qos byte, retain bool) *StatusTransport {
	return &StatusTransport{
		client: client,
		topics: topics,
		qos:    qos,
		retain: retain,
		style:  rcp.EnumLetter,
	}
}

// SetEnumStyle selects how mode and working state are written. The
// default is rcp.EnumLetter.
func (t *StatusTransport) SetEnumStyle(style rcp.EnumStyle) {
	t.style = style
}

// PublishStatus encodes st and publishes it to {base}/{id}/status.
func (t *StatusTransport) PublishStatus(ctx context.Context, st rcp.Status) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publishing status for %s: %w", st.ID, err)
	}

	payload, err := st.Encode(t.style)
	if err != nil {
		return fmt.Errorf("encoding status for %s: %w", st.ID, err)
	}

	if err := t.client.Publish(t.topics.Status(st.ID), payload, t.qos, t.retain); err != nil {
		return fmt.Errorf("publishing status for %s: %w", st.ID, err)
	}
	return nil
}
