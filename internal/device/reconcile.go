package device

import (
	"math"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// Decision is the outcome of checking a command against the current status.
type Decision int

const (
	// Accept means the command may be applied.
	Accept Decision = iota

	// Unchanged is a mode change to the mode already in force.
	Unchanged

	// OutdatedSync is a sync whose sequence is not ahead of ours, or one
	// that leaves no room for the next emission.
	OutdatedSync

	// StaleRef is a task command whose RefSeq is not the current EventSeq.
	StaleRef

	// NotAuto is a task command that needs Auto mode.
	NotAuto

	// Faulted is a mode change attempted while the device is in Error mode.
	// Only ClearFault leaves Error.
	Faulted
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Unchanged:
		return "unchanged"
	case OutdatedSync:
		return "outdated_sync"
	case StaleRef:
		return "stale_ref"
	case NotAuto:
		return "not_auto"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Authorize applies the sequence reconciliation rules. It reads st and
// never modifies it. Anything other than Accept is a silent no-op for the
// caller: no mutation, no emission.
func Authorize(st *rcp.Status, cmd rcp.Command) Decision {
	switch c := cmd.(type) {
	case rcp.StatusQuery:
		return Accept
	case rcp.Sync:
		if c.Sequence <= st.Sequence || c.Sequence == math.MaxInt64 {
			return OutdatedSync
		}
		return Accept
	case rcp.ModeChange:
		if st.Mode == c.Target {
			return Unchanged
		}
		if st.Mode == rcp.ModeError {
			return Faulted
		}
		return Accept
	case rcp.TaskCommand:
		if c.RequiresAuto() && st.Mode != rcp.ModeAuto {
			return NotAuto
		}
		if c.Ref() != st.EventSeq {
			return StaleRef
		}
		return Accept
	default:
		return Accept
	}
}

// applySync forces the counters to an external source of truth.
func applySync(st *rcp.Status, c rcp.Sync) {
	st.Sequence = c.Sequence
	st.EventSeq = c.Sequence
}

// applyMode switches mode and returns the device to its resting state.
func applyMode(st *rcp.Status, c rcp.ModeChange) {
	st.EventSeq = st.Sequence
	st.Mode = c.Target
	st.WorkingState = rcp.StateIdle
	st.CompletionReason = ""
	st.JobID = ""
	st.RecipeID = ""
}
