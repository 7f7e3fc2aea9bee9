package device

import (
	"context"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// processor runs jobs. Its control commands are two-phase: a transitional
// state is published immediately and the settled state after a delay.
type processor struct{}

func (processor) init(*rcp.Status)  {}
func (processor) reset(*rcp.Status) {}

func (processor) supports(cmd rcp.TaskCommand) bool {
	switch cmd.(type) {
	case rcp.Start, rcp.Stop, rcp.Pause, rcp.Resume, rcp.Abort, rcp.End:
		return true
	default:
		return false
	}
}

func (processor) ready(st *rcp.Status, cmd rcp.TaskCommand) bool {
	ws := st.WorkingState
	paused := ws == rcp.StateCompleted && st.CompletionReason == rcp.ReasonPaused

	switch cmd.(type) {
	case rcp.Start:
		return ws == rcp.StateIdle
	case rcp.Stop, rcp.Pause:
		return ws == rcp.StateRunning
	case rcp.Resume:
		return paused
	case rcp.Abort:
		return ws == rcp.StateRunning || ws == rcp.StateStopping || paused
	case rcp.End:
		return ws == rcp.StateCompleted
	default:
		return false
	}
}

func (processor) execute(a *Actor, op context.Context, cmd rcp.TaskCommand) {
	t := a.opts.Timing

	switch c := cmd.(type) {
	case rcp.Start:
		a.status.JobID = c.JobID
		a.status.RecipeID = c.RecipeID
		a.transition(rcp.StateRunning)
		a.armJobTimer()

	case rcp.Stop:
		a.stopJobTimer()
		a.transition(rcp.StateStopping)
		if t.StopDelay > 0 {
			a.settle(op, t.StopDelay, rcp.StateCompleted)
		}

	case rcp.Pause:
		a.stopJobTimer()
		a.transition(rcp.StatePausing)
		a.settle(op, t.PauseDelay, rcp.StateCompleted)

	case rcp.Resume:
		a.transition(rcp.StateResuming)
		if a.settle(op, t.ResumeDelay, rcp.StateRunning) {
			a.armJobTimer()
		}

	case rcp.Abort:
		a.stopJobTimer()
		a.transition(rcp.StateAborting)
		a.settle(op, t.AbortDelay, rcp.StateCompleted)

	case rcp.End:
		a.status.JobID = ""
		a.status.RecipeID = ""
		a.transition(rcp.StateIdle)
	}
}
