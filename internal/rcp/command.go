package rcp

// Wire command names, the last topic segment of a command topic.
const (
	CmdStatus   = "status"
	CmdSync     = "sync"
	CmdMode     = "mode"
	CmdAuto     = "auto"
	CmdManual   = "manual"
	CmdStart    = "start"
	CmdStop     = "stop"
	CmdPause    = "pause"
	CmdResume   = "resume"
	CmdAbort    = "abort"
	CmdEnd      = "end"
	CmdPick     = "pick"
	CmdPlace    = "place"
	CmdTransfer = "transfer"
)

// Command is one inbound message. The variant set is closed: only the types
// in this file implement it.
type Command interface {
	Name() string
	command()
}

// TaskCommand is a command that acts on the device's work and must
// reference the EventSeq its sender last observed.
type TaskCommand interface {
	Command
	Ref() int64
	// RequiresAuto reports whether the command is refused outside Auto mode.
	RequiresAuto() bool
}

// Task carries the causal token shared by all task commands.
type Task struct {
	RefSeq int64 `json:"refSeq"`
}

// Ref returns the EventSeq the sender observed.
func (t Task) Ref() int64 { return t.RefSeq }

// =============================================================================
// Control commands
// =============================================================================

// StatusQuery asks the device to publish its current status.
type StatusQuery struct{}

// Sync forces Sequence and EventSeq to an externally supplied value.
type Sync struct {
	Sequence int64 `json:"sequence"`
}

// ModeChange switches between Auto and Manual.
type ModeChange struct {
	Target Mode `json:"mode"`
}

func (StatusQuery) Name() string { return CmdStatus }
func (Sync) Name() string        { return CmdSync }

func (m ModeChange) Name() string {
	if m.Target == ModeAuto {
		return CmdAuto
	}
	return CmdManual
}

func (StatusQuery) command() {}
func (Sync) command()        {}
func (ModeChange) command()  {}

// =============================================================================
// Job commands (processor class)
// =============================================================================

// Start begins a job.
type Start struct {
	Task
	JobID    string `json:"jobId,omitempty"`
	RecipeID string `json:"recipeId,omitempty"`
}

// Stop asks the running job to wind down.
type Stop struct{ Task }

// Pause parks the running job.
type Pause struct{ Task }

// Resume continues a paused job.
type Resume struct{ Task }

// Abort cancels the job.
type Abort struct{ Task }

// End acknowledges a completed job and returns the device to Idle.
type End struct{ Task }

func (Start) Name() string  { return CmdStart }
func (Stop) Name() string   { return CmdStop }
func (Pause) Name() string  { return CmdPause }
func (Resume) Name() string { return CmdResume }
func (Abort) Name() string  { return CmdAbort }
func (End) Name() string    { return CmdEnd }

func (Start) RequiresAuto() bool  { return true }
func (Stop) RequiresAuto() bool   { return true }
func (Pause) RequiresAuto() bool  { return true }
func (Resume) RequiresAuto() bool { return false }
func (Abort) RequiresAuto() bool  { return false }
func (End) RequiresAuto() bool    { return false }

func (Start) command()  {}
func (Stop) command()   {}
func (Pause) command()  {}
func (Resume) command() {}
func (Abort) command()  {}
func (End) command()    {}

// =============================================================================
// Material handling commands (transfer class)
// =============================================================================

// Pick collects the carrier at a slot.
type Pick struct {
	Task
	PickupID string `json:"pickupId"`
}

// Place drops the held carrier at a slot.
type Place struct {
	Task
	DropoffID string `json:"dropoffId"`
}

// Transfer moves a carrier from Source to Dest in one operation.
// PickupSlot and DropoffSlot select a sub-slot of a multi-slot port.
type Transfer struct {
	Task
	Source      string `json:"source"`
	Dest        string `json:"dest"`
	CarrierID   string `json:"carrierId,omitempty"`
	PickupSlot  int    `json:"pickupSlot,omitempty"`
	DropoffSlot int    `json:"dropoffSlot,omitempty"`
}

func (Pick) Name() string     { return CmdPick }
func (Place) Name() string    { return CmdPlace }
func (Transfer) Name() string { return CmdTransfer }

func (Pick) RequiresAuto() bool     { return true }
func (Place) RequiresAuto() bool    { return true }
func (Transfer) RequiresAuto() bool { return true }

func (Pick) command()     {}
func (Place) command()    {}
func (Transfer) command() {}
