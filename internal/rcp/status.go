package rcp

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Mode is the device operating mode.
type Mode string

// Operating modes.
const (
	ModeAuto   Mode = "Auto"
	ModeManual Mode = "Manual"
	ModeError  Mode = "Error"
)

// ParseMode accepts the full mode names in any case and the single-letter
// codes used by older controllers (A, M, E).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "a":
		return ModeAuto, nil
	case "manual", "m":
		return ModeManual, nil
	case "error", "e":
		return ModeError, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// WorkingState is the device activity phase. The set in use depends on the
// device class; this is the union across classes.
type WorkingState string

// Working states.
const (
	StateIdle         WorkingState = "Idle"
	StateInitializing WorkingState = "Initializing"
	StateMoving       WorkingState = "Moving"
	StatePicking      WorkingState = "Picking"
	StatePlacing      WorkingState = "Placing"
	StateRunning      WorkingState = "Running"
	StateStopping     WorkingState = "Stopping"
	StatePausing      WorkingState = "Pausing"
	StateResuming     WorkingState = "Resuming"
	StateAborting     WorkingState = "Aborting"
	StateCompleted    WorkingState = "Completed"
)

// CompletionReason explains why a job reached Completed.
type CompletionReason string

// Completion reasons, strongest first.
const (
	ReasonAborted CompletionReason = "Aborted"
	ReasonPaused  CompletionReason = "Paused"
	ReasonStopped CompletionReason = "Stopped"
	ReasonDone    CompletionReason = "Done"
)

// ReasonFor maps the transitional state a job settles from to its
// completion reason.
func ReasonFor(from WorkingState) CompletionReason {
	switch from {
	case StateAborting:
		return ReasonAborted
	case StatePausing:
		return ReasonPaused
	case StateStopping:
		return ReasonStopped
	default:
		return ReasonDone
	}
}

// Carrier reports what sits at one dropoff slot. An empty BarcodeValue
// means the slot is empty.
type Carrier struct {
	DropoffID    string `json:"dropoffId"`
	BarcodeValue string `json:"barcodeValue"`
}

// Status is the authoritative per-device state record.
//
// A Status value is owned by exactly one device actor. Everything handed
// out of the actor is a Clone.
type Status struct {
	ID               string           `json:"id"`
	Sequence         int64            `json:"sequence"`
	EventSeq         int64            `json:"eventSeq"`
	Mode             Mode             `json:"mode"`
	WorkingState     WorkingState     `json:"workingState"`
	CompletionReason CompletionReason `json:"completionReason,omitempty"`
	ErrorCodes       []int            `json:"errorCodes"`
	JobID            string           `json:"jobId,omitempty"`
	RecipeID         string           `json:"recipeId,omitempty"`
	CarrierPresent   *bool            `json:"carrierPresent,omitempty"`
	CarrierIDs       []Carrier        `json:"carrierIds,omitempty"`
	Custom           map[string]any   `json:"custom,omitempty"`
}

// NewStatus returns the initial status of a freshly created device.
func NewStatus(id string) Status {
	return Status{
		ID:           id,
		Mode:         ModeManual,
		WorkingState: StateIdle,
		ErrorCodes:   []int{},
	}
}

// Clone returns a deep copy of the slices and the top level of Custom.
func (s Status) Clone() Status {
	c := s
	c.ErrorCodes = slices.Clone(s.ErrorCodes)
	if c.ErrorCodes == nil {
		c.ErrorCodes = []int{}
	}
	c.CarrierIDs = slices.Clone(s.CarrierIDs)
	if s.CarrierPresent != nil {
		v := *s.CarrierPresent
		c.CarrierPresent = &v
	}
	if s.Custom != nil {
		c.Custom = maps.Clone(s.Custom)
	}
	return c
}

// EnumStyle selects how Mode and WorkingState are written on the status
// topic.
type EnumStyle string

// Enum styles.
const (
	// EnumLetter writes the single-letter codes controllers of the
	// protocol parse.
	EnumLetter EnumStyle = "letter"

	// EnumName writes the full names, as the HTTP API does.
	EnumName EnumStyle = "name"
)

// ParseEnumStyle accepts "letter" and "name". Empty means EnumLetter.
func ParseEnumStyle(s string) (EnumStyle, error) {
	switch EnumStyle(strings.ToLower(strings.TrimSpace(s))) {
	case EnumLetter, "":
		return EnumLetter, nil
	case EnumName:
		return EnumName, nil
	default:
		return "", fmt.Errorf("unknown enum style %q", s)
	}
}

var modeCodes = map[Mode]string{
	ModeAuto:   "A",
	ModeManual: "M",
	ModeError:  "E",
}

// Code returns the single-letter wire code of m.
func (m Mode) Code() string {
	if c, ok := modeCodes[m]; ok {
		return c
	}
	return string(m)
}

// Processor and transfer devices each have their own letter table. M is
// Resuming for a processor and Moving for a transfer unit; no class uses both.
var stateCodes = map[WorkingState]string{
	StateIdle:         "I",
	StateInitializing: "N",
	StateMoving:       "M",
	StatePicking:      "K",
	StatePlacing:      "L",
	StateRunning:      "R",
	StateStopping:     "S",
	StatePausing:      "P",
	StateResuming:     "M",
	StateAborting:     "A",
	StateCompleted:    "C",
}

// Code returns the single-letter wire code of ws.
func (ws WorkingState) Code() string {
	if c, ok := stateCodes[ws]; ok {
		return c
	}
	return string(ws)
}

// Encode writes s in the given enum style. EnumName is the same as
// json.Marshal.
func (s Status) Encode(style EnumStyle) ([]byte, error) {
	if style == EnumName {
		return json.Marshal(s)
	}
	type wire Status
	w := wire(s)
	w.Mode = Mode(s.Mode.Code())
	w.WorkingState = WorkingState(s.WorkingState.Code())
	if w.ErrorCodes == nil {
		w.ErrorCodes = []int{}
	}
	return json.Marshal(w)
}

// MarshalJSON always writes errorCodes as an array.
func (s Status) MarshalJSON() ([]byte, error) {
	type wire Status
	w := wire(s)
	if w.ErrorCodes == nil {
		w.ErrorCodes = []int{}
	}
	return json.Marshal(w)
}

// Bool returns a pointer to v, for CarrierPresent.
func Bool(v bool) *bool {
	return &v
}
