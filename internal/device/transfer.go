package device

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// PositionHome is the resting position of a transfer unit.
const PositionHome = "home"

// positionKey is the Custom field that reports where the unit is.
const positionKey = "position"

// transfer moves carriers between slots. Each motion is a chain of timed
// phases; the unit always finishes an operation back at home.
type transfer struct {
	slots    []string
	carriers map[string]string // slot -> barcode
	held     string            // barcode on the gripper, "" when empty
	source   string            // slot the held carrier was taken from
}

func newTransfer(slots []string) *transfer {
	return &transfer{
		slots:    slices.Clone(slots),
		carriers: make(map[string]string),
	}
}

func (t *transfer) init(st *rcp.Status) {
	st.CarrierPresent = rcp.Bool(false)
	st.CarrierIDs = []rcp.Carrier{}
	st.Custom = map[string]any{positionKey: PositionHome}
}

// reset homes the unit. A carrier left on the gripper by an interrupted
// operation goes back to the slot it came from, or to the first free slot
// if that one has since been filled.
func (t *transfer) reset(st *rcp.Status) {
	if t.held != "" {
		slot := t.source
		if _, taken := t.carriers[slot]; slot == "" || taken {
			slot = t.freeSlot()
		}
		if slot != "" {
			t.carriers[slot] = t.held
		}
		t.held, t.source = "", ""
	}
	st.CarrierPresent = rcp.Bool(false)
	st.CarrierIDs = t.carrierList()
	t.moveTo(st, PositionHome)
}

func (t *transfer) supports(cmd rcp.TaskCommand) bool {
	switch cmd.(type) {
	case rcp.Pick, rcp.Place, rcp.Transfer:
		return true
	default:
		return false
	}
}

func (t *transfer) ready(st *rcp.Status, cmd rcp.TaskCommand) bool {
	if st.WorkingState != rcp.StateIdle {
		return false
	}

	switch c := cmd.(type) {
	case rcp.Pick:
		return t.resolveSlot(c.PickupID, 0) != ""
	case rcp.Place:
		return t.held != "" && t.resolveSlot(c.DropoffID, 0) != ""
	case rcp.Transfer:
		return t.held == "" &&
			t.resolveSlot(c.Source, c.PickupSlot) != "" &&
			t.resolveSlot(c.Dest, c.DropoffSlot) != ""
	default:
		return false
	}
}

func (t *transfer) execute(a *Actor, op context.Context, cmd rcp.TaskCommand) {
	switch c := cmd.(type) {
	case rcp.Pick:
		if t.pick(a, op, t.resolveSlot(c.PickupID, 0), "") {
			a.transition(rcp.StateIdle)
		}

	case rcp.Place:
		t.place(a, op, t.resolveSlot(c.DropoffID, 0))

	case rcp.Transfer:
		src := t.resolveSlot(c.Source, c.PickupSlot)
		dst := t.resolveSlot(c.Dest, c.DropoffSlot)
		if t.pick(a, op, src, c.CarrierID) {
			t.place(a, op, dst)
		}
	}
}

// pick travels to slot and takes its carrier. A slot with no known carrier
// yields one with a generated barcode. barcode overrides whatever is there.
// With a carrier already on the gripper the unit only travels.
func (t *transfer) pick(a *Actor, op context.Context, slot, barcode string) bool {
	tm := a.opts.Timing
	st := &a.status

	t.moveTo(st, slot)
	if !t.step(a, op, rcp.StateMoving, tm.MoveDelay) {
		return false
	}
	if t.held != "" {
		return true
	}
	if !t.step(a, op, rcp.StatePicking, tm.PickDelay) {
		return false
	}

	if barcode == "" {
		barcode = t.carriers[slot]
	}
	if barcode == "" {
		barcode = newBarcode()
	}
	delete(t.carriers, slot)
	t.held, t.source = barcode, slot

	st.CarrierPresent = rcp.Bool(true)
	st.CarrierIDs = t.carrierList()
	return true
}

// place travels to slot, releases the held carrier and returns home.
func (t *transfer) place(a *Actor, op context.Context, slot string) bool {
	tm := a.opts.Timing
	st := &a.status

	t.moveTo(st, slot)
	if !t.step(a, op, rcp.StateMoving, tm.MoveDelay) {
		return false
	}
	if !t.step(a, op, rcp.StatePlacing, tm.PlaceDelay) {
		return false
	}

	t.carriers[slot] = t.held
	t.held, t.source = "", ""
	st.CarrierPresent = rcp.Bool(false)
	st.CarrierIDs = t.carrierList()

	t.moveTo(st, PositionHome)
	if !t.step(a, op, rcp.StateMoving, tm.MoveDelay) {
		return false
	}
	a.transition(rcp.StateIdle)
	return true
}

// step publishes a phase and waits it out.
func (t *transfer) step(a *Actor, op context.Context, ws rcp.WorkingState, d time.Duration) bool {
	a.transition(ws)
	return a.hold(op, d, string(ws))
}

func (t *transfer) moveTo(st *rcp.Status, pos string) {
	if st.Custom == nil {
		st.Custom = make(map[string]any)
	}
	st.Custom[positionKey] = pos
}

// resolveSlot maps a port name to a configured slot. The exact name wins;
// otherwise an indexed port "name_idx" is tried.
func (t *transfer) resolveSlot(port string, idx int) string {
	if port == "" {
		return ""
	}
	if slices.Contains(t.slots, port) {
		return port
	}
	if idx > 0 {
		indexed := fmt.Sprintf("%s_%d", port, idx)
		if slices.Contains(t.slots, indexed) {
			return indexed
		}
	}
	return ""
}

func (t *transfer) freeSlot() string {
	for _, slot := range t.slots {
		if _, taken := t.carriers[slot]; !taken {
			return slot
		}
	}
	return ""
}

// carrierList reports occupied slots in configuration order.
func (t *transfer) carrierList() []rcp.Carrier {
	out := make([]rcp.Carrier, 0, len(t.carriers))
	for _, slot := range t.slots {
		if code, ok := t.carriers[slot]; ok {
			out = append(out, rcp.Carrier{DropoffID: slot, BarcodeValue: code})
		}
	}
	return out
}

func newBarcode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BOX-" + strings.ToUpper(id[:8])
}
