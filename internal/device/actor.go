package device

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// DefaultFaultCode is reported when a fault is injected without codes.
const DefaultFaultCode = 1

// Transport delivers one status snapshot to the wire.
// It is called from a publisher goroutine, one snapshot at a time per device.
type Transport interface {
	PublishStatus(ctx context.Context, st rcp.Status) error
}

// Observer receives actor events, typically for metrics.
type Observer interface {
	CommandApplied(deviceID, command string)
	CommandRejected(deviceID, command, reason string)
	OperationCancelled(deviceID, phase string)
	StatusPublished(deviceID string)
	PublishFailed(deviceID string)
}

type noopObserver struct{}

func (noopObserver) CommandApplied(string, string)          {}
func (noopObserver) CommandRejected(string, string, string) {}
func (noopObserver) OperationCancelled(string, string)      {}
func (noopObserver) StatusPublished(string)                 {}
func (noopObserver) PublishFailed(string)                   {}

// behavior is the class-specific part of the state machine.
// All methods run on the actor goroutine.
type behavior interface {
	// init sets the class fields of a fresh status.
	init(st *rcp.Status)
	// reset returns class state to rest after initialization.
	reset(st *rcp.Status)
	supports(cmd rcp.TaskCommand) bool
	// ready checks state preconditions once the command is authorized.
	ready(st *rcp.Status, cmd rcp.TaskCommand) bool
	execute(a *Actor, op context.Context, cmd rcp.TaskCommand)
}

// Actor owns one device's Status and applies commands to it one at a time.
//
// Commands from any number of goroutines queue in the inbox and are
// processed strictly in arrival order. Timed operations run inside the
// actor goroutine, so the next command waits until the current one has
// settled or been cancelled.
type Actor struct {
	id       string
	class    Class
	opts     Options
	logger   Logger
	observer Observer

	inbox     *inbox
	publisher *Publisher
	fanout    *Broadcaster
	behavior  behavior

	// status is touched only by the run goroutine.
	status   rcp.Status
	jobTimer *time.Timer

	snapMu   sync.RWMutex
	snapshot rcp.Status

	opMu     sync.Mutex
	opCancel context.CancelFunc

	beatPending atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// actorDeps bundles what a Registry hands to each actor.
type actorDeps struct {
	transport Transport
	fanout    *Broadcaster
	opts      Options
	logger    Logger
	observer  Observer
}

func newActor(spec Spec, deps actorDeps) (*Actor, error) {
	if spec.ID == "" || spec.ID == rcp.BroadcastID {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidSpec, spec.ID)
	}

	var b behavior
	switch spec.Class {
	case ClassProcessor:
		b = processor{}
	case ClassTransfer:
		if len(spec.Slots) == 0 {
			return nil, fmt.Errorf("%w: transfer device %s has no slots", ErrInvalidSpec, spec.ID)
		}
		b = newTransfer(spec.Slots)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, spec.Class)
	}

	if deps.logger == nil {
		deps.logger = noopLogger{}
	}
	if deps.observer == nil {
		deps.observer = noopObserver{}
	}

	st := rcp.NewStatus(spec.ID)
	b.init(&st)

	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		id:        spec.ID,
		class:     spec.Class,
		opts:      deps.opts,
		logger:    deps.logger,
		observer:  deps.observer,
		inbox:     newInbox(),
		publisher: newPublisher(spec.ID, deps.transport, deps.opts, deps.logger, deps.observer),
		fanout:    deps.fanout,
		behavior:  b,
		status:    st,
		snapshot:  st.Clone(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	return a, nil
}

// start launches the actor loop and, if configured, its heartbeat.
func (a *Actor) start() {
	go a.run()

	if a.opts.HeartbeatInterval > 0 {
		hb := heartbeat{
			interval: a.opts.HeartbeatInterval,
			debounce: a.opts.HeartbeatDebounce,
			last:     a.publisher.LastPublished,
			beat:     a.beat,
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			hb.run(a.ctx)
		}()
	}
}

// ID returns the device id.
func (a *Actor) ID() string { return a.id }

// Class returns the device class.
func (a *Actor) Class() Class { return a.class }

// Snapshot returns the most recently emitted status (the initial status
// before the first emission).
func (a *Actor) Snapshot() rcp.Status {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.snapshot.Clone()
}

// Submit queues a protocol command. It never blocks.
func (a *Actor) Submit(cmd rcp.Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidSpec)
	}
	if !a.inbox.push(item{cmd: cmd}) {
		return ErrActorStopped
	}
	return nil
}

// InjectFault puts the device into Error mode ahead of any queued work and
// cancels the operation in flight, if any. The fault is queued first so the
// loop cannot pick up other work between the cancellation and the fault.
func (a *Actor) InjectFault(codes []int) error {
	if !a.inbox.pushFront(item{ctl: ctlFault, codes: slices.Clone(codes)}) {
		return ErrActorStopped
	}
	if a.cancelOperation() {
		a.logger.Info("operation cancelled by fault", "device", a.id)
	}
	return nil
}

// ClearFault queues an initialization that returns the device to Manual/Idle
// with no error codes.
func (a *Actor) ClearFault() error {
	if !a.inbox.push(item{ctl: ctlClearFault}) {
		return ErrActorStopped
	}
	return nil
}

// Complete queues an operator completion of the current job.
func (a *Actor) Complete() error {
	if !a.inbox.push(item{ctl: ctlComplete, expect: -1}) {
		return ErrActorStopped
	}
	return nil
}

// WaitIdle blocks until everything queued before the call has been
// processed.
func (a *Actor) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	if !a.inbox.push(item{ctl: ctlBarrier, done: done}) {
		return ErrActorStopped
	}
	select {
	case <-done:
		return nil
	case <-a.done:
		return ErrActorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every emitted snapshot has been handed to the transport.
func (a *Actor) Flush(ctx context.Context) error {
	return a.publisher.Flush(ctx)
}

// Stop cancels any operation in flight, stops the loop and waits for it to
// exit. Queued commands are discarded; emitted snapshots are flushed until
// ctx expires.
func (a *Actor) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.inbox.close()
		a.cancel()
	})

	select {
	case <-a.done:
	case <-ctx.Done():
		return fmt.Errorf("stopping %s: %w", a.id, ctx.Err())
	}
	a.wg.Wait()
	a.stopJobTimer()

	return a.publisher.Flush(ctx)
}

// =============================================================================
// Loop
// =============================================================================

func (a *Actor) run() {
	defer close(a.done)

	for {
		it, ok := a.inbox.next(a.ctx)
		if !ok || a.ctx.Err() != nil {
			return
		}
		a.process(it)
	}
}

// process handles one item. A panic is logged and swallowed so the loop
// keeps serving the device.
func (a *Actor) process(it item) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("device command panic recovered",
				"device", a.id,
				"command", it.name(),
				"panic", r,
			)
		}
	}()

	switch it.ctl {
	case ctlBarrier:
		close(it.done)
	case ctlFault:
		a.fault(it.codes)
	case ctlClearFault:
		a.clearFault()
	case ctlComplete:
		a.complete(it.expect)
	default:
		if _, ok := it.cmd.(rcp.StatusQuery); ok {
			a.beatPending.Store(false)
		}
		a.handle(it.cmd)
	}
}

func (a *Actor) handle(cmd rcp.Command) {
	task, isTask := cmd.(rcp.TaskCommand)
	if isTask && !a.behavior.supports(task) {
		a.logger.Warn("command not supported by device class",
			"device", a.id,
			"class", a.class,
			"command", cmd.Name(),
		)
		a.observer.CommandRejected(a.id, cmd.Name(), "unsupported")
		return
	}

	if d := Authorize(&a.status, cmd); d != Accept {
		a.logger.Debug("command ignored",
			"device", a.id,
			"command", cmd.Name(),
			"reason", d.String(),
			"sequence", a.status.Sequence,
			"event_seq", a.status.EventSeq,
		)
		a.observer.CommandRejected(a.id, cmd.Name(), d.String())
		return
	}

	switch c := cmd.(type) {
	case rcp.StatusQuery:
		a.emit()
	case rcp.Sync:
		applySync(&a.status, c)
		a.emit()
	case rcp.ModeChange:
		a.stopJobTimer()
		applyMode(&a.status, c)
		a.emit()
	case rcp.TaskCommand:
		if !a.behavior.ready(&a.status, c) {
			a.logger.Debug("command not valid in current state",
				"device", a.id,
				"command", cmd.Name(),
				"state", a.status.WorkingState,
			)
			a.observer.CommandRejected(a.id, cmd.Name(), "precondition")
			return
		}
		op, end := a.beginOperation()
		defer end()
		a.behavior.execute(a, op, c)
	}

	a.observer.CommandApplied(a.id, cmd.Name())
}

// =============================================================================
// Emission
// =============================================================================

// emit snapshots the status for the publisher and observers, then advances
// Sequence.
func (a *Actor) emit() {
	snap := a.status.Clone()

	a.snapMu.Lock()
	a.snapshot = snap
	a.snapMu.Unlock()

	a.publisher.Enqueue(snap)
	if a.fanout != nil {
		a.fanout.Publish(snap)
	}

	a.status.Sequence++
}

// transition records an accepted state change and emits it.
func (a *Actor) transition(ws rcp.WorkingState) {
	a.status.EventSeq = a.status.Sequence
	a.status.WorkingState = ws
	if ws != rcp.StateCompleted {
		a.status.CompletionReason = ""
	}
	a.emit()
}

// settle waits out a timed phase and then moves to the settled state. The
// completion reason is derived from the state being settled.
func (a *Actor) settle(op context.Context, d time.Duration, to rcp.WorkingState) bool {
	from := a.status.WorkingState
	if !a.hold(op, d, string(from)) {
		return false
	}
	if to == rcp.StateCompleted {
		a.status.CompletionReason = rcp.ReasonFor(from)
	}
	a.transition(to)
	return true
}

// =============================================================================
// Operation scope
// =============================================================================

// beginOperation opens a cancellation scope for one timed operation.
func (a *Actor) beginOperation() (context.Context, func()) {
	op, cancel := context.WithCancel(a.ctx)

	a.opMu.Lock()
	a.opCancel = cancel
	a.opMu.Unlock()

	return op, func() {
		a.opMu.Lock()
		a.opCancel = nil
		a.opMu.Unlock()
		cancel()
	}
}

// cancelOperation cancels the operation in flight. It is safe to call from
// any goroutine.
func (a *Actor) cancelOperation() bool {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if a.opCancel == nil {
		return false
	}
	a.opCancel()
	a.opCancel = nil
	return true
}

// hold waits d inside an operation. On cancellation it applies the settle
// policy and returns false.
func (a *Actor) hold(op context.Context, d time.Duration, phase string) bool {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return true
		case <-op.Done():
		}
	} else if op.Err() == nil {
		return true
	}

	a.observer.OperationCancelled(a.id, phase)
	a.logger.Info("operation cancelled",
		"device", a.id,
		"phase", phase,
		"state", a.status.WorkingState,
	)
	if a.opts.SettlePolicy == SettleEmit && a.ctx.Err() == nil {
		a.emit()
	}
	return false
}

// =============================================================================
// Controls
// =============================================================================

func (a *Actor) fault(codes []int) {
	a.stopJobTimer()
	if len(codes) == 0 {
		codes = []int{DefaultFaultCode}
	}

	a.status.Mode = rcp.ModeError
	a.status.ErrorCodes = codes
	a.transition(rcp.StateIdle)

	a.logger.Warn("device faulted", "device", a.id, "codes", codes)
	a.observer.CommandApplied(a.id, ctlFault.String())
}

func (a *Actor) clearFault() {
	a.stopJobTimer()
	op, end := a.beginOperation()
	defer end()

	a.transition(rcp.StateInitializing)
	if !a.hold(op, a.opts.Timing.InitDelay, string(rcp.StateInitializing)) {
		return
	}

	a.status.Mode = rcp.ModeManual
	a.status.ErrorCodes = []int{}
	a.status.JobID = ""
	a.status.RecipeID = ""
	a.behavior.reset(&a.status)
	a.transition(rcp.StateIdle)

	a.logger.Info("device initialized", "device", a.id)
	a.observer.CommandApplied(a.id, ctlClearFault.String())
}

// complete settles a running job. expect guards timer-driven completions
// against jobs that have moved on since the timer was armed.
func (a *Actor) complete(expect int64) {
	if expect >= 0 && expect != a.status.EventSeq {
		a.logger.Debug("stale completion ignored", "device", a.id, "armed_at", expect, "event_seq", a.status.EventSeq)
		return
	}

	switch a.status.WorkingState {
	case rcp.StateRunning, rcp.StateStopping, rcp.StatePausing, rcp.StateResuming, rcp.StateAborting:
	default:
		a.logger.Debug("nothing to complete", "device", a.id, "state", a.status.WorkingState)
		a.observer.CommandRejected(a.id, ctlComplete.String(), "precondition")
		return
	}

	a.stopJobTimer()
	a.status.CompletionReason = rcp.ReasonFor(a.status.WorkingState)
	a.transition(rcp.StateCompleted)
	a.observer.CommandApplied(a.id, ctlComplete.String())
}

// armJobTimer schedules an automatic completion for the job as it stands
// now.
func (a *Actor) armJobTimer() {
	a.stopJobTimer()
	d := a.opts.Timing.JobDuration
	if d <= 0 {
		return
	}
	expect := a.status.EventSeq
	a.jobTimer = time.AfterFunc(d, func() {
		a.inbox.push(item{ctl: ctlComplete, expect: expect})
	})
}

func (a *Actor) stopJobTimer() {
	if a.jobTimer != nil {
		a.jobTimer.Stop()
		a.jobTimer = nil
	}
}

// beat queues a status query unless one is already waiting.
func (a *Actor) beat() {
	if !a.beatPending.CompareAndSwap(false, true) {
		return
	}
	if !a.inbox.push(item{cmd: rcp.StatusQuery{}}) {
		a.beatPending.Store(false)
	}
}
