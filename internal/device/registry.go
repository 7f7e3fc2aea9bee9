package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// Logger defines the logging interface used by the Registry and its actors.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry owns the actor of every device the engine serves.
//
// Actors are created and destroyed explicitly; the registry is the only
// place that maps a device id to its actor. All public methods are
// thread-safe.
type Registry struct {
	transport Transport
	opts      Options
	fanout    *Broadcaster

	mu       sync.RWMutex
	actors   map[string]*Actor
	logger   Logger
	observer Observer
	closed   bool
}

// NewRegistry creates an empty registry. Every actor it creates publishes
// through transport and shares opts.
func NewRegistry(transport Transport, opts Options) *Registry {
	return &Registry{
		transport: transport,
		opts:      opts,
		fanout:    NewBroadcaster(),
		actors:    make(map[string]*Actor),
		logger:    noopLogger{},
		observer:  noopObserver{},
	}
}

// SetLogger sets the logger for the registry and actors created afterwards.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetObserver sets the observer for actors created afterwards.
func (r *Registry) SetObserver(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if observer == nil {
		observer = noopObserver{}
	}
	r.observer = observer
}

// Broadcaster returns the output port every actor publishes snapshots to.
func (r *Registry) Broadcaster() *Broadcaster {
	return r.fanout
}

// Create starts an actor for spec.
// Returns ErrDeviceExists if the id is already registered.
func (r *Registry) Create(spec Spec) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrActorStopped
	}
	if _, ok := r.actors[spec.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, spec.ID)
	}

	a, err := newActor(spec, actorDeps{
		transport: r.transport,
		fanout:    r.fanout,
		opts:      r.opts,
		logger:    r.logger,
		observer:  r.observer,
	})
	if err != nil {
		return nil, err
	}
	a.start()
	r.actors[spec.ID] = a

	r.logger.Info("device created", "device", spec.ID, "class", spec.Class)
	return a, nil
}

// Destroy stops and removes the actor for id.
// Returns ErrDeviceNotFound if no such actor exists.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	a, ok := r.actors[id]
	if ok {
		delete(r.actors, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if err := a.Stop(ctx); err != nil {
		return err
	}

	r.logger.Info("device destroyed", "device", id)
	return nil
}

// Get returns the actor for id.
// Returns ErrDeviceNotFound if no such actor exists.
func (r *Registry) Get(id string) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return a, nil
}

// IDs returns the registered device ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// List returns the current snapshot of every device, sorted by id.
func (r *Registry) List() []rcp.Status {
	actors := r.sorted()
	out := make([]rcp.Status, 0, len(actors))
	for _, a := range actors {
		out = append(out, a.Snapshot())
	}
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// Dispatch submits cmd to the target device, or to every device when the
// target is the broadcast id.
func (r *Registry) Dispatch(target string, cmd rcp.Command) error {
	if target == rcp.BroadcastID {
		var errs []error
		for _, a := range r.sorted() {
			if err := a.Submit(cmd); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", a.ID(), err))
			}
		}
		return errors.Join(errs...)
	}

	a, err := r.Get(target)
	if err != nil {
		return err
	}
	return a.Submit(cmd)
}

// Shutdown stops every actor concurrently and closes the broadcaster.
// The registry accepts no new devices afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.actors = make(map[string]*Actor)
	r.mu.Unlock()

	var g errgroup.Group
	for _, a := range actors {
		a := a
		g.Go(func() error {
			return a.Stop(ctx)
		})
	}
	err := g.Wait()

	r.fanout.Close()
	r.logger.Info("device registry stopped", "devices", len(actors))
	return err
}

func (r *Registry) sorted() []*Actor {
	r.mu.RLock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(actors, func(x, y *Actor) int {
		return strings.Compare(x.id, y.id)
	})
	return actors
}
