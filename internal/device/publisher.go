package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// Publisher delivers one device's snapshots to the transport in the order
// they were enqueued.
//
// Enqueue never blocks the caller. A single drain goroutine runs while the
// queue is non-empty; a second Enqueue during a drain only appends. When a
// delivery fails (after any configured retries) the item is dropped and the
// pass ends; whatever is still queued goes out with the next Enqueue.
type Publisher struct {
	deviceID  string
	transport Transport
	logger    Logger
	observer  Observer

	retries int
	backoff time.Duration
	timeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []rcp.Status
	draining bool

	lastPublished atomic.Int64 // unix nanos
	published     atomic.Uint64
	failed        atomic.Uint64
}

func newPublisher(deviceID string, transport Transport, opts Options, logger Logger, observer Observer) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	p := &Publisher{
		deviceID:  deviceID,
		transport: transport,
		logger:    logger,
		observer:  observer,
		retries:   max(opts.PublishRetries, 0),
		backoff:   opts.RetryBackoff,
		timeout:   opts.PublishTimeout,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Enqueue appends a snapshot and starts a drain if none is running.
func (p *Publisher) Enqueue(st rcp.Status) {
	p.mu.Lock()
	p.queue = append(p.queue, st)
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	go p.drain()
}

func (p *Publisher) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}
		st := p.queue[0]
		p.queue[0] = rcp.Status{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.deliver(st); err != nil {
			p.failed.Add(1)
			p.observer.PublishFailed(p.deviceID)
			p.logger.Error("status publish failed",
				"device", p.deviceID,
				"sequence", st.Sequence,
				"error", err,
			)

			p.mu.Lock()
			p.draining = false
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}

		p.published.Add(1)
		p.lastPublished.Store(time.Now().UnixNano())
		p.observer.StatusPublished(p.deviceID)
	}
}

// deliver makes one attempt plus the configured retries.
func (p *Publisher) deliver(st rcp.Status) error {
	if p.transport == nil {
		return nil
	}

	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 && p.backoff > 0 {
			time.Sleep(p.backoff)
		}

		ctx := context.Background()
		var cancel context.CancelFunc = func() {}
		if p.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		err = p.transport.PublishStatus(ctx, st)
		cancel()

		if err == nil {
			return nil
		}
		if attempt < p.retries {
			p.logger.Warn("status publish retry",
				"device", p.deviceID,
				"sequence", st.Sequence,
				"attempt", attempt+1,
				"error", err,
			)
		}
	}
	return err
}

// Flush blocks until no drain is running. Items left behind by a failed
// pass do not hold Flush up.
func (p *Publisher) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.draining {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}
	return nil
}

// LastPublished returns the time of the last successful delivery, or the
// zero time if nothing has been delivered.
func (p *Publisher) LastPublished() time.Time {
	n := p.lastPublished.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Pending returns the number of snapshots waiting for delivery.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats returns delivery counters.
func (p *Publisher) Stats() (published, failed uint64) {
	return p.published.Load(), p.failed.Load()
}
