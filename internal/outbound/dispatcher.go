package outbound

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type scheduler interface {
	Schedule(ctx context.Context, req Request) (bool, error)
}

// Dispatcher runs sends in the background so callers never wait on pacing.
// Sends outlive the enqueuing request and stop only when the base context
// ends.
type Dispatcher struct {
	base     context.Context
	sender   scheduler
	slots    chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // guards closed and wg.Add against Shutdown
	closed   bool
	inFlight atomic.Int64
	logg     *logger.Logger
}

func NewDispatcher(base context.Context, sender scheduler, maxInFlight int, logg *logger.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		base:   base,
		sender: sender,
		slots:  make(chan struct{}, maxInFlight),
		logg:   logg,
	}
}

// Enqueue accepts req for delivery. It returns false once Shutdown started.
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logg.Warn(ctx, "outbound.dispatch_rejected")
		return false
	}
	d.wg.Add(1)
	d.inFlight.Add(1)
	d.mu.Unlock()

	sendCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(d.base, cancel)

	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		defer cancel()
		defer stop()

		select {
		case d.slots <- struct{}{}:
		case <-sendCtx.Done():
			d.logg.Warn(sendCtx, "outbound.dispatch_abandoned")
			return
		}
		defer func() { <-d.slots }()

		if _, err := d.sender.Schedule(sendCtx, req); err != nil {
			d.logg.Error(sendCtx, "outbound.dispatch_failed", err)
		}
	}()
	return true
}

// Pending counts sends queued or running.
func (d *Dispatcher) Pending() int64 {
	return d.inFlight.Load()
}

// Shutdown stops accepting work and waits for queued sends or ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
