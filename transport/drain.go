package transport

import (
	"context"
	"sync"
	"time"
)

// drainer counts in-flight requests of one HTTP server run so Stop can
// refuse new work and wait for the rest.
type drainer struct {
	delay   time.Duration
	timeout time.Duration

	mu       sync.Mutex
	draining bool
	inFlight int
	idle     chan struct{} // closed once draining with nothing in flight
}

func newDrainer(delay, timeout time.Duration) *drainer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &drainer{delay: delay, timeout: timeout, idle: make(chan struct{})}
}

// enter admits a request. It returns false once draining has begun.
func (d *drainer) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.inFlight++
	return true
}

func (d *drainer) leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if d.draining && d.inFlight == 0 {
		close(d.idle)
	}
}

func (d *drainer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// drain waits out the delay, stops admitting requests and waits for the
// in-flight ones, bounded by ctx and the drain timeout.
func (d *drainer) drain(ctx context.Context) error {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	d.mu.Lock()
	if !d.draining {
		d.draining = true
		if d.inFlight == 0 {
			close(d.idle)
		}
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	select {
	case <-d.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithShutdownTimeout sets how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.shutdownTimeout = d }
}

// WithShutdownDrainDelay sets the delay before the HTTP transport refuses
// new requests during Stop, giving load balancers time to react.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.drainDelay = d }
}
