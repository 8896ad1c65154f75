package tablechat

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errClosed = errors.New("fake transport closed")

// fakeTransport feeds frames and errors pushed by the test. A stubborn
// transport keeps delivering after Close, like a socket whose events were
// already queued.
type fakeTransport struct {
	frames   chan []byte
	errs     chan error
	closed   chan struct{}
	stubborn bool

	once     sync.Once
	mu       sync.Mutex
	written  []any
	writeErr error
}

func newFakeTransport(stubborn bool) *fakeTransport {
	return &fakeTransport{
		frames:   make(chan []byte),
		errs:     make(chan error),
		closed:   make(chan struct{}),
		stubborn: stubborn,
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	if t.stubborn {
		select {
		case f := <-t.frames:
			return f, nil
		case err := <-t.errs:
			return nil, err
		}
	}
	select {
	case f := <-t.frames:
		return f, nil
	case err := <-t.errs:
		return nil, err
	case <-t.closed:
		return nil, errClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, v any) error {
	select {
	case <-t.closed:
		return errClosed
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written = append(t.written, v)
	return nil
}

func (t *fakeTransport) failWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) getWritten() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]any, len(t.written))
	copy(cp, t.written)
	return cp
}

// fakeDialer hands out fakeTransports, failing the dials queued with failNext.
type fakeDialer struct {
	stubborn bool

	mu        sync.Mutex
	fail      []error
	endpoints []string

	dialed  chan *fakeTransport
	errored chan error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dialed:  make(chan *fakeTransport, 16),
		errored: make(chan error, 16),
	}
}

func (d *fakeDialer) failNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = append(d.fail, errs...)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.endpoints)
}

func (d *fakeDialer) lastEndpoint() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.endpoints) == 0 {
		return ""
	}
	return d.endpoints[len(d.endpoints)-1]
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string) (Transport, error) {
	d.mu.Lock()
	d.endpoints = append(d.endpoints, endpoint)
	var err error
	if len(d.fail) > 0 {
		err, d.fail = d.fail[0], d.fail[1:]
	}
	d.mu.Unlock()

	if err != nil {
		d.errored <- err
		return nil, err
	}
	t := newFakeTransport(d.stubborn)
	d.dialed <- t
	return t, nil
}

// fakeClock records timers instead of running them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *fakeTimer) isStopped() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.stopped
}

// pending returns timers that were neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) all() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*fakeTimer, len(c.timers))
	copy(out, c.timers)
	return out
}

// fire runs t's callback even if it was stopped, the way a timer that
// already expired can race with Stop.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.f()
}

// recorder collects values delivered on other goroutines.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder[T]) get() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
