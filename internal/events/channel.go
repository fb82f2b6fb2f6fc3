package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var ErrChannelClosed = errors.New("event channel closed")

// Handler receives one event. A returned error is logged and does not stop
// delivery to the remaining handlers.
type Handler[E any] func(ctx context.Context, ev E) error

// Channel is an unbounded FIFO of events with its own handler set. Publish
// never blocks and never drops while the channel is open.
type Channel[E any] struct {
	name string
	log  *zap.Logger

	mu     sync.Mutex
	queue  []E
	closed bool
	signal chan struct{}

	regMu    sync.Mutex
	handlers atomic.Pointer[[]Handler[E]]
}

func NewChannel[E any](name string, log *zap.Logger) *Channel[E] {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Channel[E]{
		name:   name,
		log:    log.With(zap.String("channel", name)),
		signal: make(chan struct{}, 1),
	}
	c.handlers.Store(&[]Handler[E]{})
	return c
}

func (c *Channel[E]) Name() string { return c.name }

// Register appends h. The handler slice is replaced rather than mutated, so a
// running distribution loop keeps iterating the snapshot it loaded.
func (c *Channel[E]) Register(h Handler[E]) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	old := *c.handlers.Load()
	next := make([]Handler[E], len(old), len(old)+1)
	copy(next, old)
	next = append(next, h)
	c.handlers.Store(&next)
}

func (c *Channel[E]) HandlerCount() int {
	return len(*c.handlers.Load())
}

func (c *Channel[E]) Publish(ev E) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Wrap(ErrChannelClosed, c.name)
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()
	c.wake()
	return nil
}

// Pending reports how many events wait for distribution.
func (c *Channel[E]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close drops the receiver. Queued events are discarded.
func (c *Channel[E]) Close() {
	c.mu.Lock()
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
	c.wake()
}

func (c *Channel[E]) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *Channel[E]) next(ctx context.Context) (E, bool) {
	var zero E
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return zero, false
		}
		if len(c.queue) > 0 {
			ev := c.queue[0]
			c.queue[0] = zero
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return ev, true
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			c.Close()
			return zero, false
		case <-c.signal:
		}
	}
}

// run delivers events in publish order. Every registered handler sees an
// event before the next one is taken off the queue.
func (c *Channel[E]) run(ctx context.Context) {
	for {
		ev, ok := c.next(ctx)
		if !ok {
			c.log.Debug("distribution stopped")
			return
		}
		for _, h := range *c.handlers.Load() {
			c.invoke(ctx, h, ev)
		}
	}
}

func (c *Channel[E]) invoke(ctx context.Context, h Handler[E], ev E) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked",
				zap.String("event", eventName(ev)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := h(ctx, ev); err != nil {
		c.log.Warn("event handler failed", zap.String("event", eventName(ev)), zap.Error(err))
	}
}

func eventName(ev any) string {
	if n, ok := ev.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", ev)
}
