// Package outbox is the in-process event bus domain events are published on.
// It is not durable: events still queued when the process dies are lost.
package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/clubshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/Zhima-Mochi/clubshop/internal/observability/logctx"
)

// AllEvents subscribes a handler to every event name.
const AllEvents = "*"

const (
	componentOutbox = "outbox"
	peerSubscriber  = "subscriber"

	DefaultQueueSize      = 1024
	DefaultConcurrency    = 8
	DefaultHandlerTimeout = 30 * time.Second
)

var ErrBusStopped = errors.New("outbox: bus stopped")

type Option func(*Bus)

// WithQueueSize bounds the events waiting for dispatch; Publish blocks on a
// full queue until its context ends.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithConcurrency caps the handlers running for one event.
func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// Bus dispatches events one at a time in publish order; the handlers of a
// single event run concurrently.
type Bus struct {
	subsMu sync.RWMutex
	subs   map[string][]domoutbox.Handler

	// stateMu orders Publish against Stop closing the queue.
	stateMu sync.RWMutex
	stopped bool
	queue   chan domoutbox.Event

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	queueSize   int
	concurrency int
	timeout     time.Duration

	log      observability.Logger
	handled  observability.Counter   // external_requests_total{peer="subscriber",endpoint,outcome}
	duration observability.Histogram // external_request_duration_seconds{peer="subscriber",endpoint}
}

func NewBus(logger observability.Logger, tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	if logger == nil {
		logger = tel.Logger()
	}
	b := &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		done:        make(chan struct{}),
		queueSize:   DefaultQueueSize,
		concurrency: DefaultConcurrency,
		timeout:     DefaultHandlerTimeout,
		log:         logger.With(observability.F("component", componentOutbox)),
		handled:     tel.Metrics().Counter(observability.MExternalRequests),
		duration:    tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.queue = make(chan domoutbox.Event, b.queueSize)
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	if h == nil {
		return
	}
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start launches the dispatcher. It outlives ctx's cancellation; use Stop.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatch(loopCtx)
		b.log.Info("event_bus_started",
			observability.F("queue_size", b.queueSize),
			observability.F("concurrency", b.concurrency),
		)
	})
}

// Stop refuses new events, delivers the ones already queued and waits for
// the dispatcher until ctx expires.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.stateMu.Lock()
		b.stopped = true
		close(b.queue)
		b.stateMu.Unlock()

		pending := len(b.queue)
		if b.cancel != nil {
			select {
			case <-b.done:
				pending = 0
			case <-ctx.Done():
				b.cancel()
			}
		}
		b.log.Info("event_bus_stopped", observability.F("undelivered", pending))
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.stopped {
		return ErrBusStopped
	}

	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatch(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) handlersFor(name string) []domoutbox.Handler {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	hs := make([]domoutbox.Handler, 0, len(b.subs[name])+len(b.subs[AllEvents]))
	hs = append(hs, b.subs[name]...)
	return append(hs, b.subs[AllEvents]...)
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()
	logger := b.log.With(observability.F("event", name))

	handlers := b.handlersFor(name)
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			b.run(ctx, logger, h, e)
		}()
	}
	wg.Wait()

	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}

// run calls one handler under the handler timeout. Errors and panics are
// logged and counted; they never reach the publisher or other handlers.
func (b *Bus) run(ctx context.Context, logger observability.Logger, h domoutbox.Handler, e domoutbox.Event) {
	name := e.EventName()
	start := time.Now()
	outcome := "success"

	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			logger.Error("event_handler_panic",
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
		}
		b.handled.Add(1,
			observability.L("peer", peerSubscriber),
			observability.L("endpoint", name),
			observability.L("outcome", outcome),
		)
		b.duration.Observe(time.Since(start).Seconds(),
			observability.L("peer", peerSubscriber),
			observability.L("endpoint", name),
		)
	}()

	hctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := h(logctx.With(hctx, logger), e); err != nil {
		outcome = "error"
		logger.Warn("event_handler_error", observability.Err(err))
	}
}
