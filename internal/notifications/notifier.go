package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"murmur/internal/middleware"
	"murmur/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis channel every instance publishes to and subscribes on.
const EventsChannel = "murmur:events"

// DefaultQueueSize bounds the number of events waiting for dispatch.
const DefaultQueueSize = 1024

// Broadcaster delivers an encoded event to local clients.
type Broadcaster interface {
	BroadcastAll(message []byte)
}

// Notifier decouples event emission from delivery. Emit never blocks: events
// are queued and a single dispatcher publishes them to Redis when configured,
// or straight to the local hub otherwise. Until this instance holds a live
// subscription, events are also broadcast locally so its own clients never
// depend on a subscriber that does not exist.
type Notifier struct {
	rdb   *redis.Client
	local Broadcaster
	queue chan Event
	wired atomic.Bool

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewNotifier creates a Notifier. rdb may be nil.
func NewNotifier(rdb *redis.Client, local Broadcaster, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{
		rdb:   rdb,
		local: local,
		queue: make(chan Event, queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Distributed reports whether events travel through Redis.
func (n *Notifier) Distributed() bool {
	return n.rdb != nil
}

// Wired reports whether a Redis subscription currently feeds the local hub.
func (n *Notifier) Wired() bool {
	return n.wired.Load()
}

// Start launches the dispatcher. Subsequent calls are no-ops.
func (n *Notifier) Start() {
	n.startOnce.Do(func() {
		go n.dispatch()
	})
}

// Emit queues an event for delivery. When the queue is full or the notifier
// is stopped the event is dropped and counted.
func (n *Notifier) Emit(eventType string, payload any) {
	select {
	case <-n.stop:
		observability.RealtimeEventsDropped.WithLabelValues(eventType).Inc()
		return
	default:
	}

	select {
	case n.queue <- NewEvent(eventType, payload):
	default:
		observability.RealtimeEventsDropped.WithLabelValues(eventType).Inc()
		middleware.Logger.Warn("realtime queue full, dropped event", slog.String("event_type", eventType))
	}
}

// Stop drains queued events and stops the dispatcher, waiting at most until ctx ends.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() { close(n.stop) })
	n.Start()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) dispatch() {
	defer close(n.done)
	for {
		select {
		case ev := <-n.queue:
			n.deliver(ev)
		case <-n.stop:
			for {
				select {
				case ev := <-n.queue:
					n.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic while delivering event",
				slog.String("event_type", ev.Type),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, span := observability.StartSpan(context.Background(), "notifier", "deliver")
	data, err := ev.Encode()
	if err != nil {
		observability.EndSpan(span, err)
		middleware.Logger.Error("failed to encode event", slog.String("event_type", ev.Type), slog.String("error", err.Error()))
		return
	}

	if n.rdb != nil {
		err = n.rdb.Publish(ctx, EventsChannel, data).Err()
		switch {
		case err == nil && n.wired.Load():
			observability.RealtimeEventsPublished.WithLabelValues(ev.Type).Inc()
			observability.EndSpan(span, nil)
			return
		case err != nil:
			middleware.Logger.Warn("redis publish failed, delivering locally",
				slog.String("event_type", ev.Type),
				slog.String("error", err.Error()),
			)
		}
	}

	if n.local != nil {
		n.local.BroadcastAll(data)
	}
	observability.RealtimeEventsPublished.WithLabelValues(ev.Type).Inc()
	observability.EndSpan(span, err)
}

// Subscribe listens on EventsChannel and hands each payload to onMessage until
// ctx is cancelled. It returns once the subscription is confirmed. Without
// Redis it is a no-op since events are delivered locally.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func([]byte)) error {
	if n.rdb == nil {
		return nil
	}

	sub := n.rdb.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := sub.Channel()
	n.wired.Store(true)

	go func() {
		defer func() {
			n.wired.Store(false)
			_ = sub.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage([]byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

// SubscribeWithRetry keeps calling Subscribe every interval until it succeeds
// or ctx ends. Events emitted meanwhile are delivered locally.
func (n *Notifier) SubscribeWithRetry(ctx context.Context, onMessage func([]byte), interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := n.Subscribe(ctx, onMessage)
		if err == nil {
			middleware.Logger.Info("realtime subscription established", slog.Int("attempt", attempt))
			return
		}
		middleware.Logger.Warn("realtime subscription failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("interval", interval),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
