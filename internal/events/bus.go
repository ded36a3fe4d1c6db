package events

import (
	"container/ring"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rpggio/caseload/internal/domain/quota"
)

// DefaultHistorySize is the number of envelopes kept for late readers.
const DefaultHistorySize = 256

// Bus fans events out to subscribers. Publishing never blocks. A plain
// subscriber whose buffer is full misses the event; a durable subscriber
// queues it instead.
type Bus struct {
	mu          sync.RWMutex
	history     *ring.Ring
	subscribers map[string]*subscriber
	logger      *slog.Logger
	now         func() time.Time
	closed      bool
	dropped     atomic.Int64
}

type subscriber struct {
	ch chan Envelope

	// Durable subscribers only.
	mu    sync.Mutex
	queue []Envelope
	wake  chan struct{}
	done  chan struct{}
}

func (s *subscriber) durable() bool { return s.done != nil }

func (s *subscriber) enqueue(env Envelope) {
	s.mu.Lock()
	s.queue = append(s.queue, env)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump delivers queued envelopes in order until the subscription ends.
func (s *subscriber) pump(logger *slog.Logger, id string) {
	defer close(s.ch)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for i, env := range batch {
			select {
			case s.ch <- env:
			case <-s.done:
				logger.Warn("durable subscription closed with undelivered events", "subscriber", id, "pending", len(batch)-i)
				return
			}
		}
	}
}

func (s *subscriber) stop() {
	if s.durable() {
		close(s.done)
		return
	}
	close(s.ch)
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		history:     ring.New(DefaultHistorySize),
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		now:         time.Now,
	}
}

// Publish stamps and broadcasts a payload.
func (b *Bus) Publish(_ context.Context, clinicID string, payload Payload) Envelope {
	env := Envelope{
		ID:         ulid.Make().String(),
		Kind:       payload.Kind(),
		ClinicID:   clinicID,
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return env
	}

	b.history.Value = env
	b.history = b.history.Next()

	for id, sub := range b.subscribers {
		if sub.durable() {
			sub.enqueue(env)
			continue
		}
		select {
		case sub.ch <- env:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event subscriber blocked, dropping event",
				"subscriber", id, "event_id", env.ID, "kind", env.Kind, "clinic_id", env.ClinicID)
		}
	}
	return env
}

// Dropped returns how many deliveries to plain subscribers were skipped.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// PublishAlerts publishes one UsageAlertRaised per alert.
func (b *Bus) PublishAlerts(ctx context.Context, clinicID string, alerts []quota.UsageAlert) {
	for _, a := range alerts {
		b.Publish(ctx, clinicID, UsageAlertRaised{Alert: a})
	}
}

// Subscribe registers a subscriber with the given channel buffer. Events
// published while the buffer is full are dropped for this subscriber.
func (b *Bus) Subscribe(buffer int) (string, <-chan Envelope) {
	return b.subscribe(buffer, false)
}

// SubscribeDurable registers a subscriber that receives every event in
// publish order. Events that do not fit the buffer wait in an unbounded
// queue, so a slow reader costs memory rather than events.
func (b *Bus) SubscribeDurable(buffer int) (string, <-chan Envelope) {
	return b.subscribe(buffer, true)
}

func (b *Bus) subscribe(buffer int, durable bool) (string, <-chan Envelope) {
	if buffer <= 0 {
		buffer = DefaultHistorySize
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := ulid.Make().String()
	sub := &subscriber{ch: make(chan Envelope, buffer)}
	if b.closed {
		close(sub.ch)
		return id, sub.ch
	}
	if durable {
		sub.wake = make(chan struct{}, 1)
		sub.done = make(chan struct{})
		go sub.pump(b.logger, id)
	}
	b.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		sub.stop()
		delete(b.subscribers, id)
	}
}

// Recent returns up to n most recent envelopes for a clinic, oldest first.
// An empty clinicID matches every clinic.
func (b *Bus) Recent(clinicID string, n int) []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Envelope
	b.history.Do(func(v any) {
		env, ok := v.(Envelope)
		if !ok {
			return
		}
		if clinicID == "" || env.ClinicID == clinicID {
			out = append(out, env)
		}
	})
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		sub.stop()
		delete(b.subscribers, id)
	}
}
