package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"eatpoint/internal/adapters/observability"
	"eatpoint/internal/domain"
)

// Inserter persists a single audit event.
type Inserter interface {
	Insert(ctx context.Context, ev domain.AuditEvent) error
}

// Dispatcher implements domain.AuditSink over a bounded queue. Record
// never blocks the caller: when the queue is full the event is dropped
// and counted. A single worker drains the queue, so writes happen off
// the request goroutine and a slow audit store cannot stall mutations.
type Dispatcher struct {
	store Inserter
	ch    chan domain.AuditEvent
	done  chan struct{}
}

func NewDispatcher(store Inserter, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		store: store,
		ch:    make(chan domain.AuditEvent, queueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues the event. Callers must not Record after Close.
func (d *Dispatcher) Record(_ context.Context, ev domain.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	select {
	case d.ch <- ev:
	default:
		observability.ObserveAudit("dropped")
		log.Warn().
			Str("entity", ev.EntityID).
			Str("action", string(ev.Action)).
			Msg("audit queue full, event dropped")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		// fresh context per write: the request context is long gone
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.store.Insert(ctx, ev)
		cancel()
		if err != nil {
			observability.ObserveAudit("error")
			log.Warn().
				Err(err).
				Str("entity", ev.EntityID).
				Str("action", string(ev.Action)).
				Msg("audit write failed")
			continue
		}
		observability.ObserveAudit("recorded")
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	close(d.ch)
	<-d.done
}
