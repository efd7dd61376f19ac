package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is a persisted domain event.
type Event struct {
	ID          string          `json:"id"`
	BusinessID  string          `json:"businessId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// EventStore defines the persistence operations required by the event bus.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, ev Event) (Event, error)
}

// Notifier reacts to emitted events (receipt printing, cache invalidation, ...).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus persists domain events and fans them out to downstream handlers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured handlers.
// Handlers run even when the event could not be persisted, so follow-up work
// such as cache invalidation never depends on the event log. Persist and
// notifier failures are joined into the returned error.
func (b *Bus) Emit(ctx context.Context, businessID, topic, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	pending := Event{
		BusinessID:  businessID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
	}
	var joined error
	ev, err := b.Store.InsertDomainEvent(ctx, pending)
	if err != nil {
		joined = fmt.Errorf("events: persist event: %w", err)
		ev = pending
		ev.OccurredAt = time.Now().UTC()
	}
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case []byte:
		return encodePayload(json.RawMessage(v))
	default:
		return json.Marshal(v)
	}
}

// NewStore persists events in the domain_events table.
func NewStore(pool *pgxpool.Pool) EventStore {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) InsertDomainEvent(ctx context.Context, ev Event) (Event, error) {
	if s == nil || s.pool == nil {
		return Event{}, errors.New("events: store unavailable")
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (business_id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4) RETURNING id, occurred_at`, ev.BusinessID, ev.Topic, ev.AggregateID, []byte(ev.Payload)).Scan(&ev.ID, &ev.OccurredAt)
	return ev, err
}
