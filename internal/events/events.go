// Package events carries matching engine notifications to live clients
// (Redis pub/sub, one channel per member) and to analytics consumers (AMQP).
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Type is the routing key of an event.
type Type string

const (
	TypeQueueEntered   Type = "queue.entered"
	TypeMatchFound     Type = "match.found"
	TypeQueueCancelled Type = "queue.cancelled"
	TypeQueueExpired   Type = "queue.expired"
	TypeSessionExpired Type = "session.expired"
)

// Meta identifies an event independently of its payload.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          Type      `json:"type"`
}

// MatchEvent is the payload of every event. Each event concerns one member;
// a match produces one event per participant.
type MatchEvent struct {
	MemberID  string `json:"member_id"`
	EntryID   string `json:"entry_id,omitempty"`
	Rank      string `json:"rank,omitempty"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	WaitedMS  int64  `json:"waited_ms,omitempty"`
}

// Envelope is what goes over the wire.
type Envelope struct {
	Meta Meta       `json:"meta"`
	Data MatchEvent `json:"data"`
}

// New wraps data in an envelope with a fresh id.
func New(typ Type, producer string, at time.Time, data MatchEvent) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: producer,
			Time:     at.UTC(),
			Type:     typ,
		},
		Data: data,
	}
}

// WithCorrelation links e to another event, e.g. both halves of a match.
func (e Envelope) WithCorrelation(id string) Envelope {
	e.Meta.CorrelationID = &id
	return e
}

// Publisher delivers envelopes somewhere.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logged wraps a publisher so failures are logged instead of returned.
// Matching never fails because a notification could not be delivered.
type Logged struct {
	Next Publisher
}

func (l Logged) Publish(ctx context.Context, env Envelope) error {
	if err := l.Next.Publish(ctx, env); err != nil {
		log.Warn().
			Err(err).
			Str("module", "events").
			Str("type", string(env.Meta.Type)).
			Str("member_id", env.Data.MemberID).
			Msg("failed to publish event")
	}
	return nil
}
