// Package events carries "record created/updated" notifications to browser
// clients and downstream consumers. Delivery is best-effort: listeners must
// treat a notification as a hint to reload, never as state.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	AttentionCreated Kind = "attention.created"
	AttentionUpdated Kind = "attention.updated"
	AuditAccess      Kind = "audit.access"
)

// ChannelAttentions is the channel every attention event is sent on.
const ChannelAttentions = "attentions"

// ChannelAudit carries access records. It is never fanned out to browsers.
const ChannelAudit = "audit"

// Event is one notification. Subject identifies the affected record and
// is used as the partition key downstream.
type Event struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Channel string          `json:"channel"`
	Subject string          `json:"subject"`
	Origin  string          `json:"origin,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with payload marshaled to JSON.
func New(kind Kind, channel, subject string, payload interface{}) (Event, error) {
	ev := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Channel: channel,
		Subject: subject,
		At:      time.Now().UTC(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		ev.Payload = b
	}
	return ev, nil
}

// Publisher sends an event somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Fanout publishes to every target and joins their errors. One failing
// target does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
