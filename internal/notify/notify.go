package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/khayson/barffoods-backend/internal/messaging"
)

// Audiences a notification can target.
const (
	AudienceStaff    = "staff"
	AudienceCustomer = "customer"
)

// Dispatcher delivers fire-and-forget notifications. Failures are logged
// and swallowed; no caller may depend on delivery.
type Dispatcher interface {
	Notify(ctx context.Context, kind, audience string, payload any)
}

type message struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Audience string `json:"audience"`
	Payload  any    `json:"payload"`
}

// EventDispatcher publishes notifications to a broker topic for downstream
// delivery workers (email, push).
type EventDispatcher struct {
	pub   messaging.Publisher
	topic string
	log   *slog.Logger
}

func NewEventDispatcher(pub messaging.Publisher, topic string, log *slog.Logger) *EventDispatcher {
	return &EventDispatcher{pub: pub, topic: topic, log: log}
}

func (d *EventDispatcher) Notify(ctx context.Context, kind, audience string, payload any) {
	msg := message{ID: uuid.NewString(), Kind: kind, Audience: audience, Payload: payload}
	if err := d.pub.PublishEvent(ctx, d.topic, kind, msg); err != nil {
		d.log.Warn("notification dispatch failed", "kind", kind, "audience", audience, "err", err)
	}
}
