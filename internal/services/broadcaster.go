package services

import (
	"context"

	"tutor-match/internal/events"
	"tutor-match/pkg/logger"

	"go.uber.org/zap"
)

// Broadcaster delivers an event to every connection joined to a realtime group.
// Delivery is best effort and never part of a write's durability.
type Broadcaster interface {
	Publish(ctx context.Context, group string, event events.Envelope) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(context.Context, string, events.Envelope) error { return nil }

// NopBroadcaster drops every event.
func NopBroadcaster() Broadcaster {
	return nopBroadcaster{}
}

// notifier wraps a Broadcaster so that failures are logged instead of returned.
type notifier struct {
	broadcaster Broadcaster
	log         *logger.Logger
}

func newNotifier(b Broadcaster, log *logger.Logger) notifier {
	if b == nil {
		b = NopBroadcaster()
	}
	if log == nil {
		log = logger.Nop()
	}
	return notifier{broadcaster: b, log: log}
}

func (n notifier) notify(ctx context.Context, group, eventType, aggregateType, aggregateID string, payload interface{}) {
	env, err := events.NewEnvelope(eventType, aggregateType, aggregateID, payload)
	if err != nil {
		n.log.Ctx(ctx).Error("failed to build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := n.broadcaster.Publish(ctx, group, env); err != nil {
		n.log.Ctx(ctx).Warn("broadcast failed",
			zap.String("group", group),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
