package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"tutor-match/internal/events"
	"tutor-match/pkg/logger"

	"go.uber.org/zap"
)

// LocalBroadcaster delivers events straight into this instance's hub.
type LocalBroadcaster struct {
	hub *Hub
}

func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

func (b *LocalBroadcaster) Publish(_ context.Context, group string, event events.Envelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	b.hub.Broadcast(group, data)
	return nil
}

// Subscriber delivers messages published on redis channels matching patterns.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// RedisBridge relays group events published by any instance into the local hub.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber Subscriber, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, log: log.Named("redis_bridge")}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	b.log.Logger.Info("redis bridge started", zap.Strings("patterns", events.ChannelPatterns))
	return b.subscriber.Subscribe(ctx, events.ChannelPatterns, b.deliver)
}

func (b *RedisBridge) deliver(channel string, payload []byte) {
	group, ok := events.GroupFromChannel(channel)
	if !ok {
		b.log.Logger.Debug("ignoring message on unknown channel", zap.String("channel", channel))
		return
	}
	b.hub.Broadcast(group, payload)
}
