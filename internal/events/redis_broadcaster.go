package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends a raw payload to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisBroadcaster fans group events out through redis so every instance's bridge can deliver them.
type RedisBroadcaster struct {
	publisher Publisher
}

func NewRedisBroadcaster(publisher Publisher) *RedisBroadcaster {
	return &RedisBroadcaster{publisher: publisher}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, group string, event Envelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.publisher.Publish(ctx, ChannelForGroup(group), data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", group, err)
	}
	return nil
}
