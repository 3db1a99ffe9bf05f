package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// PubSub wraps redis publish and pattern subscribe.
type PubSub struct {
	client *redis.Client
}

func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe blocks, invoking handler for every message on the given patterns until ctx ends.
func (p *PubSub) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := p.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return nil
			}
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
