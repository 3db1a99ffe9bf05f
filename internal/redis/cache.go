package redis

import (
	"context"
	"encoding/json"
	"time"

	"tutor-match/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - profile:{user_id} - participant profile, 5m TTL

// ProfileCache holds the read-only profile fields shown next to conversations.
type ProfileCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewProfileCache(client *goredis.Client, ttl time.Duration) *ProfileCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl}
}

type cachedProfile struct {
	ID          uuid.UUID `json:"id"`
	Role        user.Role `json:"role"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

// GetMany returns cached users. Ids absent from the result are misses.
func (c *ProfileCache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	found := make(map[uuid.UUID]user.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // Cache miss
		}
		var p cachedProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		found[p.ID] = user.User{ID: p.ID, Role: p.Role, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL, IsActive: true}
	}
	return found, nil
}

func (c *ProfileCache) SetMany(ctx context.Context, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, u := range users {
		data, err := json.Marshal(cachedProfile{ID: u.ID, Role: u.Role, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL})
		if err != nil {
			return err
		}
		pipe.Set(ctx, profileKey(u.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
