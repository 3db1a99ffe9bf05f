package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// PresenceStore tracks which users hold at least one live realtime connection.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Redis key prefixes for presence
const (
	presenceConnsPrefix = "presence:conns:"     // Set of live client ids per user
	presenceHeartbeats  = "presence:heartbeats" // Sorted set of user id -> last heartbeat unix time
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func connsKey(userID uuid.UUID) string {
	return presenceConnsPrefix + userID.String()
}

// SetOnline records one connection for the user.
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID, clientID string) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, connsKey(userID), clientID)
	pipe.Expire(ctx, connsKey(userID), p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeats, goredis.Z{Score: float64(time.Now().Unix()), Member: userID.String()})
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline drops one connection. The user stays online while other connections remain.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID, clientID string) error {
	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, connsKey(userID), clientID)
	remaining := pipe.SCard(ctx, connsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if remaining.Val() == 0 {
		return p.client.ZRem(ctx, presenceHeartbeats, userID.String()).Err()
	}
	return nil
}

// Heartbeat extends the user's presence TTL.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, connsKey(userID), p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeats, goredis.Z{Score: float64(time.Now().Unix()), Member: userID.String()})
	_, err := pipe.Exec(ctx)
	return err
}

// OnlineMap reports presence for several users in one round trip.
func (p *PresenceStore) OnlineMap(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := p.client.Pipeline()
	cmds := make(map[uuid.UUID]*goredis.IntCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.Exists(ctx, connsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for id, cmd := range cmds {
		result[id] = cmd.Val() > 0
	}
	return result, nil
}

// CleanupStalePresence clears users whose last heartbeat is older than maxAge.
func (p *PresenceStore) CleanupStalePresence(ctx context.Context, maxAge time.Duration) (int64, error) {
	threshold := time.Now().Add(-maxAge).Unix()

	staleUsers, err := p.client.ZRangeByScore(ctx, presenceHeartbeats, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(staleUsers) == 0 {
		return 0, nil
	}

	pipe := p.client.TxPipeline()
	members := make([]interface{}, 0, len(staleUsers))
	for _, id := range staleUsers {
		pipe.Del(ctx, presenceConnsPrefix+id)
		members = append(members, id)
	}
	pipe.ZRem(ctx, presenceHeartbeats, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int64(len(staleUsers)), nil
}
