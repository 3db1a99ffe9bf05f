package services

import (
	"context"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/repository"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceReader reports which users currently hold a realtime connection.
type PresenceReader interface {
	OnlineMap(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type ProfileCache interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error)
	SetMany(ctx context.Context, users []user.User) error
}

// ProfileService resolves participant info from the users table, a read-through cache and presence.
// cache and presence are optional.
type ProfileService struct {
	users    repository.UserRepository
	cache    ProfileCache
	presence PresenceReader
	log      *logger.Logger
}

func NewProfileService(users repository.UserRepository, cache ProfileCache, presence PresenceReader, log *logger.Logger) *ProfileService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProfileService{users: users, cache: cache, presence: presence, log: log}
}

// Participants returns info for every id that resolves to an active user.
func (s *ProfileService) Participants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]conversation.ParticipantInfo, error) {
	ids = uniqueIDs(ids)
	profiles, err := s.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	online := map[uuid.UUID]bool{}
	if s.presence != nil && len(profiles) > 0 {
		online, err = s.presence.OnlineMap(ctx, ids)
		if err != nil {
			// Presence is a hint; listings still render without it.
			s.log.Ctx(ctx).Warn("presence lookup failed", zap.Error(err))
			online = map[uuid.UUID]bool{}
		}
	}

	out := make(map[uuid.UUID]conversation.ParticipantInfo, len(profiles))
	for id, u := range profiles {
		out[id] = conversation.ParticipantInfo{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
			Role:        u.Role,
			IsOnline:    online[id],
		}
	}
	return out, nil
}

func (s *ProfileService) lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	found := map[uuid.UUID]user.User{}
	if s.cache != nil {
		cached, err := s.cache.GetMany(ctx, ids)
		if err != nil {
			s.log.Ctx(ctx).Warn("profile cache read failed", zap.Error(err))
		} else {
			found = cached
		}
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return found, nil
	}

	loaded, err := s.users.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	fresh := make([]user.User, 0, len(loaded))
	for id, u := range loaded {
		found[id] = u
		fresh = append(fresh, u)
	}
	if s.cache != nil && len(fresh) > 0 {
		if err := s.cache.SetMany(ctx, fresh); err != nil {
			s.log.Ctx(ctx).Warn("profile cache write failed", zap.Error(err))
		}
	}
	return found, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
