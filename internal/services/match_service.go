package services

import (
	"context"
	"errors"
	"fmt"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/events"
	"tutor-match/internal/proxy"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMatchListLimit = 20
	maxMatchListLimit     = 100
)

type MatchService struct {
	users   repository.UserRepository
	swipes  repository.SwipeRepository
	matches repository.MatchRepository
	access  *proxy.AccessControl
	locks   *keyLock
	events  notifier
	log     *logger.Logger
}

func NewMatchService(users repository.UserRepository, swipes repository.SwipeRepository, matches repository.MatchRepository, access *proxy.AccessControl, broadcaster Broadcaster, log *logger.Logger) *MatchService {
	if log == nil {
		log = logger.Nop()
	}
	return &MatchService{
		users:   users,
		swipes:  swipes,
		matches: matches,
		access:  access,
		locks:   newKeyLock(),
		events:  newNotifier(broadcaster, log),
		log:     log,
	}
}

// EvaluateAndMaybeMatch creates an ACTIVE match when both sides have liked each other.
// It returns the existing ACTIVE match unchanged, or nil when interest is not mutual.
// A pair whose last match was BLOCKED never matches again; after any other ending
// both likes must be renewed before a new match is created.
func (s *MatchService) EvaluateAndMaybeMatch(ctx context.Context, studentID, tutorID uuid.UUID) (*match.Match, error) {
	unlock := s.locks.Lock(match.PairKey(studentID, tutorID))
	defer unlock()

	existing, err := s.matches.GetActiveByPair(ctx, studentID, tutorID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, tutor_errors.ErrNotFound) {
		return nil, err
	}

	studentLike, ok, err := s.like(ctx, studentID, tutorID)
	if err != nil || !ok {
		return nil, err
	}
	tutorLike, ok, err := s.like(ctx, tutorID, studentID)
	if err != nil || !ok {
		return nil, err
	}

	previous, err := s.previousMatch(ctx, studentID, tutorID)
	if err != nil {
		return nil, err
	}
	if previous != nil && !rematchAllowed(*previous, studentLike, tutorLike) {
		return nil, nil
	}

	m, err := s.createActive(ctx, studentID, tutorID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AcceptPendingMatch lets a tutor accept a student who already liked them.
// After an earlier match ended the student's like must be renewed; a BLOCKED pair cannot be accepted.
func (s *MatchService) AcceptPendingMatch(ctx context.Context, tutorID, studentID uuid.UUID) (match.Match, error) {
	if tutorID == studentID {
		return match.Match{}, tutor_errors.ErrInvalidInput
	}
	tutor, err := s.users.GetByID(ctx, tutorID)
	if err != nil {
		return match.Match{}, err
	}
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return match.Match{}, err
	}
	if tutor.Role != user.RoleTutor || student.Role != user.RoleStudent {
		return match.Match{}, tutor_errors.ErrInvalidInput
	}

	unlock := s.locks.Lock(match.PairKey(studentID, tutorID))
	defer unlock()

	existing, err := s.matches.GetActiveByPair(ctx, studentID, tutorID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, tutor_errors.ErrNotFound) {
		return match.Match{}, err
	}

	studentLike, liked, err := s.like(ctx, studentID, tutorID)
	if err != nil {
		return match.Match{}, err
	}
	if !liked {
		return match.Match{}, fmt.Errorf("student has not liked this tutor: %w", tutor_errors.ErrPreconditionFailed)
	}

	previous, err := s.previousMatch(ctx, studentID, tutorID)
	if err != nil {
		return match.Match{}, err
	}
	if previous != nil {
		if previous.Status == match.StatusBlocked {
			return match.Match{}, fmt.Errorf("pair is blocked: %w", tutor_errors.ErrForbidden)
		}
		if !rematchAllowed(*previous, studentLike) {
			return match.Match{}, fmt.Errorf("student has not liked this tutor since the last match ended: %w", tutor_errors.ErrPreconditionFailed)
		}
	}

	return s.createActive(ctx, studentID, tutorID)
}

// createActive inserts an ACTIVE match, resolving a lost race to the winner's row.
// Callers hold the pair lock.
func (s *MatchService) createActive(ctx context.Context, studentID, tutorID uuid.UUID) (match.Match, error) {
	now := tutor_errors.NowUTC()
	m := match.Match{
		ID:           uuid.New(),
		StudentID:    studentID,
		TutorID:      tutorID,
		Status:       match.StatusActive,
		MatchedAt:    now,
		LastActivity: now,
	}

	created, err := s.matches.CreateIfAbsent(ctx, &m)
	if err != nil {
		return match.Match{}, err
	}
	if !created {
		existing, err := s.matches.GetActiveByPair(ctx, studentID, tutorID)
		if errors.Is(err, tutor_errors.ErrNotFound) {
			return match.Match{}, fmt.Errorf("active match for pair changed concurrently: %w", tutor_errors.ErrConflict)
		}
		return existing, err
	}

	s.log.Ctx(ctx).Info("match created",
		zap.String("match_id", m.ID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("tutor_id", tutorID.String()),
	)
	payload := events.NewMatchPayload(m)
	for _, participant := range []uuid.UUID{studentID, tutorID} {
		s.events.notify(ctx, events.UserGroup(participant), events.EventTypeMatchCreated, events.AggregateTypeMatch, m.ID.String(), payload)
	}
	return m, nil
}

// like returns the actor's swipe on target when it is a LIKE.
func (s *MatchService) like(ctx context.Context, actorID, targetID uuid.UUID) (swipe.Swipe, bool, error) {
	sw, err := s.swipes.Get(ctx, actorID, targetID)
	if err != nil {
		if errors.Is(err, tutor_errors.ErrNotFound) {
			return swipe.Swipe{}, false, nil
		}
		return swipe.Swipe{}, false, err
	}
	return sw, sw.Action == swipe.ActionLike, nil
}

// previousMatch returns the pair's latest match, or nil for a pair that never matched.
func (s *MatchService) previousMatch(ctx context.Context, studentID, tutorID uuid.UUID) (*match.Match, error) {
	m, err := s.matches.GetLatestByPair(ctx, studentID, tutorID)
	if errors.Is(err, tutor_errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// rematchAllowed reports whether a new ACTIVE match may follow previous.
// BLOCKED is final; otherwise every like must have been recorded after previous ended.
func rematchAllowed(previous match.Match, likes ...swipe.Swipe) bool {
	if previous.Status == match.StatusBlocked {
		return false
	}
	for _, sw := range likes {
		if sw.UpdatedAt.Before(previous.LastActivity) {
			return false
		}
	}
	return true
}

func (s *MatchService) Deactivate(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error) {
	return s.transition(ctx, matchID, userID, match.StatusInactive, false)
}

func (s *MatchService) Block(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error) {
	return s.transition(ctx, matchID, userID, match.StatusBlocked, false)
}

// Decline rejects a pending match. Only the tutor may decline.
func (s *MatchService) Decline(ctx context.Context, matchID, tutorID uuid.UUID) (match.Match, error) {
	return s.transition(ctx, matchID, tutorID, match.StatusRejected, true)
}

func (s *MatchService) transition(ctx context.Context, matchID, userID uuid.UUID, to match.Status, tutorOnly bool) (match.Match, error) {
	m, err := s.access.CanActOnMatch(ctx, userID, matchID)
	if err != nil {
		return match.Match{}, err
	}
	if tutorOnly && m.TutorID != userID {
		return match.Match{}, tutor_errors.ErrForbidden
	}
	if !match.CanTransition(m.Status, to) {
		return match.Match{}, fmt.Errorf("%s -> %s: %w", m.Status, to, tutor_errors.ErrInvalidTransition)
	}

	now := tutor_errors.NowUTC()
	if err := s.matches.UpdateStatus(ctx, m.ID, m.Status, to, now); err != nil {
		if errors.Is(err, tutor_errors.ErrNotFound) {
			// Status moved underneath us.
			return match.Match{}, fmt.Errorf("%s -> %s: %w", m.Status, to, tutor_errors.ErrInvalidTransition)
		}
		return match.Match{}, err
	}
	m.Status = to
	m.LastActivity = now
	return m, nil
}

// UpdateLastActivity bumps last_activity; it never moves it backwards.
func (s *MatchService) UpdateLastActivity(ctx context.Context, matchID uuid.UUID) error {
	return s.matches.UpdateLastActivity(ctx, matchID, tutor_errors.NowUTC())
}

// Get returns a match visible to userID.
func (s *MatchService) Get(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error) {
	return s.access.CanActOnMatch(ctx, userID, matchID)
}

// GetActiveByPair accepts the pair in either order.
func (s *MatchService) GetActiveByPair(ctx context.Context, a, b uuid.UUID) (match.Match, error) {
	m, err := s.matches.GetActiveByPair(ctx, a, b)
	if errors.Is(err, tutor_errors.ErrNotFound) {
		return s.matches.GetActiveByPair(ctx, b, a)
	}
	return m, err
}

func (s *MatchService) ListForUser(ctx context.Context, userID uuid.UUID, filter match.Filter) ([]match.Match, int64, error) {
	filter, err := NormalizeMatchFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	return s.matches.ListForUser(ctx, userID, filter)
}

// NormalizeMatchFilter validates status and order and applies paging defaults.
func NormalizeMatchFilter(filter match.Filter) (match.Filter, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return filter, tutor_errors.ErrInvalidInput
	}
	switch filter.Order {
	case "":
		filter.Order = match.OrderRecent
	case match.OrderRecent, match.OrderCreated:
	default:
		return filter, tutor_errors.ErrInvalidInput
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultMatchListLimit
	}
	if filter.Limit > maxMatchListLimit {
		filter.Limit = maxMatchListLimit
	}
	return filter, nil
}

func (s *MatchService) CountForUser(ctx context.Context, userID uuid.UUID, status *match.Status) (int64, error) {
	if status != nil && !status.Valid() {
		return 0, tutor_errors.ErrInvalidInput
	}
	return s.matches.CountForUser(ctx, userID, status)
}

// ReconcileMutualLikes completes detections whose triggering request never reached evaluation.
func (s *MatchService) ReconcileMutualLikes(ctx context.Context, pairs []swipe.Pair) (int, error) {
	created := 0
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		m, err := s.EvaluateAndMaybeMatch(ctx, p.StudentID, p.TutorID)
		if err != nil {
			return created, err
		}
		if m != nil {
			created++
		}
	}
	return created, nil
}
