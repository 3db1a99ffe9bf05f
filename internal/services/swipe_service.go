package services

import (
	"context"
	"errors"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SwipeStatusMatched  = "matched"
	SwipeStatusRecorded = "recorded"
)

type SwipeService struct {
	users   repository.UserRepository
	swipes  repository.SwipeRepository
	matches *MatchService
	log     *logger.Logger
}

func NewSwipeService(users repository.UserRepository, swipes repository.SwipeRepository, matches *MatchService, log *logger.Logger) *SwipeService {
	if log == nil {
		log = logger.Nop()
	}
	return &SwipeService{users: users, swipes: swipes, matches: matches, log: log}
}

type RecordResult struct {
	MutualLikeDetected bool
}

type SwipeResult struct {
	MutualLikeDetected bool
	Status             string
	Match              *match.Match
}

// Record upserts the swipe and reports whether the target currently likes the actor back.
// It never touches matches, so retries are safe.
func (s *SwipeService) Record(ctx context.Context, actorID, targetID uuid.UUID, action swipe.Action) (RecordResult, error) {
	if err := validateSwipe(actorID, targetID, action); err != nil {
		return RecordResult{}, err
	}

	now := tutor_errors.NowUTC()
	if err := s.swipes.Upsert(ctx, &swipe.Swipe{
		ActorID:   actorID,
		TargetID:  targetID,
		Action:    action,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return RecordResult{}, err
	}

	reverse, err := s.swipes.Get(ctx, targetID, actorID)
	if err != nil {
		if errors.Is(err, tutor_errors.ErrNotFound) {
			return RecordResult{}, nil
		}
		return RecordResult{}, err
	}
	return RecordResult{MutualLikeDetected: reverse.Action == swipe.ActionLike}, nil
}

// Swipe records the action and, for a mutual like, runs match evaluation.
func (s *SwipeService) Swipe(ctx context.Context, actorID, targetID uuid.UUID, action swipe.Action) (SwipeResult, error) {
	if err := validateSwipe(actorID, targetID, action); err != nil {
		return SwipeResult{}, err
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return SwipeResult{}, err
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return SwipeResult{}, err
	}
	student, tutor, ok := user.StudentTutor(actor, target)
	if !ok {
		return SwipeResult{}, tutor_errors.ErrInvalidInput
	}

	recorded, err := s.Record(ctx, actorID, targetID, action)
	if err != nil {
		return SwipeResult{}, err
	}

	result := SwipeResult{Status: SwipeStatusRecorded}
	if action != swipe.ActionLike {
		return result, nil
	}
	result.MutualLikeDetected = recorded.MutualLikeDetected
	if !recorded.MutualLikeDetected {
		return result, nil
	}

	m, err := s.matches.EvaluateAndMaybeMatch(ctx, student.ID, tutor.ID)
	if err != nil {
		// The swipe is durable; the reconciliation job or the next swipe completes detection.
		s.log.Ctx(ctx).Warn("match evaluation failed after swipe",
			zap.String("student_id", student.ID.String()),
			zap.String("tutor_id", tutor.ID.String()),
			zap.Error(err),
		)
		return SwipeResult{}, err
	}
	if m != nil {
		result.Status = SwipeStatusMatched
		result.Match = m
	}
	return result, nil
}

func validateSwipe(actorID, targetID uuid.UUID, action swipe.Action) error {
	if actorID == uuid.Nil || targetID == uuid.Nil || actorID == targetID {
		return tutor_errors.ErrInvalidInput
	}
	if !action.Valid() {
		return tutor_errors.ErrInvalidInput
	}
	return nil
}
