package repository

import (
	"context"
	"errors"
	"time"

	"tutor-match/internal/domain/swipe"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresSwipeRepository struct {
	db *gorm.DB
}

func NewSwipeRepository(db *gorm.DB) SwipeRepository {
	return &PostgresSwipeRepository{db: db}
}

func (r *PostgresSwipeRepository) Upsert(ctx context.Context, s *swipe.Swipe) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
		}).
		Create(s).Error
}

func (r *PostgresSwipeRepository) Get(ctx context.Context, actorID, targetID uuid.UUID) (swipe.Swipe, error) {
	var s swipe.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return swipe.Swipe{}, tutor_errors.ErrNotFound
		}
		return swipe.Swipe{}, err
	}
	return s, nil
}

func (r *PostgresSwipeRepository) MutualLikesWithoutMatch(ctx context.Context, since time.Time, limit int) ([]swipe.Pair, error) {
	var pairs []swipe.Pair
	err := r.db.WithContext(ctx).
		Table("swipes AS s").
		Select("s.actor_id AS student_id, s.target_id AS tutor_id").
		Joins("JOIN swipes AS t ON t.actor_id = s.target_id AND t.target_id = s.actor_id").
		Joins("JOIN users AS u ON u.id = s.actor_id").
		Where("u.role = ?", "STUDENT").
		Where("s.action = ? AND t.action = ?", swipe.ActionLike, swipe.ActionLike).
		Where("GREATEST(s.updated_at, t.updated_at) >= ?", since).
		Where("NOT EXISTS (SELECT 1 FROM matches m WHERE m.student_id = s.actor_id AND m.tutor_id = s.target_id)").
		Order("GREATEST(s.updated_at, t.updated_at) ASC").
		Limit(limit).
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	return pairs, nil
}
