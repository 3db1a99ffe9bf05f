package repository

import (
	"context"
	"errors"
	"time"

	"tutor-match/internal/domain/match"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &PostgresMatchRepository{db: db}
}

// CreateIfAbsent relies on the partial unique index matches_one_active_per_pair.
// ON CONFLICT DO NOTHING keeps a surrounding transaction usable when the insert loses.
func (r *PostgresMatchRepository) CreateIfAbsent(ctx context.Context, m *match.Match) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) || errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (match.Match, error) {
	var m match.Match
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return match.Match{}, tutor_errors.ErrNotFound
		}
		return match.Match{}, err
	}
	return m, nil
}

func (r *PostgresMatchRepository) GetActiveByPair(ctx context.Context, studentID, tutorID uuid.UUID) (match.Match, error) {
	var m match.Match
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND tutor_id = ? AND status = ?", studentID, tutorID, match.StatusActive).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return match.Match{}, tutor_errors.ErrNotFound
		}
		return match.Match{}, err
	}
	return m, nil
}

func (r *PostgresMatchRepository) GetLatestByPair(ctx context.Context, studentID, tutorID uuid.UUID) (match.Match, error) {
	var m match.Match
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND tutor_id = ?", studentID, tutorID).
		Order("last_activity DESC, id DESC").
		First(&m).Error
	if err != nil {
		return match.Match{}, translate(err)
	}
	return m, nil
}

func (r *PostgresMatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&match.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":        to,
			"last_activity": at,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return tutor_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMatchRepository) UpdateLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&match.Match{}).
		Where("id = ? AND last_activity < ?", id, at).
		Update("last_activity", at)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *PostgresMatchRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter match.Filter) ([]match.Match, int64, error) {
	var matches []match.Match
	var total int64

	q := r.db.WithContext(ctx).
		Model(&match.Match{}).
		Where("(student_id = ? OR tutor_id = ?)", userID, userID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "last_activity DESC, id DESC"
	if filter.Order == match.OrderCreated {
		order = "matched_at DESC, id DESC"
	}

	if err := q.
		Order(order).
		Offset(pageOffset(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&matches).Error; err != nil {
		return nil, 0, err
	}

	return matches, total, nil
}

func (r *PostgresMatchRepository) CountForUser(ctx context.Context, userID uuid.UUID, status *match.Status) (int64, error) {
	var total int64
	q := r.db.WithContext(ctx).
		Model(&match.Match{}).
		Where("(student_id = ? OR tutor_id = ?)", userID, userID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
