package repository

import (
	"context"
	"errors"
	"time"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// conversationRow is the flat shape of conversations joined to matches.
type conversationRow struct {
	ID                uuid.UUID
	MatchID           uuid.UUID
	LastMessageAt     *time.Time
	CreatedAt         time.Time
	MatchStudentID    uuid.UUID
	MatchTutorID      uuid.UUID
	MatchStatus       match.Status
	MatchMatchedAt    time.Time
	MatchLastActivity time.Time
}

func (row conversationRow) toDomain() conversation.WithMatch {
	return conversation.WithMatch{
		Conversation: conversation.Conversation{
			ID:            row.ID,
			MatchID:       row.MatchID,
			LastMessageAt: row.LastMessageAt,
			CreatedAt:     row.CreatedAt,
		},
		Match: match.Match{
			ID:           row.MatchID,
			StudentID:    row.MatchStudentID,
			TutorID:      row.MatchTutorID,
			Status:       row.MatchStatus,
			MatchedAt:    row.MatchMatchedAt,
			LastActivity: row.MatchLastActivity,
		},
	}
}

const conversationColumns = `c.id, c.match_id, c.last_message_at, c.created_at,
	m.student_id AS match_student_id, m.tutor_id AS match_tutor_id, m.status AS match_status,
	m.matched_at AS match_matched_at, m.last_activity AS match_last_activity`

func (r *PostgresConversationRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("conversations AS c").
		Select(conversationColumns).
		Joins("JOIN matches AS m ON m.id = c.match_id")
}

func (r *PostgresConversationRepository) CreateIfAbsent(ctx context.Context, c *conversation.Conversation) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		if isUniqueViolation(res.Error) || errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.WithMatch, error) {
	var rows []conversationRow
	if err := r.joined(ctx).
		Where("c.id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return conversation.WithMatch{}, err
	}
	if len(rows) == 0 {
		return conversation.WithMatch{}, tutor_errors.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *PostgresConversationRepository) GetByMatchID(ctx context.Context, matchID uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, tutor_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

// TouchLastMessage never moves last_message_at backwards.
func (r *PostgresConversationRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", id, at).
		Update("last_message_at", at)
	return res.Error
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.WithMatch, error) {
	var rows []conversationRow
	if err := r.joined(ctx).
		Where("(m.student_id = ? OR m.tutor_id = ?)", userID, userID).
		Order("COALESCE(c.last_message_at, m.matched_at) DESC, c.id DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]conversation.WithMatch, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("conversations AS c").
		Joins("JOIN matches AS m ON m.id = c.match_id").
		Where("c.id = ? AND (m.student_id = ? OR m.tutor_id = ?)", conversationID, userID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
