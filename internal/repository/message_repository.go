package repository

import (
	"context"
	"errors"
	"time"

	"tutor-match/internal/domain/message"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const newestFirst = "created_at DESC, id DESC"

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, tutor_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) PageNewestFirst(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]message.Message, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ?", conversationID)
	return r.page(q, page, pageSize)
}

func (r *PostgresMessageRepository) SearchNewestFirst(ctx context.Context, conversationID uuid.UUID, query string, page, pageSize int) ([]message.Message, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ?", conversationID).
		Where(`content ILIKE ? ESCAPE '\'`, containsPattern(query))
	return r.page(q, page, pageSize)
}

func (r *PostgresMessageRepository) page(q *gorm.DB, page, pageSize int) ([]message.Message, int64, error) {
	var messages []message.Message
	var total int64

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []message.Message{}, 0, nil
	}

	if err := q.
		Order(newestFirst).
		Offset(pageOffset(page, pageSize)).
		Limit(pageSize).
		Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *message.Message, at time.Time) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false)
	if upTo != nil {
		q = q.Where("(created_at, id) <= (?, ?)", upTo.CreatedAt, upTo.ID)
	}

	res := q.Updates(map[string]interface{}{
		"is_read":    true,
		"read_at":    at,
		"updated_at": at,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, userID, false).
		Count(&count).Error
	return count, err
}

// unreadForUser scopes unread messages to conversations whose match includes userID.
func (r *PostgresMessageRepository) unreadForUser(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("messages AS msg").
		Joins("JOIN conversations AS c ON c.id = msg.conversation_id").
		Joins("JOIN matches AS m ON m.id = c.match_id").
		Where("(m.student_id = ? OR m.tutor_id = ?)", userID, userID).
		Where("msg.sender_id <> ? AND msg.is_read = ?", userID, false)
}

func (r *PostgresMessageRepository) TotalUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.unreadForUser(ctx, userID).Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) UnreadCountsByConversation(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		ConversationID uuid.UUID
		Unread         int64
	}
	if err := r.unreadForUser(ctx, userID).
		Select("msg.conversation_id AS conversation_id, COUNT(*) AS unread").
		Group("msg.conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}

func (r *PostgresMessageRepository) LatestByConversations(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	latest := make(map[uuid.UUID]message.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return latest, nil
	}

	var messages []message.Message
	if err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (conversation_id) * FROM messages
			WHERE conversation_id IN ?
			ORDER BY conversation_id, created_at DESC, id DESC`, conversationIDs).
		Scan(&messages).Error; err != nil {
		return nil, err
	}
	for _, m := range messages {
		latest[m.ConversationID] = m
	}
	return latest, nil
}

func (r *PostgresMessageRepository) DeleteBySender(ctx context.Context, id, senderID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&message.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tutor_errors.ErrNotFound
	}
	return nil
}
