package repository

import (
	"context"
	"time"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error)
	Create(ctx context.Context, u *user.User) error
}

type SwipeRepository interface {
	// Upsert inserts or overwrites the (actor, target) row.
	Upsert(ctx context.Context, s *swipe.Swipe) error
	Get(ctx context.Context, actorID, targetID uuid.UUID) (swipe.Swipe, error)
	// MutualLikesWithoutMatch returns student/tutor pairs that like each other, touched since the
	// given time, and have never had a match row.
	MutualLikesWithoutMatch(ctx context.Context, since time.Time, limit int) ([]swipe.Pair, error)
}

type MatchRepository interface {
	// CreateIfAbsent inserts m unless an ACTIVE match already exists for the pair.
	// created is false when another writer won.
	CreateIfAbsent(ctx context.Context, m *match.Match) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (match.Match, error)
	GetActiveByPair(ctx context.Context, studentID, tutorID uuid.UUID) (match.Match, error)
	// GetLatestByPair returns the pair's most recently active match in any status.
	GetLatestByPair(ctx context.Context, studentID, tutorID uuid.UUID) (match.Match, error)
	// UpdateStatus moves id from -> to only when it is still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status, at time.Time) error
	UpdateLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, filter match.Filter) ([]match.Match, int64, error)
	CountForUser(ctx context.Context, userID uuid.UUID, status *match.Status) (int64, error)
}

type ConversationRepository interface {
	// CreateIfAbsent inserts c unless a conversation exists for c.MatchID.
	CreateIfAbsent(ctx context.Context, c *conversation.Conversation) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.WithMatch, error)
	GetByMatchID(ctx context.Context, matchID uuid.UUID) (conversation.Conversation, error)
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.WithMatch, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// PageNewestFirst returns one page ordered by (created_at, id) descending.
	PageNewestFirst(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]message.Message, int64, error)
	SearchNewestFirst(ctx context.Context, conversationID uuid.UUID, query string, page, pageSize int) ([]message.Message, int64, error)
	// MarkRead flips is_read for messages not sent by readerID, optionally bounded by upTo.
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *message.Message, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
	TotalUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCountsByConversation(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error)
	LatestByConversations(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error)
	// DeleteBySender removes the row only when senderID authored it.
	DeleteBySender(ctx context.Context, id, senderID uuid.UUID) error
}

// Stores is the set of repositories bound to one connection or transaction.
type Stores struct {
	Users         UserRepository
	Swipes        SwipeRepository
	Matches       MatchRepository
	Conversations ConversationRepository
	Messages      MessageRepository
}

// UnitOfWork runs fn against transaction scoped stores.
// The transaction commits when fn returns nil and rolls back otherwise, including on panic.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
