package conversation

import (
	"time"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/user"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. One per match, created lazily.
type Conversation struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MatchID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	LastMessageAt *time.Time `gorm:"index"`
	CreatedAt     time.Time
}

// WithMatch is a conversation joined to its owning match.
type WithMatch struct {
	Conversation
	Match match.Match
}

// ActivityAt is the listing sort key: last message, else the match creation time.
func (c WithMatch) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.Match.MatchedAt
}

// ParticipantInfo is the counterpart summary shown in conversation listings.
type ParticipantInfo struct {
	UserID      uuid.UUID
	DisplayName string
	AvatarURL   string
	Role        user.Role
	IsOnline    bool
}

// View is a conversation enriched for a specific viewer.
type View struct {
	Conversation Conversation
	Match        match.Match
	Counterpart  ParticipantInfo
	LastMessage  *message.Message
	UnreadCount  int64
	ActivityAt   time.Time
}
