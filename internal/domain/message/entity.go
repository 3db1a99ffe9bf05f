package message

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeText   Type = "TEXT"
	TypeImage  Type = "IMAGE"
	TypeFile   Type = "FILE"
	TypeSystem Type = "SYSTEM"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

// Message represents the messages table.
// Content is immutable after insert; only IsRead, ReadAt and UpdatedAt change.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Content        string    `gorm:"not null"`
	Type           Type      `gorm:"type:message_type;not null"`
	Metadata       datatypes.JSON
	IsRead         bool `gorm:"not null;default:false"`
	ReadAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Page is a 1-indexed window of a conversation, ordered oldest to newest.
type Page struct {
	Messages []Message
	Total    int64
	Page     int
	PageSize int
}
