package events

import (
	"encoding/json"
	"time"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"

	"github.com/google/uuid"
)

type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, aggregateType, aggregateID string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       data,
	}, nil
}

// MessagePayload is the realtime shape of a message.
type MessagePayload struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	SenderID       uuid.UUID       `json:"sender_id"`
	Content        string          `json:"content"`
	Type           message.Type    `json:"type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	IsRead         bool            `json:"is_read"`
	CreatedAt      time.Time       `json:"created_at"`
}

func NewMessagePayload(m message.Message) MessagePayload {
	p := MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           m.Type,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		p.Metadata = json.RawMessage(m.Metadata)
	}
	return p
}

type MessageDeletedPayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type MessagesReadPayload struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	ReaderID       uuid.UUID  `json:"reader_id"`
	UpToMessageID  *uuid.UUID `json:"up_to_message_id,omitempty"`
	Count          int64      `json:"count"`
	ReadAt         time.Time  `json:"read_at"`
}

type MatchPayload struct {
	ID        uuid.UUID    `json:"id"`
	StudentID uuid.UUID    `json:"student_id"`
	TutorID   uuid.UUID    `json:"tutor_id"`
	Status    match.Status `json:"status"`
	MatchedAt time.Time    `json:"matched_at"`
}

func NewMatchPayload(m match.Match) MatchPayload {
	return MatchPayload{
		ID:        m.ID,
		StudentID: m.StudentID,
		TutorID:   m.TutorID,
		Status:    m.Status,
		MatchedAt: m.MatchedAt,
	}
}
