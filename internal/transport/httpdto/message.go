package httpdto

import (
	"encoding/json"
	"time"

	"tutor-match/internal/domain/message"
)

// SendMessageRequest is used for POST /v1/conversations/:id/messages
type SendMessageRequest struct {
	Content  string          `json:"content" binding:"required"`
	Type     string          `json:"type" binding:"omitempty,message_type"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// MarkReadRequest is used for POST /v1/conversations/:id/read. An empty body marks everything.
type MarkReadRequest struct {
	UpToMessageID string `json:"up_to_message_id" binding:"omitempty,uuid"`
}

// MarkReadResponse reports how many messages flipped to read
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// PageRequest holds query parameters for message history and search
type PageRequest struct {
	Query    string `form:"q"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// MessageDTO represents a message in API responses
type MessageDTO struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        string          `json:"content"`
	Type           string          `json:"type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	IsRead         bool            `json:"is_read"`
	ReadAt         string          `json:"read_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// MessagePageResponse is one page of history, oldest first
type MessagePageResponse struct {
	Messages []MessageDTO `json:"messages"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// UnreadCountResponse is returned for a single conversation
type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	Unread         int64  `json:"unread"`
}

// UnreadSummaryResponse is returned for GET /v1/unread
type UnreadSummaryResponse struct {
	Total          int64            `json:"total"`
	ByConversation map[string]int64 `json:"by_conversation"`
}

func ToMessageDTO(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		Type:           string(m.Type),
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(m.Metadata) > 0 {
		dto.Metadata = json.RawMessage(m.Metadata)
	}
	if m.ReadAt != nil {
		dto.ReadAt = m.ReadAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func ToMessagePageResponse(p message.Page) MessagePageResponse {
	dtos := make([]MessageDTO, len(p.Messages))
	for i, m := range p.Messages {
		dtos[i] = ToMessageDTO(m)
	}
	return MessagePageResponse{
		Messages: dtos,
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}
