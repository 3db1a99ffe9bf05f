package httpdto

import (
	"time"

	"tutor-match/internal/domain/conversation"
)

// ParticipantDTO is the counterpart summary inside a conversation
type ParticipantDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        string `json:"role"`
	IsOnline    bool   `json:"is_online"`
}

// ConversationDTO represents a conversation as seen by one participant
type ConversationDTO struct {
	ID            string         `json:"id"`
	MatchID       string         `json:"match_id"`
	MatchStatus   string         `json:"match_status"`
	Counterpart   ParticipantDTO `json:"counterpart"`
	LastMessage   *MessageDTO    `json:"last_message,omitempty"`
	LastMessageAt string         `json:"last_message_at,omitempty"`
	ActivityAt    string         `json:"activity_at"`
	UnreadCount   int64          `json:"unread_count"`
	CreatedAt     string         `json:"created_at"`
}

// ListConversationsResponse is returned when listing conversations
type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
}

func ToParticipantDTO(p conversation.ParticipantInfo) ParticipantDTO {
	return ParticipantDTO{
		UserID:      p.UserID.String(),
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Role:        string(p.Role),
		IsOnline:    p.IsOnline,
	}
}

func ToConversationDTO(v conversation.View) ConversationDTO {
	dto := ConversationDTO{
		ID:          v.Conversation.ID.String(),
		MatchID:     v.Conversation.MatchID.String(),
		MatchStatus: string(v.Match.Status),
		Counterpart: ToParticipantDTO(v.Counterpart),
		UnreadCount: v.UnreadCount,
		ActivityAt:  v.ActivityAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:   v.Conversation.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.LastMessage != nil {
		last := ToMessageDTO(*v.LastMessage)
		dto.LastMessage = &last
	}
	if v.Conversation.LastMessageAt != nil {
		dto.LastMessageAt = v.Conversation.LastMessageAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func ToConversationDTOs(views []conversation.View) []ConversationDTO {
	dtos := make([]ConversationDTO, len(views))
	for i, v := range views {
		dtos[i] = ToConversationDTO(v)
	}
	return dtos
}
