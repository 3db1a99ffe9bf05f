package proxy

import (
	"context"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl answers participation questions for matches and the conversations they own.
type AccessControl struct {
	matchRepo        repository.MatchRepository
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(matchRepo repository.MatchRepository, conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{matchRepo: matchRepo, conversationRepo: conversationRepo}
}

// CanViewConversation loads the conversation and checks userID belongs to its match.
func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID uuid.UUID) (conversation.WithMatch, error) {
	conv, err := a.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.WithMatch{}, err
	}
	if !conv.Match.HasParticipant(userID) {
		return conversation.WithMatch{}, tutor_errors.ErrForbidden
	}
	return conv, nil
}

// CanSendMessage additionally requires the owning match to still be active.
func (a *AccessControl) CanSendMessage(ctx context.Context, userID, conversationID uuid.UUID) (conversation.WithMatch, error) {
	conv, err := a.CanViewConversation(ctx, userID, conversationID)
	if err != nil {
		return conversation.WithMatch{}, err
	}
	if conv.Match.Status != match.StatusActive {
		return conversation.WithMatch{}, tutor_errors.ErrForbidden
	}
	return conv, nil
}

func (a *AccessControl) CanActOnMatch(ctx context.Context, userID, matchID uuid.UUID) (match.Match, error) {
	m, err := a.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, err
	}
	if !m.HasParticipant(userID) {
		return match.Match{}, tutor_errors.ErrForbidden
	}
	return m, nil
}

// IsParticipant is the cheap boolean form used by realtime joins.
func (a *AccessControl) IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	return a.conversationRepo.IsParticipant(ctx, conversationID, userID)
}
