package services

import (
	"context"
	"errors"
	"sort"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/proxy"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
)

type ConversationService struct {
	conversations repository.ConversationRepository
	matches       repository.MatchRepository
	messages      repository.MessageRepository
	profiles      *ProfileService
	access        *proxy.AccessControl
	locks         *keyLock
	log           *logger.Logger
}

func NewConversationService(conversations repository.ConversationRepository, matches repository.MatchRepository, messages repository.MessageRepository, profiles *ProfileService, access *proxy.AccessControl, log *logger.Logger) *ConversationService {
	if log == nil {
		log = logger.Nop()
	}
	return &ConversationService{
		conversations: conversations,
		matches:       matches,
		messages:      messages,
		profiles:      profiles,
		access:        access,
		locks:         newKeyLock(),
		log:           log,
	}
}

// GetOrCreate returns the match's conversation, creating it on first access.
// Concurrent callers for the same match all observe the same row.
func (s *ConversationService) GetOrCreate(ctx context.Context, matchID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.conversations.GetByMatchID(ctx, matchID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, tutor_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	unlock := s.locks.Lock("match:" + matchID.String())
	defer unlock()

	conv, err = s.conversations.GetByMatchID(ctx, matchID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, tutor_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	if _, err := s.matches.GetByID(ctx, matchID); err != nil {
		return conversation.Conversation{}, err
	}

	now := tutor_errors.NowUTC()
	conv = conversation.Conversation{
		ID:            uuid.New(),
		MatchID:       matchID,
		LastMessageAt: &now,
		CreatedAt:     now,
	}
	created, err := s.conversations.CreateIfAbsent(ctx, &conv)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !created {
		return s.conversations.GetByMatchID(ctx, matchID)
	}
	return conv, nil
}

// OpenForUser is GetOrCreate for a participant, returning the enriched view.
func (s *ConversationService) OpenForUser(ctx context.Context, matchID, userID uuid.UUID) (conversation.View, error) {
	m, err := s.access.CanActOnMatch(ctx, userID, matchID)
	if err != nil {
		return conversation.View{}, err
	}
	conv, err := s.GetOrCreate(ctx, matchID)
	if err != nil {
		return conversation.View{}, err
	}

	views, err := s.buildViews(ctx, userID, []conversation.WithMatch{{Conversation: conv, Match: m}})
	if err != nil {
		return conversation.View{}, err
	}
	return views[0], nil
}

// ListForUser returns the user's conversations, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.View, error) {
	rows, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []conversation.View{}, nil
	}
	views, err := s.buildViews(ctx, userID, rows)
	if err != nil {
		return nil, err
	}
	// Newest activity first; ties keep the repository's id order.
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ActivityAt.After(views[j].ActivityAt)
	})
	return views, nil
}

func (s *ConversationService) IsUserInConversation(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.access.IsParticipant(ctx, userID, conversationID)
}

func (s *ConversationService) buildViews(ctx context.Context, viewerID uuid.UUID, rows []conversation.WithMatch) ([]conversation.View, error) {
	convIDs := make([]uuid.UUID, 0, len(rows))
	counterpartIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		convIDs = append(convIDs, row.ID)
		counterpartIDs = append(counterpartIDs, row.Match.Counterpart(viewerID))
	}

	participants, err := s.profiles.Participants(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.messages.LatestByConversations(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.UnreadCountsByConversation(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	views := make([]conversation.View, 0, len(rows))
	for _, row := range rows {
		counterpartID := row.Match.Counterpart(viewerID)
		info, ok := participants[counterpartID]
		if !ok {
			info = conversation.ParticipantInfo{UserID: counterpartID}
		}
		view := conversation.View{
			Conversation: row.Conversation,
			Match:        row.Match,
			Counterpart:  info,
			UnreadCount:  unread[row.ID],
			ActivityAt:   row.ActivityAt(),
		}
		if last, ok := latest[row.ID]; ok {
			msg := last
			view.LastMessage = &msg
		}
		views = append(views, view)
	}
	return views, nil
}
