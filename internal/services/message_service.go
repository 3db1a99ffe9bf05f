package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tutor-match/internal/domain/message"
	"tutor-match/internal/events"
	"tutor-match/internal/proxy"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 200
)

type MessageService struct {
	uow         repository.UnitOfWork
	messages    repository.MessageRepository
	access      *proxy.AccessControl
	events      notifier
	pageSize    int
	maxPageSize int
	log         *logger.Logger
}

// PageLimits bounds Page and Search. Zero values fall back to the defaults above.
type PageLimits struct {
	Default int
	Max     int
}

func NewMessageService(uow repository.UnitOfWork, messages repository.MessageRepository, access *proxy.AccessControl, broadcaster Broadcaster, limits PageLimits, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.Nop()
	}
	if limits.Default <= 0 {
		limits.Default = DefaultMessagePageSize
	}
	if limits.Max <= 0 {
		limits.Max = MaxMessagePageSize
	}
	if limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &MessageService{
		uow:         uow,
		messages:    messages,
		access:      access,
		events:      newNotifier(broadcaster, log),
		pageSize:    limits.Default,
		maxPageSize: limits.Max,
		log:         log,
	}
}

type SendInput struct {
	Content  string
	Type     message.Type
	Metadata json.RawMessage
}

// Send appends a message and advances the conversation and match activity in one transaction.
// The realtime broadcast happens only after commit and cannot fail the send.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID uuid.UUID, in SendInput) (message.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return message.Message{}, fmt.Errorf("content is required: %w", tutor_errors.ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = message.TypeText
	}
	if !in.Type.Valid() || in.Type == message.TypeSystem {
		return message.Message{}, fmt.Errorf("unsupported message type %q: %w", in.Type, tutor_errors.ErrInvalidInput)
	}
	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		return message.Message{}, fmt.Errorf("metadata must be valid json: %w", tutor_errors.ErrInvalidInput)
	}

	conv, err := s.access.CanSendMessage(ctx, senderID, conversationID)
	if err != nil {
		return message.Message{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return message.Message{}, err
	}
	now := tutor_errors.NowUTC()
	msg := message.Message{
		ID:             id,
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        in.Content,
		Type:           in.Type,
		IsRead:         false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(in.Metadata) > 0 {
		msg.Metadata = datatypes.JSON(in.Metadata)
	}

	err = s.uow.Do(ctx, func(ctx context.Context, stores repository.Stores) error {
		if err := stores.Messages.Create(ctx, &msg); err != nil {
			return err
		}
		if err := stores.Conversations.TouchLastMessage(ctx, conv.ID, now); err != nil {
			return err
		}
		return stores.Matches.UpdateLastActivity(ctx, conv.Match.ID, now)
	})
	if err != nil {
		return message.Message{}, err
	}

	s.events.notify(ctx, events.ConversationGroup(conv.ID), events.EventTypeMessageCreated, events.AggregateTypeMessage, msg.ID.String(), events.NewMessagePayload(msg))
	return msg, nil
}

// Page returns one 1-indexed page, oldest to newest. Page 1 holds the most recent messages.
func (s *MessageService) Page(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) (message.Page, error) {
	size, err := s.normalizePage(page, pageSize)
	if err != nil {
		return message.Page{}, err
	}
	if _, err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return message.Page{}, err
	}

	msgs, total, err := s.messages.PageNewestFirst(ctx, conversationID, page, size)
	if err != nil {
		return message.Page{}, err
	}
	return message.Page{Messages: oldestFirst(msgs), Total: total, Page: page, PageSize: size}, nil
}

// Search pages through messages whose content contains query, case-insensitively.
func (s *MessageService) Search(ctx context.Context, conversationID, userID uuid.UUID, query string, page, pageSize int) (message.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return message.Page{}, fmt.Errorf("query is required: %w", tutor_errors.ErrInvalidInput)
	}
	size, err := s.normalizePage(page, pageSize)
	if err != nil {
		return message.Page{}, err
	}
	if _, err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return message.Page{}, err
	}

	msgs, total, err := s.messages.SearchNewestFirst(ctx, conversationID, query, page, size)
	if err != nil {
		return message.Page{}, err
	}
	return message.Page{Messages: oldestFirst(msgs), Total: total, Page: page, PageSize: size}, nil
}

func (s *MessageService) normalizePage(page, pageSize int) (int, error) {
	if page < 1 {
		return 0, fmt.Errorf("page must be >= 1: %w", tutor_errors.ErrInvalidInput)
	}
	if pageSize <= 0 {
		return s.pageSize, nil
	}
	if pageSize > s.maxPageSize {
		return s.maxPageSize, nil
	}
	return pageSize, nil
}

func oldestFirst(msgs []message.Message) []message.Message {
	out := make([]message.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

// MarkRead marks the counterpart's unread messages as read, optionally only up to upTo.
// Already read messages keep their read_at.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *uuid.UUID) (int64, error) {
	if _, err := s.access.CanViewConversation(ctx, readerID, conversationID); err != nil {
		return 0, err
	}

	var bound *message.Message
	if upTo != nil {
		m, err := s.messages.GetByID(ctx, *upTo)
		if err != nil {
			return 0, err
		}
		if m.ConversationID != conversationID {
			return 0, tutor_errors.ErrNotFound
		}
		bound = &m
	}

	now := tutor_errors.NowUTC()
	updated, err := s.messages.MarkRead(ctx, conversationID, readerID, bound, now)
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.events.notify(ctx, events.ConversationGroup(conversationID), events.EventTypeMessagesRead, events.AggregateTypeConversation, conversationID.String(), events.MessagesReadPayload{
			ConversationID: conversationID,
			ReaderID:       readerID,
			UpToMessageID:  upTo,
			Count:          updated,
			ReadAt:         now,
		})
	}
	return updated, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	if _, err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, conversationID, userID)
}

func (s *MessageService) TotalUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.messages.TotalUnreadCount(ctx, userID)
}

func (s *MessageService) UnreadCountsByConversation(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	return s.messages.UnreadCountsByConversation(ctx, userID)
}

// Delete physically removes a message. Only its sender may delete it.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID uuid.UUID) (bool, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if m.SenderID != requesterID {
		return false, tutor_errors.ErrForbidden
	}
	if err := s.messages.DeleteBySender(ctx, messageID, requesterID); err != nil {
		return false, err
	}

	s.log.Ctx(ctx).Info("message deleted", zap.String("message_id", messageID.String()))
	s.events.notify(ctx, events.ConversationGroup(m.ConversationID), events.EventTypeMessageDeleted, events.AggregateTypeMessage, messageID.String(), events.MessageDeletedPayload{
		ID:             messageID,
		ConversationID: m.ConversationID,
	})
	return true, nil
}
