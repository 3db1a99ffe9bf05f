package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"tutor-match/internal/domain/message"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageLedger interface {
	Send(ctx context.Context, conversationID, senderID uuid.UUID, in services.SendInput) (message.Message, error)
	Page(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) (message.Page, error)
	Search(ctx context.Context, conversationID, userID uuid.UUID, query string, page, pageSize int) (message.Page, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
	TotalUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCountsByConversation(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error)
	Delete(ctx context.Context, messageID, requesterID uuid.UUID) (bool, error)
}

type MessageHandler struct {
	service MessageLedger
}

func NewMessageHandler(service MessageLedger) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := h.service.Send(c.Request.Context(), conversationID, userID, services.SendInput{
		Content:  req.Content,
		Type:     message.Type(req.Type),
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ToMessageDTO(msg)))
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, req, userID, ok := h.pageParams(c)
	if !ok {
		return
	}
	page, err := h.service.Page(c.Request.Context(), conversationID, userID, req.Page, req.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMessagePageResponse(page)))
}

func (h *MessageHandler) Search(c *gin.Context) {
	conversationID, req, userID, ok := h.pageParams(c)
	if !ok {
		return
	}
	page, err := h.service.Search(c.Request.Context(), conversationID, userID, req.Query, req.Page, req.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMessagePageResponse(page)))
}

func (h *MessageHandler) pageParams(c *gin.Context) (uuid.UUID, httpdto.PageRequest, uuid.UUID, bool) {
	var req httpdto.PageRequest
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return uuid.Nil, req, uuid.Nil, false
	}
	if req.Page, err = parseInt(c.Query("page"), 1); err != nil {
		badRequest(c, "invalid page")
		return uuid.Nil, req, uuid.Nil, false
	}
	if req.PageSize, err = parseInt(c.Query("page_size"), 0); err != nil {
		badRequest(c, "invalid page_size")
		return uuid.Nil, req, uuid.Nil, false
	}
	req.Query = c.Query("q")
	userID, ok := currentUser(c)
	return conversationID, req, userID, ok
}

// MarkRead accepts an optional body; without one every unread message is marked.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}
	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var upTo *uuid.UUID
	if req.UpToMessageID != "" {
		id, err := parseUUID(req.UpToMessageID)
		if err != nil {
			badRequest(c, "invalid up_to_message_id")
			return
		}
		upTo = &id
	}

	n, err := h.service.MarkRead(c.Request.Context(), conversationID, userID, upTo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Updated: n}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{
		ConversationID: conversationID.String(),
		Unread:         n,
	}))
}

// UnreadSummary returns the caller's total unread count and its per conversation breakdown.
func (h *MessageHandler) UnreadSummary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	total, err := h.service.TotalUnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	counts, err := h.service.UnreadCountsByConversation(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	byConversation := make(map[string]int64, len(counts))
	for id, n := range counts {
		byConversation[id.String()] = n
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadSummaryResponse{
		Total:          total,
		ByConversation: byConversation,
	}))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid message id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if _, err := h.service.Delete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}
