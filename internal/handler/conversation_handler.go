package handler

import (
	"context"
	"net/http"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.View, error)
}

type ConversationHandler struct {
	service ConversationLister
}

func NewConversationHandler(service ConversationLister) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List returns the caller's conversations, most recent activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	views, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.ToConversationDTOs(views),
	}))
}
