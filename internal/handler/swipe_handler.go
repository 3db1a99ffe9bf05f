package handler

import (
	"context"
	"net/http"

	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Swiper interface {
	Swipe(ctx context.Context, actorID, targetID uuid.UUID, action swipe.Action) (services.SwipeResult, error)
}

type SwipeHandler struct {
	service Swiper
}

func NewSwipeHandler(service Swiper) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Swipe(c *gin.Context) {
	var req httpdto.SwipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	targetID, err := parseUUID(req.TargetID)
	if err != nil {
		badRequest(c, "invalid target_id")
		return
	}

	result, err := h.service.Swipe(c.Request.Context(), userID, targetID, swipe.Action(req.Action))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToSwipeResponse(result)))
}
