package handler

import (
	"context"
	"net/http"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MatchManager interface {
	AcceptPendingMatch(ctx context.Context, tutorID, studentID uuid.UUID) (match.Match, error)
	Get(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error)
	GetActiveByPair(ctx context.Context, a, b uuid.UUID) (match.Match, error)
	UpdateLastActivity(ctx context.Context, matchID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, filter match.Filter) ([]match.Match, int64, error)
	CountForUser(ctx context.Context, userID uuid.UUID, status *match.Status) (int64, error)
	Deactivate(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error)
	Block(ctx context.Context, matchID, userID uuid.UUID) (match.Match, error)
	Decline(ctx context.Context, matchID, tutorID uuid.UUID) (match.Match, error)
}

type ConversationOpener interface {
	OpenForUser(ctx context.Context, matchID, userID uuid.UUID) (conversation.View, error)
}

type MatchHandler struct {
	matches       MatchManager
	conversations ConversationOpener
}

func NewMatchHandler(matches MatchManager, conversations ConversationOpener) *MatchHandler {
	return &MatchHandler{matches: matches, conversations: conversations}
}

// Accept lets a tutor accept a student who liked them.
func (h *MatchHandler) Accept(c *gin.Context) {
	var req httpdto.AcceptMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	tutorID, ok := currentUser(c)
	if !ok {
		return
	}
	studentID, err := parseUUID(req.StudentID)
	if err != nil {
		badRequest(c, "invalid student_id")
		return
	}

	m, err := h.matches.AcceptPendingMatch(c.Request.Context(), tutorID, studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AcceptMatchResponse{
		MatchID: m.ID.String(),
		Status:  string(m.Status),
	}))
}

func (h *MatchHandler) List(c *gin.Context) {
	var req httpdto.ListMatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter := match.Filter{Order: match.Order(req.Order), Page: req.Page, Limit: req.Limit}
	if req.Status != "" {
		status := match.Status(req.Status)
		filter.Status = &status
	}
	filter, err := services.NormalizeMatchFilter(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items, total, err := h.matches.ListForUser(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMatchesResponse{
		Matches: httpdto.ToMatchDTOs(items),
		Total:   total,
		Page:    filter.Page,
		Limit:   filter.Limit,
	}))
}

func (h *MatchHandler) Count(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var status *match.Status
	if raw := c.Query("status"); raw != "" {
		s := match.Status(raw)
		status = &s
	}

	n, err := h.matches.CountForUser(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountMatchesResponse{Count: n}))
}

func (h *MatchHandler) GetByID(c *gin.Context) {
	matchID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid match id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	m, err := h.matches.Get(c.Request.Context(), matchID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMatchDTO(m)))
}

// WithUser returns the caller's ACTIVE match with another user.
func (h *MatchHandler) WithUser(c *gin.Context) {
	otherID, err := parseUUID(c.Param("user_id"))
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	m, err := h.matches.GetActiveByPair(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMatchDTO(m)))
}

func (h *MatchHandler) Deactivate(c *gin.Context) {
	h.transition(c, h.matches.Deactivate)
}

func (h *MatchHandler) Block(c *gin.Context) {
	h.transition(c, h.matches.Block)
}

func (h *MatchHandler) Decline(c *gin.Context) {
	h.transition(c, h.matches.Decline)
}

func (h *MatchHandler) transition(c *gin.Context, apply func(context.Context, uuid.UUID, uuid.UUID) (match.Match, error)) {
	matchID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid match id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	m, err := apply(c.Request.Context(), matchID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMatchDTO(m)))
}

// OpenConversation returns the match's conversation, creating it on first use.
func (h *MatchHandler) OpenConversation(c *gin.Context) {
	matchID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid match id")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.conversations.OpenForUser(c.Request.Context(), matchID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if view.Match.Status == match.StatusActive {
		// Opening the chat counts as activity; a failed bump is logged by ErrorHandler.
		if err := h.matches.UpdateLastActivity(c.Request.Context(), matchID); err != nil {
			_ = c.Error(err)
		}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToConversationDTO(view)))
}
