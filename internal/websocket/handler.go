package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutor-match/internal/events"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Inbound frame types
const (
	FrameJoin  = "join"
	FrameLeave = "leave"
	FramePing  = "ping"
)

// Outbound control frame types. Events use the envelope shape instead.
const (
	FrameAck   = "ack"
	FrameError = "error"
	FramePong  = "pong"
)

const membershipTimeout = 5 * time.Second

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type controlFrame struct {
	Type           string `json:"type"`
	Action         string `json:"action,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// MembershipChecker decides whether a user may join a conversation group.
type MembershipChecker interface {
	IsUserInConversation(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// PresenceTracker is told about connects, disconnects and heartbeats. Optional.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uuid.UUID, clientID string) error
	SetOffline(ctx context.Context, userID uuid.UUID, clientID string) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type Handler struct {
	auth     *services.AuthService
	hub      *Hub
	members  MembershipChecker
	presence PresenceTracker
	logger   *EventLogger
	upgrader websocket.Upgrader
	origins  []string
}

// NewHandler accepts upgrades from the API's own host and from allowedOrigins.
// "*" in allowedOrigins accepts any origin.
func NewHandler(auth *services.AuthService, hub *Hub, members MembershipChecker, presence PresenceTracker, logger *EventLogger, allowedOrigins []string) *Handler {
	h := &Handler{auth: auth, hub: hub, members: members, presence: presence, logger: logger, origins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows the API's own host and the configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Connect upgrades the request and serves the connection until it closes.
func (h *Handler) Connect(c *gin.Context) {
	token := extractToken(c)
	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if !h.checkOrigin(c.Request) {
		h.logger.Warn("origin_rejected", userID, "", zap.String("origin", c.GetHeader("Origin")))
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("origin not allowed", "FORBIDDEN"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade_failed", userID, "", err)
		return
	}

	client := NewClient(conn, userID)
	h.hub.Register(client)
	h.logger.Info("connected", userID, client.ID)
	h.trackPresence(client, true)

	go client.writePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err = client.readPump(
		func(frame []byte) { h.handleFrame(ctx, client, frame) },
		func() { h.heartbeat(client) },
	)
	if err != nil {
		h.logger.Error("unexpected_close", userID, client.ID, err)
	}

	h.hub.Unregister(client)
	h.trackPresence(client, false)
	h.logger.Info("disconnected", userID, client.ID)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.reply(client, controlFrame{Type: FrameError, Error: "malformed frame"})
		return
	}

	switch frame.Type {
	case FramePing:
		h.reply(client, controlFrame{Type: FramePong})

	case FrameJoin, FrameLeave:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			h.reply(client, controlFrame{Type: FrameError, Action: frame.Type, Error: "invalid conversation_id"})
			return
		}
		group := events.ConversationGroup(conversationID)

		if frame.Type == FrameLeave {
			h.hub.Leave(client, group)
			h.reply(client, controlFrame{Type: FrameAck, Action: FrameLeave, ConversationID: frame.ConversationID})
			return
		}

		checkCtx, cancel := context.WithTimeout(ctx, membershipTimeout)
		defer cancel()
		ok, err := h.members.IsUserInConversation(checkCtx, conversationID, client.UserID)
		if err != nil {
			h.logger.Error("join_check_failed", client.UserID, client.ID, err, zap.String("conversation_id", frame.ConversationID))
			h.reply(client, controlFrame{Type: FrameError, Action: FrameJoin, ConversationID: frame.ConversationID, Error: "internal error"})
			return
		}
		if !ok {
			h.logger.Warn("join_denied", client.UserID, client.ID, zap.String("conversation_id", frame.ConversationID))
			h.reply(client, controlFrame{Type: FrameError, Action: FrameJoin, ConversationID: frame.ConversationID, Error: "forbidden"})
			return
		}
		h.hub.Join(client, group)
		h.reply(client, controlFrame{Type: FrameAck, Action: FrameJoin, ConversationID: frame.ConversationID})

	default:
		h.logger.Warn("unknown_frame", client.UserID, client.ID, zap.String("frame_type", frame.Type))
		h.reply(client, controlFrame{Type: FrameError, Error: "unknown frame type"})
	}
}

func (h *Handler) reply(client *Client, frame controlFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	client.SendMessage(data)
}

func (h *Handler) trackPresence(client *Client, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), membershipTimeout)
	defer cancel()

	var err error
	if online {
		err = h.presence.SetOnline(ctx, client.UserID, client.ID)
	} else {
		err = h.presence.SetOffline(ctx, client.UserID, client.ID)
	}
	if err != nil {
		h.logger.Warn("presence_update_failed", client.UserID, client.ID, zap.Bool("online", online), zap.Error(err))
	}
}

func (h *Handler) heartbeat(client *Client) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), membershipTimeout)
	defer cancel()
	if err := h.presence.Heartbeat(ctx, client.UserID); err != nil {
		h.logger.Warn("presence_heartbeat_failed", client.UserID, client.ID, zap.Error(err))
	}
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
