package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (int, error)
}

// ChatWebSocketHandler handles chat websocket connections.
type ChatWebSocketHandler struct {
	hub       *Hub
	chatRepo  repositories.ChatRepository
	userRepo  repositories.UserRepository
	validator TokenValidator
	clock     clockwork.Clock
	logger    logrus.FieldLogger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chatRepo repositories.ChatRepository, userRepo repositories.UserRepository, validator TokenValidator, clock clockwork.Clock, logger logrus.FieldLogger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		hub:       hub,
		chatRepo:  chatRepo,
		userRepo:  userRepo,
		validator: validator,
		clock:     clock,
		logger:    logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, checks chat membership, upgrades the
// connection and keeps the caller online until it closes.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	userID, err := h.validator.ValidateToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.chatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: h.clock.Now(),
	}
	h.hub.AddClient(chatID, conn, info)
	observability.IncWSActive()
	h.setPresence(ctx, userID, models.PresenceOnline)
	h.publish(ctx, chatID, info, "ws_connect", "")

	// The handshake context ends with the request; the read loop outlives it.
	go h.readLoop(context.WithoutCancel(ctx), chatID, conn, info)
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, chatID int, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		remaining := h.hub.RemoveClient(chatID, conn)
		observability.DecWSActive()
		if remaining == 0 {
			h.setPresence(ctx, info.UserID, models.PresenceOffline)
		}
		h.publish(ctx, chatID, info, "ws_disconnect", closeReason)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
	}
}

func (h *ChatWebSocketHandler) setPresence(ctx context.Context, userID int, status string) {
	if err := h.userRepo.SetPresence(ctx, userID, status, h.clock.Now()); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("presence update failed")
	}
}

func (h *ChatWebSocketHandler) publish(ctx context.Context, chatID int, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)
	now := h.clock.Now()
	payload := map[string]any{
		"ws": map[string]any{
			"chat_id":     chatID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": now.Sub(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	envelope := observability.NewEnvelope(ctx, "ws_events", "ws."+strings.TrimPrefix(event, "ws_"), info.RequestID, now, payload)
	if err := observability.PublishEvent(ctx, envelope); err != nil {
		h.logger.WithError(err).WithField("event", event).Warn("websocket event publish failed")
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return token
		}
		return ""
	}
	return c.Query("token")
}
