package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/services"
	chatws "github.com/pedrowpmiguel/fitconnect-sub000/internal/websocket"
	"github.com/pedrowpmiguel/fitconnect-sub000/pkg/utils"
)

type messagingService interface {
	SendMessage(ctx context.Context, actorID int64, role string, recipientID int64, content string, priority string) (*services.MessageDelivery, error)
	SendWorkoutMissedAlert(ctx context.Context, actorID int64, role string, clientID int64, workoutLogID *int64, content string, priority string) (*services.MessageDelivery, error)
	ListConversation(ctx context.Context, actorID int64, role string, otherUserID int64, page int, limit int) ([]models.Message, int, error)
	ListConversations(ctx context.Context, actorID int64, role string) ([]models.ConversationSummary, error)
	UnreadCount(ctx context.Context, actorID int64, senderID *int64) (int, error)
	Contacts(ctx context.Context, actorID int64, role string) (*models.Contact, []models.Contact, error)
	MarkRead(ctx context.Context, actorID int64, messageID int64) error
}

type messagePusher interface {
	PushNewMessage(delivery *services.MessageDelivery)
}

type MessageHandler struct {
	service   messagingService
	pusher    messagePusher
	hub       *chatws.Hub
	jwtSecret string
}

type sendMessageRequest struct {
	RecipientID int64  `json:"recipientId"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
}

type sendAlertRequest struct {
	ClientID     int64  `json:"clientId"`
	WorkoutLogID *int64 `json:"workoutLogId"`
	Message      string `json:"message"`
	Priority     string `json:"priority"`
}

func NewMessageHandler(
	service messagingService,
	pusher messagePusher,
	hub *chatws.Hub,
	jwtSecret string,
) *MessageHandler {
	return &MessageHandler{
		service:   service,
		pusher:    pusher,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Type != "" && req.Type != models.MessageTypeChat {
		return respondError(c, fiber.StatusBadRequest, "Invalid message type")
	}

	delivery, err := h.service.SendMessage(c.Context(), actorID, role, req.RecipientID, req.Message, req.Priority)
	if err != nil {
		return mapMessageError(c, err)
	}

	// Push is advisory; the recipient reconciles through their next poll.
	h.pusher.PushNewMessage(delivery)

	return respondCreated(c, fiber.Map{"message": delivery.Message})
}

func (h *MessageHandler) SendWorkoutMissedAlert(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req sendAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	delivery, err := h.service.SendWorkoutMissedAlert(
		c.Context(),
		actorID,
		role,
		req.ClientID,
		req.WorkoutLogID,
		req.Message,
		req.Priority,
	)
	if err != nil {
		return mapMessageError(c, err)
	}

	h.pusher.PushNewMessage(delivery)

	return respondCreated(c, fiber.Map{"message": delivery.Message})
}

func (h *MessageHandler) GetConversation(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	otherUserID, err := strconv.ParseInt(c.Params("otherUserId"), 10, 64)
	if err != nil || otherUserID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListConversation(c.Context(), actorID, role, otherUserID, page, limit)
	if err != nil {
		return mapMessageError(c, err)
	}

	return respondOK(c, fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *MessageHandler) GetConversations(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID, role)
	if err != nil {
		return mapMessageError(c, err)
	}

	return respondOK(c, fiber.Map{"conversations": conversations})
}

func (h *MessageHandler) GetUnreadCount(c *fiber.Ctx) error {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var senderID *int64
	if raw := c.Query("senderId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return respondError(c, fiber.StatusBadRequest, "Invalid sender id")
		}
		senderID = &parsed
	}

	count, err := h.service.UnreadCount(c.Context(), actorID, senderID)
	if err != nil {
		return mapMessageError(c, err)
	}

	return respondOK(c, fiber.Map{"unreadCount": count})
}

func (h *MessageHandler) GetContact(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	contact, contacts, err := h.service.Contacts(c.Context(), actorID, role)
	if err != nil {
		return mapMessageError(c, err)
	}

	if role == models.RoleTrainer {
		return respondOK(c, fiber.Map{"contacts": contacts})
	}
	return respondOK(c, fiber.Map{"contact": contact})
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid token")
	}

	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid message id")
	}

	if err := h.service.MarkRead(c.Context(), actorID, messageID); err != nil {
		return mapMessageError(c, err)
	}

	return respondOK(c, fiber.Map{"id": messageID, "read": true})
}

// WebSocketAuth gates the upgrade with the same bearer credential the REST
// endpoints use. The connection still has to complete the authenticate
// handshake before it receives any push.
func (h *MessageHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return respondError(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *MessageHandler) HandleWebSocket(conn *websocket.Conn) {
	tokenID, _ := conn.Locals("user_id").(string)
	client := chatws.NewClient(h.hub, conn, tokenID)

	go client.WritePump()
	client.ReadPump()
}

func (h *MessageHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func actorFromContext(c *fiber.Ctx) (int64, string, error) {
	rawID, _ := c.Locals("user_id").(string)
	actorID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, "", errors.New("invalid actor id")
	}

	role, _ := c.Locals("role").(string)
	return actorID, role, nil
}

func mapMessageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		return respondError(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrRecipientNotFound):
		return respondError(c, fiber.StatusNotFound, "Recipient not found")
	case errors.Is(err, services.ErrMessageNotFound):
		return respondError(c, fiber.StatusNotFound, "Message not found")
	case errors.Is(err, services.ErrLogNotFound):
		return respondError(c, fiber.StatusNotFound, "Workout log not found")
	case errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, "Not found")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to process request")
	}
}
