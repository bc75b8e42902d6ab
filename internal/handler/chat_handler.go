package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/service"
	"github.com/noah-isme/educonnect-api/internal/utils"
)

const localRequestContext = "request_ctx"

// ChatHandler wires the chat relay websocket and the room REST endpoints.
type ChatHandler struct {
	relay  service.ChatService
	rooms  service.ChatRoomService
	logger zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(relay service.ChatService, rooms service.ChatRoomService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		relay:  relay,
		rooms:  rooms,
		logger: logger.With().Str("component", "chat_handler").Logger(),
	}
}

// RegisterSocket binds the websocket relay under the provided group (mounted at /ws).
func (h *ChatHandler) RegisterSocket(router fiber.Router) {
	router.Use("/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(localRequestContext, middleware.RequestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/chat/:room", websocket.New(h.handleConnection))
}

// Register binds /chat REST routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/rooms", h.listRooms)
	router.Post("/rooms", h.createRoom)
	router.Post("/rooms/:name/join", h.joinRoom)
	router.Delete("/rooms/:name", h.deleteRoom)
	router.Get("/rooms/:name/messages", h.messages)
	router.Post("/rooms/:name/messages", h.postMessage)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(uint)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	room := strings.TrimSpace(conn.Params("room"))
	if room == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room required"))
		_ = conn.Close()
		return
	}

	username, _ := conn.Locals(middleware.LocalUsername).(string)
	correlation, _ := conn.Locals(middleware.LocalCorrelationID).(string)
	baseCtx, _ := conn.Locals(localRequestContext).(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		Username:      username,
		Room:          room,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Str("room", room).Msg("chat websocket connected")
	h.relay.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Str("room", room).Msg("chat websocket disconnected")
}

func (h *ChatHandler) listRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.List(middleware.RequestContext(c), actorFromContext(c), c.QueryBool("mine", false))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat rooms", rooms)
}

func (h *ChatHandler) createRoom(c *fiber.Ctx) error {
	var payload dto.ChatRoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.rooms.Create(middleware.RequestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chat room created", room)
}

func (h *ChatHandler) joinRoom(c *fiber.Ctx) error {
	joined, err := h.rooms.Join(middleware.RequestContext(c), actorFromContext(c), c.Params("name"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "access granted", joined)
}

func (h *ChatHandler) deleteRoom(c *fiber.Ctx) error {
	if err := h.rooms.Delete(middleware.RequestContext(c), actorFromContext(c), c.Params("name")); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat room deleted", nil)
}

func (h *ChatHandler) messages(c *fiber.Ctx) error {
	var query dto.ChatHistoryQuery
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		query.Before = &parsed
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	query.Limit = limit

	messages, err := h.rooms.Messages(middleware.RequestContext(c), actorFromContext(c), c.Params("name"), query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatHandler) postMessage(c *fiber.Ctx) error {
	var payload dto.ChatMessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.rooms.PostMessage(middleware.RequestContext(c), actorFromContext(c), c.Params("name"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}
