package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/database"
	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/handler"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/internal/service"
)

type stubChatRoomService struct {
	joinErr  error
	mine     bool
	lastRoom string
	query    dto.ChatHistoryQuery
}

func (s *stubChatRoomService) List(_ context.Context, _ service.Actor, mine bool) ([]dto.ChatRoomResponse, error) {
	s.mine = mine
	return []dto.ChatRoomResponse{}, nil
}

func (s *stubChatRoomService) Create(_ context.Context, actor service.Actor, payload dto.ChatRoomCreateRequest) (dto.ChatRoomResponse, error) {
	return dto.ChatRoomResponse{Name: payload.Name, CreatedByID: actor.ID}, nil
}

func (s *stubChatRoomService) Join(_ context.Context, _ service.Actor, name string) (dto.ChatRoomJoinResponse, error) {
	s.lastRoom = name
	if s.joinErr != nil {
		return dto.ChatRoomJoinResponse{}, s.joinErr
	}
	return dto.ChatRoomJoinResponse{Room: dto.ChatRoomResponse{Name: name}}, nil
}

func (s *stubChatRoomService) Delete(context.Context, service.Actor, string) error {
	return service.ErrRoomForbidden
}

func (s *stubChatRoomService) Messages(_ context.Context, _ service.Actor, name string, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	s.lastRoom = name
	s.query = query
	return []dto.ChatMessageResponse{}, nil
}

func (s *stubChatRoomService) PostMessage(_ context.Context, _ service.Actor, _ string, payload dto.ChatMessageCreateRequest) (dto.ChatMessageResponse, error) {
	return dto.ChatMessageResponse{Message: payload.Message}, nil
}

var _ service.ChatRoomService = (*stubChatRoomService)(nil)

func newChatRoomApp(rooms service.ChatRoomService, id uint, role string) *fiber.App {
	app := fiber.New()
	handler.NewChatHandler(nil, rooms, zerolog.Nop()).Register(app.Group("/api/v1/chat", asUser(id, role)))
	return app
}

func TestChatHandlerJoinDenied(t *testing.T) {
	rooms := &stubChatRoomService{joinErr: &service.RoomAccessError{Room: "teachers", Message: "Only teachers can join this room."}}
	resp, payload := doJSON(t, newChatRoomApp(rooms, 6, "student"), http.MethodPost, "/api/v1/chat/rooms/teachers/join", nil)

	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.False(t, payload.Success)
	require.Equal(t, "Only teachers can join this room.", payload.Message)
	require.Equal(t, "teachers", rooms.lastRoom)
}

func TestChatHandlerRoomEndpoints(t *testing.T) {
	rooms := &stubChatRoomService{}
	app := newChatRoomApp(rooms, 5, "teacher")

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/chat/rooms?mine=true", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, rooms.mine)

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/chat/rooms", map[string]interface{}{"name": "study", "is_private": true})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.ChatRoomResponse
	decodeData(t, payload, &created)
	require.Equal(t, uint(5), created.CreatedByID)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/chat/rooms/study", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/chat/rooms/study/messages?limit=20&before=2024-05-01T10:00:00Z", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 20, rooms.query.Limit)
	require.NotNil(t, rooms.query.Before)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/chat/rooms/study/messages?before=yesterday", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatSocketRequiresUpgrade(t *testing.T) {
	app := fiber.New()
	handler.NewChatHandler(nil, nil, zerolog.Nop()).RegisterSocket(app.Group("/ws", asUser(1, "student")))

	req, _ := http.NewRequest(http.MethodGet, "/ws/chat/study", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatSocketRelaysFramesBetweenRoomMembers(t *testing.T) {
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	ada := models.User{Username: "ada", Email: "ada@example.com", PasswordHash: []byte("x"), IsTeacher: true}
	alan := models.User{Username: "alan", Email: "alan@example.com", PasswordHash: []byte("x")}
	require.NoError(t, db.Create(&ada).Error)
	require.NoError(t, db.Create(&alan).Error)
	room := models.ChatSession{Name: "study", CreatedByID: ada.ID}
	require.NoError(t, db.Create(&room).Error)

	messages := repository.NewChatMessageRepository(db)
	relay, err := service.NewChatService(messages, repository.NewChatRoomRepository(db), repository.NewUserRepository(db), nil, "", nil, 8, zerolog.Nop())
	require.NoError(t, err)

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	identify := func(c *fiber.Ctx) error {
		var user models.User
		if c.Query("as") == "ada" {
			user = ada
		} else {
			user = alan
		}
		c.Locals(middleware.LocalUserID, user.ID)
		c.Locals(middleware.LocalUsername, user.Username)
		return c.Next()
	}
	handler.NewChatHandler(relay, nil, zerolog.Nop()).RegisterSocket(app.Group("/ws", identify))

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/chat/study"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	sender, resp, err := dialer.Dial(wsURL+"?as=ada", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer sender.Close()

	receiver, resp, err := dialer.Dial(wsURL+"?as=alan", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer receiver.Close()

	// Give the server time to register both connections in the room group.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"message": "not json"`)))
	require.NoError(t, sender.WriteJSON(dto.ChatFrame{Message: "<b>hello</b> class", Username: "ada", Room: "study"}))

	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame dto.ChatFrame
	require.NoError(t, receiver.ReadJSON(&frame))
	require.Equal(t, dto.ChatFrame{Message: "hello class", Username: "ada", Room: "study"}, frame)

	history, err := messages.ListBySession(context.Background(), room.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ada.ID, history[0].UserID)
}
