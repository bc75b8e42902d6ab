package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// ChatFrame is the JSON object exchanged over the chat websocket.
type ChatFrame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Room     string `json:"room"`
}

// ChatRoomCreateRequest creates a room.
type ChatRoomCreateRequest struct {
	Name           string     `json:"name" validate:"required,min=1,max=255,excludesall=/?#"`
	IsPrivate      bool       `json:"is_private"`
	AllowedUserIDs []uint     `json:"allowed_user_ids" validate:"omitempty,dive,required"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// ChatRoomResponse describes a room.
type ChatRoomResponse struct {
	ID           uint          `json:"id"`
	Name         string        `json:"name"`
	IsPrivate    bool          `json:"is_private"`
	CreatedByID  uint          `json:"created_by_id"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiryTime   *time.Time    `json:"expiry_time"`
	Participants []UserSummary `json:"participants,omitempty"`
}

// NewChatRoomResponse converts a chat session model.
func NewChatRoomResponse(session models.ChatSession) ChatRoomResponse {
	return ChatRoomResponse{
		ID:           session.ID,
		Name:         session.Name,
		IsPrivate:    session.IsPrivate,
		CreatedByID:  session.CreatedByID,
		CreatedAt:    session.CreatedAt,
		ExpiryTime:   session.ExpiryTime,
		Participants: NewUserSummarySlice(session.Participants),
	}
}

// NewChatRoomResponseSlice converts a slice of chat sessions.
func NewChatRoomResponseSlice(sessions []models.ChatSession) []ChatRoomResponse {
	return lo.Map(sessions, func(session models.ChatSession, _ int) ChatRoomResponse {
		return NewChatRoomResponse(session)
	})
}

// ChatRoomJoinResponse is returned when access to a room is granted.
type ChatRoomJoinResponse struct {
	Room     ChatRoomResponse      `json:"room"`
	Messages []ChatMessageResponse `json:"messages"`
}

// ChatHistoryQuery represents query filters for retrieving chat history.
type ChatHistoryQuery struct {
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ChatMessageCreateRequest posts a message through the REST API.
type ChatMessageCreateRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID            uint      `json:"id"`
	ChatSessionID uint      `json:"chat_session_id"`
	UserID        uint      `json:"user_id"`
	Username      string    `json:"username"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewChatMessageResponse converts a model into a DTO. User should be preloaded.
func NewChatMessageResponse(message models.Message) ChatMessageResponse {
	return ChatMessageResponse{
		ID:            message.ID,
		ChatSessionID: message.ChatSessionID,
		UserID:        message.UserID,
		Username:      message.User.Username,
		Message:       message.Message,
		Timestamp:     message.Timestamp,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.Message) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}
