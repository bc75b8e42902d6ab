package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/observability"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

const roomHistoryLimit = 50

var (
	// ErrRoomNotFound is returned when a non-predefined room does not exist or has expired.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrRoomAccessDenied is the sentinel matched by every RoomAccessError.
	ErrRoomAccessDenied = errors.New("chat room access denied")
	// ErrRoomForbidden is returned when a non-creator tries to delete a room or a non-participant reads it.
	ErrRoomForbidden = errors.New("not allowed in this chat room")
	// ErrRoomNameTaken is returned when the requested name already exists or is reserved.
	ErrRoomNameTaken = errors.New("chat room name already taken")
	// ErrRoomExpiryInPast is returned when an explicit expiry is not in the future.
	ErrRoomExpiryInPast = errors.New("expires_at must be in the future")
)

// RoomAccessError carries the user-facing denial message for a room.
type RoomAccessError struct {
	Room    string
	Message string
}

func (e *RoomAccessError) Error() string {
	return e.Message
}

// Is lets errors.Is match ErrRoomAccessDenied.
func (e *RoomAccessError) Is(target error) bool {
	return target == ErrRoomAccessDenied
}

// ChatBroadcaster delivers a frame to the live connections of a room.
type ChatBroadcaster interface {
	Broadcast(ctx context.Context, frame dto.ChatFrame)
}

// ChatRoomService manages chat rooms, membership and access control.
type ChatRoomService interface {
	List(ctx context.Context, actor Actor, mine bool) ([]dto.ChatRoomResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ChatRoomCreateRequest) (dto.ChatRoomResponse, error)
	Join(ctx context.Context, actor Actor, name string) (dto.ChatRoomJoinResponse, error)
	Delete(ctx context.Context, actor Actor, name string) error
	Messages(ctx context.Context, actor Actor, name string, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error)
	PostMessage(ctx context.Context, actor Actor, name string, payload dto.ChatMessageCreateRequest) (dto.ChatMessageResponse, error)
}

type chatRoomService struct {
	rooms       repository.ChatRoomRepository
	messages    repository.ChatMessageRepository
	attempts    repository.ChatAccessRepository
	users       repository.UserRepository
	broadcaster ChatBroadcaster
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	accessLog   zerolog.Logger
	now         func() time.Time
}

// NewChatRoomService constructs the room service. broadcaster may be nil.
func NewChatRoomService(rooms repository.ChatRoomRepository, messages repository.ChatMessageRepository, attempts repository.ChatAccessRepository, users repository.UserRepository, broadcaster ChatBroadcaster, validate *validator.Validate, logger zerolog.Logger) ChatRoomService {
	return &chatRoomService{
		rooms:       rooms,
		messages:    messages,
		attempts:    attempts,
		users:       users,
		broadcaster: broadcaster,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "chat_room_service").Logger(),
		accessLog:   logger.With().Str("component", "chat_access").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatRoomService) List(ctx context.Context, actor Actor, mine bool) ([]dto.ChatRoomResponse, error) {
	var (
		rooms []models.ChatSession
		err   error
	)
	if mine {
		rooms, err = s.rooms.ListByParticipant(ctx, actor.ID)
	} else {
		rooms, err = s.rooms.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return dto.NewChatRoomResponseSlice(rooms), nil
}

func (s *chatRoomService) Create(ctx context.Context, actor Actor, payload dto.ChatRoomCreateRequest) (dto.ChatRoomResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatRoomResponse{}, err
	}
	if models.IsPredefinedRoom(payload.Name) {
		return dto.ChatRoomResponse{}, ErrRoomNameTaken
	}
	if payload.ExpiresAt != nil && !payload.ExpiresAt.After(s.now()) {
		return dto.ChatRoomResponse{}, ErrRoomExpiryInPast
	}

	if _, err := s.rooms.GetByName(ctx, payload.Name); err == nil {
		return dto.ChatRoomResponse{}, ErrRoomNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ChatRoomResponse{}, err
	}

	creator, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.ChatRoomResponse{}, fmt.Errorf("load creator: %w", err)
	}

	allowedIDs := append([]uint{actor.ID}, payload.AllowedUserIDs...)
	allowed, err := s.users.ListByIDs(ctx, allowedIDs)
	if err != nil {
		return dto.ChatRoomResponse{}, fmt.Errorf("load allowed users: %w", err)
	}

	room := models.ChatSession{
		Name:         payload.Name,
		CreatedByID:  actor.ID,
		IsPrivate:    payload.IsPrivate,
		Participants: []models.User{creator},
		AllowedUsers: allowed,
	}
	if payload.ExpiresAt != nil {
		expiry := payload.ExpiresAt.UTC()
		room.ExpiryTime = &expiry
	}

	if err := s.rooms.Create(ctx, &room); err != nil {
		return dto.ChatRoomResponse{}, err
	}

	s.logger.Info().
		Str("room", room.Name).
		Uint("created_by", actor.ID).
		Bool("private", room.IsPrivate).
		Msg("chat room created")

	return dto.NewChatRoomResponse(room), nil
}

func (s *chatRoomService) Join(ctx context.Context, actor Actor, name string) (dto.ChatRoomJoinResponse, error) {
	name = strings.TrimSpace(name)

	room, err := s.resolve(ctx, actor, name)
	if err != nil {
		return dto.ChatRoomJoinResponse{}, err
	}

	denial, err := s.authorise(ctx, actor, room)
	if err != nil {
		return dto.ChatRoomJoinResponse{}, err
	}

	granted := denial == ""
	if err := s.recordAttempt(ctx, actor, room, granted); err != nil {
		return dto.ChatRoomJoinResponse{}, err
	}
	if !granted {
		return dto.ChatRoomJoinResponse{}, &RoomAccessError{Room: room.Name, Message: denial}
	}

	if err := s.rooms.AddParticipant(ctx, room.ID, actor.ID); err != nil {
		return dto.ChatRoomJoinResponse{}, err
	}

	history, err := s.messages.ListBySession(ctx, room.ID, time.Time{}, roomHistoryLimit)
	if err != nil {
		return dto.ChatRoomJoinResponse{}, err
	}

	return dto.ChatRoomJoinResponse{
		Room:     dto.NewChatRoomResponse(room),
		Messages: dto.NewChatMessageResponseSlice(history),
	}, nil
}

func (s *chatRoomService) Delete(ctx context.Context, actor Actor, name string) error {
	room, err := s.existing(ctx, name)
	if err != nil {
		return err
	}
	if room.CreatedByID != actor.ID {
		return ErrRoomForbidden
	}

	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	s.logger.Info().Str("room", room.Name).Uint("deleted_by", actor.ID).Msg("chat room deleted")
	return nil
}

func (s *chatRoomService) Messages(ctx context.Context, actor Actor, name string, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	room, err := s.participantRoom(ctx, actor, name)
	if err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}
	limit := query.Limit
	if limit == 0 {
		limit = roomHistoryLimit
	}

	messages, err := s.messages.ListBySession(ctx, room.ID, before, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponseSlice(messages), nil
}

func (s *chatRoomService) PostMessage(ctx context.Context, actor Actor, name string, payload dto.ChatMessageCreateRequest) (dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	room, err := s.participantRoom(ctx, actor, name)
	if err != nil {
		return dto.ChatMessageResponse{}, err
	}

	text := plainText(s.sanitizer, payload.Message)
	if text == "" {
		return dto.ChatMessageResponse{}, ErrChatMessageEmpty
	}

	sender, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.ChatMessageResponse{}, fmt.Errorf("load sender: %w", err)
	}

	message := models.Message{
		ChatSessionID: room.ID,
		UserID:        sender.ID,
		Message:       text,
		Timestamp:     s.now(),
	}
	if err := s.messages.Save(ctx, &message); err != nil {
		return dto.ChatMessageResponse{}, err
	}
	message.User = sender

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, dto.ChatFrame{Message: text, Username: sender.Username, Room: room.Name})
	}

	return dto.NewChatMessageResponse(message), nil
}

// resolve returns the room for a join, creating predefined rooms on first access.
func (s *chatRoomService) resolve(ctx context.Context, actor Actor, name string) (models.ChatSession, error) {
	if models.IsPredefinedRoom(name) {
		room, created, err := s.rooms.GetOrCreate(ctx, name, actor.ID)
		if err != nil {
			return models.ChatSession{}, err
		}
		if created {
			s.logger.Info().Str("room", name).Msg("predefined chat room created")
		}
		return room, nil
	}
	return s.existing(ctx, name)
}

func (s *chatRoomService) existing(ctx context.Context, name string) (models.ChatSession, error) {
	room, err := s.rooms.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatSession{}, ErrRoomNotFound
		}
		return models.ChatSession{}, err
	}
	if room.IsExpired(s.now()) {
		return models.ChatSession{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *chatRoomService) participantRoom(ctx context.Context, actor Actor, name string) (models.ChatSession, error) {
	room, err := s.existing(ctx, name)
	if err != nil {
		return models.ChatSession{}, err
	}
	member, err := s.rooms.IsParticipant(ctx, room.ID, actor.ID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !member {
		return models.ChatSession{}, ErrRoomForbidden
	}
	return room, nil
}

// authorise returns the denial message, or an empty string when access is granted.
func (s *chatRoomService) authorise(ctx context.Context, actor Actor, room models.ChatSession) (string, error) {
	switch room.Name {
	case models.RoomStudents:
		if !actor.IsStudent() {
			return "You do not have permission to enter the Students Only Room.", nil
		}
		return "", nil
	case models.RoomTeachers:
		if !actor.IsTeacher() {
			return "You do not have permission to enter the Teachers Only Room.", nil
		}
		return "", nil
	case models.RoomTeacherStudent:
		return "", nil
	}

	if !room.IsPrivate {
		return "", nil
	}

	allowed, err := s.rooms.IsAllowed(ctx, room.ID, actor.ID)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "You do not have permission to enter this private chat room.", nil
	}
	return "", nil
}

func (s *chatRoomService) recordAttempt(ctx context.Context, actor Actor, room models.ChatSession, granted bool) error {
	attempt := models.ChatAccessAttempt{
		UserID:    actor.ID,
		RoomName:  room.Name,
		Timestamp: s.now(),
		Success:   granted,
	}
	if err := s.attempts.Record(ctx, &attempt); err != nil {
		return fmt.Errorf("record chat access: %w", err)
	}

	result := "granted"
	event := s.accessLog.Info()
	if !granted {
		result = "denied"
		event = s.accessLog.Warn()
	}
	event.
		Uint("user_id", actor.ID).
		Str("role", actor.Role).
		Str("room", room.Name).
		Bool("success", granted).
		Msg("chat room access attempt")

	observability.RoomAccessAttempts().WithLabelValues(roomKind(room), result).Inc()
	return nil
}

func roomKind(room models.ChatSession) string {
	switch {
	case models.IsPredefinedRoom(room.Name):
		return room.Name
	case room.IsPrivate:
		return "private"
	default:
		return "public"
	}
}
