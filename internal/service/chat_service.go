package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/observability"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

const (
	defaultChatSendBuffer = 32
	chatPingInterval      = 30 * time.Second
	chatFrameSchemaURL    = "chat_frame.schema.json"
)

//go:embed schemas/chat_frame.schema.json
var chatFrameSchemaJSON []byte

var (
	// ErrInvalidChatFrame is returned for frames that fail schema validation.
	ErrInvalidChatFrame = errors.New("invalid chat frame")
	// ErrChatMessageEmpty is returned when a message is empty after sanitisation.
	ErrChatMessageEmpty = errors.New("chat message empty after sanitization")
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        uint
	Username      string
	Room          string
	CorrelationID string
	Context       context.Context
}

// ChatService relays websocket chat frames between the connections of a room.
type ChatService interface {
	ChatBroadcaster
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

type chatService struct {
	messages    repository.ChatMessageRepository
	rooms       repository.ChatRoomRepository
	users       repository.UserRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	schema      *jsonschema.Schema
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	sendBuffer  int
	nodeID      string
}

// chatHub keeps track of active websocket clients per room group.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.ChatFrame
	options ChatConnectionOptions
	service *chatService
	closed  chan struct{}
	once    sync.Once
}

type chatEvent struct {
	Source string        `json:"source"`
	Frame  dto.ChatFrame `json:"frame"`
	SentAt time.Time     `json:"sent_at"`
}

// NewChatService creates the websocket relay. Redis and NATS are optional fan-out transports.
func NewChatService(messages repository.ChatMessageRepository, rooms repository.ChatRoomRepository, users repository.UserRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, sendBuffer int, logger zerolog.Logger) (ChatService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(chatFrameSchemaURL, bytes.NewReader(chatFrameSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load chat frame schema: %w", err)
	}
	schema, err := compiler.Compile(chatFrameSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile chat frame schema: %w", err)
	}

	if sendBuffer <= 0 {
		sendBuffer = defaultChatSendBuffer
	}

	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		messages:    messages,
		rooms:       rooms,
		users:       users,
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		schema:      schema,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/educonnect-api/internal/service/chat"),
		sanitizer:   bluemonday.StrictPolicy(),
		hub: &chatHub{
			rooms: make(map[string]map[*chatClient]struct{}),
			log:   logger.With().Str("component", "chat_hub").Logger(),
		},
		sendBuffer: sendBuffer,
		nodeID:     uuid.NewString(),
	}, nil
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// ServeConnection registers the connection in its room group and blocks until it closes.
func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = middleware.CorrelationIDFromContext(opts.Context)
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatFrame, s.sendBuffer),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()
	observability.ChatActiveConnections().Inc()

	go client.writer()
	client.reader()
}

// Broadcast delivers a frame to local connections of frame.Room and publishes it to other nodes.
func (s *chatService) Broadcast(ctx context.Context, frame dto.ChatFrame) {
	s.hub.broadcast(frame.Room, frame)
	if err := s.publish(ctx, frame); err != nil {
		s.logger.Warn().Err(err).Str("room", frame.Room).Msg("failed to publish chat event")
	}
}

// process validates, persists and relays one inbound frame received on room.
func (s *chatService) process(ctx context.Context, room, correlation string, raw []byte) (dto.ChatFrame, error) {
	frame, err := s.decodeFrame(raw)
	if err != nil {
		observability.ChatMessages().WithLabelValues("invalid").Inc()
		return dto.ChatFrame{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("chat.room", room),
		attribute.String("chat.username", frame.Username),
	}
	if correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}
	spanCtx, span := s.tracer.Start(ctx, "chat.relay", trace.WithAttributes(attrs...))
	defer span.End()

	outcome := "delivered"
	if err := s.persist(spanCtx, frame); err != nil {
		outcome = "unpersisted"
		span.RecordError(err)
		s.logger.Warn().
			Err(err).
			Str("room", frame.Room).
			Str("username", frame.Username).
			Str("correlation_id", correlation).
			Msg("chat message not persisted")
	}

	outbound := dto.ChatFrame{Message: frame.Message, Username: frame.Username, Room: room}
	s.Broadcast(spanCtx, outbound)
	observability.ChatMessages().WithLabelValues(outcome).Inc()

	return outbound, nil
}

func (s *chatService) decodeFrame(raw []byte) (dto.ChatFrame, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: %v", ErrInvalidChatFrame, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: %v", ErrInvalidChatFrame, err)
	}

	var frame dto.ChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return dto.ChatFrame{}, fmt.Errorf("%w: %v", ErrInvalidChatFrame, err)
	}

	frame.Message = plainText(s.sanitizer, frame.Message)
	if frame.Message == "" {
		return dto.ChatFrame{}, ErrChatMessageEmpty
	}
	frame.Username = strings.TrimSpace(frame.Username)
	frame.Room = strings.TrimSpace(frame.Room)
	return frame, nil
}

func (s *chatService) persist(ctx context.Context, frame dto.ChatFrame) error {
	user, err := s.users.GetByUsername(ctx, frame.Username)
	if err != nil {
		return fmt.Errorf("resolve user %q: %w", frame.Username, err)
	}
	room, err := s.rooms.GetByName(ctx, frame.Room)
	if err != nil {
		return fmt.Errorf("resolve room %q: %w", frame.Room, err)
	}

	message := models.Message{
		ChatSessionID: room.ID,
		UserID:        user.ID,
		Message:       frame.Message,
		Timestamp:     time.Now().UTC(),
	}
	return s.messages.Save(ctx, &message)
}

func (s *chatService) publish(ctx context.Context, frame dto.ChatFrame) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(chatEvent{Source: s.nodeID, Frame: frame, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

// handleEvent re-broadcasts frames published by other nodes.
func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Frame.Room, event.Frame)
}

func groupName(room string) string {
	return "chat_" + room
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := groupName(client.options.Room)
	if _, exists := h.rooms[group]; !exists {
		h.rooms[group] = make(map[*chatClient]struct{})
	}
	h.rooms[group][client] = struct{}{}
	h.log.Debug().Str("group", group).Uint("user_id", client.options.UserID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := groupName(client.options.Room)
	if clients, ok := h.rooms[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, group)
		}
	}
	h.log.Debug().Str("group", group).Uint("user_id", client.options.UserID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(room string, frame dto.ChatFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group := groupName(room)
	for client := range h.rooms[group] {
		select {
		case client.send <- frame:
		default:
			h.log.Warn().Str("group", group).Uint("user_id", client.options.UserID).Msg("dropping chat frame for slow client")
		}
	}
}

func (h *chatHub) size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupName(room)])
}

func (c *chatClient) reader() {
	defer c.close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		if _, err := c.service.process(c.options.Context, c.options.Room, c.options.CorrelationID, raw); err != nil {
			c.service.logger.Warn().
				Err(err).
				Str("room", c.options.Room).
				Uint("user_id", c.options.UserID).
				Msg("dropping chat frame")
			continue
		}

		select {
		case <-c.closed:
			return
		default:
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(chatPingInterval):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.ChatActiveConnections().Dec()
		_ = c.conn.Close()
	})
}
