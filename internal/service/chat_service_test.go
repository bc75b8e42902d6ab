package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

func newChatFixture(t *testing.T, redisClient *redis.Client) (*chatService, models.User, models.ChatSession) {
	t.Helper()
	db := setupTestDB(t)
	user := createUser(t, db, "writer", false)
	room := models.ChatSession{Name: "general", CreatedByID: user.ID}
	require.NoError(t, db.Create(&room).Error)

	svc, err := NewChatService(
		repository.NewChatMessageRepository(db),
		repository.NewChatRoomRepository(db),
		repository.NewUserRepository(db),
		redisClient,
		"educonnect",
		nil,
		4,
		testLogger(),
	)
	require.NoError(t, err)
	return svc.(*chatService), user, room
}

func attachClient(svc *chatService, room string) *chatClient {
	client := &chatClient{
		send:    make(chan dto.ChatFrame, 4),
		options: ChatConnectionOptions{Room: room},
		service: svc,
		closed:  make(chan struct{}),
	}
	svc.hub.register(client)
	return client
}

func TestChatProcessPersistsAndBroadcasts(t *testing.T) {
	svc, user, room := newChatFixture(t, nil)
	listener := attachClient(svc, "general")
	bystander := attachClient(svc, "other")

	frame, err := svc.process(context.Background(), "general", "corr-1",
		[]byte(`{"message":"<i>don't</i> panic","username":"writer","room":"general"}`))
	require.NoError(t, err)
	require.Equal(t, dto.ChatFrame{Message: "don't panic", Username: "writer", Room: "general"}, frame)

	select {
	case got := <-listener.send:
		require.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("expected frame for room member")
	}
	require.Empty(t, bystander.send)

	history, err := svc.messages.ListBySession(context.Background(), room.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, user.ID, history[0].UserID)
	require.Equal(t, "don't panic", history[0].Message)
}

func TestChatProcessRejectsMalformedFrames(t *testing.T) {
	svc, _, _ := newChatFixture(t, nil)
	listener := attachClient(svc, "general")

	cases := map[string]string{
		"not json":        `hello`,
		"missing message": `{"username":"writer","room":"general"}`,
		"empty username":  `{"message":"hi","username":"","room":"general"}`,
		"wrong type":      `{"message":5,"username":"writer","room":"general"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.process(context.Background(), "general", "", []byte(raw))
			require.ErrorIs(t, err, ErrInvalidChatFrame)
		})
	}

	_, err := svc.process(context.Background(), "general", "", []byte(`{"message":"<b></b>","username":"writer","room":"general"}`))
	require.ErrorIs(t, err, ErrChatMessageEmpty)
	require.Empty(t, listener.send)
}

func TestChatProcessBroadcastsEvenWhenUnpersisted(t *testing.T) {
	svc, _, room := newChatFixture(t, nil)
	listener := attachClient(svc, "general")

	_, err := svc.process(context.Background(), "general", "", []byte(`{"message":"hi","username":"ghost","room":"general"}`))
	require.NoError(t, err)
	require.Len(t, listener.send, 1)

	history, err := svc.messages.ListBySession(context.Background(), room.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestChatEventsFromOtherNodes(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	svc, _, _ := newChatFixture(t, redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	listener := attachClient(svc, "general")
	frame := dto.ChatFrame{Message: "from afar", Username: "remote", Room: "general"}

	own, err := json.Marshal(chatEvent{Source: svc.nodeID, Frame: frame})
	require.NoError(t, err)
	svc.handleEvent(own)
	require.Empty(t, listener.send)

	remote, err := json.Marshal(chatEvent{Source: "another-node", Frame: frame})
	require.NoError(t, err)
	svc.handleEvent(remote)
	require.Len(t, listener.send, 1)

	svc.hub.unregister(listener)
	require.Zero(t, svc.hub.size("general"))
}
