package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

func TestRoomSweeperDeletesOnlyExpiredRooms(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "owner", false)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	rooms := []models.ChatSession{
		{Name: "expired", CreatedByID: owner.ID, ExpiryTime: &past},
		{Name: "fresh", CreatedByID: owner.ID, ExpiryTime: &future},
		{Name: models.RoomStudents, CreatedByID: owner.ID},
	}
	for i := range rooms {
		require.NoError(t, db.Create(&rooms[i]).Error)
	}
	require.NoError(t, db.Create(&models.Message{ChatSessionID: rooms[0].ID, UserID: owner.ID, Message: "bye", Timestamp: time.Now()}).Error)

	sweeper := NewRoomSweeper(repository.NewChatRoomRepository(db), nil, "", time.Minute, testLogger())
	require.Equal(t, "Deleted 1 expired rooms.", sweeper.Sweep(context.Background()))

	var names []string
	require.NoError(t, db.Model(&models.ChatSession{}).Order("name").Pluck("name", &names).Error)
	require.Equal(t, []string{"fresh", models.RoomStudents}, names)

	var messages int64
	require.NoError(t, db.Model(&models.Message{}).Count(&messages).Error)
	require.Zero(t, messages)

	require.Equal(t, "Deleted 0 expired rooms.", sweeper.Sweep(context.Background()))
}

type failingRoomRepo struct {
	repository.ChatRoomRepository
}

func (failingRoomRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	panic("database went away")
}

func TestRoomSweeperReportsErrors(t *testing.T) {
	sweeper := NewRoomSweeper(failingRoomRepo{}, nil, "", time.Minute, testLogger())
	require.Equal(t, "Error occurred: panic: database went away", sweeper.Sweep(context.Background()))
}

func TestRoomSweeperLease(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	first := NewRoomSweeper(nil, client, "educonnect", time.Minute, testLogger())
	second := NewRoomSweeper(nil, client, "educonnect", time.Minute, testLogger())

	ctx := context.Background()
	require.True(t, first.acquireLease(ctx))
	require.False(t, second.acquireLease(ctx))
	require.True(t, mini.Exists("educonnect:chat:sweeper:lease"))

	mini.FastForward(time.Minute)
	require.True(t, second.acquireLease(ctx))
}
