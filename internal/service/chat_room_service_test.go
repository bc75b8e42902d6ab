package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

type broadcastRecorder struct {
	mu     sync.Mutex
	frames []dto.ChatFrame
}

func (b *broadcastRecorder) Broadcast(_ context.Context, frame dto.ChatFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, frame)
}

func newChatRoomFixture(t *testing.T) (*gorm.DB, ChatRoomService, *broadcastRecorder) {
	t.Helper()
	db := setupTestDB(t)
	recorder := &broadcastRecorder{}
	svc := NewChatRoomService(
		repository.NewChatRoomRepository(db),
		repository.NewChatMessageRepository(db),
		repository.NewChatAccessRepository(db),
		repository.NewUserRepository(db),
		recorder,
		newTestValidator(),
		testLogger(),
	)
	return db, svc, recorder
}

func countAttempts(t *testing.T, db *gorm.DB, userID uint, success bool) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.ChatAccessAttempt{}).
		Where("user_id = ? AND success = ?", userID, success).
		Count(&count).Error)
	return count
}

func TestChatRoomJoinPredefinedRooms(t *testing.T) {
	db, svc, _ := newChatRoomFixture(t)
	ctx := context.Background()
	teacher := createUser(t, db, "teacher", true)
	student := createUser(t, db, "student", false)

	_, err := svc.Join(ctx, actorOf(student), models.RoomTeachers)
	var accessErr *RoomAccessError
	require.ErrorAs(t, err, &accessErr)
	require.ErrorIs(t, err, ErrRoomAccessDenied)
	require.Equal(t, "You do not have permission to enter the Teachers Only Room.", accessErr.Message)
	require.EqualValues(t, 1, countAttempts(t, db, student.ID, false))
	require.EqualValues(t, 0, countAttempts(t, db, student.ID, true))

	_, err = svc.Join(ctx, actorOf(teacher), models.RoomStudents)
	require.ErrorAs(t, err, &accessErr)
	require.Equal(t, "You do not have permission to enter the Students Only Room.", accessErr.Message)

	joined, err := svc.Join(ctx, actorOf(student), models.RoomStudents)
	require.NoError(t, err)
	require.Equal(t, models.RoomStudents, joined.Room.Name)
	require.Nil(t, joined.Room.ExpiryTime)
	require.EqualValues(t, 1, countAttempts(t, db, student.ID, true))

	_, err = svc.Join(ctx, actorOf(teacher), models.RoomTeacherStudent)
	require.NoError(t, err)
	_, err = svc.Join(ctx, actorOf(student), models.RoomTeacherStudent)
	require.NoError(t, err)
}

func TestChatRoomPrivateRoomWithoutAllowedUsers(t *testing.T) {
	db, svc, _ := newChatRoomFixture(t)
	ctx := context.Background()
	owner := createUser(t, db, "owner", true)
	outsider := createUser(t, db, "outsider", false)

	room, err := svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "study-group", IsPrivate: true})
	require.NoError(t, err)
	require.NotNil(t, room.ExpiryTime)
	require.WithinDuration(t, time.Now().Add(models.PrivateRoomTTL), *room.ExpiryTime, time.Minute)

	_, err = svc.Join(ctx, actorOf(outsider), "study-group")
	var accessErr *RoomAccessError
	require.ErrorAs(t, err, &accessErr)
	require.Equal(t, "You do not have permission to enter this private chat room.", accessErr.Message)
	require.EqualValues(t, 1, countAttempts(t, db, outsider.ID, false))

	rooms := repository.NewChatRoomRepository(db)
	member, err := rooms.IsParticipant(ctx, room.ID, outsider.ID)
	require.NoError(t, err)
	require.False(t, member)

	_, err = svc.Join(ctx, actorOf(owner), "study-group")
	require.NoError(t, err)
}

func TestChatRoomCreateRules(t *testing.T) {
	db, svc, _ := newChatRoomFixture(t)
	ctx := context.Background()
	owner := createUser(t, db, "owner", false)

	public, err := svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "lobby"})
	require.NoError(t, err)
	require.NotNil(t, public.ExpiryTime)
	require.WithinDuration(t, time.Now().Add(models.DefaultRoomTTL), *public.ExpiryTime, time.Minute)

	_, err = svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "lobby"})
	require.ErrorIs(t, err, ErrRoomNameTaken)

	_, err = svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: models.RoomTeachers})
	require.ErrorIs(t, err, ErrRoomNameTaken)

	past := time.Now().Add(-time.Hour)
	_, err = svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "old", ExpiresAt: &past})
	require.ErrorIs(t, err, ErrRoomExpiryInPast)
}

func TestChatRoomDeleteAndMessages(t *testing.T) {
	db, svc, recorder := newChatRoomFixture(t)
	ctx := context.Background()
	owner := createUser(t, db, "owner", false)
	other := createUser(t, db, "other", false)

	_, err := svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "project"})
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, actorOf(other), "project", dto.ChatMessageCreateRequest{Message: "hi"})
	require.ErrorIs(t, err, ErrRoomForbidden)

	posted, err := svc.PostMessage(ctx, actorOf(owner), "project", dto.ChatMessageCreateRequest{Message: "<b>it's</b> live"})
	require.NoError(t, err)
	require.Equal(t, "it's live", posted.Message)
	require.Len(t, recorder.frames, 1)
	require.Equal(t, dto.ChatFrame{Message: "it's live", Username: "owner", Room: "project"}, recorder.frames[0])

	history, err := svc.Messages(ctx, actorOf(owner), "project", dto.ChatHistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.ErrorIs(t, svc.Delete(ctx, actorOf(other), "project"), ErrRoomForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(owner), "project"))

	var remaining int64
	require.NoError(t, db.Model(&models.Message{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	err = svc.Delete(ctx, actorOf(owner), "project")
	require.True(t, errors.Is(err, ErrRoomNotFound))
}

func TestChatRoomListMine(t *testing.T) {
	db, svc, _ := newChatRoomFixture(t)
	ctx := context.Background()
	owner := createUser(t, db, "owner", false)
	other := createUser(t, db, "other", false)

	_, err := svc.Create(ctx, actorOf(owner), dto.ChatRoomCreateRequest{Name: "alpha"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, actorOf(other), dto.ChatRoomCreateRequest{Name: "beta"})
	require.NoError(t, err)

	all, err := svc.List(ctx, actorOf(owner), false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := svc.List(ctx, actorOf(owner), true)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "alpha", mine[0].Name)
}
