package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
)

func TestNotificationRepositoryScopesToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner", false)
	intruder := createUser(t, db, "intruder", false)

	notification := models.Notification{UserID: owner.ID, Type: "enrollment_created", Message: "You have been enrolled in the course: Go"}
	require.NoError(t, repo.Create(ctx, &notification))

	_, err := repo.SetRead(ctx, notification.ID, intruder.ID, true)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = repo.Delete(ctx, notification.ID, intruder.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	updated, err := repo.SetRead(ctx, notification.ID, owner.ID, true)
	require.NoError(t, err)
	require.True(t, updated.IsRead)

	unread, read, err := repo.CountByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Zero(t, unread)
	require.Equal(t, int64(1), read)

	updated, err = repo.SetRead(ctx, notification.ID, owner.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsRead)

	onlyRead := true
	items, err := repo.ListByUser(ctx, owner.ID, NotificationFilter{IsRead: &onlyRead})
	require.NoError(t, err)
	require.Empty(t, items)

	require.NoError(t, repo.Delete(ctx, notification.ID, owner.ID))
	items, err = repo.ListByUser(ctx, owner.ID, NotificationFilter{})
	require.NoError(t, err)
	require.Empty(t, items)
}
