package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/educonnect-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StatusUpdate{},
		&models.Course{},
		&models.CourseMaterial{},
		&models.Enrollment{},
		&models.Feedback{},
		&models.Notification{},
		&models.ChatSession{},
		&models.Message{},
		&models.ChatAccessAttempt{},
		&models.UploadRecord{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, teacher bool) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: []byte("hash"),
		IsTeacher:    teacher,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}
