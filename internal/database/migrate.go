package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// Models lists every persisted entity in migration order.
func Models() []interface{} {
	return []interface{}{
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
	}
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
