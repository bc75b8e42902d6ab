// Command seed loads the EduConnect demo data set into the configured database.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/config"
	"github.com/noah-isme/educonnect-api/internal/database"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/internal/service"
)

const cliToken = "seed-cli"

func main() {
	timeout := flag.Duration("timeout", time.Minute, "maximum time to spend seeding")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Notifications go straight to the database; no live subscribers exist here.
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, cfg.RealtimeChannel, nil, service.NewValidator(), logger)
	seeder := service.NewSeedService(
		repository.NewUserRepository(db),
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewFeedbackRepository(db),
		service.NewNotificationDispatcher(notifications, logger),
		true,
		cliToken,
		logger,
	)

	summary, err := seeder.SeedDemo(ctx, cliToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}

	logger.Info().
		Int("users", summary.Users).
		Int("courses", summary.Courses).
		Int("enrollments", summary.Enrollments).
		Int("feedback", summary.Feedback).
		Str("password", service.DemoPassword).
		Msg("demo data ready")
}
