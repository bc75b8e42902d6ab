package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/config"
	"github.com/noah-isme/educonnect-api/internal/database"
	"github.com/noah-isme/educonnect-api/internal/handler"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/internal/router"
	"github.com/noah-isme/educonnect-api/internal/service"
	cloud "github.com/noah-isme/educonnect-api/pkg/cloudinary"
	"github.com/noah-isme/educonnect-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	rootCtx, cancelRoot := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelRoot()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; token revocation, dashboard cache and cross-node fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var storage service.FileStorage
	if cfg.UploadsEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured; file uploads disabled")
	}

	sender, err := mailer.NewLogSender(cfg.AppName, cfg.MailFrom, logger)
	if err != nil {
		log.Fatalf("failed to configure mailer: %v", err)
	}

	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	statusRepo := repository.NewStatusUpdateRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	roomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	accessRepo := repository.NewChatAccessRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	denylist := service.NewTokenDenylist(redisClient, cfg.RealtimeChannel)
	uploadService := service.NewUploadService(storage, uploadRepo, cfg.UploadMaxSizeMB, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	dispatcher := service.NewNotificationDispatcher(notificationService, logger)

	chatService, err := service.NewChatService(messageRepo, roomRepo, userRepo, redisClient, cfg.RealtimeChannel, natsConn, cfg.ChatSendBuffer, logger)
	if err != nil {
		log.Fatalf("failed to initialise chat relay: %v", err)
	}

	authService := service.NewAuthService(userRepo, denylist, sender, service.AuthConfig{
		AppName:         cfg.AppName,
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.JWTTTL,
		ResetTimeout:    cfg.PasswordResetTimeout,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}, validate, logger)
	userService := service.NewUserService(userRepo, statusRepo, uploadService, validate, logger)
	courseService := service.NewCourseService(courseRepo, enrollmentRepo, materialRepo, validate, logger)
	enrollmentService := service.NewEnrollmentService(courseRepo, enrollmentRepo, userRepo, dispatcher, logger)
	materialService := service.NewMaterialService(courseRepo, enrollmentRepo, materialRepo, uploadService, dispatcher, validate, logger)
	feedbackService := service.NewFeedbackService(courseRepo, enrollmentRepo, feedbackRepo, userRepo, dispatcher, validate, logger)
	chatRoomService := service.NewChatRoomService(roomRepo, messageRepo, accessRepo, userRepo, chatService, validate, logger)
	dashboardService := service.NewDashboardService(userRepo, courseRepo, enrollmentRepo, notificationService, redisClient, cfg.RealtimeChannel, cfg.DashboardCacheTTL, logger)
	seedService := service.NewSeedService(userRepo, courseRepo, enrollmentRepo, feedbackRepo, dispatcher, cfg.SeedEnabled, cfg.SeedToken, logger)
	sweeper := service.NewRoomSweeper(roomRepo, redisClient, cfg.RealtimeChannel, cfg.ChatSweepInterval, logger)

	chatService.Start(rootCtx)
	notificationService.Start(rootCtx)
	go func() {
		if err := sweeper.Run(rootCtx); err != nil {
			logger.Error().Err(err).Msg("room sweeper stopped")
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		CourseHandler:       handler.NewCourseHandler(courseService, logger),
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, logger),
		MaterialHandler:     handler.NewMaterialHandler(materialService, logger),
		FeedbackHandler:     handler.NewFeedbackHandler(feedbackService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		ChatHandler:         handler.NewChatHandler(chatService, chatRoomService, logger),
		DashboardHandler:    handler.NewDashboardHandler(dashboardService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		HealthProbes:        healthProbes(db, redisClient, natsConn),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret, denylist),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(rootCtx, app, logger)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
