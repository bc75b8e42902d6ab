package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	JWTTTL                 time.Duration
	PasswordResetTimeout   time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	DashboardCacheTTL      time.Duration
	ChatSweepInterval      time.Duration
	ChatSendBuffer         int
	NotificationKeepAlive  time.Duration
	MailFrom               string
	FrontendBaseURL        string
	AuthRateLimit          int
	SeedEnabled            bool
	SeedToken              string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UploadsEnabled reports whether Cloudinary credentials are configured.
func (c Config) UploadsEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDUCONNECT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EduConnect API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "educonnect")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("password_reset.timeout", "72h")
	v.SetDefault("cloudinary.folder", "educonnect")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("dashboard.cache_ttl", "1m")
	v.SetDefault("chat.sweep_interval", "1m")
	v.SetDefault("chat.send_buffer", 32)
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("mail.from", "EduConnect <no-reply@educonnect.local>")
	v.SetDefault("frontend.base_url", "http://localhost:3000")
	v.SetDefault("rate_limit.auth_max", 10)
	v.SetDefault("seed.enabled", false)

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		ChatSendBuffer:         v.GetInt("chat.send_buffer"),
		MailFrom:               v.GetString("mail.from"),
		FrontendBaseURL:        strings.TrimRight(v.GetString("frontend.base_url"), "/"),
		AuthRateLimit:          v.GetInt("rate_limit.auth_max"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}

	durations["jwt.ttl"] = &cfg.JWTTTL
	durations["password_reset.timeout"] = &cfg.PasswordResetTimeout
	durations["dashboard.cache_ttl"] = &cfg.DashboardCacheTTL
	durations["chat.sweep_interval"] = &cfg.ChatSweepInterval
	durations["notifications.keepalive"] = &cfg.NotificationKeepAlive

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		*target = parsed
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ChatSendBuffer <= 0 {
		cfg.ChatSendBuffer = 32
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}
