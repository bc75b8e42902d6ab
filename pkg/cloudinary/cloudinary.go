// Package cloudinary stores course materials and profile photos in Cloudinary.
package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultUploadTimeout = 60 * time.Second

// ErrMissingCredentials is returned when any of the account credentials is empty.
var ErrMissingCredentials = errors.New("cloudinary credentials must be provided")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	Timeout   time.Duration
}

// Storage uploads files to a Cloudinary folder.
type Storage struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New constructs a Cloudinary-backed storage.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("initialise cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}

	return &Storage{
		client:  cld,
		folder:  strings.Trim(cfg.Folder, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns its secure URL.
// Non-image files are stored as raw resources so PDFs and documents keep their bytes intact.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       PublicID(name),
		ResourceType:   ResourceType(name),
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
		Tags:           []string{"educonnect"},
	})
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// ResourceType picks the Cloudinary resource type for a file name.
func ResourceType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	default:
		return "raw"
	}
}

// PublicID derives a collision-free public id from a file name.
// Raw resources keep their extension, since Cloudinary serves them verbatim.
func PublicID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	id := fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	if ResourceType(name) == "raw" && ext != "" {
		id += ext
	}
	return id
}
