package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/observability"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

var (
	// ErrUploadMissing indicates no file was attached.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the extension or detected content type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
	// ErrUploadsDisabled indicates no storage backend is configured.
	ErrUploadsDisabled = errors.New("file uploads are not configured")
)

// Accepted extensions per upload purpose, mapped to the content types the bytes may sniff as.
var uploadRules = map[string]map[string][]string{
	models.UploadPurposeMaterial: {
		".pdf":  {"application/pdf"},
		".txt":  {"text/plain"},
		".doc":  {"application/msword", "application/x-ole-storage"},
		".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
		".png":  {"image/png"},
		".jpg":  {"image/jpeg"},
		".jpeg": {"image/jpeg"},
	},
	models.UploadPurposeProfilePhoto: {
		".png":  {"image/png"},
		".jpg":  {"image/jpeg"},
		".jpeg": {"image/jpeg"},
		".gif":  {"image/gif"},
		".webp": {"image/webp"},
	},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates files and pushes them to storage.
type UploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, purpose string, userID uint) (dto.UploadResponse, error)
}

type uploadService struct {
	storage FileStorage
	repo    repository.UploadRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service. storage may be nil when uploads are disabled.
func NewUploadService(storage FileStorage, repo repository.UploadRepository, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/educonnect-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, file *multipart.FileHeader, purpose string, userID uint) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.purpose", purpose),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	}()
	observability.UploadRequests().WithLabelValues(purpose).Inc()

	reject := func(reason string, err error) (dto.UploadResponse, error) {
		observability.UploadRejected().WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return dto.UploadResponse{}, err
	}

	if s.storage == nil {
		return reject("disabled", ErrUploadsDisabled)
	}
	if file == nil {
		return reject("missing", ErrUploadMissing)
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	rules, ok := uploadRules[purpose]
	if !ok {
		return reject("purpose", fmt.Errorf("unknown upload purpose %q", purpose))
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowedMimes, ok := rules[ext]
	if !ok {
		return reject("type", ErrUploadTypeNotAllowed)
	}

	if file.Size > s.maxSize {
		return reject("size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return reject("open", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return reject("read", err)
	}
	if int64(buf.Len()) > s.maxSize {
		return reject("size", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !mimeMatches(detected, allowedMimes) {
		return reject("type", ErrUploadTypeNotAllowed)
	}

	if err := s.scan(buf.Bytes(), ext); err != nil {
		return reject("scan", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(sum[:])

	if existing, err := s.repo.FindByChecksum(ctx, checksum, purpose); err == nil {
		s.logger.Debug().Str("checksum", checksum).Str("purpose", purpose).Msg("reusing stored upload")
		span.SetStatus(codes.Ok, "deduplicated")
		return uploadResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return reject("lookup", err)
	}

	sanitizedName := sanitizeFileName(file.Filename)
	url, err := s.storage.Upload(ctx, sanitizedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return reject("storage", err)
	}

	owner := userID
	record := models.UploadRecord{
		UserID:    &owner,
		Purpose:   purpose,
		FileName:  sanitizedName,
		URL:       url,
		MimeType:  detected.String(),
		SizeBytes: int64(buf.Len()),
		Checksum:  checksum,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		return reject("persistence", err)
	}

	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().
		Uint("user_id", userID).
		Str("purpose", purpose).
		Str("file_name", sanitizedName).
		Int64("size_bytes", record.SizeBytes).
		Msg("file uploaded")

	return uploadResponse(record), nil
}

func uploadResponse(record models.UploadRecord) dto.UploadResponse {
	return dto.UploadResponse{
		URL:       record.URL,
		SizeBytes: record.SizeBytes,
		MimeType:  record.MimeType,
		Checksum:  record.Checksum,
		FileName:  record.FileName,
	}
}

// scan rejects zip bombs disguised as docx files.
func (s *uploadService) scan(payload []byte, ext string) error {
	if ext != ".docx" {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return fmt.Errorf("archive uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
}

// mimeMatches walks the detected type and its parents looking for an accepted type.
func mimeMatches(detected *mimetype.MIME, allowed []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, candidate := range allowed {
			if m.Is(candidate) {
				return true
			}
		}
	}
	return false
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
