package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/internal/service"
	"github.com/noah-isme/educonnect-api/internal/utils"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// Domain errors and the responses they produce. An empty message echoes the error text.
var errorMappings = []errorMapping{
	{service.ErrFeedbackAlreadySubmitted, fiber.StatusConflict, "You have already submitted feedback for this course."},
	{service.ErrStudentBlocked, fiber.StatusConflict, "Unblock the student before re-enrolling."},
	{service.ErrRoomNameTaken, fiber.StatusConflict, ""},
	{service.ErrUsernameTaken, fiber.StatusConflict, ""},
	{service.ErrEmailTaken, fiber.StatusConflict, ""},

	{service.ErrCourseNotFound, fiber.StatusNotFound, ""},
	{service.ErrMaterialNotFound, fiber.StatusNotFound, ""},
	{service.ErrEnrollmentNotFound, fiber.StatusNotFound, ""},
	{service.ErrStudentNotFound, fiber.StatusNotFound, ""},
	{service.ErrUserNotFound, fiber.StatusNotFound, ""},
	{service.ErrRoomNotFound, fiber.StatusNotFound, ""},
	{service.ErrNotificationNotFound, fiber.StatusNotFound, ""},
	{service.ErrStatusUpdateNotFound, fiber.StatusNotFound, ""},

	{service.ErrCourseForbidden, fiber.StatusForbidden, ""},
	{service.ErrTeacherRoleRequired, fiber.StatusForbidden, ""},
	{service.ErrTeacherCannotEnroll, fiber.StatusForbidden, ""},
	{service.ErrFeedbackNotEnrolled, fiber.StatusForbidden, ""},
	{service.ErrRoomForbidden, fiber.StatusForbidden, ""},
	{service.ErrSeedDisabled, fiber.StatusForbidden, "seeding disabled"},
	{service.ErrSeedUnauthorized, fiber.StatusForbidden, "invalid token"},

	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, ""},

	{service.ErrPasswordMismatch, fiber.StatusBadRequest, ""},
	{service.ErrIncorrectPassword, fiber.StatusBadRequest, ""},
	{service.ErrInvalidResetToken, fiber.StatusBadRequest, ""},
	{service.ErrTokenNotRevocable, fiber.StatusBadRequest, ""},
	{service.ErrRoomExpiryInPast, fiber.StatusBadRequest, ""},
	{service.ErrChatMessageEmpty, fiber.StatusBadRequest, "message is empty"},
	{service.ErrStatusUpdateEmpty, fiber.StatusBadRequest, ""},
	{service.ErrNotificationEmpty, fiber.StatusBadRequest, ""},

	{service.ErrUploadMissing, fiber.StatusBadRequest, ""},
	{service.ErrUploadTypeNotAllowed, fiber.StatusBadRequest, ""},
	{service.ErrUploadTooLarge, fiber.StatusRequestEntityTooLarge, ""},
	{service.ErrUploadScanFailed, fiber.StatusUnprocessableEntity, ""},
	{service.ErrUploadsDisabled, fiber.StatusServiceUnavailable, ""},
}

// respondError maps a service error onto an HTTP response. Unknown errors are
// logged with the request correlation id and answered with a generic 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	}

	var accessErr *service.RoomAccessError
	if errors.As(err, &accessErr) {
		return utils.Fail(c, fiber.StatusForbidden, accessErr.Message, fiber.Map{"room": accessErr.Room})
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.err) {
			message := mapping.message
			if message == "" {
				message = mapping.err.Error()
			}
			return utils.SendError(c, mapping.status, message)
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(key)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func pageFromQuery(c *fiber.Ctx) (repository.Page, error) {
	number, err := parseQueryInt(c, "page")
	if err != nil {
		return repository.Page{}, err
	}
	size, err := parseQueryInt(c, "page_size")
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Page{Number: number, Size: size}.Normalize(), nil
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	id, _ := c.Locals(middleware.LocalUserID).(uint)
	role, _ := c.Locals(middleware.LocalUserRole).(string)
	return service.Actor{ID: id, Role: role}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
