package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/service"
	"github.com/noah-isme/educonnect-api/internal/utils"
)

// EnrollmentHandler serves self-enrolment and teacher roster management.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register binds enrollment routes under /courses.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("/:id<int>/enroll", h.selfEnroll)
	router.Get("/:id<int>/users/search", teacherOnly(h.search))

	roster := router.Group("/:id<int>/students/:studentId<int>")
	roster.Post("/enroll", teacherOnly(h.enroll))
	roster.Post("/remove", teacherOnly(h.rosterAction("student removed", h.service.Remove)))
	roster.Post("/block", teacherOnly(h.rosterAction("student blocked", h.service.Block)))
	roster.Post("/unblock", teacherOnly(h.rosterAction("student unblocked", h.service.Unblock)))
}

func teacherOnly(next fiber.Handler) fiber.Handler {
	return middleware.WithAuth(next, middleware.AuthOptions{Role: middleware.AuthRoleTeacher})
}

func (h *EnrollmentHandler) selfEnroll(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	result, err := h.service.SelfEnroll(middleware.RequestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return enrollmentResult(c, result)
}

func (h *EnrollmentHandler) search(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	results, err := h.service.SearchUsers(middleware.RequestContext(c), actorFromContext(c), courseID, strings.TrimSpace(c.Query("q")))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "users", results)
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	courseID, studentID, err := rosterParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.EnrollStudent(middleware.RequestContext(c), actorFromContext(c), courseID, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return enrollmentResult(c, result)
}

// enrollmentResult answers 201 only when a new enrollment row was created.
func enrollmentResult(c *fiber.Ctx, result dto.EnrollmentActionResponse) error {
	switch result.Status {
	case dto.EnrollmentStatusEnrolled:
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", result)
	case dto.EnrollmentStatusReEnrolled:
		return utils.SendSuccess(c, "re-enrolled", result)
	default:
		return utils.SendSuccess(c, "already enrolled", result)
	}
}

type rosterFunc func(ctx context.Context, actor service.Actor, courseID, studentID uint) (dto.EnrollmentResponse, error)

func (h *EnrollmentHandler) rosterAction(message string, action rosterFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, studentID, err := rosterParams(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		enrollment, err := action(middleware.RequestContext(c), actorFromContext(c), courseID, studentID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, message, enrollment)
	}
}

func rosterParams(c *fiber.Ctx) (uint, uint, error) {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, errors.New("invalid course id")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return 0, 0, errors.New("invalid student id")
	}
	return courseID, studentID, nil
}
