package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/service"
	"github.com/noah-isme/educonnect-api/internal/utils"
)

// FeedbackHandler serves course feedback.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs a feedback handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// RegisterCourse binds feedback routes under /courses.
func (h *FeedbackHandler) RegisterCourse(router fiber.Router) {
	router.Post("/:id<int>/feedback", middleware.WithAuth(h.submit, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	router.Get("/:id<int>/feedback", h.listForCourse)
}

// Register binds the /feedback overview.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Get("/", h.overview)
}

func (h *FeedbackHandler) submit(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.FeedbackCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	feedback, err := h.service.Submit(middleware.RequestContext(c), actorFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback submitted", feedback)
}

func (h *FeedbackHandler) listForCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	feedback, err := h.service.ListForCourse(middleware.RequestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback", feedback)
}

func (h *FeedbackHandler) overview(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination parameters")
	}

	overview, err := h.service.Overview(middleware.RequestContext(c), actorFromContext(c), page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback overview", overview)
}
