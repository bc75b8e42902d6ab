package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/service"
	"github.com/noah-isme/educonnect-api/internal/utils"
)

// MaterialHandler serves course material uploads and listings.
type MaterialHandler struct {
	service service.MaterialService
	logger  zerolog.Logger
}

// NewMaterialHandler constructs a material handler.
func NewMaterialHandler(service service.MaterialService, logger zerolog.Logger) *MaterialHandler {
	return &MaterialHandler{
		service: service,
		logger:  logger.With().Str("component", "material_handler").Logger(),
	}
}

// Register binds material routes under /courses.
func (h *MaterialHandler) Register(router fiber.Router) {
	router.Get("/:id<int>/materials", h.list)
	router.Post("/:id<int>/materials", h.create)
	router.Delete("/materials/:materialId<int>", h.delete)
}

func (h *MaterialHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	materials, err := h.service.List(middleware.RequestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "materials", materials)
}

func (h *MaterialHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUploadMissing.Error())
	}
	payload := dto.MaterialCreateRequest{Title: c.FormValue("title")}

	material, err := h.service.Add(middleware.RequestContext(c), actorFromContext(c), courseID, payload, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "material added", material)
}

func (h *MaterialHandler) delete(c *fiber.Ctx) error {
	materialID, err := parseUintParam(c, "materialId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid material id")
	}

	if err := h.service.Delete(middleware.RequestContext(c), actorFromContext(c), materialID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "material deleted", nil)
}
