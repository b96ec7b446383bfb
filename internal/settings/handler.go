package settings

import (
	"github.com/gofiber/fiber/v2"

	"github.com/khayson/barffoods-backend/internal/user"
)

// Handler lets operations staff read and adjust pricing configuration at
// runtime: delivery fees, the tax rate, discount rules.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/admin/settings/:key", h.getSetting)
	app.Put("/api/v1/admin/settings/:key", h.setSetting)
}

func (h *Handler) getSetting(c *fiber.Ctx) error {
	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	key := c.Params("key")
	value := h.service.Get(c.Context(), key, "")
	if value == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": ErrNotFound.Error()})
	}
	return c.JSON(fiber.Map{"key": key, "value": value})
}

type setSettingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) setSetting(c *fiber.Ctx) error {
	payload := new(setSettingRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "value is required"})
	}
	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	key := c.Params("key")
	if err := h.service.Set(c.Context(), key, payload.Value); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(fiber.Map{"key": key, "value": payload.Value})
}
