package status

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/khayson/barffoods-backend/internal/order"
	"github.com/khayson/barffoods-backend/internal/user"
)

// Handler exposes the transition machine to operations staff and carrier
// webhooks.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Patch("/api/v1/admin/orders/:id<[0-9]+>/status", h.updateStatus)
	app.Get("/api/v1/admin/orders/statuses/:status/transitions", h.listTransitions)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	payload := new(updateStatusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "status is required"})
	}

	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.UpdateStatus(c.Context(), id, payload.Status, payload.Notes, user.GetActorFromCtx(c))
	if err != nil {
		switch {
		case IsTransitionError(err):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, order.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.JSON(ord)
}

func (h *Handler) listTransitions(c *fiber.Ctx) error {
	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	current := c.Params("status")
	return c.JSON(fiber.Map{"status": current, "allowedNext": AllowedNext(current)})
}
