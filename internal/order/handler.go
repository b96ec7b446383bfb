package order

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/khayson/barffoods-backend/internal/cart"
	"github.com/khayson/barffoods-backend/internal/inventory"
	"github.com/khayson/barffoods-backend/internal/pricing"
	"github.com/khayson/barffoods-backend/internal/user"
)

// Handler exposes the lifecycle operations over HTTP. The admin routes are
// used by operations staff; customer routes act on the authenticated user.
type Handler struct {
	service *Service
	ledger  *inventory.Ledger
}

func NewHandler(s *Service, l *inventory.Ledger) *Handler {
	return &Handler{service: s, ledger: l}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/orders", h.createOrder)
	app.Get("/api/v1/orders", h.getOrders)
	app.Get("/api/v1/orders/:id<[0-9]+>", h.getOrder)
	app.Get("/api/v1/orders/:id<[0-9]+>/history", h.getOrderHistory)
	app.Post("/api/v1/orders/quote", h.quoteOrder)
	app.Post("/api/v1/orders/preflight", h.preflightOrder)
	app.Post("/api/v1/admin/orders/:id<[0-9]+>/cancel", h.cancelOrder)
	app.Post("/api/v1/admin/orders/:id<[0-9]+>/refund", h.refundOrder)
}

type createOrderRequest struct {
	Items             []cart.Item `json:"items"`
	AddressID         int         `json:"addressId"`
	SlotID            *int        `json:"slotId,omitempty"`
	StoreID           int         `json:"storeId,omitempty"`
	PaymentMethod     string      `json:"paymentMethod"`
	PaymentCaptureRef string      `json:"paymentCaptureRef,omitempty"`
	ShippingCost      *float64    `json:"shippingCost,omitempty"`
	Notes             string      `json:"notes,omitempty"`
	IdempotencyKey    string      `json:"idempotencyKey,omitempty"`
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	payload := new(createOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if len(payload.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "cart cannot be empty"})
	}
	if err := cart.Validate(payload.Items); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ShippingCost != nil && *payload.ShippingCost < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "shipping cost must be non-negative"})
	}

	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	key := payload.IdempotencyKey
	if hdr := c.Get("Idempotency-Key"); hdr != "" {
		key = hdr
	}

	created, err := h.service.CreateOrder(c.Context(), CheckoutInput{
		UserID:            userID,
		AddressID:         payload.AddressID,
		SlotID:            payload.SlotID,
		StoreID:           payload.StoreID,
		Items:             payload.Items,
		PaymentMethod:     payload.PaymentMethod,
		PaymentCaptureRef: payload.PaymentCaptureRef,
		ShippingCost:      payload.ShippingCost,
		Notes:             payload.Notes,
		IdempotencyKey:    key,
	})
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.service.ListByUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	if ord.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": ErrNotFound.Error()})
	}
	return c.JSON(ord)
}

func (h *Handler) getOrderHistory(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	if ord.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": ErrNotFound.Error()})
	}

	history, err := h.service.History(c.Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(history)
}

type quoteRequest struct {
	Items   []cart.Item `json:"items"`
	StoreID int         `json:"storeId,omitempty"`
}

func (h *Handler) quoteOrder(c *fiber.Ctx) error {
	payload := new(quoteRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	totals, err := h.service.Quote(c.Context(), userID, payload.StoreID, payload.Items)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(totals)
}

func (h *Handler) preflightOrder(c *fiber.Ctx) error {
	payload := new(quoteRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	shortages, err := h.ledger.CheckBulk(c.Context(), payload.Items)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{"ok": len(shortages) == 0, "shortages": shortages})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	payload := new(cancelRequest)
	_ = c.BodyParser(payload) // body is optional

	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.CancelOrder(c.Context(), id, payload.Reason, user.GetActorFromCtx(c))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(ord)
}

type refundRequest struct {
	Amount *float64 `json:"amount,omitempty"`
}

func (h *Handler) refundOrder(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	payload := new(refundRequest)
	_ = c.BodyParser(payload)

	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.service.RefundOrder(c.Context(), id, payload.Amount)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(ord)
}

// renderError maps the service error taxonomy onto HTTP statuses. Business
// conflicts carry enough detail for the client to react programmatically.
func (h *Handler) renderError(c *fiber.Ctx, err error) error {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":   stockErr.Error(),
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	}

	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) && cancelErr.Current != "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": cancelErr.Error(),
			"status":  cancelErr.Current,
		})
	}

	var itemErr *cart.InvalidItemError
	var cartErr *pricing.InvalidCartError
	var qtyErr *inventory.InvalidQuantityError
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	case errors.As(err, &itemErr), errors.As(err, &cartErr), errors.As(err, &qtyErr),
		errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoCaptureRef), errors.Is(err, ErrInvalidRefundAmount),
		errors.Is(err, inventory.ErrNotFound), errors.Is(err, ErrInactiveProduct):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
}
