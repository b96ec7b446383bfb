package order

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupApp() *fiber.App {
	a := fiber.New()
	h := NewHandler(NewService(ServiceDeps{}), nil)
	h.RegisterProtectedRoutes(a)
	return a
}

func TestCreateOrder_RejectsMalformedBody(t *testing.T) {
	a := setupApp()

	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
}

func TestCreateOrder_RejectsEmptyCart(t *testing.T) {
	a := setupApp()

	b, _ := json.Marshal(map[string]any{"items": []any{}, "addressId": 1})
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
}

func TestCreateOrder_RejectsInvalidItem(t *testing.T) {
	a := setupApp()

	b, _ := json.Marshal(map[string]any{
		"items":     []map[string]any{{"productId": 1, "quantity": 0}},
		"addressId": 1,
	})
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
}

func TestCreateOrder_RejectsNegativeShipping(t *testing.T) {
	a := setupApp()

	body, _ := json.Marshal(map[string]any{
		"items":        []map[string]any{{"productId": 1, "quantity": 1}},
		"addressId":    1,
		"shippingCost": -1.0,
	})
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
}

func TestCreateOrder_UnauthenticatedIs401(t *testing.T) {
	a := setupApp()

	b, _ := json.Marshal(map[string]any{
		"items":     []map[string]any{{"productId": 1, "quantity": 1}},
		"addressId": 1,
	})
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.StatusCode)
	}
}

func TestCancelOrder_RejectsBadID(t *testing.T) {
	a := setupApp()

	req := httptest.NewRequest("POST", "/api/v1/admin/orders/abc/cancel", nil)
	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	// the route constraint rejects non-numeric ids before the handler runs
	if res.StatusCode != fiber.StatusNotFound && res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 404 or 400 got %d", res.StatusCode)
	}
}
