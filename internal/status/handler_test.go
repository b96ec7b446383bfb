package status

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupApp() *fiber.App {
	a := fiber.New()
	h := NewHandler(NewService(nil, nil, nil, nil, nil))
	h.RegisterProtectedRoutes(a)
	return a
}

func TestUpdateStatus_RequiresStatus(t *testing.T) {
	a := setupApp()

	b, _ := json.Marshal(map[string]any{"notes": "missing the status"})
	req := httptest.NewRequest("PATCH", "/api/v1/admin/orders/42/status", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
}

func TestUpdateStatus_UnauthenticatedIs401(t *testing.T) {
	a := setupApp()

	b, _ := json.Marshal(map[string]any{"status": "processing"})
	req := httptest.NewRequest("PATCH", "/api/v1/admin/orders/42/status", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.StatusCode)
	}
}

func TestListTransitions_UnauthenticatedIs401(t *testing.T) {
	a := setupApp()

	req := httptest.NewRequest("GET", "/api/v1/admin/orders/statuses/confirmed/transitions", nil)
	res, err := a.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.StatusCode)
	}
}
