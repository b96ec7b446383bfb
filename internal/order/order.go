package order

import "time"

// Order statuses. Creation produces pending_payment or confirmed; the
// forward fulfillment progression lives in internal/status, while
// cancelled/refunded are administrative overrides applied by the lifecycle
// service.
const (
	StatusPendingPayment = "pending_payment"
	StatusConfirmed      = "confirmed"
	StatusProcessing     = "processing"
	StatusShipped        = "shipped"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
	StatusRefunded       = "refunded"
)

// Order represents one checkout transaction. Monetary fields obey
// total = subtotal - discount + shipping + tax; orders are never physically
// deleted.
type Order struct {
	ID                int       `json:"orderId"`
	Code              string    `json:"code"`
	UserID            int       `json:"userId"`
	AddressID         int       `json:"addressId"`
	SlotID            *int      `json:"slotId,omitempty"`
	Subtotal          float64   `json:"subtotal"`
	Discount          float64   `json:"discount"`
	Tax               float64   `json:"tax"`
	ShippingCost      float64   `json:"shippingCost"`
	Total             float64   `json:"total"`
	Status            string    `json:"status"`
	PaymentMethod     string    `json:"paymentMethod,omitempty"`
	PaymentCaptureRef string    `json:"paymentCaptureRef,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	IdempotencyKey    string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Items             []Item    `json:"items,omitempty"`
}

// Item is one product line. UnitPrice is frozen at purchase time and never
// tracks later catalog price changes.
type Item struct {
	ID         int     `json:"itemId"`
	OrderID    int     `json:"orderId"`
	ProductID  int     `json:"productId"`
	StoreID    int     `json:"storeId,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	Status     string  `json:"status,omitempty"`
}

// StatusHistory is one append-only audit row; rows are never mutated or
// deleted.
type StatusHistory struct {
	ID        int       `json:"id"`
	OrderID   int       `json:"orderId"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
