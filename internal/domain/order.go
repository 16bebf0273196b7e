package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. Checkout only ever writes OrderStatusPending; the
// remaining transitions are administrative and happen elsewhere.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// ShippingInfo carries the customer fields supplied with a checkout. They
// are validated upstream and persisted verbatim onto the order.
type ShippingInfo struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	AddressLine   string `json:"address_line"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
}

// OrderLine is one purchased line. FrozenPrice is the product's price at the
// moment the order was created; later catalog price changes never touch it.
type OrderLine struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	FrozenPrice decimal.Decimal `json:"price" db:"price"`
}

// Order is the order header with its lines attached.
type Order struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Status        string          `json:"status" db:"status"`
	Total         decimal.Decimal `json:"total" db:"total"`
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	CustomerPhone string          `json:"customer_phone" db:"customer_phone"`
	AddressLine   string          `json:"address_line" db:"address_line"`
	City          string          `json:"city" db:"city"`
	PostalCode    string          `json:"postal_code" db:"postal_code"`
	Lines         []OrderLine     `json:"lines"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// NewOrder materializes a pending order from a validated checkout snapshot.
// The total and the per-line frozen prices come from the locked product rows,
// never from a later read.
func NewOrder(userID int64, shipping ShippingInfo, snapshot []CheckoutLine) *Order {
	order := &Order{
		UserID:        userID,
		Status:        OrderStatusPending,
		Total:         CartTotal(snapshot),
		CustomerName:  shipping.CustomerName,
		CustomerPhone: shipping.CustomerPhone,
		AddressLine:   shipping.AddressLine,
		City:          shipping.City,
		PostalCode:    shipping.PostalCode,
		Lines:         make([]OrderLine, 0, len(snapshot)),
	}

	for _, l := range snapshot {
		order.Lines = append(order.Lines, OrderLine{
			ProductID:   l.Line.ProductID,
			Quantity:    l.Line.Quantity,
			FrozenPrice: l.Product.Price,
		})
	}

	return order
}
