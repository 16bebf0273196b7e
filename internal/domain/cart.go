package domain

import (
	"github.com/shopspring/decimal"
)

// Product is the catalog record as seen by checkout. Price and StockQuantity
// are shared mutable state and must only be read under a row lock while a
// checkout is in flight.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	IsActive      bool            `json:"is_active" db:"is_active"`
}

// CartLine is one (product, quantity) entry in a user's pending purchase
// list. Unique per (user_id, product_id), quantity >= 1.
type CartLine struct {
	UserID    int64 `json:"user_id" db:"user_id"`
	ProductID int64 `json:"product_id" db:"product_id"`
	Quantity  int   `json:"quantity" db:"quantity"`
}

// CheckoutLine pairs a cart line with the product row it references, both
// read under the same transaction's locks.
type CheckoutLine struct {
	Line    CartLine
	Product Product
}

// Subtotal is the locked price times the requested quantity.
func (l CheckoutLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Line.Quantity)))
}

// CartTotal sums the subtotals of a locked snapshot.
func CartTotal(lines []CheckoutLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
