package domain

import (
	"errors"
	"fmt"
)

// Checkout failure taxonomy. Every one of these aborts the whole
// transaction; nothing is partially committed.
var (
	// ErrEmptyCart means the user has no cart lines to convert.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrProductNotFound means a cart line references a product that no
	// longer exists. Data-integrity failure, not a user mistake.
	ErrProductNotFound = errors.New("product referenced by cart no longer exists")

	// ErrTransactionConflict covers lock-wait timeouts and deadlocks.
	// Callers should retry the whole checkout.
	ErrTransactionConflict = errors.New("transaction conflict, retry the checkout")

	// ErrOrderNotFound is returned by order reads.
	ErrOrderNotFound = errors.New("order not found")
)

// InsufficientStockError names the product whose available stock does not
// cover the requested quantity.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
