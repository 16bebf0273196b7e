package repository

import (
	"context"

	"github.com/shopcore/checkout-service/internal/domain"
)

// Store is the data access surface the checkout engine runs against. Inside
// a transaction every method observes that transaction's locks; the Lock*
// methods acquire FOR UPDATE row locks that last until commit or rollback.
type Store interface {
	// LockCartLines returns the user's cart lines ordered by ascending
	// product id, write-locked for the enclosing transaction.
	LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)

	// LockProducts write-locks the given product rows, acquired in ascending
	// id order, and returns them keyed by id. Ids absent from the result do
	// not exist.
	LockProducts(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error)

	// CreateOrder inserts the order header and fills in ID and CreatedAt.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// AddOrderLines inserts the order's lines with their frozen prices.
	AddOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error

	// DecrementStock subtracts quantity from a product's stock. It refuses
	// to drive stock negative; under correct locking that never triggers.
	DecrementStock(ctx context.Context, productID int64, quantity int) error

	// ClearCart deletes all of the user's cart lines.
	ClearCart(ctx context.Context, userID int64) error

	// GetOrder loads an order with its lines, or domain.ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

// TxManager runs a function inside one atomic unit of work. The Store handed
// to fn is bound to that transaction. If fn returns an error the transaction
// rolls back and the error is surfaced (lock-wait and deadlock failures are
// mapped to domain.ErrTransactionConflict); otherwise it commits.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
