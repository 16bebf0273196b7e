package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopcore/checkout-service/internal/domain"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same store works inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on top of a pgx Querier.
type PostgresStore struct {
	q Querier
}

func NewPostgresStore(q Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// LockCartLines locks the acting user's cart rows so a duplicated concurrent
// checkout from the same user serializes here instead of interleaving.
func (s *PostgresStore) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	rows, err := s.q.Query(ctx, `
		SELECT user_id, product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// LockProducts acquires the product row locks in ascending id order. Every
// checkout locks in this order, which keeps overlapping checkouts from
// forming deadlock cycles.
func (s *PostgresStore) LockProducts(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, price, stock_quantity, is_active
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]domain.Product, len(productIDs))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, total, customer_name, customer_phone, address_line, city, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, order.UserID, order.Status, order.Total, order.CustomerName,
		order.CustomerPhone, order.AddressLine, order.City, order.PostalCode,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	for i := range lines {
		lines[i].OrderID = orderID
		err := s.q.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, orderID, lines[i].ProductID, lines[i].Quantity, lines[i].FrozenPrice).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line for product %d: %w", lines[i].ProductID, err)
		}
	}
	return nil
}

// DecrementStock keeps the stock_quantity >= 0 invariant in the statement
// itself. The guard only fires if validation and decrement ever stop sharing
// one lock scope, which would be a bug, so it surfaces as a plain error.
func (s *PostgresStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_quantity >= $2
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("stock underflow guard tripped for product %d", productID)
	}
	return nil
}

func (s *PostgresStore) ClearCart(ctx context.Context, userID int64) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order domain.Order
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, status, total, customer_name, customer_phone, address_line, city, postal_code, created_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&order.ID, &order.UserID, &order.Status, &order.Total,
		&order.CustomerName, &order.CustomerPhone, &order.AddressLine,
		&order.City, &order.PostalCode, &order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.FrozenPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		order.Lines = append(order.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &order, nil
}
