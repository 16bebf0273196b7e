package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shopcore/checkout-service/internal/domain"
	"github.com/shopcore/checkout-service/internal/repository"
)

// Notifier receives the id of a committed order. Delivery is asynchronous
// and owned entirely by the implementation; checkout never waits on it.
type Notifier interface {
	Enqueue(orderID int64)
}

// CheckoutService converts a user's cart into an order inside one atomic
// unit of work, guaranteeing stock is never oversold under concurrent
// checkouts.
type CheckoutService struct {
	tx       repository.TxManager
	store    repository.Store
	notifier Notifier
	logger   *zap.Logger
	tracer   trace.Tracer

	ordersPlaced metric.Int64Counter
}

func NewCheckoutService(
	tx repository.TxManager,
	store repository.Store,
	notifier Notifier,
	logger *zap.Logger,
	tracer trace.Tracer,
) *CheckoutService {
	ordersPlaced, err := otel.Meter("checkout-service").Int64Counter(
		"checkout.orders_placed",
		metric.WithDescription("Number of successfully placed orders"),
	)
	if err != nil {
		logger.Warn("Failed to create orders counter", zap.Error(err))
	}

	return &CheckoutService{
		tx:           tx,
		store:        store,
		notifier:     notifier,
		logger:       logger,
		tracer:       tracer,
		ordersPlaced: ordersPlaced,
	}
}

// PlaceOrder runs the whole checkout: lock the cart snapshot, validate stock
// against the locked product rows, materialize the order, decrement stock
// and clear the cart. All of it commits together or none of it does. The
// confirmation notification is enqueued only after a successful commit.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64, shipping domain.ShippingInfo) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.place_order")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID))

	var order *domain.Order
	err := s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
		lines, err := store.LockCartLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			// No product lock has been taken yet at this point.
			return domain.ErrEmptyCart
		}

		products, err := store.LockProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}

		snapshot, err := buildSnapshot(lines, products)
		if err != nil {
			return err
		}
		if err := validateStock(snapshot); err != nil {
			return err
		}

		order = domain.NewOrder(userID, shipping, snapshot)
		if err := store.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := store.AddOrderLines(ctx, order.ID, order.Lines); err != nil {
			return err
		}
		for _, l := range snapshot {
			if err := store.DecrementStock(ctx, l.Product.ID, l.Line.Quantity); err != nil {
				return err
			}
		}
		return store.ClearCart(ctx, userID)
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Checkout failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))
	if s.ordersPlaced != nil {
		s.ordersPlaced.Add(ctx, 1)
	}

	// The transaction is committed; from here on nothing can fail the
	// checkout. Delivery retries belong to the notifier's worker.
	s.notifier.Enqueue(order.ID)

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.String()),
		zap.Int("lines", len(order.Lines)))

	return order, nil
}

// GetOrder loads a placed order with its lines.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func productIDs(lines []domain.CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// buildSnapshot pairs each cart line with its locked product row. A cart
// line whose product vanished is a data-integrity failure.
func buildSnapshot(lines []domain.CartLine, products map[int64]domain.Product) ([]domain.CheckoutLine, error) {
	snapshot := make([]domain.CheckoutLine, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart line for product %d: %w", line.ProductID, domain.ErrProductNotFound)
		}
		snapshot = append(snapshot, domain.CheckoutLine{Line: line, Product: product})
	}
	return snapshot, nil
}

// validateStock confirms every line is covered by the stock read under the
// row locks. Deactivated products count as having nothing available. The
// first violation aborts the whole checkout.
func validateStock(snapshot []domain.CheckoutLine) error {
	for _, l := range snapshot {
		available := l.Product.StockQuantity
		if !l.Product.IsActive {
			available = 0
		}
		if available < l.Line.Quantity {
			return &domain.InsufficientStockError{
				ProductID: l.Product.ID,
				Requested: l.Line.Quantity,
				Available: available,
			}
		}
	}
	return nil
}
