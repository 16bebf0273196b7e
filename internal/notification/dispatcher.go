package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderConfirmation is the outbound request asking the notification service
// to send a confirmation for an order. EventID lets the consumer deduplicate
// under at-least-once delivery.
type OrderConfirmation struct {
	EventID string `json:"event_id"`
	OrderID int64  `json:"order_id"`
}

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, confirmation OrderConfirmation) error
}

// Dispatcher queues confirmation requests enqueued after a checkout commits
// and delivers them from its own worker with bounded retries. A delivery
// failure never reaches the checkout caller; after the last attempt it is
// logged and the request is dropped.
type Dispatcher struct {
	sender      Sender
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	tasks       chan OrderConfirmation
}

func NewDispatcher(sender Sender, logger *zap.Logger, maxAttempts int, backoff time.Duration, queueSize int) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		tasks:       make(chan OrderConfirmation, queueSize),
	}
}

// Enqueue hands a committed order id to the worker. It never blocks the
// checkout path; if the queue is full the request is dropped and logged.
func (d *Dispatcher) Enqueue(orderID int64) {
	confirmation := OrderConfirmation{
		EventID: uuid.New().String(),
		OrderID: orderID,
	}
	select {
	case d.tasks <- confirmation:
	default:
		d.logger.Error("Notification queue full, dropping confirmation",
			zap.Int64("order_id", orderID),
			zap.String("event_id", confirmation.EventID))
	}
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case confirmation := <-d.tasks:
			d.deliver(ctx, confirmation)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, confirmation OrderConfirmation) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := d.sender.Send(ctx, confirmation)
		if err == nil {
			d.logger.Info("Order confirmation dispatched",
				zap.Int64("order_id", confirmation.OrderID),
				zap.String("event_id", confirmation.EventID),
				zap.Int("attempt", attempt))
			return
		}

		d.logger.Warn("Order confirmation attempt failed",
			zap.Int64("order_id", confirmation.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-time.After(d.backoff):
		case <-ctx.Done():
			return
		}
	}

	d.logger.Error("Giving up on order confirmation",
		zap.Int64("order_id", confirmation.OrderID),
		zap.String("event_id", confirmation.EventID),
		zap.Int("attempts", d.maxAttempts))
}
