package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopcore/checkout-service/internal/domain"
)

// CheckoutUseCase is what the HTTP layer needs from the checkout engine.
type CheckoutUseCase interface {
	PlaceOrder(ctx context.Context, userID int64, shipping domain.ShippingInfo) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

// PlaceOrderRequest carries the shipping/customer fields. Field shapes are
// validated by the upstream gateway; binding here only rejects garbage.
type PlaceOrderRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerPhone string `json:"customer_phone"`
	AddressLine   string `json:"address_line"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
}

type OrderHandler struct {
	useCase CheckoutUseCase
	logger  *zap.Logger
}

func NewOrderHandler(useCase CheckoutUseCase, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// PlaceOrder converts the authenticated user's cart into an order. The
// authenticated user id is injected by the gateway in X-User-ID.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
		return
	}

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shipping := domain.ShippingInfo{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		AddressLine:   req.AddressLine,
		City:          req.City,
		PostalCode:    req.PostalCode,
	}

	order, err := h.useCase.PlaceOrder(c.Request.Context(), userID, shipping)
	if err != nil {
		h.respondCheckoutError(c, userID, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.useCase.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.logger.Error("Failed to load order", zap.Int64("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "checkout-service",
	})
}

// respondCheckoutError maps the checkout failure taxonomy onto transport
// codes. The engine itself only ever returns typed failures.
func (h *OrderHandler) respondCheckoutError(c *gin.Context, userID int64, err error) {
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cart is empty"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "insufficient stock",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusConflict, gin.H{"error": "a product in the cart is no longer available"})
	case errors.Is(err, domain.ErrTransactionConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout is contended, please retry"})
	default:
		h.logger.Error("Checkout failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order"})
	}
}
