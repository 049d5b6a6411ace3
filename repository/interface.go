package repository

import (
	"context"
	"errors"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate key")
	ErrNotCancellable    = errors.New("order is in a terminal status")
	ErrInvalidStatus     = errors.New("invalid status value")
)

const (
	SequenceProducts = "products"
	SequenceOrders   = "orders"
)

// Sequence hands out monotonically increasing numeric ids per name.
type Sequence interface {
	NextID(ctx context.Context, name string) (int64, error)
}

type ProductFilter struct {
	Category    string
	Subcategory string
	Brand       string
	Organic     *bool
	InStock     *bool
	Search      string
}

// ProductRepository is the catalog store. DecrementStock must be a single
// conditional update guarded by stock >= quantity. Update never writes
// stock; SetStock is the only absolute write.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, productID int64) (*models.Product, error)
	FindAll(ctx context.Context, filter ProductFilter, page, limit int) ([]models.Product, int64, error)
	Update(ctx context.Context, p *models.Product) error
	SetStock(ctx context.Context, productID int64, stock int) error
	Delete(ctx context.Context, productID int64) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	IncrementStock(ctx context.Context, productID int64, quantity int) error
	SetImage(ctx context.Context, productID int64, key, contentType string) error
}

type OrderFilter struct {
	UserID        string
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
}

// StatusUpdate is an admin override; nil fields are left unchanged.
type StatusUpdate struct {
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
}

// OrderRepository is the order store. Every payment transition is a
// conditional update that reports whether it applied.
type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	FindAll(ctx context.Context, filter OrderFilter, page, limit int) ([]models.Order, int64, error)

	// MarkPaymentSucceeded moves a pending, payable order to
	// successful/processing and claims its stock adjustment.
	MarkPaymentSucceeded(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error)
	// MarkPaymentFailed moves a payable order to failed.
	MarkPaymentFailed(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error)
	// SetStockAdjusted flips the stock flag from !value to value. For
	// value=true the order must have a successful payment.
	SetStockAdjusted(ctx context.Context, orderID int64, value bool) (bool, error)
	// Cancel cancels a non-terminal order, refunding a successful payment,
	// and returns the order as it was before the change.
	Cancel(ctx context.Context, orderID int64) (*models.Order, error)

	UpdateStatus(ctx context.Context, orderID int64, update StatusUpdate) (*models.Order, error)
	Delete(ctx context.Context, orderID int64) error
}

func validateStatusUpdate(update StatusUpdate) error {
	if update.Status != nil && !update.Status.Valid() {
		return ErrInvalidStatus
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func validateOrder(o *models.Order) error {
	if !o.Status.Valid() || !o.PaymentStatus.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}
