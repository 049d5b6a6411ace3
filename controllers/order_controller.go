package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/services"
)

const IdempotencyHeader = "Idempotency-Key"

// OrderService is implemented by *services.OrderService.
type OrderService interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest, actor services.Actor, idempotencyKey string) (*models.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
	GetOrder(ctx context.Context, orderID int64, actor services.Actor) (*models.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int, actor services.Actor) ([]models.Order, models.PaginationMeta, error)
	CancelOrder(ctx context.Context, orderID int64, actor services.Actor) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, req models.UpdateOrderStatusRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

type OrderController struct {
	orders OrderService
}

func NewOrderController(orders OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrder handles POST /orders.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	resp, err := oc.orders.CreateOrder(c.Request.Context(), req, actorFrom(c), c.GetHeader(IdempotencyHeader))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// VerifyPayment handles POST /orders/verify. A signature mismatch is a 400
// in the verify response shape rather than the generic error body.
func (oc *OrderController) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	resp, err := oc.orders.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, models.VerifyPaymentResponse{Verified: false, Reason: "invalid signature"})
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /orders?page=&limit=&status=&paymentStatus=.
func (oc *OrderController) ListOrders(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	filter := repository.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
	}

	orders, meta, err := oc.orders.ListOrders(c.Request.Context(), filter, page, limit, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": meta})
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := oc.orders.CancelOrder(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles the admin PATCH /orders/:id.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	order, err := oc.orders.UpdateOrderStatus(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := oc.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
}
