package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/events"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/integration"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
)

const reconcileMsg = "reconciliation required"

// OrderServiceDeps wires the order flow. Cache, Idempotency, Publisher, Jobs
// and Metrics are optional.
type OrderServiceDeps struct {
	Orders      repository.OrderRepository
	Products    repository.ProductRepository
	Sequence    repository.Sequence
	Gateway     integration.PaymentGateway
	Signer      *integration.Signer
	Publisher   events.Publisher
	Jobs        events.JobQueue
	Cache       ProductCache
	Idempotency IdempotencyStore
	Metrics     Metrics

	Currency       string
	GatewayTimeout time.Duration
}

// OrderService runs checkout, payment verification and cancellation.
type OrderService struct {
	orders      repository.OrderRepository
	products    repository.ProductRepository
	sequence    repository.Sequence
	gateway     integration.PaymentGateway
	signer      *integration.Signer
	publisher   events.Publisher
	jobs        events.JobQueue
	cache       ProductCache
	idempotency IdempotencyStore
	metrics     Metrics

	currency       string
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewOrderService(deps OrderServiceDeps, logger *zap.Logger) *OrderService {
	s := &OrderService{
		orders:         deps.Orders,
		products:       deps.Products,
		sequence:       deps.Sequence,
		gateway:        deps.Gateway,
		signer:         deps.Signer,
		publisher:      deps.Publisher,
		jobs:           deps.Jobs,
		cache:          deps.Cache,
		idempotency:    deps.Idempotency,
		metrics:        deps.Metrics,
		currency:       deps.Currency,
		gatewayTimeout: deps.GatewayTimeout,
		logger:         logger,
	}
	if s.publisher == nil {
		s.publisher = events.NoopPublisher{}
	}
	if s.jobs == nil {
		s.jobs = events.DisabledJobQueue{}
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.gatewayTimeout <= 0 {
		s.gatewayTimeout = 10 * time.Second
	}
	return s
}

type pricedLine struct {
	product *models.Product
	item    models.OrderItem
}

// CreateOrder prices the cart from the catalog, opens a gateway order and
// persists a pending local order referencing it.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest, actor Actor, idempotencyKey string) (*models.CreateOrderResponse, error) {
	// Keys are scoped per user; guest checkouts are never replayed.
	idemKey, fingerprint := "", ""
	if idempotencyKey != "" && s.idempotency != nil && actor.UserID != "" {
		idemKey = actor.UserID + ":" + idempotencyKey
		fingerprint = requestFingerprint(req)
		resp, err := s.replay(ctx, idemKey, fingerprint)
		if err != nil || resp != nil {
			return resp, err
		}
	}

	customer := models.Customer{
		Name:     strings.TrimSpace(req.Customer.Name),
		Phone:    strings.TrimSpace(req.Customer.Phone),
		AltPhone: strings.TrimSpace(req.Customer.AltPhone),
		Address:  strings.TrimSpace(req.Customer.Address),
	}
	if customer.Name == "" || customer.Phone == "" || customer.Address == "" {
		return nil, apperrors.Validation("missing customer fields")
	}
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("empty cart")
	}

	lines, total, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.item)
	}

	orderID, err := s.sequence.NextID(ctx, repository.SequenceOrders)
	if err != nil {
		return nil, apperrors.Persistence("failed to allocate order id", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	remote, err := s.gateway.CreateRemoteOrder(gwCtx, integration.RemoteOrderRequest{
		Amount:   total,
		Currency: s.currency,
		Receipt:  "order_" + strconv.FormatInt(orderID, 10),
		Notes:    map[string]string{"orderId": strconv.FormatInt(orderID, 10)},
	})
	cancel()
	if err != nil {
		s.record(ctx, aws_pkg.MetricGatewayErrors)
		return nil, apperrors.PaymentGateway(err)
	}

	order := &models.Order{
		OrderID:        orderID,
		UserID:         actor.UserID,
		Customer:       customer,
		Items:          items,
		TotalAmount:    total,
		Currency:       s.currency,
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentPending,
		GatewayOrderID: remote.ID,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error(reconcileMsg+": gateway order has no local order",
			zap.Int64("order_id", orderID),
			zap.String("gateway_order_id", remote.ID),
			zap.Error(err),
		)
		s.enqueue(ctx, models.ReconcileJob{
			Kind:           models.JobOrphanedGatewayOrder,
			OrderID:        orderID,
			GatewayOrderID: remote.ID,
			Reason:         err.Error(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("order already exists, retry with a new request")
		}
		return nil, apperrors.Persistence("failed to save order", err)
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", order.OrderID),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.Int64("amount", order.TotalAmount),
	)
	s.publish(ctx, models.EventOrderCreated, order)
	s.record(ctx, aws_pkg.MetricOrdersCreated)

	resp := &models.CreateOrderResponse{
		LocalOrderID:   order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
	}
	if idemKey != "" {
		s.remember(ctx, idemKey, fingerprint, resp)
	}
	return resp, nil
}

// priceItems resolves every line against the catalog and returns the order
// total. Quantities are validated before any lookup, existence is checked
// for all lines before stock, and repeated products are stock-checked on
// their summed quantity.
func (s *OrderService) priceItems(ctx context.Context, reqItems []models.LineItemRequest) ([]pricedLine, int64, error) {
	for _, it := range reqItems {
		if it.Quantity < 1 || it.Quantity > models.MaxLineQuantity {
			return nil, 0, apperrors.Validation("invalid quantity")
		}
	}

	lines := make([]pricedLine, 0, len(reqItems))
	byID := make(map[int64]*models.Product, len(reqItems))
	wanted := make(map[int64]int, len(reqItems))
	var total int64

	for _, it := range reqItems {
		p, ok := byID[it.ProductID]
		if !ok {
			found, err := s.products.FindByID(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, 0, apperrors.NotFound(fmt.Sprintf("product %d not found", it.ProductID))
				}
				return nil, 0, apperrors.Persistence("failed to load product", err)
			}
			p = found
			byID[it.ProductID] = p
		}

		weight := strings.TrimSpace(it.Weight)
		unitPrice, ok := p.PriceFor(weight)
		if !ok {
			return nil, 0, apperrors.Validation("unknown pack size")
		}
		lineTotal, ok := models.LineAmount(unitPrice, it.Quantity)
		if !ok {
			return nil, 0, apperrors.Validation("order amount too large")
		}
		if total, ok = models.AddAmount(total, lineTotal); !ok {
			return nil, 0, apperrors.Validation("order amount too large")
		}

		wanted[it.ProductID] += it.Quantity
		lines = append(lines, pricedLine{
			product: p,
			item: models.OrderItem{
				ProductID: p.ProductID,
				Name:      p.Name,
				Weight:    weight,
				UnitPrice: unitPrice,
				Quantity:  it.Quantity,
				LineTotal: lineTotal,
			},
		})
	}

	for _, l := range lines {
		if l.product.Stock < wanted[l.product.ProductID] {
			return nil, 0, apperrors.InsufficientStock(l.product.ProductID)
		}
	}
	return lines, total, nil
}

// idempotencyRecord is the stored outcome of a keyed CreateOrder.
type idempotencyRecord struct {
	Fingerprint string                     `json:"fingerprint"`
	Response    models.CreateOrderResponse `json:"response"`
}

// requestFingerprint hashes the normalized checkout payload.
func requestFingerprint(req models.CreateOrderRequest) string {
	norm := models.CreateOrderRequest{
		Customer: models.Customer{
			Name:     strings.TrimSpace(req.Customer.Name),
			Phone:    strings.TrimSpace(req.Customer.Phone),
			AltPhone: strings.TrimSpace(req.Customer.AltPhone),
			Address:  strings.TrimSpace(req.Customer.Address),
		},
		Items: make([]models.LineItemRequest, len(req.Items)),
	}
	for i, it := range req.Items {
		it.Weight = strings.TrimSpace(it.Weight)
		norm.Items[i] = it
	}
	data, _ := json.Marshal(norm)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// replay returns the stored response for key, nil when there is none, or a
// conflict when the key was first used with a different payload.
func (s *OrderService) replay(ctx context.Context, key, fingerprint string) (*models.CreateOrderResponse, error) {
	data, found, err := s.idempotency.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Idempotency record unreadable", zap.Error(err))
		return nil, nil
	}
	if rec.Fingerprint != fingerprint {
		return nil, apperrors.Conflict("idempotency key already used with a different request")
	}
	return &rec.Response, nil
}

func (s *OrderService) remember(ctx context.Context, key, fingerprint string, resp *models.CreateOrderResponse) {
	data, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Response: *resp})
	if err != nil {
		return
	}
	if err := s.idempotency.Save(ctx, key, data); err != nil {
		s.logger.Warn("Failed to store idempotency record", zap.Int64("order_id", resp.LocalOrderID), zap.Error(err))
	}
}

// VerifyPayment checks the client-side checkout signature and, when it
// matches, moves the order to paid and applies its stock decrement once.
func (s *OrderService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	gid := strings.TrimSpace(req.GatewayOrderID)
	pid := strings.TrimSpace(req.GatewayPaymentID)
	sig := strings.TrimSpace(req.Signature)
	if gid == "" || pid == "" || sig == "" {
		return nil, apperrors.Validation("gatewayOrderId, gatewayPaymentId and signature are required")
	}

	order, err := s.findByGatewayOrderID(ctx, gid)
	if err != nil {
		return nil, err
	}

	if !s.signer.Verify(gid, pid, sig) {
		if err := s.failPayment(ctx, order, pid, &sig); err != nil {
			return nil, err
		}
		s.logger.Warn("Payment signature mismatch",
			zap.Int64("order_id", order.OrderID),
			zap.String("gateway_order_id", gid),
		)
		return nil, apperrors.InvalidSignature()
	}

	if err := s.confirmPayment(ctx, order, pid, &sig, true); err != nil {
		return nil, err
	}
	return &models.VerifyPaymentResponse{Verified: true}, nil
}

// ConfirmPaymentFromWebhook applies a gateway-authenticated capture.
func (s *OrderService) ConfirmPaymentFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) error {
	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	err = s.confirmPayment(ctx, order, paymentID, nil, true)
	if err != nil && errors.Is(err, apperrors.ErrConflict) {
		s.logger.Warn("Captured payment for an order that can no longer be paid",
			zap.Int64("order_id", order.OrderID),
			zap.String("gateway_order_id", gatewayOrderID),
		)
		return nil
	}
	return err
}

// FailPaymentFromWebhook applies a gateway-authenticated payment failure.
func (s *OrderService) FailPaymentFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) error {
	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	return s.failPayment(ctx, order, paymentID, nil)
}

// confirmPayment runs the conditional paid transition. Exactly one caller
// wins it; the others see the order already successful and return nil.
func (s *OrderService) confirmPayment(ctx context.Context, order *models.Order, paymentID string, signature *string, requeue bool) error {
	applied, err := s.orders.MarkPaymentSucceeded(ctx, order.GatewayOrderID, paymentID, signature)
	if err != nil {
		s.logger.Error(reconcileMsg+": verified payment not recorded",
			zap.Int64("order_id", order.OrderID),
			zap.String("gateway_order_id", order.GatewayOrderID),
			zap.Error(err),
		)
		if requeue {
			job := models.ReconcileJob{
				Kind:           models.JobConfirmPayment,
				OrderID:        order.OrderID,
				GatewayOrderID: order.GatewayOrderID,
				PaymentID:      paymentID,
				Reason:         err.Error(),
			}
			if signature != nil {
				job.Signature = *signature
			}
			s.enqueue(ctx, job)
		}
		return apperrors.Persistence("failed to record payment", err)
	}

	if !applied {
		current, err := s.findByGatewayOrderID(ctx, order.GatewayOrderID)
		if err != nil {
			return err
		}
		if current.PaymentStatus == models.PaymentSuccessful {
			return nil
		}
		return apperrors.Conflict("payment can no longer be verified")
	}

	order.PaymentStatus = models.PaymentSuccessful
	order.Status = models.StatusProcessing
	order.GatewayPaymentID = &paymentID
	order.StockAdjusted = true

	s.logger.Info("Payment verified",
		zap.Int64("order_id", order.OrderID),
		zap.String("gateway_order_id", order.GatewayOrderID),
	)
	s.record(ctx, aws_pkg.MetricPaymentSucceeded)
	s.publish(ctx, models.EventPaymentVerified, order)

	if err := s.decrementStock(ctx, order); err != nil {
		s.releaseStockClaim(ctx, order, err)
	}
	return nil
}

func (s *OrderService) failPayment(ctx context.Context, order *models.Order, paymentID string, signature *string) error {
	if !order.PaymentStatus.Payable() {
		return nil
	}
	applied, err := s.orders.MarkPaymentFailed(ctx, order.GatewayOrderID, paymentID, signature)
	if err != nil {
		s.logger.Error("Failed to record failed payment",
			zap.Int64("order_id", order.OrderID),
			zap.String("gateway_order_id", order.GatewayOrderID),
			zap.Error(err),
		)
		return apperrors.Persistence("failed to record payment", err)
	}
	if applied {
		order.PaymentStatus = models.PaymentFailed
		s.record(ctx, aws_pkg.MetricPaymentFailed)
		s.publish(ctx, models.EventPaymentFailed, order)
	}
	return nil
}

// decrementStock applies every line with the guarded decrement. On any
// failure the lines already applied are restored before returning.
func (s *OrderService) decrementStock(ctx context.Context, order *models.Order) error {
	for i, it := range order.Items {
		if err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			for _, done := range order.Items[:i] {
				if rerr := s.products.IncrementStock(ctx, done.ProductID, done.Quantity); rerr != nil {
					s.logger.Error(reconcileMsg+": stock rollback failed",
						zap.Int64("order_id", order.OrderID),
						zap.Int64("product_id", done.ProductID),
						zap.Error(rerr),
					)
				}
			}
			return fmt.Errorf("decrement product %d: %w", it.ProductID, err)
		}
	}
	for _, it := range order.Items {
		s.cache.InvalidateProduct(ctx, it.ProductID)
	}
	return nil
}

// releaseStockClaim hands a paid order whose stock could not be applied to
// the reconciler.
func (s *OrderService) releaseStockClaim(ctx context.Context, order *models.Order, cause error) {
	s.logger.Error(reconcileMsg+": paid order stock not applied",
		zap.Int64("order_id", order.OrderID),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.Error(cause),
	)
	if _, err := s.orders.SetStockAdjusted(ctx, order.OrderID, false); err != nil {
		s.logger.Error(reconcileMsg+": failed to release stock claim",
			zap.Int64("order_id", order.OrderID),
			zap.Error(err),
		)
		return
	}
	order.StockAdjusted = false
	s.enqueue(ctx, models.ReconcileJob{
		Kind:           models.JobApplyStock,
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		Reason:         cause.Error(),
	})
}

// CancelOrder cancels a non-terminal order. A successful payment becomes
// refunded and applied stock is given back.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, actor Actor) (*models.Order, error) {
	order, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order) {
		return nil, apperrors.Forbidden("not allowed to cancel this order")
	}

	before, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotCancellable):
			return nil, apperrors.Validation("order cannot be cancelled")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("failed to cancel order", err)
	}

	if before.StockAdjusted {
		for _, it := range before.Items {
			if err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				s.logger.Error(reconcileMsg+": stock not restored on cancel",
					zap.Int64("order_id", orderID),
					zap.Int64("product_id", it.ProductID),
					zap.Int("quantity", it.Quantity),
					zap.Error(err),
				)
				continue
			}
			s.cache.InvalidateProduct(ctx, it.ProductID)
		}
	}

	after, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("payment_status", string(after.PaymentStatus)),
	)
	s.record(ctx, aws_pkg.MetricOrdersCancelled)
	s.publish(ctx, models.EventOrderCancelled, after)
	return after, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64, actor Actor) (*models.Order, error) {
	order, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order) {
		return nil, apperrors.Forbidden("not allowed to view this order")
	}
	return order, nil
}

// ListOrders returns every order to an admin and only their own to anyone else.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int, actor Actor) ([]models.Order, models.PaginationMeta, error) {
	if !actor.IsAdmin() {
		if actor.UserID == "" {
			return nil, models.PaginationMeta{}, apperrors.Unauthorized("authentication required")
		}
		filter.UserID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.PaginationMeta{}, apperrors.Validation("invalid status value")
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, models.PaginationMeta{}, apperrors.Validation("invalid paymentStatus value")
	}

	orders, total, err := s.orders.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, models.PaginationMeta{}, apperrors.Persistence("failed to list orders", err)
	}
	return orders, models.NewPaginationMeta(page, limit, total), nil
}

// UpdateOrderStatus is the admin override. It bypasses the state machine.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, req models.UpdateOrderStatusRequest) (*models.Order, error) {
	if req.Status == nil && req.PaymentStatus == nil {
		return nil, apperrors.Validation("status or paymentStatus is required")
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, repository.StatusUpdate{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidStatus):
			return nil, apperrors.Validation("invalid status value")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("failed to update order", err)
	}

	s.logger.Info("Order status overridden",
		zap.Int64("order_id", orderID),
		zap.String("status", string(order.Status)),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("order not found")
		}
		return apperrors.Persistence("failed to delete order", err)
	}
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))
	return nil
}

func (s *OrderService) findByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("failed to load order", err)
	}
	return order, nil
}

func (s *OrderService) findByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	order, err := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("failed to load order", err)
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if err := s.publisher.Publish(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event", eventType),
			zap.Int64("order_id", order.OrderID),
			zap.Error(err),
		)
	}
}

func (s *OrderService) enqueue(ctx context.Context, job models.ReconcileJob) {
	job.CreatedAt = time.Now().UTC()
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error(reconcileMsg+": reconcile job not queued",
			zap.String("kind", job.Kind),
			zap.Int64("order_id", job.OrderID),
			zap.String("gateway_order_id", job.GatewayOrderID),
			zap.Error(err),
		)
		return
	}
	s.record(ctx, aws_pkg.MetricReconcileEnqueued)
}

func (s *OrderService) record(ctx context.Context, metric string) {
	if err := s.metrics.RecordCount(ctx, metric, nil); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
