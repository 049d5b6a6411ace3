package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/events"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
)

// Poller delivers queue messages to a handler until ctx ends.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// Reconciler finishes work a request could not: recording a verified
// payment, applying paid stock, and flagging orphaned gateway orders.
type Reconciler struct {
	orders *OrderService
	logger *zap.Logger
}

func NewReconciler(orders *OrderService, logger *zap.Logger) *Reconciler {
	return &Reconciler{orders: orders, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, poller Poller) error {
	r.logger.Info("Reconciler started")
	err := poller.StartPolling(ctx, r.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleMessage returns nil when the message may be deleted.
func (r *Reconciler) HandleMessage(ctx context.Context, body string) error {
	job, err := events.DecodeJob(body)
	if err != nil {
		r.logger.Error("Dropping unreadable reconcile message", zap.Error(err))
		return nil
	}

	if err := r.Handle(ctx, job); err != nil {
		r.logger.Warn("Reconcile job failed, will retry",
			zap.String("kind", job.Kind),
			zap.Int64("order_id", job.OrderID),
			zap.Error(err),
		)
		return err
	}
	r.orders.record(ctx, aws_pkg.MetricReconcileProcessed)
	return nil
}

func (r *Reconciler) Handle(ctx context.Context, job models.ReconcileJob) error {
	switch job.Kind {
	case models.JobConfirmPayment:
		return r.confirmPayment(ctx, job)
	case models.JobApplyStock:
		return r.applyStock(ctx, job)
	case models.JobOrphanedGatewayOrder:
		r.logger.Error(reconcileMsg+": orphaned gateway order needs manual review",
			zap.Int64("order_id", job.OrderID),
			zap.String("gateway_order_id", job.GatewayOrderID),
			zap.String("reason", job.Reason),
		)
		return nil
	default:
		r.logger.Warn("Unknown reconcile job kind", zap.String("kind", job.Kind))
		return nil
	}
}

func (r *Reconciler) confirmPayment(ctx context.Context, job models.ReconcileJob) error {
	order, err := r.orders.findByGatewayOrderID(ctx, job.GatewayOrderID)
	if err != nil {
		return err
	}

	var sig *string
	if job.Signature != "" {
		if !r.orders.signer.Verify(job.GatewayOrderID, job.PaymentID, job.Signature) {
			r.logger.Error("Dropping confirm_payment job with a bad signature", zap.Int64("order_id", order.OrderID))
			return nil
		}
		sig = &job.Signature
	}

	return r.orders.confirmPayment(ctx, order, job.PaymentID, sig, false)
}

// applyStock claims the order's stock flag, decrements, and releases the
// claim again on failure so the next delivery can retry.
func (r *Reconciler) applyStock(ctx context.Context, job models.ReconcileJob) error {
	order, err := r.orders.findByID(ctx, job.OrderID)
	if err != nil {
		return err
	}

	claimed, err := r.orders.orders.SetStockAdjusted(ctx, order.OrderID, true)
	if err != nil {
		return fmt.Errorf("claim stock for order %d: %w", order.OrderID, err)
	}
	if !claimed {
		r.logger.Info("Stock already applied or order no longer paid", zap.Int64("order_id", order.OrderID))
		return nil
	}

	if err := r.orders.decrementStock(ctx, order); err != nil {
		if _, rerr := r.orders.orders.SetStockAdjusted(ctx, order.OrderID, false); rerr != nil {
			r.logger.Error(reconcileMsg+": failed to release stock claim", zap.Int64("order_id", order.OrderID), zap.Error(rerr))
		}
		return err
	}

	r.logger.Info("Stock applied by reconciler", zap.Int64("order_id", order.OrderID))
	return nil
}
