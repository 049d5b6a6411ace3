package repository

import (
	"context"
	"time"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, o *models.Order) error {
	if err := validateOrder(o); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return mapGormError(err)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&o).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &o, nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context, filter OrderFilter, page, limit int) ([]models.Order, int64, error) {
	page, limit = normalizePage(page, limit)

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) MarkPaymentSucceeded(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("gateway_order_id = ? AND status = ? AND payment_status IN ?", gatewayOrderID, models.StatusPending, models.PayableStatuses).
		Updates(map[string]interface{}{
			"payment_status":     models.PaymentSuccessful,
			"status":             models.StatusProcessing,
			"gateway_payment_id": paymentID,
			"gateway_signature":  signature,
			"stock_adjusted":     true,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormOrderRepository) MarkPaymentFailed(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("gateway_order_id = ? AND payment_status IN ?", gatewayOrderID, models.PayableStatuses).
		Updates(map[string]interface{}{
			"payment_status":     models.PaymentFailed,
			"gateway_payment_id": paymentID,
			"gateway_signature":  signature,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormOrderRepository) SetStockAdjusted(ctx context.Context, orderID int64, value bool) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ? AND stock_adjusted = ?", orderID, !value)
	if value {
		query = query.Where("payment_status = ?", models.PaymentSuccessful)
	}
	result := query.Updates(map[string]interface{}{
		"stock_adjusted": value,
		"updated_at":     time.Now().UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Cancel locks the row, checks the terminal set and applies the cancellation
// in one transaction.
func (r *GormOrderRepository) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	var before models.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&before).Error; err != nil {
			return mapGormError(err)
		}
		if !before.Status.Cancellable() {
			return ErrNotCancellable
		}

		updates := map[string]interface{}{
			"status":         models.StatusCancelled,
			"stock_adjusted": false,
			"updated_at":     time.Now().UTC(),
		}
		if before.PaymentStatus == models.PaymentSuccessful {
			updates["payment_status"] = models.PaymentRefunded
		}
		return tx.Model(&models.Order{}).Where("order_id = ?", orderID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &before, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID int64, update StatusUpdate) (*models.Order, error) {
	if err := validateStatusUpdate(update); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.PaymentStatus != nil {
		updates["payment_status"] = *update.PaymentStatus
	}

	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("order_id = ?", orderID).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, orderID)
}

// Delete is a hard delete.
func (r *GormOrderRepository) Delete(ctx context.Context, orderID int64) error {
	result := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
