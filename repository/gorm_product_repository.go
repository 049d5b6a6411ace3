package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return mapGormError(err)
	}
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, productID int64) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND deleted_at IS NULL", productID).
		First(&p).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &p, nil
}

func (r *GormProductRepository) FindAll(ctx context.Context, filter ProductFilter, page, limit int) ([]models.Product, int64, error) {
	page, limit = normalizePage(page, limit)

	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("deleted_at IS NULL")
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Subcategory != "" {
		query = query.Where("subcategory = ?", filter.Subcategory)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.Organic != nil {
		query = query.Where("organic = ?", *filter.Organic)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			query = query.Where("stock > 0")
		} else {
			query = query.Where("stock = 0")
		}
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+escapeLike(filter.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := query.
		Order("product_id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update writes the editable catalog fields of p. Stock is left alone; it
// only moves through SetStock and the atomic deltas.
func (r *GormProductRepository) Update(ctx context.Context, p *models.Product) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND deleted_at IS NULL", p.ProductID).
		Select("name", "description", "category", "subcategory", "brand", "base_price", "selling_price",
			"discount_percent", "pack_sizes", "organic", "rating", "updated_at").
		Updates(p)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes; historical orders keep referencing the id.
func (r *GormProductRepository) Delete(ctx context.Context, productID int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND deleted_at IS NULL", productID).
		UpdateColumn("deleted_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock atomically decrements stock, refusing to go below zero.
func (r *GormProductRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		exists, err := r.exists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStock atomically adds quantity back to stock.
func (r *GormProductRepository) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStock overwrites stock with an absolute admin value.
func (r *GormProductRepository) SetStock(ctx context.Context, productID int64, stock int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND deleted_at IS NULL", productID).
		UpdateColumns(map[string]interface{}{
			"stock":      stock,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) SetImage(ctx context.Context, productID int64, key, contentType string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND deleted_at IS NULL", productID).
		Updates(map[string]interface{}{
			"image_key":          key,
			"image_content_type": contentType,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) exists(ctx context.Context, productID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("product_id = ?", productID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func mapGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateMessage(err):
		return ErrDuplicate
	}
	return err
}

func isDuplicateMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
