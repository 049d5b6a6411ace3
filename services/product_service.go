package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/cache"
	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/storage"
)

// ProductService manages the catalog. Reads go through the cache and every
// write invalidates it.
type ProductService struct {
	repo     repository.ProductRepository
	sequence repository.Sequence
	images   storage.ImageStore
	cache    ProductCache
	metrics  Metrics
	logger   *zap.Logger
}

// NewProductService creates a ProductService. images and productCache may be nil.
func NewProductService(
	repo repository.ProductRepository,
	sequence repository.Sequence,
	images storage.ImageStore,
	productCache ProductCache,
	metrics Metrics,
	logger *zap.Logger,
) *ProductService {
	if productCache == nil {
		productCache = noopCache{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ProductService{
		repo:     repo,
		sequence: sequence,
		images:   images,
		cache:    productCache,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	p := &models.Product{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Category:        strings.TrimSpace(req.Category),
		Subcategory:     req.Subcategory,
		Brand:           req.Brand,
		BasePrice:       req.BasePrice,
		DiscountPercent: req.DiscountPercent,
		PackSizes:       req.PackSizes,
		Stock:           req.Stock,
		Organic:         req.Organic,
		Rating:          req.Rating,
	}
	if req.SellingPrice != nil {
		p.SellingPrice = *req.SellingPrice
	} else {
		p.SellingPrice = models.SellingPriceFromDiscount(p.BasePrice, p.DiscountPercent)
	}
	if p.PackSizes == nil {
		p.PackSizes = []models.PackSize{}
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}

	id, err := s.sequence.NextID(ctx, repository.SequenceProducts)
	if err != nil {
		return nil, apperrors.Persistence("failed to allocate product id", err)
	}
	p.ProductID = id

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("product already exists")
		}
		return nil, apperrors.Persistence("failed to create product", err)
	}

	s.cache.InvalidateProduct(ctx, p.ProductID)
	s.logger.Info("Product created", zap.Int64("product_id", p.ProductID), zap.String("name", p.Name))
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	if p, ok := s.cache.GetProduct(ctx, productID); ok {
		s.record(ctx, aws_pkg.MetricCacheHits)
		return p, nil
	}
	s.record(ctx, aws_pkg.MetricCacheMisses)

	p, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
		}
		return nil, apperrors.Persistence("failed to load product", err)
	}
	s.cache.SetProduct(ctx, p)
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter, page, limit int) ([]models.Product, models.PaginationMeta, error) {
	if list, ok := s.cache.GetList(ctx, filter, page, limit); ok {
		s.record(ctx, aws_pkg.MetricCacheHits)
		return list.Products, models.NewPaginationMeta(page, limit, list.Total), nil
	}
	s.record(ctx, aws_pkg.MetricCacheMisses)

	products, total, err := s.repo.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, models.PaginationMeta{}, apperrors.Persistence("failed to list products", err)
	}
	s.cache.SetList(ctx, filter, page, limit, &cache.ProductList{Products: products, Total: total})
	return products, models.NewPaginationMeta(page, limit, total), nil
}

// UpdateProduct applies a partial update. A new base price or discount
// without an explicit selling price recomputes the selling price.
func (s *ProductService) UpdateProduct(ctx context.Context, productID int64, req models.UpdateProductRequest) (*models.Product, error) {
	p, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
		}
		return nil, apperrors.Persistence("failed to load product", err)
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.Subcategory != nil {
		p.Subcategory = *req.Subcategory
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	if req.DiscountPercent != nil {
		p.DiscountPercent = *req.DiscountPercent
	}
	switch {
	case req.SellingPrice != nil:
		p.SellingPrice = *req.SellingPrice
	case req.BasePrice != nil || req.DiscountPercent != nil:
		p.SellingPrice = models.SellingPriceFromDiscount(p.BasePrice, p.DiscountPercent)
	}
	if req.PackSizes != nil {
		p.PackSizes = *req.PackSizes
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Organic != nil {
		p.Organic = *req.Organic
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}

	// Update leaves stock untouched; an explicit stock is its own write.
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, updateError(productID, err)
	}
	if req.Stock != nil {
		if err := s.repo.SetStock(ctx, productID, *req.Stock); err != nil {
			return nil, updateError(productID, err)
		}
	}
	s.cache.InvalidateProduct(ctx, productID)
	s.logger.Info("Product updated", zap.Int64("product_id", productID))

	if fresh, err := s.repo.FindByID(ctx, productID); err == nil {
		return fresh, nil
	}
	return p, nil
}

func updateError(productID int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
	}
	return apperrors.Persistence("failed to update product", err)
}

func (s *ProductService) DeleteProduct(ctx context.Context, productID int64) error {
	if err := s.repo.Delete(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
		}
		return apperrors.Persistence("failed to delete product", err)
	}
	s.cache.InvalidateProduct(ctx, productID)
	s.logger.Info("Product deleted", zap.Int64("product_id", productID))
	return nil
}

// UploadImage stores a new image blob and points the product at it. The
// previous blob is removed afterwards.
func (s *ProductService) UploadImage(ctx context.Context, productID int64, data []byte, declaredType string) (*models.Product, error) {
	if s.images == nil {
		return nil, apperrors.Unavailable("image storage is not configured")
	}

	contentType, err := storage.DetectImageType(data, declaredType)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	p, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
		}
		return nil, apperrors.Persistence("failed to load product", err)
	}

	key := storage.ImageKey(productID)
	if err := s.images.Put(ctx, key, data, contentType); err != nil {
		return nil, apperrors.Persistence("failed to store image", err)
	}
	if err := s.repo.SetImage(ctx, productID, key, contentType); err != nil {
		_ = s.images.Delete(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %d not found", productID))
		}
		return nil, apperrors.Persistence("failed to save image reference", err)
	}

	if old := p.ImageKey; old != "" && old != key {
		if err := s.images.Delete(ctx, old); err != nil {
			s.logger.Warn("Failed to delete previous product image", zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	p.ImageKey = key
	p.ImageContentType = contentType
	s.cache.InvalidateProduct(ctx, productID)
	s.logger.Info("Product image uploaded", zap.Int64("product_id", productID), zap.Int("bytes", len(data)))
	return p, nil
}

// GetImage returns the image bytes and content type.
func (s *ProductService) GetImage(ctx context.Context, productID int64) ([]byte, string, error) {
	if s.images == nil {
		return nil, "", apperrors.Unavailable("image storage is not configured")
	}

	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, "", err
	}
	if !p.HasImage() {
		return nil, "", apperrors.NotFound("product has no image")
	}

	data, contentType, err := s.images.Get(ctx, p.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) {
			return nil, "", apperrors.NotFound("product has no image")
		}
		return nil, "", apperrors.Persistence("failed to load image", err)
	}
	if contentType == "" {
		contentType = p.ImageContentType
	}
	return data, contentType, nil
}

// ImageDataURI renders the product image as a data URI.
func (s *ProductService) ImageDataURI(ctx context.Context, productID int64) (string, error) {
	data, contentType, err := s.GetImage(ctx, productID)
	if err != nil {
		return "", err
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *ProductService) record(ctx context.Context, metric string) {
	if err := s.metrics.RecordCount(ctx, metric, nil); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return apperrors.Validation("name is required")
	case p.Category == "":
		return apperrors.Validation("category is required")
	case p.BasePrice < 0 || p.SellingPrice < 0:
		return apperrors.Validation("prices must not be negative")
	case p.DiscountPercent < 0 || p.DiscountPercent > 100:
		return apperrors.Validation("discountPercent must be between 0 and 100")
	case p.Stock < 0:
		return apperrors.Validation("stock must not be negative")
	case p.Rating < 0 || p.Rating > 5:
		return apperrors.Validation("rating must be between 0 and 5")
	}

	seen := make(map[string]bool, len(p.PackSizes))
	for _, ps := range p.PackSizes {
		w := strings.TrimSpace(ps.Weight)
		if w == "" {
			return apperrors.Validation("pack size weight is required")
		}
		if ps.Price < 0 {
			return apperrors.Validation("pack size price must not be negative")
		}
		if seen[w] {
			return apperrors.Validation(fmt.Sprintf("duplicate pack size %q", w))
		}
		seen[w] = true
	}
	return nil
}
