package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
)

const (
	ProductCachePrefix     = "product:detail:"
	ProductListCachePrefix = "products:v:"
	CacheVersionKey        = "products:version"
)

// ProductList is the cached shape of one catalog page.
type ProductList struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// ProductCache caches product details and list pages in Redis. Every
// failure is a miss; the store stays the source of truth.
type ProductCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProductCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProductCache {
	return &ProductCache{redis: client, ttl: ttl, logger: logger}
}

func productKey(productID int64) string {
	return ProductCachePrefix + strconv.FormatInt(productID, 10)
}

func (c *ProductCache) GetProduct(ctx context.Context, productID int64) (*models.Product, bool) {
	data, err := c.redis.Get(ctx, productKey(productID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("product cache read failed", zap.Int64("product_id", productID), zap.Error(err))
		}
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Failed to unmarshal cached product", zap.Int64("product_id", productID), zap.Error(err))
		return nil, false
	}
	entry.Product.ImageKey = entry.ImageKey
	return &entry.Product, true
}

func (c *ProductCache) SetProduct(ctx context.Context, p *models.Product) {
	data, err := json.Marshal(cacheEntry{Product: *p, ImageKey: p.ImageKey})
	if err != nil {
		c.logger.Warn("Failed to marshal product for cache", zap.Int64("product_id", p.ProductID), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, productKey(p.ProductID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache product", zap.Int64("product_id", p.ProductID), zap.Error(err))
	}
}

// cacheEntry carries the image key, which Product hides from JSON.
type cacheEntry struct {
	Product  models.Product `json:"product"`
	ImageKey string         `json:"imageKey,omitempty"`
}

func (c *ProductCache) GetList(ctx context.Context, filter repository.ProductFilter, page, limit int) (*ProductList, bool) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, listKey(version, filter, page, limit)).Bytes()
	if err != nil {
		return nil, false
	}

	var list ProductList
	if err := json.Unmarshal(data, &list); err != nil {
		c.logger.Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return &list, true
}

func (c *ProductCache) SetList(ctx context.Context, filter repository.ProductFilter, page, limit int, list *ProductList) {
	version, err := c.version(ctx)
	if err != nil {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		c.logger.Warn("Failed to marshal product list for cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, listKey(version, filter, page, limit), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache product list", zap.Error(err))
	}
}

// InvalidateProduct drops the detail entry and bumps the list version so
// every cached page goes stale at once.
func (c *ProductCache) InvalidateProduct(ctx context.Context, productID int64) {
	if err := c.redis.Incr(ctx, CacheVersionKey).Err(); err != nil {
		c.logger.Error("CRITICAL: Failed to invalidate product list cache", zap.Int64("product_id", productID), zap.Error(err))
	}
	if err := c.redis.Del(ctx, productKey(productID)).Err(); err != nil {
		c.logger.Warn("Failed to delete product cache", zap.Int64("product_id", productID), zap.Error(err))
	}
}

func (c *ProductCache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil {
		return ver, nil
	}
	if errors.Is(err, redis.Nil) {
		if err := c.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.redis.Get(ctx, CacheVersionKey).Int64()
	}
	return 0, err
}

func listKey(version int64, f repository.ProductFilter, page, limit int) string {
	return fmt.Sprintf("%s%d:p:%d:l:%d:c:%s:sc:%s:b:%s:o:%s:in:%s:q:%s",
		ProductListCachePrefix, version, page, limit,
		f.Category, f.Subcategory, f.Brand, formatBool(f.Organic), formatBool(f.InStock), f.Search)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
