package services

import (
	"context"
	"strings"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/cache"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
)

const RoleAdmin = "admin"

// Actor is the caller as established by the identity middleware. The zero
// value is an anonymous guest.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return strings.EqualFold(a.Role, RoleAdmin) }

func (a Actor) canAccess(o *models.Order) bool {
	return a.IsAdmin() || o.OwnedBy(a.UserID)
}

// ProductCache is the read-through cache in front of the catalog store.
type ProductCache interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, bool)
	SetProduct(ctx context.Context, p *models.Product)
	GetList(ctx context.Context, filter repository.ProductFilter, page, limit int) (*cache.ProductList, bool)
	SetList(ctx context.Context, filter repository.ProductFilter, page, limit int, list *cache.ProductList)
	InvalidateProduct(ctx context.Context, productID int64)
}

// IdempotencyStore records CreateOrder responses per Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Metrics is satisfied by the CloudWatch metrics client.
type Metrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

type noopCache struct{}

func (noopCache) GetProduct(context.Context, int64) (*models.Product, bool) { return nil, false }
func (noopCache) SetProduct(context.Context, *models.Product)               {}
func (noopCache) GetList(context.Context, repository.ProductFilter, int, int) (*cache.ProductList, bool) {
	return nil, false
}
func (noopCache) SetList(context.Context, repository.ProductFilter, int, int, *cache.ProductList) {}
func (noopCache) InvalidateProduct(context.Context, int64)                                       {}

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
