package models

import (
	"time"
)

// PackSize is one pack-size tier, e.g. 250g at its own price.
type PackSize struct {
	Weight string `json:"weight" bson:"weight" binding:"required"`
	Price  int64  `json:"price" bson:"price" binding:"gte=0"`
}

// Product is a catalog entry. All prices are in minor currency units.
type Product struct {
	ID               string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id" bson:"_id"`
	ProductID        int64      `gorm:"uniqueIndex;not null" json:"productId" bson:"productId"`
	Name             string     `gorm:"type:varchar(200);not null" json:"name" bson:"name"`
	Description      string     `gorm:"type:text" json:"description" bson:"description"`
	Category         string     `gorm:"type:varchar(100);index" json:"category" bson:"category"`
	Subcategory      string     `gorm:"type:varchar(100)" json:"subcategory,omitempty" bson:"subcategory,omitempty"`
	Brand            string     `gorm:"type:varchar(100)" json:"brand,omitempty" bson:"brand,omitempty"`
	BasePrice        int64      `gorm:"not null" json:"basePrice" bson:"basePrice"`
	SellingPrice     int64      `gorm:"not null" json:"sellingPrice" bson:"sellingPrice"`
	DiscountPercent  float64    `gorm:"not null" json:"discountPercent" bson:"discountPercent"`
	PackSizes        []PackSize `gorm:"serializer:json;type:jsonb" json:"packSizes" bson:"packSizes"`
	Stock            int        `gorm:"not null;check:chk_products_stock,stock >= 0" json:"stock" bson:"stock"`
	Organic          bool       `gorm:"not null" json:"organic" bson:"organic"`
	ImageKey         string     `gorm:"type:varchar(255)" json:"-" bson:"imageKey,omitempty"`
	ImageContentType string     `gorm:"type:varchar(100)" json:"imageContentType,omitempty" bson:"imageContentType,omitempty"`
	Rating           float64    `gorm:"not null" json:"rating" bson:"rating"`
	CreatedAt        time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updatedAt"`
	DeletedAt        *time.Time `gorm:"index" json:"-" bson:"deletedAt,omitempty"`
}

// HasImage reports whether an image blob has been uploaded.
func (p *Product) HasImage() bool { return p.ImageKey != "" }

// PriceFor resolves the unit price for a line item. An empty weight means the
// flat selling price; otherwise the matching pack-size tier is used.
func (p *Product) PriceFor(weight string) (int64, bool) {
	if weight == "" {
		return p.SellingPrice, true
	}
	for _, ps := range p.PackSizes {
		if ps.Weight == weight {
			return ps.Price, true
		}
	}
	return 0, false
}
