package models

import (
	"math"
	"time"
)

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 10000

type Customer struct {
	Name     string `gorm:"type:varchar(120);not null" json:"name" bson:"name"`
	Phone    string `gorm:"type:varchar(20);not null" json:"phone" bson:"phone"`
	AltPhone string `gorm:"type:varchar(20)" json:"altPhone,omitempty" bson:"altPhone,omitempty"`
	Address  string `gorm:"type:text;not null" json:"address" bson:"address"`
}

// OrderItem snapshots the product at order time. Later catalog edits never
// change it.
type OrderItem struct {
	ProductID int64  `json:"productId" bson:"productId"`
	Name      string `json:"name" bson:"name"`
	Weight    string `json:"weight,omitempty" bson:"weight,omitempty"`
	UnitPrice int64  `json:"unitPrice" bson:"unitPrice"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	LineTotal int64  `json:"lineTotal" bson:"lineTotal"`
}

// Order is a checkout with its embedded line items. Amounts are in minor units.
type Order struct {
	ID               string        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id" bson:"_id"`
	OrderID          int64         `gorm:"uniqueIndex;not null" json:"orderId" bson:"orderId"`
	UserID           string        `gorm:"type:varchar(64);index" json:"userId,omitempty" bson:"userId,omitempty"`
	Customer         Customer      `gorm:"embedded;embeddedPrefix:customer_" json:"customer" bson:"customer"`
	Items            []OrderItem   `gorm:"serializer:json;type:jsonb;not null" json:"items" bson:"items"`
	TotalAmount      int64         `gorm:"not null" json:"totalAmount" bson:"totalAmount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency" bson:"currency"`
	Status           OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status" bson:"status"`
	PaymentStatus    PaymentStatus `gorm:"type:varchar(20);not null;index" json:"paymentStatus" bson:"paymentStatus"`
	GatewayOrderID   string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"gatewayOrderId" bson:"gatewayOrderId"`
	GatewayPaymentID *string       `gorm:"type:varchar(64)" json:"gatewayPaymentId" bson:"gatewayPaymentId"`
	GatewaySignature *string       `gorm:"type:varchar(128)" json:"gatewaySignature" bson:"gatewaySignature"`
	StockAdjusted    bool          `gorm:"not null" json:"-" bson:"stockAdjusted"`
	CreatedAt        time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// OwnedBy reports whether userID owns this order. Guest orders have no owner.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID != "" && o.UserID == userID
}

// LineAmount returns unit * quantity, or false when the product does not
// fit in int64.
func LineAmount(unit int64, quantity int) (int64, bool) {
	q := int64(quantity)
	if unit < 0 || q < 0 {
		return 0, false
	}
	if q != 0 && unit > math.MaxInt64/q {
		return 0, false
	}
	return unit * q, true
}

// AddAmount returns a + b for non-negative amounts, or false on overflow.
func AddAmount(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Total sums the line totals.
func Total(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LineTotal
	}
	return total
}
