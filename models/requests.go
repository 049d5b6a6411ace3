package models

// CreateOrderRequest is the checkout payload. Client prices are never read.
type CreateOrderRequest struct {
	Customer Customer          `json:"customer"`
	Items    []LineItemRequest `json:"items"`
}

type LineItemRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Weight    string `json:"weight,omitempty"`
}

type CreateOrderResponse struct {
	LocalOrderID   int64  `json:"localOrderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

type VerifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// UpdateOrderStatusRequest is the admin override body.
type UpdateOrderStatusRequest struct {
	Status        *OrderStatus   `json:"status" binding:"omitempty,orderstatus"`
	PaymentStatus *PaymentStatus `json:"paymentStatus" binding:"omitempty,paymentstatus"`
}

// PaymentWebhook is the subset of the gateway's webhook body the service reads.
type PaymentWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

type CreateProductRequest struct {
	Name            string     `json:"name" binding:"required"`
	Description     string     `json:"description"`
	Category        string     `json:"category" binding:"required"`
	Subcategory     string     `json:"subcategory"`
	Brand           string     `json:"brand"`
	BasePrice       int64      `json:"basePrice" binding:"gte=0"`
	SellingPrice    *int64     `json:"sellingPrice" binding:"omitempty,gte=0"`
	DiscountPercent float64    `json:"discountPercent" binding:"gte=0,lte=100"`
	PackSizes       []PackSize `json:"packSizes" binding:"omitempty,dive"`
	Stock           int        `json:"stock" binding:"gte=0"`
	Organic         bool       `json:"organic"`
	Rating          float64    `json:"rating" binding:"gte=0,lte=5"`
}

// UpdateProductRequest is a partial update; nil fields are left unchanged.
type UpdateProductRequest struct {
	Name            *string     `json:"name" binding:"omitempty,min=1"`
	Description     *string     `json:"description"`
	Category        *string     `json:"category" binding:"omitempty,min=1"`
	Subcategory     *string     `json:"subcategory"`
	Brand           *string     `json:"brand"`
	BasePrice       *int64      `json:"basePrice" binding:"omitempty,gte=0"`
	SellingPrice    *int64      `json:"sellingPrice" binding:"omitempty,gte=0"`
	DiscountPercent *float64    `json:"discountPercent" binding:"omitempty,gte=0,lte=100"`
	PackSizes       *[]PackSize `json:"packSizes" binding:"omitempty,dive"`
	Stock           *int        `json:"stock" binding:"omitempty,gte=0"`
	Organic         *bool       `json:"organic"`
	Rating          *float64    `json:"rating" binding:"omitempty,gte=0,lte=5"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// NewPaginationMeta derives page counts from a total.
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
