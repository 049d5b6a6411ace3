package models

import "time"

const (
	EventOrderCreated    = "order.created"
	EventPaymentVerified = "payment.verified"
	EventPaymentFailed   = "payment.failed"
	EventOrderCancelled  = "order.cancelled"
)

// OrderEvent is published on every order lifecycle change.
type OrderEvent struct {
	Type           string        `json:"type"`
	OrderID        int64         `json:"orderId"`
	GatewayOrderID string        `json:"gatewayOrderId"`
	UserID         string        `json:"userId,omitempty"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	TotalAmount    int64         `json:"totalAmount"`
	Currency       string        `json:"currency"`
	Items          []OrderItem   `json:"items,omitempty"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

// NewOrderEvent snapshots o as an event of the given type.
func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        o.OrderID,
		GatewayOrderID: o.GatewayOrderID,
		UserID:         o.UserID,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Items:          o.Items,
		OccurredAt:     time.Now().UTC(),
	}
}

// Reconcile job kinds.
const (
	JobConfirmPayment       = "confirm_payment"
	JobApplyStock           = "apply_stock"
	JobOrphanedGatewayOrder = "orphaned_gateway_order"
)

// ReconcileJob asks the reconciler to finish work a request could not.
type ReconcileJob struct {
	Kind           string    `json:"kind"`
	OrderID        int64     `json:"orderId,omitempty"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	PaymentID      string    `json:"paymentId,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
