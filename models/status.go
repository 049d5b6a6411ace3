package models

import "fmt"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusProcessed  OrderStatus = "processed"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentPending    PaymentStatus = "pending"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var orderStatuses = map[OrderStatus]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusProcessed:  true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

var paymentStatuses = map[PaymentStatus]bool{
	PaymentUnpaid:     true,
	PaymentPending:    true,
	PaymentSuccessful: true,
	PaymentFailed:     true,
	PaymentRefunded:   true,
}

// CancelTerminalStatuses are the fulfilment states an order can no longer be
// cancelled from.
var CancelTerminalStatuses = []OrderStatus{StatusProcessed, StatusShipped, StatusDelivered, StatusCancelled}

// PayableStatuses are the payment states a verification may move out of.
var PayableStatuses = []PaymentStatus{PaymentUnpaid, PaymentPending}

func (s OrderStatus) Valid() bool { return orderStatuses[s] }

func (s PaymentStatus) Valid() bool { return paymentStatuses[s] }

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	for _, t := range CancelTerminalStatuses {
		if s == t {
			return false
		}
	}
	return true
}

// Payable reports whether a payment in status s may still be verified.
func (s PaymentStatus) Payable() bool {
	for _, p := range PayableStatuses {
		if s == p {
			return true
		}
	}
	return false
}

func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid order status %q", v)
	}
	return s, nil
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	s := PaymentStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid payment status %q", v)
	}
	return s, nil
}
