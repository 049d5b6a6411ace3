package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
)

const (
	SignatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

// PaymentEvents is implemented by *services.OrderService.
type PaymentEvents interface {
	ConfirmPaymentFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) error
	FailPaymentFromWebhook(ctx context.Context, gatewayOrderID, paymentID string) error
}

// WebhookVerifier is implemented by *integration.Signer.
type WebhookVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

type WebhookController struct {
	payments PaymentEvents
	verifier WebhookVerifier
	logger   *zap.Logger
}

func NewWebhookController(payments PaymentEvents, verifier WebhookVerifier, logger *zap.Logger) *WebhookController {
	return &WebhookController{payments: payments, verifier: verifier, logger: logger}
}

// PaymentWebhook receives gateway payment events. The signature covers the
// raw body, so the body is read before any decoding.
func (wc *WebhookController) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		_ = c.Error(apperrors.Validation("failed to read webhook body"))
		return
	}

	if !wc.verifier.VerifyWebhook(body, c.GetHeader(SignatureHeader)) {
		wc.logger.Warn("Payment webhook signature verification failed", zap.String("client_ip", c.ClientIP()))
		_ = c.Error(apperrors.InvalidSignature())
		return
	}

	var hook models.PaymentWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		_ = c.Error(apperrors.Validation("invalid webhook payload"))
		return
	}

	entity := hook.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		wc.logger.Warn("Payment webhook without order or payment id", zap.String("event", hook.Event))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	wc.logger.Info("Processing payment webhook",
		zap.String("event", hook.Event),
		zap.String("gateway_order_id", entity.OrderID),
	)

	switch hook.Event {
	case models.WebhookPaymentCaptured:
		err = wc.payments.ConfirmPaymentFromWebhook(c.Request.Context(), entity.OrderID, entity.ID)
	case models.WebhookPaymentFailed:
		err = wc.payments.FailPaymentFromWebhook(c.Request.Context(), entity.OrderID, entity.ID)
	default:
		wc.logger.Info("Unhandled webhook event type", zap.String("event", hook.Event))
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			wc.logger.Warn("Payment webhook for unknown order", zap.String("gateway_order_id", entity.OrderID))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
