package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind classifies an application error independently of its message.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindUnauthorized      Kind = "unauthorized"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidSignature  Kind = "invalid_signature"
	KindPaymentGateway    Kind = "payment_gateway"
	KindPersistence       Kind = "persistence"
	KindConflict          Kind = "conflict"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

var kindStatus = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindNotFound:          http.StatusNotFound,
	KindForbidden:         http.StatusForbidden,
	KindUnauthorized:      http.StatusUnauthorized,
	KindInsufficientStock: http.StatusConflict,
	KindInvalidSignature:  http.StatusBadRequest,
	KindPaymentGateway:    http.StatusBadGateway,
	KindPersistence:       http.StatusInternalServerError,
	KindConflict:          http.StatusConflict,
	KindUnavailable:       http.StatusServiceUnavailable,
	KindInternal:          http.StatusInternalServerError,
}

// Error represents an application error
type Error struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"error"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is checks. Never return these directly; use the constructors.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidSignature  = &Error{Kind: KindInvalidSignature}
	ErrPaymentGateway    = &Error{Kind: KindPaymentGateway}
	ErrPersistence       = &Error{Kind: KindPersistence}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrInternal          = &Error{Kind: KindInternal}
)

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

func Forbidden(message string) *Error { return New(KindForbidden, message, nil) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message, nil) }

func InsufficientStock(productID int64) *Error {
	return New(KindInsufficientStock, fmt.Sprintf("insufficient stock for product %d", productID), nil)
}

func InvalidSignature() *Error { return New(KindInvalidSignature, "invalid signature", nil) }

func PaymentGateway(err error) *Error {
	return New(KindPaymentGateway, "payment gateway unavailable", err)
}

func Persistence(message string, err error) *Error { return New(KindPersistence, message, err) }

func Conflict(message string) *Error { return New(KindConflict, message, nil) }

func Unavailable(message string) *Error { return New(KindUnavailable, message, nil) }

func Internal(err error) *Error { return New(KindInternal, "internal server error", err) }

// As extracts an *Error from err. Anything else is reported as internal.
func As(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Middleware renders the last error attached to the gin context.
// Internal and persistence errors are logged and their details withheld.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := As(err)

		switch appErr.Kind {
		case KindInternal, KindPersistence:
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("kind", string(appErr.Kind)),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(appErr.Code, gin.H{"error": string(KindInternal), "message": "internal server error"})
			return
		case KindPaymentGateway:
			logger.Warn("payment gateway error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}

		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
