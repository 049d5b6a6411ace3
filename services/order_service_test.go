package services_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/integration"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/services"
)

const testKeySecret = "test_secret"

type harness struct {
	svc       *services.OrderService
	products  *fakeProducts
	orders    *fakeOrders
	gateway   *fakeGateway
	publisher *fakePublisher
	jobs      *fakeJobs
	idem      *fakeIdempotency
	cache     *fakeCache
	signer    *integration.Signer
}

func turmeric() models.Product {
	return models.Product{
		ProductID:    1,
		Name:         "Turmeric Powder",
		Category:     "spices",
		BasePrice:    120,
		SellingPrice: 100,
		PackSizes: []models.PackSize{
			{Weight: "100g", Price: 100},
			{Weight: "250g", Price: 230},
		},
		Stock: 5,
	}
}

func newHarness(t *testing.T, products ...models.Product) *harness {
	t.Helper()
	if len(products) == 0 {
		products = []models.Product{turmeric()}
	}

	h := &harness{
		products:  newFakeProducts(products...),
		orders:    newFakeOrders(),
		gateway:   &fakeGateway{},
		publisher: &fakePublisher{},
		jobs:      &fakeJobs{},
		idem:      &fakeIdempotency{},
		cache:     newFakeCache(),
		signer:    integration.NewSigner(testKeySecret, "wh_secret"),
	}

	logger, _ := zap.NewDevelopment()
	h.svc = services.NewOrderService(services.OrderServiceDeps{
		Orders:      h.orders,
		Products:    h.products,
		Sequence:    &fakeSequence{},
		Gateway:     h.gateway,
		Signer:      h.signer,
		Publisher:   h.publisher,
		Jobs:        h.jobs,
		Cache:       h.cache,
		Idempotency: h.idem,
		Currency:    "INR",
	}, logger)
	return h
}

var owner = services.Actor{UserID: "user-1", Role: "customer"}

func checkout(items ...models.LineItemRequest) models.CreateOrderRequest {
	return models.CreateOrderRequest{
		Customer: models.Customer{Name: "Asha", Phone: "9999999999", Address: "12 MG Road, Erode"},
		Items:    items,
	}
}

func (h *harness) create(t *testing.T, items ...models.LineItemRequest) *models.CreateOrderResponse {
	t.Helper()
	resp, err := h.svc.CreateOrder(context.Background(), checkout(items...), owner, "")
	require.NoError(t, err)
	return resp
}

func (h *harness) verify(gid, pid string) (*models.VerifyPaymentResponse, error) {
	return h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
		GatewayOrderID:   gid,
		GatewayPaymentID: pid,
		Signature:        h.signer.ComputeSignature(gid, pid),
	})
}

// --- Scenarios ---

func TestCreateOrder_LeavesStockUntouched(t *testing.T) {
	h := newHarness(t)

	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	assert.Equal(t, int64(200), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.NotEmpty(t, resp.GatewayOrderID)
	assert.Equal(t, 5, h.products.stock(1))

	require.Len(t, h.gateway.calls, 1)
	assert.Equal(t, int64(200), h.gateway.calls[0].Amount)
	assert.Equal(t, "order_1", h.gateway.calls[0].Receipt)

	o := h.orders.get(resp.LocalOrderID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, resp.GatewayOrderID, o.GatewayOrderID)
	assert.Equal(t, "user-1", o.UserID)
	assert.False(t, o.StockAdjusted)
	assert.Equal(t, []string{models.EventOrderCreated}, h.publisher.types())
}

func TestVerifyPayment_DecrementsStock(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	out, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)
	assert.True(t, out.Verified)

	o := h.orders.get(resp.LocalOrderID)
	assert.Equal(t, models.PaymentSuccessful, o.PaymentStatus)
	assert.Equal(t, models.StatusProcessing, o.Status)
	require.NotNil(t, o.GatewayPaymentID)
	assert.Equal(t, "pay_1", *o.GatewayPaymentID)
	require.NotNil(t, o.GatewaySignature)
	assert.True(t, o.StockAdjusted)
	assert.Equal(t, 3, h.products.stock(1))
	assert.Contains(t, h.cache.invalidated, int64(1))
	assert.Contains(t, h.publisher.types(), models.EventPaymentVerified)
}

func TestVerifyPayment_BadSignatureFailsPayment(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	out, err := h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
		GatewayOrderID:   resp.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        "deadbeef",
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	o := h.orders.get(resp.LocalOrderID)
	assert.Equal(t, models.PaymentFailed, o.PaymentStatus)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, 5, h.products.stock(1))
	assert.Contains(t, h.publisher.types(), models.EventPaymentFailed)
}

func TestCreateOrder_InsufficientStockPersistsNothing(t *testing.T) {
	p := turmeric()
	p.ProductID = 2
	p.Stock = 3
	h := newHarness(t, p)

	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 2, Quantity: 10}), owner, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, 409, apperrors.As(err).Code)
	assert.Equal(t, 0, h.orders.count())
	assert.Empty(t, h.gateway.calls)
	assert.Equal(t, 3, h.products.stock(2))
}

func TestCancelOrder_RefundsAndRestoresStock(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})
	_, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)
	require.Equal(t, 3, h.products.stock(1))

	o, err := h.svc.CancelOrder(context.Background(), resp.LocalOrderID, owner)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 5, h.products.stock(1))
	assert.Contains(t, h.publisher.types(), models.EventOrderCancelled)
}

// --- Properties ---

func TestCreateOrder_TotalIsComputedFromCatalog(t *testing.T) {
	chilli := models.Product{ProductID: 2, Name: "Chilli", Category: "spices", SellingPrice: 75, Stock: 10}
	h := newHarness(t, turmeric(), chilli)

	resp := h.create(t,
		models.LineItemRequest{ProductID: 1, Quantity: 1, Weight: "250g"},
		models.LineItemRequest{ProductID: 1, Quantity: 2},
		models.LineItemRequest{ProductID: 2, Quantity: 3},
	)

	assert.Equal(t, int64(230+2*100+3*75), resp.Amount)

	o := h.orders.get(resp.LocalOrderID)
	require.Len(t, o.Items, 3)
	assert.Equal(t, "250g", o.Items[0].Weight)
	assert.Equal(t, int64(230), o.Items[0].UnitPrice)
	assert.Equal(t, int64(200), o.Items[1].LineTotal)
	assert.Equal(t, "Chilli", o.Items[2].Name)
	assert.Equal(t, models.Total(o.Items), o.TotalAmount)
}

func TestVerifyPayment_StockNeverNegativeWhenVerifiesOversell(t *testing.T) {
	h := newHarness(t)
	first := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 3})
	second := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 3})

	_, err := h.verify(first.GatewayOrderID, "pay_1")
	require.NoError(t, err)

	out, err := h.verify(second.GatewayOrderID, "pay_2")
	require.NoError(t, err)
	assert.True(t, out.Verified)

	assert.Equal(t, 2, h.products.stock(1))

	o := h.orders.get(second.LocalOrderID)
	assert.Equal(t, models.PaymentSuccessful, o.PaymentStatus)
	assert.False(t, o.StockAdjusted)
	require.Len(t, h.jobs.jobs, 1)
	assert.Equal(t, models.JobApplyStock, h.jobs.jobs[0].Kind)
	assert.Equal(t, second.LocalOrderID, h.jobs.jobs[0].OrderID)

	_, err = h.svc.CancelOrder(context.Background(), second.LocalOrderID, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, h.products.stock(1))
}

func TestVerifyPayment_PartialDecrementIsRolledBack(t *testing.T) {
	chilli := models.Product{ProductID: 2, Name: "Chilli", Category: "spices", SellingPrice: 75, Stock: 4}
	h := newHarness(t, turmeric(), chilli)
	resp := h.create(t,
		models.LineItemRequest{ProductID: 1, Quantity: 2},
		models.LineItemRequest{ProductID: 2, Quantity: 4},
	)

	require.NoError(t, h.products.DecrementStock(context.Background(), 2, 1))

	_, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)

	assert.Equal(t, 5, h.products.stock(1))
	assert.Equal(t, 3, h.products.stock(2))
	assert.False(t, h.orders.get(resp.LocalOrderID).StockAdjusted)
}

func TestVerifyPayment_SignatureMutationsAreRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})
	good := h.signer.ComputeSignature(resp.GatewayOrderID, "pay_1")

	for i := range good {
		b := []byte(good)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		out, err := h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
			GatewayOrderID:   resp.GatewayOrderID,
			GatewayPaymentID: "pay_1",
			Signature:        string(b),
		})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature, "mutation at %d accepted", i)
	}
	assert.Equal(t, 5, h.products.stock(1))

	fresh := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})
	out, err := h.verify(fresh.GatewayOrderID, "pay_9")
	require.NoError(t, err)
	assert.True(t, out.Verified)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	_, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)
	afterFirst := h.orders.get(resp.LocalOrderID)

	out, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)
	assert.True(t, out.Verified)

	assert.Equal(t, 3, h.products.stock(1))
	afterSecond := h.orders.get(resp.LocalOrderID)
	assert.Equal(t, afterFirst.Status, afterSecond.Status)
	assert.Equal(t, afterFirst.PaymentStatus, afterSecond.PaymentStatus)
	assert.Equal(t, afterFirst.StockAdjusted, afterSecond.StockAdjusted)
}

func TestVerifyPayment_WebhookAndClientVerifyApplyStockOnce(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	require.NoError(t, h.svc.ConfirmPaymentFromWebhook(context.Background(), resp.GatewayOrderID, "pay_1"))
	require.NoError(t, h.svc.ConfirmPaymentFromWebhook(context.Background(), resp.GatewayOrderID, "pay_1"))
	out, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)
	assert.True(t, out.Verified)

	assert.Equal(t, 3, h.products.stock(1))
}

func TestVerifyPayment_ConcurrentWebhookAndClientVerifyApplyStockOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness(t)
		resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for i := 0; i < 3; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				errs <- h.svc.ConfirmPaymentFromWebhook(context.Background(), resp.GatewayOrderID, "pay_1")
			}()
			go func() {
				defer wg.Done()
				out, err := h.verify(resp.GatewayOrderID, "pay_1")
				if err == nil && !out.Verified {
					err = fmt.Errorf("verify rejected: %s", out.Reason)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, 3, h.products.stock(1), "round %d", round)
		o := h.orders.get(resp.LocalOrderID)
		assert.True(t, o.StockAdjusted)
		assert.Equal(t, models.PaymentSuccessful, o.PaymentStatus)
	}
}

func TestCancelOrder_OnlyRestoresAppliedStock(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	o, err := h.svc.CancelOrder(context.Background(), resp.LocalOrderID, owner)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 5, h.products.stock(1))
}

// --- CreateOrder ---

func TestCreateOrder_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateOrderRequest
		kind    apperrors.Kind
		message string
	}{
		{
			name:    "blank customer beats empty cart",
			req:     models.CreateOrderRequest{Customer: models.Customer{Name: "  ", Phone: "1", Address: "x"}},
			kind:    apperrors.KindValidation,
			message: "missing customer fields",
		},
		{
			name:    "empty cart",
			req:     checkout(),
			kind:    apperrors.KindValidation,
			message: "empty cart",
		},
		{
			name:    "unknown product",
			req:     checkout(models.LineItemRequest{ProductID: 42, Quantity: 1}),
			kind:    apperrors.KindNotFound,
			message: "product 42 not found",
		},
		{
			name:    "unknown product beats stock",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: 99}, models.LineItemRequest{ProductID: 42, Quantity: 1}),
			kind:    apperrors.KindNotFound,
			message: "product 42 not found",
		},
		{
			name:    "zero quantity",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: 0}),
			kind:    apperrors.KindValidation,
			message: "invalid quantity",
		},
		{
			name:    "invalid quantity beats unknown product",
			req:     checkout(models.LineItemRequest{ProductID: 42, Quantity: 1}, models.LineItemRequest{ProductID: 1, Quantity: 0}),
			kind:    apperrors.KindValidation,
			message: "invalid quantity",
		},
		{
			name:    "quantity above line limit",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: models.MaxLineQuantity + 1}),
			kind:    apperrors.KindValidation,
			message: "invalid quantity",
		},
		{
			name:    "huge repeated quantities",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: math.MaxInt}, models.LineItemRequest{ProductID: 1, Quantity: math.MaxInt}),
			kind:    apperrors.KindValidation,
			message: "invalid quantity",
		},
		{
			name:    "unknown pack size",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: 1, Weight: "1kg"}),
			kind:    apperrors.KindValidation,
			message: "unknown pack size",
		},
		{
			name:    "repeated product exceeds stock in sum",
			req:     checkout(models.LineItemRequest{ProductID: 1, Quantity: 3}, models.LineItemRequest{ProductID: 1, Quantity: 3}),
			kind:    apperrors.KindInsufficientStock,
			message: "insufficient stock for product 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.CreateOrder(context.Background(), tt.req, owner, "")
			require.Error(t, err)
			appErr := apperrors.As(err)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, 0, h.orders.count())
			assert.Empty(t, h.gateway.calls)
		})
	}
}

func TestCreateOrder_AmountOverflowIsRejected(t *testing.T) {
	pricey := models.Product{ProductID: 7, Name: "Saffron", SellingPrice: math.MaxInt64/2 + 1, Stock: 10}

	tests := []struct {
		name  string
		items []models.LineItemRequest
	}{
		{"line total", []models.LineItemRequest{{ProductID: 7, Quantity: 2}}},
		{"order total", []models.LineItemRequest{{ProductID: 7, Quantity: 1}, {ProductID: 7, Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pricey)
			_, err := h.svc.CreateOrder(context.Background(), checkout(tt.items...), owner, "")
			require.Error(t, err)
			appErr := apperrors.As(err)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
			assert.Equal(t, "order amount too large", appErr.Message)
			assert.Empty(t, h.gateway.calls)
		})
	}
}

func TestCreateOrder_GatewayFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = integration.ErrGatewayUnavailable

	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), owner, "")

	assert.ErrorIs(t, err, apperrors.ErrPaymentGateway)
	assert.Equal(t, 502, apperrors.As(err).Code)
	assert.Equal(t, 0, h.orders.count())
}

func TestCreateOrder_PersistenceFailureQueuesOrphan(t *testing.T) {
	h := newHarness(t)
	h.orders.createErr = errors.New("connection reset")

	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), owner, "")

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	require.Len(t, h.jobs.jobs, 1)
	assert.Equal(t, models.JobOrphanedGatewayOrder, h.jobs.jobs[0].Kind)
	assert.NotEmpty(t, h.jobs.jobs[0].GatewayOrderID)
}

func TestCreateOrder_DuplicateKeyIsConflict(t *testing.T) {
	h := newHarness(t)
	h.orders.createErr = repository.ErrDuplicate

	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), owner, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCreateOrder_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	req := checkout(models.LineItemRequest{ProductID: 1, Quantity: 1})

	first, err := h.svc.CreateOrder(context.Background(), req, owner, "key-1")
	require.NoError(t, err)
	second, err := h.svc.CreateOrder(context.Background(), req, owner, "key-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.gateway.calls, 1)
	assert.Equal(t, 1, h.orders.count())

	third, err := h.svc.CreateOrder(context.Background(), req, services.Actor{UserID: "user-2"}, "key-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.LocalOrderID, third.LocalOrderID)
}

func TestCreateOrder_IdempotencyKeyWithDifferentBodyConflicts(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), owner, "key-1")
	require.NoError(t, err)

	_, err = h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 3}), owner, "key-1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, h.gateway.calls, 1)
	assert.Equal(t, 1, h.orders.count())

	padded := checkout(models.LineItemRequest{ProductID: 1, Quantity: 1})
	padded.Customer.Name = "  " + padded.Customer.Name + " "
	_, err = h.svc.CreateOrder(context.Background(), padded, owner, "key-1")
	assert.NoError(t, err)
	assert.Len(t, h.gateway.calls, 1)
}

func TestCreateOrder_GuestIdempotencyKeyIgnored(t *testing.T) {
	h := newHarness(t)
	req := checkout(models.LineItemRequest{ProductID: 1, Quantity: 1})
	guest := services.Actor{}

	first, err := h.svc.CreateOrder(context.Background(), req, guest, "key-1")
	require.NoError(t, err)
	second, err := h.svc.CreateOrder(context.Background(), req, guest, "key-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.LocalOrderID, second.LocalOrderID)
	assert.NotEqual(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Len(t, h.gateway.calls, 2)
	assert.Empty(t, h.idem.data)
}

// --- VerifyPayment ---

func TestVerifyPayment_MissingFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{GatewayOrderID: "order_x"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.verify("order_missing", "pay_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVerifyPayment_StoreFailureQueuesConfirmation(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})
	h.orders.succeedErr = errors.New("write concern timeout")

	_, err := h.verify(resp.GatewayOrderID, "pay_1")

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Equal(t, 5, h.products.stock(1))
	require.Len(t, h.jobs.jobs, 1)
	job := h.jobs.jobs[0]
	assert.Equal(t, models.JobConfirmPayment, job.Kind)
	assert.Equal(t, "pay_1", job.PaymentID)
	assert.Equal(t, h.signer.ComputeSignature(resp.GatewayOrderID, "pay_1"), job.Signature)
}

func TestVerifyPayment_FailedPaymentIsNotRecoverable(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})
	_, err := h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
		GatewayOrderID: resp.GatewayOrderID, GatewayPaymentID: "pay_1", Signature: "bad",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	_, err = h.verify(resp.GatewayOrderID, "pay_1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 5, h.products.stock(1))
}

func TestVerifyPayment_BadSignatureOnPaidOrderChangesNothing(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})
	_, err := h.verify(resp.GatewayOrderID, "pay_1")
	require.NoError(t, err)

	_, err = h.svc.VerifyPayment(context.Background(), models.VerifyPaymentRequest{
		GatewayOrderID: resp.GatewayOrderID, GatewayPaymentID: "pay_1", Signature: "bad",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	assert.Equal(t, models.PaymentSuccessful, h.orders.get(resp.LocalOrderID).PaymentStatus)
	assert.Equal(t, 3, h.products.stock(1))
}

func TestVerifyPayment_CancelledOrderIsConflict(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})
	_, err := h.svc.CancelOrder(context.Background(), resp.LocalOrderID, owner)
	require.NoError(t, err)

	_, err = h.verify(resp.GatewayOrderID, "pay_1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 5, h.products.stock(1))
}

func TestFailPaymentFromWebhook(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 2})

	require.NoError(t, h.svc.FailPaymentFromWebhook(context.Background(), resp.GatewayOrderID, "pay_1"))
	assert.Equal(t, models.PaymentFailed, h.orders.get(resp.LocalOrderID).PaymentStatus)

	assert.ErrorIs(t, h.svc.FailPaymentFromWebhook(context.Background(), "order_missing", "pay_1"), apperrors.ErrNotFound)
}

// --- CancelOrder ---

func TestCancelOrder_Authorization(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})

	_, err := h.svc.CancelOrder(context.Background(), resp.LocalOrderID, services.Actor{UserID: "intruder"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = h.svc.CancelOrder(context.Background(), resp.LocalOrderID, services.Actor{UserID: "ops", Role: "admin"})
	assert.NoError(t, err)
}

func TestCancelOrder_GuestOrderNeedsAdmin(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), services.Actor{}, "")
	require.NoError(t, err)

	_, err = h.svc.CancelOrder(context.Background(), resp.LocalOrderID, services.Actor{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = h.svc.CancelOrder(context.Background(), resp.LocalOrderID, services.Actor{UserID: "ops", Role: "ADMIN"})
	assert.NoError(t, err)
}

func TestCancelOrder_TerminalStatus(t *testing.T) {
	h := newHarness(t)
	h.orders.put(&models.Order{
		OrderID: 7, UserID: "user-1", GatewayOrderID: "order_7",
		Status: models.StatusShipped, PaymentStatus: models.PaymentSuccessful, StockAdjusted: true,
		Items: []models.OrderItem{{ProductID: 1, Quantity: 2}},
	})

	_, err := h.svc.CancelOrder(context.Background(), 7, owner)

	require.Error(t, err)
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, 400, appErr.Code)
	assert.Equal(t, "order cannot be cancelled", appErr.Message)
	assert.Equal(t, 5, h.products.stock(1))
}

func TestCancelOrder_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CancelOrder(context.Background(), 404, owner)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Reads and admin ---

func TestGetOrder_Authorization(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})

	o, err := h.svc.GetOrder(context.Background(), resp.LocalOrderID, owner)
	require.NoError(t, err)
	assert.Equal(t, resp.GatewayOrderID, o.GatewayOrderID)

	_, err = h.svc.GetOrder(context.Background(), resp.LocalOrderID, services.Actor{UserID: "someone-else"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = h.svc.GetOrder(context.Background(), 999, owner)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrders_ScopesCustomers(t *testing.T) {
	h := newHarness(t)
	h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})
	_, err := h.svc.CreateOrder(context.Background(), checkout(models.LineItemRequest{ProductID: 1, Quantity: 1}), services.Actor{UserID: "user-2"}, "")
	require.NoError(t, err)

	mine, meta, err := h.svc.ListOrders(context.Background(), repository.OrderFilter{UserID: "user-2"}, 1, 10, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "user-1", mine[0].UserID)
	assert.Equal(t, int64(1), meta.Total)

	all, _, err := h.svc.ListOrders(context.Background(), repository.OrderFilter{}, 1, 10, services.Actor{UserID: "ops", Role: "admin"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, _, err = h.svc.ListOrders(context.Background(), repository.OrderFilter{}, 1, 10, services.Actor{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, _, err = h.svc.ListOrders(context.Background(), repository.OrderFilter{Status: "lost"}, 1, 10, owner)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateOrderStatus(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})

	_, err := h.svc.UpdateOrderStatus(context.Background(), resp.LocalOrderID, models.UpdateOrderStatusRequest{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	bad := models.OrderStatus("teleported")
	_, err = h.svc.UpdateOrderStatus(context.Background(), resp.LocalOrderID, models.UpdateOrderStatusRequest{Status: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	shipped := models.StatusShipped
	o, err := h.svc.UpdateOrderStatus(context.Background(), resp.LocalOrderID, models.UpdateOrderStatusRequest{Status: &shipped})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, o.Status)

	_, err = h.svc.UpdateOrderStatus(context.Background(), 999, models.UpdateOrderStatusRequest{Status: &shipped})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteOrder(t *testing.T) {
	h := newHarness(t)
	resp := h.create(t, models.LineItemRequest{ProductID: 1, Quantity: 1})

	require.NoError(t, h.svc.DeleteOrder(context.Background(), resp.LocalOrderID))
	assert.Equal(t, 0, h.orders.count())
	assert.ErrorIs(t, h.svc.DeleteOrder(context.Background(), resp.LocalOrderID), apperrors.ErrNotFound)
}
