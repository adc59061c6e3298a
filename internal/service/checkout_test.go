package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/dto"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/gateway"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
)

const testSecret = "test-key-secret"

type mockPaymentRepo struct {
	payments map[string]*model.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
		p.Items[i].PaymentID = p.ID
	}
	m.payments[p.GatewayOrderID] = p
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*model.Payment, error) {
	p, ok := m.payments[gatewayOrderID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) MarkPaid(_ context.Context, gatewayOrderID, paymentID, signature string) (bool, error) {
	p, ok := m.payments[gatewayOrderID]
	if !ok || p.Status != model.PaymentStatusCreated {
		return false, nil
	}
	p.PaymentID = paymentID
	p.Signature = signature
	p.Status = model.PaymentStatusPaid
	return true, nil
}

func (m *mockPaymentRepo) MarkFailed(_ context.Context, gatewayOrderID, reason string) (bool, error) {
	p, ok := m.payments[gatewayOrderID]
	if !ok || p.Status != model.PaymentStatusCreated {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = reason
	return true, nil
}

func (m *mockPaymentRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) ListAll(_ context.Context) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPaymentRepo) BeginTx(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("not supported in mock")
}

type fakeGateway struct {
	createCalls int
	failCreate  bool
	lastAmount  int64
	lastReceipt string
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string) (*gateway.Order, error) {
	g.createCalls++
	if g.failCreate {
		return nil, errors.New("gateway unreachable")
	}
	g.lastAmount = amountPaise
	g.lastReceipt = receipt
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", g.createCalls),
		Amount:   amountPaise,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return sign(orderID, paymentID) == signature
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type checkoutFixture struct {
	svc         *CheckoutService
	cartSvc     *CartService
	cartRepo    *mockCartRepo
	productRepo *mockProductRepo
	paymentRepo *mockPaymentRepo
	gateway     *fakeGateway
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		cartRepo:    newMockCartRepo(),
		productRepo: newMockProductRepo(),
		paymentRepo: newMockPaymentRepo(),
		gateway:     &fakeGateway{},
	}
	f.svc = NewCheckoutService(f.paymentRepo, f.cartRepo, f.productRepo, f.gateway, "INR", nil)
	f.cartSvc = NewCartService(f.cartRepo, f.productRepo)
	return f
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.svc.CreateIntent(context.Background(), uuid.New(), dto.CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
	// The gateway is never reached for an empty cart.
	assert.Equal(t, 0, f.gateway.createCalls)
}

func TestCheckout_AmountInPaise(t *testing.T) {
	f := newCheckoutFixture()
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 299.5, 10)
	_, err := f.cartSvc.AddItem(context.Background(), userID, pid, nil, 3)
	require.NoError(t, err)

	result, err := f.svc.CreateIntent(context.Background(), userID, dto.CreateOrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(89850), result.Order.Amount)
	assert.Equal(t, "rzp_test_key", result.Key)

	payment := f.paymentRepo.payments[result.Order.ID]
	require.NotNil(t, payment)
	assert.Equal(t, int64(89850), payment.AmountPaise)
	assert.Equal(t, model.PaymentStatusCreated, payment.Status)
	assert.NotEmpty(t, payment.Receipt)
	require.Len(t, payment.Items, 1)
	assert.Equal(t, 3, payment.Items[0].Quantity)
}

func TestCheckout_GatewayFailure_NoLocalRecord(t *testing.T) {
	f := newCheckoutFixture()
	f.gateway.failCreate = true
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 100, 10)
	_, err := f.cartSvc.AddItem(context.Background(), userID, pid, nil, 1)
	require.NoError(t, err)

	_, err = f.svc.CreateIntent(context.Background(), userID, dto.CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrGateway)
	assert.Empty(t, f.paymentRepo.payments)
}

func TestCheckout_BuyNow(t *testing.T) {
	f := newCheckoutFixture()
	pid := seedProduct(f.productRepo, 1200, 5)

	result, err := f.svc.CreateIntent(context.Background(), uuid.New(), dto.CreateOrderRequest{
		ProductID: &pid, Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(240000), result.Order.Amount)

	payment := f.paymentRepo.payments[result.Order.ID]
	require.Len(t, payment.Items, 1)
	assert.Equal(t, "Ruby Pendant", payment.Items[0].Title)
}

func TestCheckout_BuyNow_StockExceeded(t *testing.T) {
	f := newCheckoutFixture()
	pid := seedProduct(f.productRepo, 1200, 1)

	_, err := f.svc.CreateIntent(context.Background(), uuid.New(), dto.CreateOrderRequest{
		ProductID: &pid, Quantity: 3,
	})
	assert.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 0, f.gateway.createCalls)
}

func TestCheckout_SnapshotInsulatedFromCartEdits(t *testing.T) {
	f := newCheckoutFixture()
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 100, 10)
	_, err := f.cartSvc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)

	result, err := f.svc.CreateIntent(context.Background(), userID, dto.CreateOrderRequest{})
	require.NoError(t, err)

	// Mutating the cart after intent creation must not touch the snapshot.
	_, err = f.cartSvc.UpdateItem(context.Background(), userID, pid, nil, 7)
	require.NoError(t, err)

	payment := f.paymentRepo.payments[result.Order.ID]
	require.Len(t, payment.Items, 1)
	assert.Equal(t, 2, payment.Items[0].Quantity)
}

func TestVerifyPayment_ForgedSignature(t *testing.T) {
	f := newCheckoutFixture()
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 100, 10)
	_, err := f.cartSvc.AddItem(context.Background(), userID, pid, nil, 1)
	require.NoError(t, err)
	result, err := f.svc.CreateIntent(context.Background(), userID, dto.CreateOrderRequest{})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), dto.VerifyPaymentRequest{
		RazorpayOrderID:   result.Order.ID,
		RazorpayPaymentID: "pay_123",
		RazorpaySignature: "forged",
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// Intent untouched, cart untouched.
	assert.Equal(t, model.PaymentStatusCreated, f.paymentRepo.payments[result.Order.ID].Status)
	cart, err := f.cartSvc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.svc.VerifyPayment(context.Background(), dto.VerifyPaymentRequest{
		RazorpayOrderID:   "order_missing",
		RazorpayPaymentID: "pay_123",
		RazorpaySignature: sign("order_missing", "pay_123"),
	})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	f := newCheckoutFixture()
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 100, 10)
	_, err := f.cartSvc.AddItem(context.Background(), userID, pid, nil, 1)
	require.NoError(t, err)
	result, err := f.svc.CreateIntent(context.Background(), userID, dto.CreateOrderRequest{})
	require.NoError(t, err)

	req := dto.VerifyPaymentRequest{
		RazorpayOrderID:   result.Order.ID,
		RazorpayPaymentID: "pay_123",
		RazorpaySignature: sign(result.Order.ID, "pay_123"),
	}

	payment, err := f.svc.VerifyPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)

	// Second identical confirmation succeeds without error and does not
	// re-clear the (already empty) cart.
	payment, err = f.svc.VerifyPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)

	cart, err := f.cartSvc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestReportFailure(t *testing.T) {
	f := newCheckoutFixture()
	pid := seedProduct(f.productRepo, 100, 10)
	result, err := f.svc.CreateIntent(context.Background(), uuid.New(), dto.CreateOrderRequest{
		ProductID: &pid, Quantity: 1,
	})
	require.NoError(t, err)

	payment, err := f.svc.ReportFailure(context.Background(), dto.PaymentFailureRequest{
		RazorpayOrderID: result.Order.ID, Reason: "card declined",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "card declined", payment.FailureReason)

	// Failing twice is a no-op; verifying a failed intent is rejected.
	_, err = f.svc.ReportFailure(context.Background(), dto.PaymentFailureRequest{
		RazorpayOrderID: result.Order.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), dto.VerifyPaymentRequest{
		RazorpayOrderID:   result.Order.ID,
		RazorpayPaymentID: "pay_late",
		RazorpaySignature: sign(result.Order.ID, "pay_late"),
	})
	assert.ErrorIs(t, err, ErrPaymentTerminal)
}

func TestCheckout_EndToEnd(t *testing.T) {
	f := newCheckoutFixture()
	userID := uuid.New()
	pid := seedProduct(f.productRepo, 1000, 5)
	ctx := context.Background()

	cart, err := f.cartSvc.AddItem(ctx, userID, pid, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, cart.TotalPrice.Equal(decimal.NewFromInt(2000)))

	_, err = f.cartSvc.UpdateItem(ctx, userID, pid, nil, 6)
	assert.ErrorIs(t, err, ErrStockExceeded)
	cart, err = f.cartSvc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	result, err := f.svc.CreateIntent(ctx, userID, dto.CreateOrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(200000), result.Order.Amount)
	assert.Equal(t, model.PaymentStatusCreated, f.paymentRepo.payments[result.Order.ID].Status)

	payment, err := f.svc.VerifyPayment(ctx, dto.VerifyPaymentRequest{
		RazorpayOrderID:   result.Order.ID,
		RazorpayPaymentID: "pay_final",
		RazorpaySignature: sign(result.Order.ID, "pay_final"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)

	cart, err = f.cartSvc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
}
