package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/dto"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/gateway"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/repository"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidAmount      = errors.New("order amount must be positive")
	ErrGateway            = errors.New("payment gateway error")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrPaymentTerminal    = errors.New("payment is already in a terminal state")
)

const paymentQueueName = "payments"

type CheckoutService struct {
	paymentRepo repository.PaymentRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	gateway     gateway.Client
	currency    string
	amqpCh      *amqp.Channel
}

func NewCheckoutService(
	paymentRepo repository.PaymentRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	gw gateway.Client,
	currency string,
	amqpCh *amqp.Channel,
) *CheckoutService {
	return &CheckoutService{
		paymentRepo: paymentRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		gateway:     gw,
		currency:    currency,
		amqpCh:      amqpCh,
	}
}

// CheckoutResult carries the gateway order for the client-side payment flow
// plus the publishable key id.
type CheckoutResult struct {
	Order *gateway.Order
	Key   string
}

// CreateIntent converts the user's cart (or a single buy-now line) into a
// payment intent. The gateway is called before anything is persisted
// locally, so a failed gateway call leaves no orphan intent behind.
func (s *CheckoutService) CreateIntent(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*CheckoutResult, error) {
	var items []model.PaymentItem
	var err error
	if req.ProductID != nil {
		items, err = s.buyNowItems(ctx, req)
	} else {
		items, err = s.cartItems(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	amountPaise := total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if amountPaise <= 0 {
		return nil, ErrInvalidAmount
	}

	// Receipt id doubles as the reconciliation key for sweeping gateway
	// orders that never got a local record.
	receipt := "rcpt_" + uuid.NewString()

	order, err := s.gateway.CreateOrder(ctx, amountPaise, s.currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	payment := &model.Payment{
		UserID:         userID,
		GatewayOrderID: order.ID,
		Receipt:        receipt,
		AmountPaise:    amountPaise,
		Currency:       order.Currency,
		Status:         model.PaymentStatusCreated,
		Items:          items,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	return &CheckoutResult{Order: order, Key: s.gateway.KeyID()}, nil
}

func (s *CheckoutService) cartItems(ctx context.Context, userID uuid.UUID) ([]model.PaymentItem, error) {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	withItems, err := s.cartRepo.GetCartWithItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if withItems == nil {
		return nil, nil
	}

	items := make([]model.PaymentItem, 0, len(withItems.Items))
	for _, ci := range withItems.Items {
		title := ""
		if product, err := s.productRepo.GetByID(ctx, ci.ProductID); err == nil && product != nil {
			title = product.Title
		}
		items = append(items, model.PaymentItem{
			ProductID: ci.ProductID,
			VariantID: ci.VariantID,
			Title:     title,
			Quantity:  ci.Quantity,
			UnitPrice: ci.UnitPrice,
		})
	}
	return items, nil
}

func (s *CheckoutService) buyNowItems(ctx context.Context, req dto.CreateOrderRequest) ([]model.PaymentItem, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidAmount
	}
	product, err := s.productRepo.GetByID(ctx, *req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.Active {
		return nil, ErrProductInactive
	}

	price := product.EffectivePrice()
	stock := product.TotalStock
	if req.VariantID != nil {
		variant, err := s.productRepo.GetVariant(ctx, *req.ProductID, *req.VariantID)
		if err != nil {
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant == nil {
			return nil, ErrVariantNotFound
		}
		price = variant.EffectivePrice()
		stock = variant.StockQuantity
	}
	if stock <= 0 {
		return nil, ErrOutOfStock
	}
	if req.Quantity > stock {
		return nil, &StockExceededError{Available: stock}
	}

	return []model.PaymentItem{{
		ProductID: *req.ProductID,
		VariantID: req.VariantID,
		Title:     product.Title,
		Quantity:  req.Quantity,
		UnitPrice: price,
	}}, nil
}

// VerifyPayment authenticates a client-supplied confirmation and transitions
// the intent created -> paid. The cart is cleared only after the paid write
// lands; re-verifying an already paid intent is a no-op success.
func (s *CheckoutService) VerifyPayment(ctx context.Context, req dto.VerifyPaymentRequest) (*model.Payment, error) {
	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		return nil, ErrVerificationFailed
	}

	payment, err := s.paymentRepo.GetByGatewayOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	if payment.Status == model.PaymentStatusPaid {
		return payment, nil
	}
	if payment.Status == model.PaymentStatusFailed {
		return nil, ErrPaymentTerminal
	}

	transitioned, err := s.paymentRepo.MarkPaid(ctx, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if transitioned {
		// The paid write is durable; clearing the cart and settling stock
		// happen after it. A crash between the two leaves stale cart items,
		// which the next read tolerates: the payment is the source of truth.
		if cart, err := s.cartRepo.GetOrCreateCart(ctx, payment.UserID); err == nil {
			_ = s.cartRepo.ClearCart(ctx, cart.ID)
		}
		s.publishCaptured(ctx, payment.ID, payment.UserID)
	}

	updated, err := s.paymentRepo.GetByGatewayOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return updated, nil
}

// ReportFailure records an explicit client-side failure for an intent still
// in created. Reporting failure twice is a no-op; failing a paid intent is
// rejected.
func (s *CheckoutService) ReportFailure(ctx context.Context, req dto.PaymentFailureRequest) (*model.Payment, error) {
	payment, err := s.paymentRepo.GetByGatewayOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status == model.PaymentStatusFailed {
		return payment, nil
	}
	if payment.Status == model.PaymentStatusPaid {
		return nil, ErrPaymentTerminal
	}

	if _, err := s.paymentRepo.MarkFailed(ctx, req.RazorpayOrderID, req.Reason); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	return s.paymentRepo.GetByGatewayOrderID(ctx, req.RazorpayOrderID)
}

func (s *CheckoutService) publishCaptured(ctx context.Context, paymentID, userID uuid.UUID) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.PaymentCapturedMessage{PaymentID: paymentID, UserID: userID})
	_ = s.amqpCh.PublishWithContext(ctx, "", paymentQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
}
