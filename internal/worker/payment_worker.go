package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/repository"
)

const (
	paymentQueueName = "payments"
	dlxExchange      = "payments.dlx"
	dlqQueueName     = "payments.dlq"
	idempotencyTTL   = 24 * time.Hour
)

// PaymentWorker settles stock for captured payments off the request path:
// checkout publishes a message once an intent turns paid, and the worker
// decrements the snapshot quantities in one tx.
type PaymentWorker struct {
	channel     *amqp.Channel
	paymentRepo repository.PaymentRepository
	productRepo repository.ProductRepository
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewPaymentWorker(
	ch *amqp.Channel,
	paymentRepo repository.PaymentRepository,
	productRepo repository.ProductRepository,
	redisClient *redis.Client,
	log *slog.Logger,
) *PaymentWorker {
	return &PaymentWorker{
		channel:     ch,
		paymentRepo: paymentRepo,
		productRepo: productRepo,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, paymentQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(paymentQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": paymentQueueName,
	}); err != nil {
		return fmt.Errorf("declare payment queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *PaymentWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(paymentQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("payment worker started")
	return nil
}

func (w *PaymentWorker) Stop() { close(w.done) }

func (w *PaymentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var captured model.PaymentCapturedMessage
	if err := json.Unmarshal(msg.Body, &captured); err != nil {
		w.log.Error("unmarshal payment message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("payment_id", captured.PaymentID, "user_id", captured.UserID)

	// Idempotency check via Redis
	idempotencyKey := "payment_settled:" + captured.PaymentID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("payment already settled, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.settleStock(ctx, captured.PaymentID); err != nil {
		log.Error("settle stock failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("payment settled")
}

func (w *PaymentWorker) settleStock(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := w.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return fmt.Errorf("payment not found: %s", paymentID)
	}
	if payment.Status != model.PaymentStatusPaid {
		return fmt.Errorf("payment %s is %s, not paid", paymentID, payment.Status)
	}

	tx, err := w.paymentRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range payment.Items {
		if err := w.productRepo.DecrementStock(ctx, tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
