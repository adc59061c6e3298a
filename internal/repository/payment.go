package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error)
	MarkFailed(ctx context.Context, gatewayOrderID, reason string) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Payment, error)
	ListAll(ctx context.Context) ([]model.Payment, error)
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type pgPaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &pgPaymentRepo{pool: pool}
}

func (r *pgPaymentRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create persists the intent and its line snapshot in one tx, so a partially
// written intent can never be observed.
func (r *pgPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	payment.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO payments (id, user_id, gateway_order_id, receipt, amount_paise, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`,
		payment.ID, payment.UserID, payment.GatewayOrderID, payment.Receipt,
		payment.AmountPaise, payment.Currency, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	for i := range payment.Items {
		payment.Items[i].ID = uuid.New()
		payment.Items[i].PaymentID = payment.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO payment_items (id, payment_id, product_id, variant_id, title, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			payment.Items[i].ID, payment.ID, payment.Items[i].ProductID,
			payment.Items[i].VariantID, payment.Items[i].Title,
			payment.Items[i].Quantity, payment.Items[i].UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert payment item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

const paymentColumns = `id, user_id, gateway_order_id, COALESCE(payment_id, ''), COALESCE(signature, ''),
	receipt, amount_paise, currency, status, COALESCE(failure_reason, ''), created_at, updated_at`

func (r *pgPaymentRepo) scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.GatewayOrderID, &p.PaymentID, &p.Signature,
		&p.Receipt, &p.AmountPaise, &p.Currency, &p.Status, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgPaymentRepo) loadItems(ctx context.Context, p *model.Payment) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, payment_id, product_id, variant_id, title, quantity, unit_price
		 FROM payment_items WHERE payment_id = $1`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("get payment items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.PaymentItem
		if err := rows.Scan(&item.ID, &item.PaymentID, &item.ProductID, &item.VariantID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan payment item: %w", err)
		}
		p.Items = append(p.Items, item)
	}
	return nil
}

func (r *pgPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	p, err := r.scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if err := r.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgPaymentRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	p, err := r.scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, gatewayOrderID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by gateway order: %w", err)
	}
	if err := r.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkPaid transitions created -> paid. The status guard makes the write
// idempotent: a second call reports false without touching the row.
func (r *pgPaymentRepo) MarkPaid(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE payments SET payment_id = $2, signature = $3, status = 'paid', updated_at = NOW()
		 WHERE gateway_order_id = $1 AND status = 'created'`,
		gatewayOrderID, paymentID, signature,
	)
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgPaymentRepo) MarkFailed(ctx context.Context, gatewayOrderID, reason string) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = 'failed', failure_reason = $2, updated_at = NOW()
		 WHERE gateway_order_id = $1 AND status = 'created'`,
		gatewayOrderID, reason,
	)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgPaymentRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Payment, error) {
	return r.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
}

func (r *pgPaymentRepo) ListAll(ctx context.Context) ([]model.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}

func (r *pgPaymentRepo) list(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	rows.Close()

	for i := range payments {
		if err := r.loadItems(ctx, &payments[i]); err != nil {
			return nil, err
		}
	}
	return payments, nil
}
