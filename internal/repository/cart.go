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

// ErrVersionConflict reports a lost optimistic-lock race: the cart was
// mutated between the caller's read and its conditional write.
var ErrVersionConflict = errors.New("cart version conflict")

type CartRepository interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetCartWithItems(ctx context.Context, cartID uuid.UUID) (*model.Cart, error)
	SetItem(ctx context.Context, cartID uuid.UUID, version int64, item *model.CartItem) error
	DeleteItem(ctx context.Context, cartID uuid.UUID, version int64, productID uuid.UUID, variantID *uuid.UUID) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, version, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			cart.ID = uuid.New()
			cart.UserID = userID
			err = r.pool.QueryRow(ctx,
				`INSERT INTO carts (id, user_id, version, created_at, updated_at) VALUES ($1, $2, 0, NOW(), NOW())
				 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
				 RETURNING id, version, created_at, updated_at`,
				cart.ID, cart.UserID,
			).Scan(&cart.ID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
			if err != nil {
				return nil, fmt.Errorf("create cart: %w", err)
			}
			return cart, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) GetCartWithItems(ctx context.Context, cartID uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, version, created_at, updated_at FROM carts WHERE id = $1`, cartID,
	).Scan(&cart.ID, &cart.UserID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, cart_id, product_id, variant_id, quantity, unit_price, created_at, updated_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

// bumpVersion performs the optimistic-lock check: the bump only lands if
// nobody else mutated the cart since the caller read version.
func bumpVersion(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, version int64) error {
	ct, err := tx.Exec(ctx,
		`UPDATE carts SET version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $2`,
		cartID, version,
	)
	if err != nil {
		return fmt.Errorf("bump cart version: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *pgCartRepo) SetItem(ctx context.Context, cartID uuid.UUID, version int64, item *model.CartItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := bumpVersion(ctx, tx, cartID, version); err != nil {
		return err
	}

	item.ID = uuid.New()
	item.CartID = cartID
	query := `INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			  ON CONFLICT (cart_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
			  DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price, updated_at = NOW()
			  RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, query,
		item.ID, cartID, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set cart item: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, cartID uuid.UUID, version int64, productID uuid.UUID, variantID *uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := bumpVersion(ctx, tx, cartID, version); err != nil {
		return err
	}

	ct, err := tx.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3`,
		cartID, productID, variantID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *pgCartRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	// Unconditional bump: clearing after a paid checkout must not lose to a
	// concurrent browse-time mutation.
	if _, err := tx.Exec(ctx,
		`UPDATE carts SET version = version + 1, updated_at = NOW() WHERE id = $1`, cartID,
	); err != nil {
		return fmt.Errorf("bump cart version: %w", err)
	}
	return tx.Commit(ctx)
}
