package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/repository"
)

type mockCartRepo struct {
	carts map[uuid.UUID]*model.Cart
	// forceConflict makes the next mutation lose the optimistic-lock race.
	forceConflict bool
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[uuid.UUID]*model.Cart)}
}

func (m *mockCartRepo) GetOrCreateCart(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	for _, c := range m.carts {
		if c.UserID == userID {
			return &model.Cart{ID: c.ID, UserID: c.UserID, Version: c.Version}, nil
		}
	}
	cart := &model.Cart{ID: uuid.New(), UserID: userID}
	m.carts[cart.ID] = cart
	return &model.Cart{ID: cart.ID, UserID: userID}, nil
}

func (m *mockCartRepo) GetCartWithItems(_ context.Context, cartID uuid.UUID) (*model.Cart, error) {
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, nil
	}
	out := &model.Cart{ID: cart.ID, UserID: cart.UserID, Version: cart.Version}
	out.Items = append(out.Items, cart.Items...)
	return out, nil
}

func (m *mockCartRepo) SetItem(_ context.Context, cartID uuid.UUID, version int64, item *model.CartItem) error {
	cart, ok := m.carts[cartID]
	if !ok {
		return pgx.ErrNoRows
	}
	if m.forceConflict || cart.Version != version {
		m.forceConflict = false
		return repository.ErrVersionConflict
	}
	cart.Version++
	item.CartID = cartID
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID && uuidPtrEq(cart.Items[i].VariantID, item.VariantID) {
			cart.Items[i].Quantity = item.Quantity
			cart.Items[i].UnitPrice = item.UnitPrice
			return nil
		}
	}
	item.ID = uuid.New()
	cart.Items = append(cart.Items, *item)
	return nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, cartID uuid.UUID, version int64, productID uuid.UUID, variantID *uuid.UUID) error {
	cart, ok := m.carts[cartID]
	if !ok {
		return pgx.ErrNoRows
	}
	if m.forceConflict || cart.Version != version {
		m.forceConflict = false
		return repository.ErrVersionConflict
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && uuidPtrEq(cart.Items[i].VariantID, variantID) {
			cart.Version++
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockCartRepo) ClearCart(_ context.Context, cartID uuid.UUID) error {
	if cart, ok := m.carts[cartID]; ok {
		cart.Items = nil
		cart.Version++
	}
	return nil
}

func uuidPtrEq(a, b *uuid.UUID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func seedProduct(repo *mockProductRepo, price float64, stock int) uuid.UUID {
	id := uuid.New()
	repo.products[id] = &model.Product{
		ID: id, Title: "Ruby Pendant", Price: decimal.NewFromFloat(price),
		TotalStock: stock, Active: true,
	}
	return id
}

func TestCartService_AddItem_Totals(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 1000, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	cart, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, cart.TotalPrice.Equal(decimal.NewFromInt(2000)))

	pid2 := seedProduct(productRepo, 250.5, 10)
	cart, err = svc.AddItem(context.Background(), userID, pid2, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, cart.TotalPrice.Equal(decimal.NewFromFloat(2751.5)))
}

func TestCartService_AddItem_SamePairIncrements(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(context.Background(), userID, pid, nil, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestCartService_AddItem_StockExceeded(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 3)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), userID, pid, nil, 2)
	assert.ErrorIs(t, err, ErrStockExceeded)
	var stockErr *StockExceededError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)

	// Rejection leaves the cart untouched.
	cart, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCartService_AddItem_ProductNotFound(t *testing.T) {
	svc := NewCartService(newMockCartRepo(), newMockProductRepo())
	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), nil, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_AddItem_OutOfStock(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 0)
	svc := NewCartService(cartRepo, productRepo)

	_, err := svc.AddItem(context.Background(), uuid.New(), pid, nil, 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCartService_AddItem_Variant(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 0) // base out of stock, variant carries its own count
	sale := decimal.NewFromInt(700)
	vid := uuid.New()
	productRepo.products[pid].Variants = []model.Variant{{
		ID: vid, ProductID: pid, Name: "Small",
		Price: decimal.NewFromInt(800), SalePrice: &sale, StockQuantity: 4,
	}}
	svc := NewCartService(cartRepo, productRepo)

	cart, err := svc.AddItem(context.Background(), uuid.New(), pid, &vid, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, cart.Items[0].UnitPrice.Equal(sale))
	assert.True(t, cart.TotalSavings.Equal(decimal.NewFromInt(200)))
}

func TestCartService_AddItem_VariantNotFound(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 5)
	svc := NewCartService(cartRepo, productRepo)

	other := uuid.New()
	_, err := svc.AddItem(context.Background(), uuid.New(), pid, &other, 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestCartService_UpdateItem_ZeroRemoves(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)

	cart, err := svc.UpdateItem(context.Background(), userID, pid, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)

	// Removing again is a not-found error, not a crash.
	_, err = svc.RemoveItem(context.Background(), userID, pid, nil)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_UpdateItem_StockExceeded(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 5)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), userID, pid, nil, 6)
	assert.ErrorIs(t, err, ErrStockExceeded)

	cart, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCartService_CapturedPriceStable(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 1000, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)

	// Catalog price change after add must not touch the captured price.
	productRepo.products[pid].Price = decimal.NewFromInt(1500)

	cart, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cart.TotalPrice.Equal(decimal.NewFromInt(2000)))
	// The gap shows up as savings instead.
	assert.True(t, cart.TotalSavings.Equal(decimal.NewFromInt(1000)))

	// A quantity update keeps the captured price too.
	cart, err = svc.UpdateItem(context.Background(), userID, pid, nil, 3)
	require.NoError(t, err)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(1000)))
}

func TestCartService_Conflict(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	cartRepo.forceConflict = true
	_, err := svc.AddItem(context.Background(), userID, pid, nil, 1)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCartService_ClearCart(t *testing.T) {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	pid := seedProduct(productRepo, 500, 10)
	svc := NewCartService(cartRepo, productRepo)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, pid, nil, 2)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(context.Background(), userID))

	cart, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
}
