package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/dto"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/repository"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrProductInactive  = errors.New("product is not available")
	ErrOutOfStock       = errors.New("product is out of stock")
	ErrStockExceeded    = errors.New("requested quantity exceeds available stock")
	ErrConflict         = errors.New("cart was modified concurrently, retry")
)

// StockExceededError carries the maximum quantity still available so the
// storefront can tell the buyer how many they may take.
type StockExceededError struct {
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("requested quantity exceeds available stock (%d available)", e.Available)
}

func (e *StockExceededError) Is(target error) bool { return target == ErrStockExceeded }

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// line is a resolved (product, variant) pair with its current stock ceiling
// and effective price.
type line struct {
	product *model.Product
	variant *model.Variant
	stock   int
	price   decimal.Decimal
}

func (s *CartService) resolveLine(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*line, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.Active {
		return nil, ErrProductInactive
	}

	l := &line{product: product, stock: product.TotalStock, price: product.EffectivePrice()}
	if variantID != nil {
		variant, err := s.productRepo.GetVariant(ctx, productID, *variantID)
		if err != nil {
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant == nil {
			return nil, ErrVariantNotFound
		}
		l.variant = variant
		l.stock = variant.StockQuantity
		l.price = variant.EffectivePrice()
	}
	if l.stock <= 0 {
		return nil, ErrOutOfStock
	}
	return l, nil
}

func findItem(items []model.CartItem, productID uuid.UUID, variantID *uuid.UUID) *model.CartItem {
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		if (items[i].VariantID == nil) != (variantID == nil) {
			continue
		}
		if variantID == nil || *items[i].VariantID == *variantID {
			return &items[i]
		}
	}
	return nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*dto.CartResponse, error) {
	l, err := s.resolveLine(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	unitPrice := l.price
	if existing := findItem(cart.Items, productID, variantID); existing != nil {
		newQuantity += existing.Quantity
		// Price stays as captured when the line was first added.
		unitPrice = existing.UnitPrice
	}
	if newQuantity > l.stock {
		return nil, &StockExceededError{Available: l.stock}
	}

	err = s.cartRepo.SetItem(ctx, cart.ID, cart.Version, &model.CartItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  newQuantity,
		UnitPrice: unitPrice,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("set cart item: %w", err)
	}
	return s.GetCart(ctx, userID)
}

// UpdateItem overwrites the line's quantity; quantity 0 removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*dto.CartResponse, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID, variantID)
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing := findItem(cart.Items, productID, variantID)
	if existing == nil {
		return nil, ErrCartItemNotFound
	}

	l, err := s.resolveLine(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if quantity > l.stock {
		return nil, &StockExceededError{Available: l.stock}
	}

	err = s.cartRepo.SetItem(ctx, cart.ID, cart.Version, &model.CartItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: existing.UnitPrice,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("set cart item: %w", err)
	}
	return s.GetCart(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findItem(cart.Items, productID, variantID) == nil {
		return nil, ErrCartItemNotFound
	}

	err = s.cartRepo.DeleteItem(ctx, cart.ID, cart.Version, productID, variantID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	return s.GetCart(ctx, userID)
}

// GetCart is a pure read: totals are derived from the lines on every call,
// never persisted.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, cart)
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if err := s.cartRepo.ClearCart(ctx, cart.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *CartService) loadCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	withItems, err := s.cartRepo.GetCartWithItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if withItems == nil {
		return nil, ErrCartNotFound
	}
	return withItems, nil
}

func (s *CartService) buildResponse(ctx context.Context, cart *model.Cart) (*dto.CartResponse, error) {
	resp := &dto.CartResponse{
		ID:           cart.ID,
		Items:        make([]dto.CartItemResponse, 0, len(cart.Items)),
		TotalPrice:   decimal.Zero,
		TotalSavings: decimal.Zero,
	}

	for _, item := range cart.Items {
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}

		summary := dto.ProductSummary{ID: item.ProductID}
		basePrice := item.UnitPrice
		if product != nil {
			summary.Title = product.Title
			summary.Price = product.Price
			summary.SalePrice = product.SalePrice
			basePrice = product.Price
			if item.VariantID != nil {
				if v := findVariant(product.Variants, *item.VariantID); v != nil {
					basePrice = v.Price
				}
			}
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		resp.TotalItems += item.Quantity
		resp.TotalPrice = resp.TotalPrice.Add(item.UnitPrice.Mul(qty))
		if basePrice.GreaterThan(item.UnitPrice) {
			resp.TotalSavings = resp.TotalSavings.Add(basePrice.Sub(item.UnitPrice).Mul(qty))
		}

		resp.Items = append(resp.Items, dto.CartItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Product:   summary,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return resp, nil
}

func findVariant(variants []model.Variant, id uuid.UUID) *model.Variant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}
