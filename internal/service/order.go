package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/dto"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/repository"
)

// OrderService is the read side: payments presented as orders with a derived
// display status. No state transitions happen here.
type OrderService struct {
	paymentRepo repository.PaymentRepository
}

func NewOrderService(paymentRepo repository.PaymentRepository) *OrderService {
	return &OrderService{paymentRepo: paymentRepo}
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]dto.OrderResponse, error) {
	payments, err := s.paymentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return toOrderResponses(payments), nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]dto.OrderResponse, error) {
	payments, err := s.paymentRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return toOrderResponses(payments), nil
}

func toOrderResponses(payments []model.Payment) []dto.OrderResponse {
	orders := make([]dto.OrderResponse, 0, len(payments))
	for _, p := range payments {
		items := make([]dto.OrderItemResponse, 0, len(p.Items))
		for _, item := range p.Items {
			items = append(items, dto.OrderItemResponse{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Title:     item.Title,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		orders = append(orders, dto.OrderResponse{
			ID:             p.ID,
			GatewayOrderID: p.GatewayOrderID,
			Status:         model.DerivedOrderStatus(p.Status),
			PaymentStatus:  p.Status,
			Amount:         p.AmountPaise,
			Currency:       p.Currency,
			Items:          items,
			CreatedAt:      p.CreatedAt,
		})
	}
	return orders
}
