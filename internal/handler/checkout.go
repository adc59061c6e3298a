package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/dto"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/middleware"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/model"
	"github.com/mohitsatyarthiii/kanjique-jewels-project-sub001/internal/service"
)

type CheckoutHandler struct {
	svc *service.CheckoutService
}

func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	// Body is optional: empty body means checkout of the whole cart.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	result, err := h.svc.CreateIntent(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		checkoutError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": result.Order, "key": result.Key})
}

func (h *CheckoutHandler) VerifyPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	payment, err := h.svc.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		checkoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": toPaymentResponse(payment)})
}

func (h *CheckoutHandler) ReportFailure(c *gin.Context) {
	var req dto.PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	payment, err := h.svc.ReportFailure(c.Request.Context(), req)
	if err != nil {
		checkoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": toPaymentResponse(payment)})
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:             p.ID,
		GatewayOrderID: p.GatewayOrderID,
		PaymentID:      p.PaymentID,
		Receipt:        p.Receipt,
		Amount:         p.AmountPaise,
		Currency:       p.Currency,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
	}
}

func checkoutError(c *gin.Context, err error) {
	var stockErr *service.StockExceededError
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrProductInactive):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false, "error": stockErr.Error(), "available": stockErr.Available,
		})
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, service.ErrVerificationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payment verification failed"})
	case errors.Is(err, service.ErrPaymentTerminal):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, service.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "payment gateway unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}
