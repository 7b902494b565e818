package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/response"
)

type orderService interface {
	CreateOrder(ctx context.Context, studentID string, req dto.CreateOrderRequest, meta models.RequestMeta) (*dto.CreateOrderResponse, error)
}

// OrderHandler exposes checkout endpoints.
type OrderHandler struct {
	orders orderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders orderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create godoc
// @Summary Create a gateway order for a batch
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body dto.CreateOrderRequest true "Order payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), callerID(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}
