package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batchpass-api/internal/models"
	"github.com/noah-isme/batchpass-api/pkg/response"
)

type reconciliationLister interface {
	ListOpen(ctx context.Context, limit int) ([]models.ReconciliationTicket, error)
}

type outlineInvalidator interface {
	InvalidateOutline(ctx context.Context, batchID string) error
}

// AdminHandler serves support tooling.
type AdminHandler struct {
	reconciliations reconciliationLister
	catalog         outlineInvalidator
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(reconciliations reconciliationLister, catalog outlineInvalidator) *AdminHandler {
	return &AdminHandler{reconciliations: reconciliations, catalog: catalog}
}

// Reconciliations godoc
// @Summary List open reconciliation tickets
// @Tags Admin
// @Produce json
// @Param limit query int false "Maximum tickets"
// @Success 200 {object} response.Envelope
// @Router /admin/reconciliations [get]
func (h *AdminHandler) Reconciliations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	tickets, err := h.reconciliations.ListOpen(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, nil)
}

// InvalidateCatalog godoc
// @Summary Drop the cached outline of a batch after editing it
// @Tags Admin
// @Param batchId path string true "Batch ID"
// @Success 204
// @Router /admin/catalog/{batchId}/cache [delete]
func (h *AdminHandler) InvalidateCatalog(c *gin.Context) {
	if err := h.catalog.InvalidateOutline(c.Request.Context(), c.Param("batchId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
