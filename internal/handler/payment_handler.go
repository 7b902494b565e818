package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/response"
)

type settlementService interface {
	VerifyAndSettle(ctx context.Context, studentID string, req dto.VerifyPaymentRequest, meta models.RequestMeta) (*dto.VerifyPaymentResponse, error)
}

type paymentHistoryService interface {
	List(ctx context.Context, studentID string, query dto.PaymentHistoryQuery) ([]models.PaymentDetail, *models.Pagination, error)
	Get(ctx context.Context, studentID, id string) (*models.PaymentDetail, error)
	ExportCSV(ctx context.Context, studentID string, w io.Writer) error
	ReceiptLink(ctx context.Context, studentID, id string) (*dto.ReceiptLinkResponse, error)
	OpenReceipt(ctx context.Context, token string) (*os.File, string, error)
}

// PaymentHandler exposes settlement and payment history endpoints.
type PaymentHandler struct {
	settlement settlementService
	history    paymentHistoryService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(settlement settlementService, history paymentHistoryService) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, history: history}
}

// Verify godoc
// @Summary Verify a gateway callback and activate the enrollment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.VerifyPaymentRequest true "Gateway callback"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.settlement.VerifyAndSettle(c.Request.Context(), callerID(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List own payments
// @Tags Payments
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var query dto.PaymentHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	items, pagination, err := h.history.List(c.Request.Context(), callerID(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get one own payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment record ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	detail, err := h.history.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Export godoc
// @Summary Download own payment history as CSV
// @Tags Payments
// @Produce text/csv
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	// Rendered into memory first so a failure still produces a JSON error.
	var buf bytes.Buffer
	if err := h.history.ExportCSV(c.Request.Context(), callerID(c), &buf); err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("payments-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ReceiptLink godoc
// @Summary Get a signed receipt download link
// @Tags Payments
// @Produce json
// @Param id path string true "Payment record ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) ReceiptLink(c *gin.Context) {
	link, err := h.history.ReceiptLink(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadReceipt godoc
// @Summary Download a receipt PDF by signed token
// @Tags Payments
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Router /receipts/{token} [get]
func (h *PaymentHandler) DownloadReceipt(c *gin.Context) {
	file, name, err := h.history.OpenReceipt(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt"))
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}
