package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/export"
	"github.com/noah-isme/batchpass-api/pkg/pricing"
	"github.com/noah-isme/batchpass-api/pkg/storage"
)

const exportPageSize = 100

type paymentHistoryRepository interface {
	ListByStudent(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
}

type receiptStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type receiptSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string) (ownerID, relPath string, err error)
}

type csvRenderer interface {
	Render(w io.Writer, data export.Dataset) error
}

type receiptRenderer interface {
	Render(receipt export.Receipt) ([]byte, error)
}

// PaymentHistoryConfig controls receipt links.
type PaymentHistoryConfig struct {
	ReceiptBaseURL string
}

// PaymentHistoryService is the read side of payment records for the owning student.
type PaymentHistoryService struct {
	repo      paymentHistoryRepository
	store     receiptStore
	signer    receiptSigner
	csv       csvRenderer
	receipts  receiptRenderer
	validator *validator.Validate
	logger    *zap.Logger
	config    PaymentHistoryConfig
}

// NewPaymentHistoryService constructs PaymentHistoryService.
func NewPaymentHistoryService(repo paymentHistoryRepository, store receiptStore, signer receiptSigner, csv csvRenderer, receipts receiptRenderer, validate *validator.Validate, logger *zap.Logger, config PaymentHistoryConfig) *PaymentHistoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ReceiptBaseURL = strings.TrimRight(config.ReceiptBaseURL, "/")
	return &PaymentHistoryService{
		repo:      repo,
		store:     store,
		signer:    signer,
		csv:       csv,
		receipts:  receipts,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// List returns the student's payments newest first.
func (s *PaymentHistoryService) List(ctx context.Context, studentID string, query dto.PaymentHistoryQuery) ([]models.PaymentDetail, *models.Pagination, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment history query")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}

	items, total, err := s.repo.ListByStudent(ctx, models.PaymentFilter{StudentID: studentID, Status: query.Status, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if items == nil {
		items = []models.PaymentDetail{}
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one payment. Records of other students are reported as missing.
func (s *PaymentHistoryService) Get(ctx context.Context, studentID, id string) (*models.PaymentDetail, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrPaymentRecordNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if detail.StudentID != studentID {
		return nil, appErrors.ErrPaymentRecordNotFound
	}
	return detail, nil
}

// ExportCSV writes the student's full payment history to w.
func (s *PaymentHistoryService) ExportCSV(ctx context.Context, studentID string, w io.Writer) error {
	if strings.TrimSpace(studentID) == "" {
		return appErrors.ErrUnauthorized
	}
	data := export.Dataset{Headers: []string{"payment_id", "batch", "amount", "currency", "status", "gateway_order_id", "gateway_payment_id", "created_at", "paid_at"}}
	for page := 1; ; page++ {
		items, total, err := s.repo.ListByStudent(ctx, models.PaymentFilter{StudentID: studentID, Page: page, PageSize: exportPageSize})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export payments")
		}
		for _, item := range items {
			data.Rows = append(data.Rows, paymentRow(item))
		}
		if len(items) == 0 || page*exportPageSize >= total {
			break
		}
	}
	if err := s.csv.Render(w, data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return nil
}

// ReceiptLink renders the receipt of a successful payment and returns a short-lived download link.
func (s *PaymentHistoryService) ReceiptLink(ctx context.Context, studentID, id string) (*dto.ReceiptLinkResponse, error) {
	detail, err := s.Get(ctx, studentID, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.PaymentStatusSuccess {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "receipts are only available for successful payments")
	}

	pdf, err := s.receipts.Render(s.receiptFor(detail))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	relPath, err := s.store.Save(receiptPath(studentID, detail.ID), pdf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}
	token, expiresAt, err := s.signer.Generate(studentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &dto.ReceiptLinkResponse{URL: s.config.ReceiptBaseURL + "/" + token, ExpiresAt: expiresAt}, nil
}

// OpenReceipt resolves a download token to the stored PDF. The caller closes the file.
func (s *PaymentHistoryService) OpenReceipt(ctx context.Context, token string) (*os.File, string, error) {
	owner, relPath, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "receipt link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
	}
	if !strings.HasPrefix(relPath, "receipts/"+owner+"/") {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt no longer available, request a new link")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt")
	}
	return file, relPath[strings.LastIndex(relPath, "/")+1:], nil
}

// CleanupReceipts deletes rendered receipts older than retain.
func (s *PaymentHistoryService) CleanupReceipts(retain time.Duration) (int, error) {
	deleted, err := s.store.CleanupOlderThan(retain)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("receipts cleaned up", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func (s *PaymentHistoryService) receiptFor(detail *models.PaymentDetail) export.Receipt {
	// The breakdown uses the rate the order was priced at, never the current config.
	fee, tax := pricing.Split(detail.Amount, detail.TaxRateBps)
	issued := detail.CreatedAt
	if detail.PaidAt != nil {
		issued = *detail.PaidAt
	}
	item := detail.BatchName
	if item == "" {
		item = "Batch " + detail.BatchID
	}
	return export.Receipt{
		Number:     detail.ID,
		IssuedAt:   issued,
		BilledTo:   detail.Name,
		Email:      detail.Email,
		Phone:      detail.Phone,
		Item:       item,
		ItemAmount: pricing.Format(fee, detail.Currency),
		Lines: []export.ReceiptLine{{
			Label:  fmt.Sprintf("Tax (%s%%)", strconv.FormatFloat(float64(detail.TaxRateBps)/100, 'f', -1, 64)),
			Amount: pricing.Format(tax, detail.Currency),
		}},
		Total:            pricing.Format(detail.Amount, detail.Currency),
		GatewayOrderID:   derefString(detail.GatewayOrderID),
		GatewayPaymentID: derefString(detail.GatewayPaymentID),
	}
}

func paymentRow(item models.PaymentDetail) map[string]string {
	row := map[string]string{
		"payment_id":         item.ID,
		"batch":              item.BatchName,
		"amount":             pricing.Decimal(item.Amount),
		"currency":           item.Currency,
		"status":             string(item.Status),
		"gateway_order_id":   derefString(item.GatewayOrderID),
		"gateway_payment_id": derefString(item.GatewayPaymentID),
		"created_at":         item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.PaidAt != nil {
		row["paid_at"] = item.PaidAt.UTC().Format(time.RFC3339)
	}
	return row
}

func receiptPath(studentID, paymentID string) string {
	return "receipts/" + studentID + "/" + paymentID + ".pdf"
}
