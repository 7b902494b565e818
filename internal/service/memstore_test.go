package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/batchpass-api/internal/gateway"
	"github.com/noah-isme/batchpass-api/internal/models"
	"github.com/noah-isme/batchpass-api/internal/repository"
)

// memStore is an in-memory stand-in for the catalog, enrollment, payment and settlement repositories.
// Settle serialises on the mutex the way the row lock does in Postgres.
type memStore struct {
	mu              sync.Mutex
	batches         map[string]models.Batch
	subjects        map[string]models.Subject
	chapters        map[string]models.Chapter
	enrollments     map[string]models.Enrollment
	payments        map[string]models.PaymentRecord
	gatewayPayments map[string]string
	audits          []models.AuditLog

	settleErr     error
	enrollmentErr error
	createErr     error
}

func newMemStore() *memStore {
	return &memStore{
		batches:         map[string]models.Batch{},
		subjects:        map[string]models.Subject{},
		chapters:        map[string]models.Chapter{},
		enrollments:     map[string]models.Enrollment{},
		payments:        map[string]models.PaymentRecord{},
		gatewayPayments: map[string]string{},
	}
}

func enrollmentKey(batchID, studentID string) string { return batchID + "|" + studentID }

func (m *memStore) addBatch(b models.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
}

func (m *memStore) addSubject(s models.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[s.ID] = s
}

func (m *memStore) addChapter(c models.Chapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters[c.ID] = c
}

func (m *memStore) putEnrollment(e models.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.enrollments[enrollmentKey(e.BatchID, e.StudentID)] = e
}

func (m *memStore) enrollmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enrollments)
}

func (m *memStore) payment(id string) models.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *memStore) FindBatch(ctx context.Context, id string) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (m *memStore) FindSubject(ctx context.Context, batchID, id string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok || s.BatchID != batchID {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *memStore) FindChapter(ctx context.Context, subjectID, id string) (*models.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chapters[id]
	if !ok || c.SubjectID != subjectID {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memStore) ListSubjects(ctx context.Context, batchID string) ([]models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Subject
	for _, s := range m.subjects {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) ListChapters(ctx context.Context, batchID string) ([]models.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chapter
	for _, c := range m.chapters {
		if s, ok := m.subjects[c.SubjectID]; ok && s.BatchID == batchID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := m.subjects[out[i].SubjectID], m.subjects[out[j].SubjectID]
		if si.OrderIndex != sj.OrderIndex {
			return si.OrderIndex < sj.OrderIndex
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (m *memStore) FindByBatchAndStudent(ctx context.Context, batchID, studentID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enrollmentErr != nil {
		return nil, m.enrollmentErr
	}
	e, ok := m.enrollments[enrollmentKey(batchID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *memStore) CountActiveSeats(ctx context.Context, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.enrollments {
		if e.BatchID == batchID && e.Status == models.EnrollmentStatusActive && e.PaymentStatus == models.EnrollmentPaymentPaid {
			total++
		}
	}
	return total, nil
}

func (m *memStore) Create(ctx context.Context, record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = models.PaymentStatusPending
	record.CreatedAt = time.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	m.payments[record.ID] = *record
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *memStore) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.PaymentDetail{PaymentRecord: p, BatchName: m.batches[p.BatchID].Name}, nil
}

func (m *memStore) AttachGatewayOrder(ctx context.Context, id, gatewayOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending || p.GatewayOrderID != nil {
		return models.ErrPaymentNotPending
	}
	p.GatewayOrderID = &gatewayOrderID
	m.payments[id] = p
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	verified := false
	p.Status = models.PaymentStatusFailed
	p.SignatureVerified = &verified
	p.FailureReason = &reason
	m.payments[id] = p
	return true, nil
}

func (m *memStore) ListByStudent(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.PaymentDetail
	for _, p := range m.payments {
		if p.StudentID != filter.StudentID || (filter.Status != "" && p.Status != filter.Status) {
			continue
		}
		all = append(all, models.PaymentDetail{PaymentRecord: p, BatchName: m.batches[p.BatchID].Name})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *log)
	return nil
}

func (m *memStore) Settle(ctx context.Context, params repository.SettleParams) (*repository.SettleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleErr != nil {
		return nil, m.settleErr
	}
	p, ok := m.payments[params.PaymentRecordID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	switch p.Status {
	case models.PaymentStatusSuccess:
		return &repository.SettleResult{EnrollmentID: *p.EnrollmentID, Replayed: true}, nil
	case models.PaymentStatusPending:
	default:
		return nil, models.ErrPaymentNotPending
	}
	if owner, claimed := m.gatewayPayments[params.GatewayPaymentID]; claimed && owner != p.ID {
		return nil, models.ErrGatewayPaymentClaimed
	}

	key := enrollmentKey(p.BatchID, p.StudentID)
	e, exists := m.enrollments[key]
	if !exists {
		e = models.Enrollment{ID: uuid.NewString(), BatchID: p.BatchID, StudentID: p.StudentID, CreatedAt: params.PaidAt}
	}
	if e.EnrolledAt == nil {
		at := params.PaidAt
		e.EnrolledAt = &at
	}
	e.Status = models.EnrollmentStatusActive
	e.PaymentStatus = models.EnrollmentPaymentPaid
	e.UpdatedAt = params.PaidAt
	m.enrollments[key] = e

	verified := true
	gpid := params.GatewayPaymentID
	paidAt := params.PaidAt
	p.Status = models.PaymentStatusSuccess
	p.SignatureVerified = &verified
	p.GatewayPaymentID = &gpid
	p.PaidAt = &paidAt
	p.EnrollmentID = &e.ID
	m.payments[p.ID] = p
	m.gatewayPayments[gpid] = p.ID
	m.audits = append(m.audits, models.AuditLog{Action: models.AuditActionSettlementSuccess, ResourceID: &p.ID})

	return &repository.SettleResult{EnrollmentID: e.ID}, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	err         error
	requests    []gateway.OrderRequest
	sawDeadline bool
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, g.sawDeadline = ctx.Deadline()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Order{ID: "order_" + req.Receipt[:8], Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	tickets []models.ReconciliationTicket
	err     error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, ticket models.ReconciliationTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tickets = append(f.tickets, ticket)
	return nil
}

const testSigningSecret = "test_signing_secret"

// seedCatalog adds an active batch with one subject and two chapters.
func seedCatalog(m *memStore) {
	video := "https://cdn.example.com/v/1"
	pdf := "https://cdn.example.com/p/2"
	m.addBatch(models.Batch{ID: "batch-1", Name: "JEE Physics", Fee: 499900, Currency: "INR", Status: models.BatchStatusActive})
	m.addSubject(models.Subject{ID: "subj-1", BatchID: "batch-1", Name: "Mechanics", OrderIndex: 1})
	m.addChapter(models.Chapter{ID: "ch-1", SubjectID: "subj-1", Name: "Kinematics", OrderIndex: 1, VideoURL: &video})
	m.addChapter(models.Chapter{ID: "ch-2", SubjectID: "subj-1", Name: "Dynamics", OrderIndex: 2, PDFURL: &pdf})
}
