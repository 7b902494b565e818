package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
)

type enrollmentReader interface {
	FindByBatchAndStudent(ctx context.Context, batchID, studentID string) (*models.Enrollment, error)
}

type catalogReader interface {
	Batch(ctx context.Context, id string) (*models.Batch, error)
	Subject(ctx context.Context, batchID, id string) (*models.Subject, error)
	Chapter(ctx context.Context, subjectID, id string) (*models.Chapter, error)
	Outline(ctx context.Context, batch *models.Batch) (*models.BatchOutline, error)
}

// EntitlementService answers whether a student may see a batch, subject or chapter.
// Decisions are recomputed on every call.
type EntitlementService struct {
	catalog     catalogReader
	enrollments enrollmentReader
	logger      *zap.Logger
	now         func() time.Time
}

// NewEntitlementService constructs EntitlementService.
func NewEntitlementService(catalog catalogReader, enrollments enrollmentReader, logger *zap.Logger) *EntitlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementService{catalog: catalog, enrollments: enrollments, logger: logger, now: time.Now}
}

// Evaluate resolves the resource path and returns the decision for the student. A missing resource
// is NotFound; a locked resource is a decision, not an error.
func (s *EntitlementService) Evaluate(ctx context.Context, studentID string, path models.ResourcePath) (models.AccessDecision, error) {
	if strings.TrimSpace(studentID) == "" {
		return models.AccessDecision{}, appErrors.ErrUnauthorized
	}
	if path.BatchID == "" || (path.ChapterID != "" && path.SubjectID == "") {
		return models.AccessDecision{}, appErrors.Clone(appErrors.ErrValidation, "batchId is required and chapterId needs subjectId")
	}

	if _, err := s.catalog.Batch(ctx, path.BatchID); err != nil {
		return models.AccessDecision{}, err
	}
	if path.SubjectID != "" {
		if _, err := s.catalog.Subject(ctx, path.BatchID, path.SubjectID); err != nil {
			return models.AccessDecision{}, err
		}
	}
	if path.ChapterID != "" {
		if _, err := s.catalog.Chapter(ctx, path.SubjectID, path.ChapterID); err != nil {
			return models.AccessDecision{}, err
		}
	}

	enrollment, err := s.lookupEnrollment(ctx, path.BatchID, studentID)
	if err != nil {
		return models.AccessDecision{}, err
	}
	return Decide(enrollment), nil
}

// Content renders the batch page for the student. Titles are always listed; chapter URLs are
// withheld unless the batch is unlocked.
func (s *EntitlementService) Content(ctx context.Context, studentID, batchID string) (*dto.BatchContentResponse, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.ErrUnauthorized
	}

	var (
		batch      *models.Batch
		enrollment *models.Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		batch, err = s.catalog.Batch(gctx, batchID)
		return err
	})
	g.Go(func() error {
		var err error
		enrollment, err = s.lookupEnrollment(gctx, batchID, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outline, err := s.catalog.Outline(ctx, batch)
	if err != nil {
		return nil, err
	}

	decision := Decide(enrollment)
	return buildContent(batch, outline, decision, s.now().UTC()), nil
}

func (s *EntitlementService) lookupEnrollment(ctx context.Context, batchID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByBatchAndStudent(ctx, batchID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.Error("enrollment lookup failed", zap.String("batch_id", batchID), zap.String("student_id", studentID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func buildContent(batch *models.Batch, outline *models.BatchOutline, decision models.AccessDecision, at time.Time) *dto.BatchContentResponse {
	locked := !decision.Unlocked
	bySubject := make(map[string][]dto.ChapterView, len(outline.Subjects))
	for _, ch := range outline.Chapters {
		view := dto.ChapterView{
			ID:          ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			OrderIndex:  ch.OrderIndex,
			IsLocked:    locked,
		}
		if !locked {
			view.VideoURL = ch.VideoURL
			view.PDFURL = ch.PDFURL
		}
		bySubject[ch.SubjectID] = append(bySubject[ch.SubjectID], view)
	}

	subjects := make([]dto.SubjectView, 0, len(outline.Subjects))
	for _, subj := range outline.Subjects {
		chapters := bySubject[subj.ID]
		if chapters == nil {
			chapters = []dto.ChapterView{}
		}
		subjects = append(subjects, dto.SubjectView{ID: subj.ID, Name: subj.Name, OrderIndex: subj.OrderIndex, Chapters: chapters})
	}

	return &dto.BatchContentResponse{
		Batch: dto.BatchSummary{
			ID:          batch.ID,
			Name:        batch.Name,
			Description: batch.Description,
			Schedule:    batch.Schedule,
			TeacherBio:  batch.TeacherBio,
			Fee:         batch.Fee,
			Currency:    batch.Currency,
			Status:      batch.Status,
			Category:    batch.Category,
			ClassType:   batch.ClassType,
		},
		Access:      decision,
		Subjects:    subjects,
		GeneratedAt: at,
	}
}
