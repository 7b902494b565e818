package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// CatalogRepository reads batches, subjects and chapters. The catalog is owned by admin tooling.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const batchColumns = `id, name, description, schedule, teacher_bio, fee, currency, capacity, status, category, class_type,
       start_date, end_date, created_at, updated_at`

// FindBatch returns a batch by ID.
func (r *CatalogRepository) FindBatch(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindSubject returns a subject only when it belongs to the batch.
func (r *CatalogRepository) FindSubject(ctx context.Context, batchID, id string) (*models.Subject, error) {
	const query = `SELECT id, batch_id, name, order_index, created_at FROM subjects WHERE id = $1 AND batch_id = $2`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id, batchID); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindChapter returns a chapter only when it belongs to the subject.
func (r *CatalogRepository) FindChapter(ctx context.Context, subjectID, id string) (*models.Chapter, error) {
	const query = `SELECT id, subject_id, name, description, order_index, video_url, pdf_url, created_at
        FROM chapters WHERE id = $1 AND subject_id = $2`
	var chapter models.Chapter
	if err := r.db.GetContext(ctx, &chapter, query, id, subjectID); err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ListSubjects returns the subjects of a batch in display order.
func (r *CatalogRepository) ListSubjects(ctx context.Context, batchID string) ([]models.Subject, error) {
	const query = `SELECT id, batch_id, name, order_index, created_at FROM subjects WHERE batch_id = $1 ORDER BY order_index ASC, name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, batchID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListChapters returns every chapter of a batch ordered by subject then chapter index.
func (r *CatalogRepository) ListChapters(ctx context.Context, batchID string) ([]models.Chapter, error) {
	const query = `SELECT ch.id, ch.subject_id, ch.name, ch.description, ch.order_index, ch.video_url, ch.pdf_url, ch.created_at
        FROM chapters ch
        JOIN subjects s ON s.id = ch.subject_id
        WHERE s.batch_id = $1
        ORDER BY s.order_index ASC, ch.order_index ASC`
	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, query, batchID); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}
