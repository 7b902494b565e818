package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batchpass-api/internal/models"
)

func TestCatalogRepositoryFindBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "schedule", "teacher_bio", "fee", "currency", "capacity",
		"status", "category", "class_type", "start_date", "end_date", "created_at", "updated_at"}).
		AddRow("batch-1", "JEE Physics", "Mechanics and waves", "Mon-Fri 6pm", "IIT alumnus", int64(499900), "INR", 100,
			"active", "engineering", "live", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM batches WHERE id = $1")).
		WithArgs("batch-1").
		WillReturnRows(rows)

	batch, err := repo.FindBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(499900), batch.Fee)
	assert.True(t, batch.Purchasable())
}

func TestCatalogRepositoryFindSubjectScopedToBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE id = $1 AND batch_id = $2")).
		WithArgs("subj-9", "batch-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindSubject(context.Background(), "batch-1", "subj-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCatalogRepositoryListChapters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "subject_id", "name", "description", "order_index", "video_url", "pdf_url", "created_at"}).
		AddRow("ch-1", "subj-1", "Kinematics", "", 1, "https://cdn/video/1", nil, now).
		AddRow("ch-2", "subj-1", "Dynamics", "", 2, nil, "https://cdn/pdf/2", now)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN subjects s ON s.id = ch.subject_id")).
		WithArgs("batch-1").
		WillReturnRows(rows)

	chapters, err := repo.ListChapters(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	require.NotNil(t, chapters[0].VideoURL)
	assert.Nil(t, chapters[0].PDFURL)
	assert.IsType(t, models.Chapter{}, chapters[1])
}
