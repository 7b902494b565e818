package models

import "time"

// BatchStatus represents the publishing lifecycle of a batch.
type BatchStatus string

// Possible batch statuses.
const (
	BatchStatusDraft     BatchStatus = "draft"
	BatchStatusActive    BatchStatus = "active"
	BatchStatusInactive  BatchStatus = "inactive"
	BatchStatusCompleted BatchStatus = "completed"
)

// Batch is a purchasable course offering. Owned by admin tooling.
type Batch struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Schedule    string      `db:"schedule" json:"schedule"`
	TeacherBio  string      `db:"teacher_bio" json:"teacher_bio"`
	Fee         int64       `db:"fee" json:"fee"`
	Currency    string      `db:"currency" json:"currency"`
	Capacity    int         `db:"capacity" json:"capacity"`
	Status      BatchStatus `db:"status" json:"status"`
	Category    string      `db:"category" json:"category"`
	ClassType   string      `db:"class_type" json:"class_type"`
	StartDate   *time.Time  `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time  `db:"end_date" json:"end_date,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Purchasable reports whether new orders may be issued for the batch.
func (b *Batch) Purchasable() bool {
	return b != nil && b.Status == BatchStatusActive
}

// Subject groups chapters inside a batch.
type Subject struct {
	ID         string    `db:"id" json:"id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	Name       string    `db:"name" json:"name"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Chapter holds the gated learning content.
type Chapter struct {
	ID          string    `db:"id" json:"id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OrderIndex  int       `db:"order_index" json:"order_index"`
	VideoURL    *string   `db:"video_url" json:"video_url,omitempty"`
	PDFURL      *string   `db:"pdf_url" json:"pdf_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BatchOutline is the ordered subject and chapter listing of a batch.
type BatchOutline struct {
	Subjects []Subject `json:"subjects"`
	Chapters []Chapter `json:"chapters"`
}
