package dto

import (
	"time"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// EntitlementQuery addresses the resource being checked. StudentID is honoured for staff only.
type EntitlementQuery struct {
	StudentID string `form:"studentId"`
	BatchID   string `form:"batchId"`
	SubjectID string `form:"subjectId"`
	ChapterID string `form:"chapterId"`
}

// ChapterView is a chapter as shown to a particular student.
type ChapterView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderIndex  int     `json:"order_index"`
	IsLocked    bool    `json:"is_locked"`
	VideoURL    *string `json:"video_url,omitempty"`
	PDFURL      *string `json:"pdf_url,omitempty"`
}

// SubjectView lists a subject and its chapters.
type SubjectView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	OrderIndex int           `json:"order_index"`
	Chapters   []ChapterView `json:"chapters"`
}

// BatchContentResponse is the batch page: metadata is always visible, content URLs only when unlocked.
type BatchContentResponse struct {
	Batch       BatchSummary          `json:"batch"`
	Access      models.AccessDecision `json:"access"`
	Subjects    []SubjectView         `json:"subjects"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// BatchSummary is the public batch metadata.
type BatchSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Schedule    string             `json:"schedule"`
	TeacherBio  string             `json:"teacher_bio"`
	Fee         int64              `json:"fee"`
	Currency    string             `json:"currency"`
	Status      models.BatchStatus `json:"status"`
	Category    string             `json:"category"`
	ClassType   string             `json:"class_type"`
}
