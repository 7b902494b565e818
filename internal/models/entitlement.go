package models

// LockReason explains why content is locked for a student.
type LockReason string

// Lock reasons surfaced to clients.
const (
	LockReasonNotEnrolled    LockReason = "not_enrolled"
	LockReasonPaymentPending LockReason = "payment_pending"
	LockReasonDropped        LockReason = "dropped"
)

var lockMessages = map[LockReason]string{
	LockReasonNotEnrolled:    "Enroll in this batch to access its content.",
	LockReasonPaymentPending: "Complete your payment to unlock this batch.",
	LockReasonDropped:        "Your enrollment in this batch has ended.",
}

// Message returns the student-facing text for the reason.
func (r LockReason) Message() string {
	return lockMessages[r]
}

// AccessDecision is computed per request and never persisted.
type AccessDecision struct {
	Unlocked bool       `json:"unlocked"`
	Reason   LockReason `json:"reason,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// Unlocked is the decision granting access.
func Unlocked() AccessDecision {
	return AccessDecision{Unlocked: true}
}

// Locked builds a locked decision carrying the canonical message for reason.
func Locked(reason LockReason) AccessDecision {
	return AccessDecision{Reason: reason, Message: reason.Message()}
}

// ResourcePath addresses a batch, a subject in it, or a chapter in that subject.
type ResourcePath struct {
	BatchID   string
	SubjectID string
	ChapterID string
}
