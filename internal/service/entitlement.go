package service

import "github.com/noah-isme/batchpass-api/internal/models"

// Decide maps an enrollment (nil when absent) to an access decision. It is the only place lock
// reasons are derived, so every surface that gates content agrees.
func Decide(enrollment *models.Enrollment) models.AccessDecision {
	if enrollment == nil {
		return models.Locked(models.LockReasonNotEnrolled)
	}
	if enrollment.PaymentStatus == models.EnrollmentPaymentRefunded {
		return models.Locked(models.LockReasonDropped)
	}
	switch enrollment.Status {
	case models.EnrollmentStatusDropped, models.EnrollmentStatusInactive:
		return models.Locked(models.LockReasonDropped)
	case models.EnrollmentStatusActive, models.EnrollmentStatusCompleted:
		if enrollment.PaymentStatus == models.EnrollmentPaymentPaid {
			return models.Unlocked()
		}
	}
	return models.Locked(models.LockReasonPaymentPending)
}
