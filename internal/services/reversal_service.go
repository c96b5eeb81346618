package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

type CancelRequest struct {
	PaymentID   uuid.UUID
	CancelledBy string
	Reason      string
}

// ReversalService cancels completed payments and backs them out of the ledger.
// The receipt number stays consumed.
type ReversalService struct {
	db         *gorm.DB
	cache      *RedisCache
	maxRetries uint
	now        func() time.Time
}

func NewReversalService(db *gorm.DB, cache *RedisCache, maxRetries uint) *ReversalService {
	return &ReversalService{db: db, cache: cache, maxRetries: maxRetries, now: time.Now}
}

// Cancel reverses a COMPLETED payment. Cancelling twice fails with ErrInvalidState.
func (s *ReversalService) Cancel(ctx context.Context, req CancelRequest) (*models.Payment, error) {
	var out *models.Payment
	err := runLedgerTx(ctx, s.db, s.maxRetries, func(tx *gorm.DB) error {
		payment, err := loadPayment(tx, req.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusCompleted {
			return fmt.Errorf("payment %s is %s: %w", payment.ID, payment.Status, ErrInvalidState)
		}

		enr, err := loadEnrollment(tx, payment.StudentEnrollmentID)
		if err != nil {
			return err
		}
		var others []models.Payment
		if err := tx.Where("student_enrollment_id = ? AND status = ? AND id <> ?",
			enr.ID, models.PaymentStatusCompleted, payment.ID).Find(&others).Error; err != nil {
			return fmt.Errorf("load payments of enrollment %s: %w", enr.ID, err)
		}
		reversePayment(enr, payment, others)
		enr.SetTotals(RecomputeTotals(enr.Fees, enr.Scholarships))
		if err := saveEnrollment(tx, enr); err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusCancelled,
				"cancelled_at":  now,
				"cancelled_by":  req.CancelledBy,
				"cancel_reason": req.Reason,
			})
		if res.Error != nil {
			return fmt.Errorf("cancel payment %s: %w", payment.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("payment %s changed since read: %w", payment.ID, ErrConcurrencyConflict)
		}

		payment.Status = models.PaymentStatusCancelled
		payment.CancelledAt = &now
		payment.CancelledBy = req.CancelledBy
		payment.CancelReason = req.Reason
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateReports(ctx, s.cache, out.AcademicYearID)
	log.Printf("Payment %s receipt %s cancelled by %s", out.ID, out.ReceiptNo, out.CancelledBy)
	return out, nil
}
