package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// ReceiptTaskName is the scheduled task enqueued for every completed payment
// when receipt notifications are enabled
const ReceiptTaskName = "send_receipt"

type PaymentConfig struct {
	RecentPaymentsLimit int
	MaxRetries          uint
	NotifyReceipts      bool
}

type CollectRequest struct {
	EnrollmentID uuid.UUID
	Amount       decimal.Decimal
	Method       models.PaymentMethod
	Remarks      string
	CreatedBy    string
	// Allocation is an explicit split across fee lines; empty means greedy by fee order.
	Allocation     []Allocation
	IdempotencyKey string
}

// PaymentService collects payments against an enrollment ledger
type PaymentService struct {
	db        *gorm.DB
	cache     *RedisCache
	sequencer *ReceiptSequencer
	cfg       PaymentConfig
	now       func() time.Time
}

func NewPaymentService(db *gorm.DB, cache *RedisCache, sequencer *ReceiptSequencer, cfg PaymentConfig) *PaymentService {
	if cfg.RecentPaymentsLimit <= 0 {
		cfg.RecentPaymentsLimit = DefaultRecentPaymentsLimit
	}
	return &PaymentService{
		db:        db,
		cache:     cache,
		sequencer: sequencer,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Collect allocates a payment across the enrollment's outstanding fees, advances the
// receipt sequence and records the payment, all in one transaction. Overpayment is
// rejected: amount may not exceed the enrollment's net due.
func (s *PaymentService) Collect(ctx context.Context, req CollectRequest) (*models.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount %s must be positive: %w", req.Amount, ErrInvalidAmount)
	}
	if err := checkMoneyScale("payment amount", req.Amount); err != nil {
		return nil, err
	}
	if !models.ValidPaymentMethod(req.Method) {
		return nil, fmt.Errorf("payment method %q: %w", req.Method, ErrValidation)
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	var payment *models.Payment
	replayed := false
	err := runLedgerTx(ctx, s.db, s.cfg.MaxRetries, func(tx *gorm.DB) error {
		replayed = false
		if key != "" {
			existing, err := findByIdempotencyKey(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.StudentEnrollmentID != req.EnrollmentID {
					return fmt.Errorf("idempotency key %q used for another enrollment: %w", key, ErrConflict)
				}
				payment, replayed = existing, true
				return nil
			}
		}

		p, err := s.collect(ctx, tx, req, key)
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return payment, nil
	}

	invalidateReports(ctx, s.cache, payment.AcademicYearID)
	log.Printf("Payment %s receipt %s collected %s on enrollment %s by %s",
		payment.ID, payment.ReceiptNo, payment.TotalAmount, payment.StudentEnrollmentID, payment.CreatedBy)
	return payment, nil
}

func (s *PaymentService) collect(ctx context.Context, tx *gorm.DB, req CollectRequest, key string) (*models.Payment, error) {
	enr, err := loadEnrollment(tx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !enr.IsActive {
		return nil, fmt.Errorf("enrollment %s is inactive: %w", enr.ID, ErrInvalidState)
	}

	current, _ := RecomputeTotals(enr.Fees, enr.Scholarships)
	if req.Amount.GreaterThan(current.NetAmount.Due) {
		return nil, fmt.Errorf("payment %s exceeds net due %s: %w", req.Amount, current.NetAmount.Due, ErrInvalidAmount)
	}

	allocs := req.Allocation
	if len(allocs) > 0 {
		if err := validateAllocation(enr.Fees, allocs, req.Amount); err != nil {
			return nil, err
		}
	} else {
		var remaining decimal.Decimal
		allocs, remaining = AllocateGreedy(enr.Fees, req.Amount)
		if remaining.IsPositive() {
			return nil, fmt.Errorf("payment leaves %s unallocated: %w", remaining, ErrInvalidAmount)
		}
	}

	seq, err := s.sequencer.Next(ctx, tx, enr.AcademicYearID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		ID:                  uuid.New(),
		AcademicYearID:      enr.AcademicYearID,
		ReceiptSequence:     seq,
		ReceiptNo:           FormatReceiptNo(seq),
		StudentEnrollmentID: enr.ID,
		StudentID:           enr.StudentID,
		TotalAmount:         req.Amount,
		PaymentDate:         now,
		PaymentMethod:       req.Method,
		Status:              models.PaymentStatusCompleted,
		Remarks:             req.Remarks,
		CreatedBy:           req.CreatedBy,
		StudentInfo:         datatypes.NewJSONType(enr.StudentInfo.Data()),
		AcademicYearInfo:    datatypes.NewJSONType(enr.AcademicYearInfo.Data()),
	}
	if key != "" {
		payment.IdempotencyKey = &key
	}

	payment.PaymentItems = applyAllocation(enr, allocs, models.RecentPayment{
		PaymentID: payment.ID,
		ReceiptNo: payment.ReceiptNo,
		Date:      now,
	}, s.cfg.RecentPaymentsLimit)

	enr.SetTotals(RecomputeTotals(enr.Fees, enr.Scholarships))
	if err := saveEnrollment(tx, enr); err != nil {
		return nil, err
	}

	if err := tx.Create(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if key != "" {
				return nil, fmt.Errorf("receipt %s in year %s or idempotency key %q already recorded: %w",
					payment.ReceiptNo, payment.AcademicYearID, key, ErrConflict)
			}
			return nil, fmt.Errorf("receipt %s in year %s already recorded: %w", payment.ReceiptNo, payment.AcademicYearID, ErrConflict)
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if s.cfg.NotifyReceipts {
		task := models.ScheduledTask{
			TaskName:   ReceiptTaskName,
			Arguments:  map[string]interface{}{"payment_id": payment.ID.String()},
			Due:        now,
			Status:     models.ScheduledTaskStatusActive,
			TaskType:   models.ScheduledTaskTypeOneTime,
			MaxAttempt: 3,
		}
		if err := tx.Create(&task).Error; err != nil {
			return nil, fmt.Errorf("enqueue receipt notification: %w", err)
		}
	}
	return payment, nil
}

// Get loads a payment
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return loadPayment(s.db.WithContext(ctx), id)
}

func loadPayment(tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load payment %s: %w", id, err)
	}
	return &p, nil
}

func findByIdempotencyKey(tx *gorm.DB, key string) (*models.Payment, error) {
	var p models.Payment
	err := tx.Where("idempotency_key = ?", key).Limit(1).Find(&p).Error
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}
