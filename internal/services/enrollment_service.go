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

type CreateEnrollmentRequest struct {
	StudentID      uuid.UUID `json:"student_id" validate:"required"`
	AcademicYearID uuid.UUID `json:"academic_year_id" validate:"required"`
	ClassID        uuid.UUID `json:"class_id" validate:"required"`
	Section        string    `json:"section" validate:"max=20"`
	// Overrides replaces the default amount of editable fee items, keyed by fee item id.
	Overrides map[uuid.UUID]decimal.Decimal `json:"overrides"`
	// Scholarships selects non auto-applied scholarship items by id.
	Scholarships []uuid.UUID `json:"scholarships"`
}

type WaiveFeeRequest struct {
	EnrollmentID uuid.UUID
	FeeID        uuid.UUID
	Reason       string
	WaivedBy     string
}

// EnrollmentService owns the enrollment ledger outside of payments
type EnrollmentService struct {
	db         *gorm.DB
	cache      *RedisCache
	maxRetries uint
	now        func() time.Time
}

func NewEnrollmentService(db *gorm.DB, cache *RedisCache, maxRetries uint) *EnrollmentService {
	return &EnrollmentService{db: db, cache: cache, maxRetries: maxRetries, now: time.Now}
}

// CreateEnrollment materializes a student's ledger from the class fee structure
func (s *EnrollmentService) CreateEnrollment(ctx context.Context, req CreateEnrollmentRequest) (*models.StudentEnrollment, error) {
	var created *models.StudentEnrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, "id = ?", req.StudentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("student %s: %w", req.StudentID, ErrInvalidReference)
			}
			return err
		}
		if !student.IsActive {
			return fmt.Errorf("student %s is inactive: %w", student.ID, ErrInvalidState)
		}
		year, class, err := loadYearAndClass(tx, req.AcademicYearID, req.ClassID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.StudentEnrollment{}).
			Where("student_id = ? AND academic_year_id = ? AND is_active = ?", student.ID, year.ID, true).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("student %s already enrolled in %s: %w", student.ID, year.Name, ErrConflict)
		}

		fs, err := resolveStructure(tx, year.ID, class.ID)
		if err != nil {
			return err
		}

		fees, err := materializeFees(fs, req.Overrides)
		if err != nil {
			return err
		}
		scholarships, err := materializeScholarships(fs, req.Scholarships, s.now())
		if err != nil {
			return err
		}

		classInfo := class.Snapshot()
		classInfo.Section = strings.TrimSpace(req.Section)
		enr := models.StudentEnrollment{
			StudentID:        student.ID,
			AcademicYearID:   year.ID,
			ClassID:          class.ID,
			FeeStructureID:   fs.ID,
			Section:          classInfo.Section,
			IsActive:         true,
			StudentInfo:      datatypes.NewJSONType(student.Snapshot()),
			AcademicYearInfo: datatypes.NewJSONType(year.Snapshot()),
			ClassInfo:        datatypes.NewJSONType(classInfo),
			Fees:             fees,
			Scholarships:     scholarships,
			Version:          1,
		}
		enr.SetTotals(RecomputeTotals(enr.Fees, enr.Scholarships))

		if err := tx.Create(&enr).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("student %s already enrolled in %s: %w", student.ID, year.Name, ErrConflict)
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		created = &enr
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateReports(ctx, s.cache, created.AcademicYearID)
	log.Printf("Enrollment %s created for student %s, net due %s", created.ID, created.StudentID, created.Totals.NetAmount.Due)
	return created, nil
}

// Get loads an enrollment
func (s *EnrollmentService) Get(ctx context.Context, id uuid.UUID) (*models.StudentEnrollment, error) {
	return loadEnrollment(s.db.WithContext(ctx), id)
}

// WaiveFee forgives the outstanding due of one fee line
func (s *EnrollmentService) WaiveFee(ctx context.Context, req WaiveFeeRequest) (*models.StudentEnrollment, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("waive reason is required: %w", ErrValidation)
	}
	var out *models.StudentEnrollment
	err := runLedgerTx(ctx, s.db, s.maxRetries, func(tx *gorm.DB) error {
		enr, err := loadEnrollment(tx, req.EnrollmentID)
		if err != nil {
			return err
		}
		if !enr.IsActive {
			return fmt.Errorf("enrollment %s is inactive: %w", enr.ID, ErrInvalidState)
		}
		i := enr.Fee(req.FeeID)
		if i < 0 {
			return fmt.Errorf("fee %s on enrollment %s: %w", req.FeeID, enr.ID, ErrNotFound)
		}
		fee := &enr.Fees[i]
		if fee.IsWaived {
			return fmt.Errorf("fee %s is already waived: %w", fee.ID, ErrInvalidState)
		}

		now := s.now()
		fee.IsWaived = true
		fee.AmountDue = decimal.Zero
		fee.WaivedReason = req.Reason
		fee.WaivedBy = req.WaivedBy
		fee.WaivedAt = &now

		enr.SetTotals(RecomputeTotals(enr.Fees, enr.Scholarships))
		if err := saveEnrollment(tx, enr); err != nil {
			return err
		}
		out = enr
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateReports(ctx, s.cache, out.AcademicYearID)
	log.Printf("Fee %s waived on enrollment %s by %s", req.FeeID, out.ID, req.WaivedBy)
	return out, nil
}

// Deactivate marks an enrollment inactive. Fee data is kept for history.
func (s *EnrollmentService) Deactivate(ctx context.Context, id uuid.UUID) (*models.StudentEnrollment, error) {
	var out *models.StudentEnrollment
	err := runLedgerTx(ctx, s.db, s.maxRetries, func(tx *gorm.DB) error {
		enr, err := loadEnrollment(tx, id)
		if err != nil {
			return err
		}
		if !enr.IsActive {
			return fmt.Errorf("enrollment %s is already inactive: %w", enr.ID, ErrInvalidState)
		}
		enr.IsActive = false
		if err := saveEnrollment(tx, enr); err != nil {
			return err
		}
		out = enr
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateReports(ctx, s.cache, out.AcademicYearID)
	return out, nil
}

func materializeFees(fs *models.FeeStructure, overrides map[uuid.UUID]decimal.Decimal) ([]models.StudentFee, error) {
	for id := range overrides {
		if _, ok := fs.FeeItem(id); !ok {
			return nil, fmt.Errorf("override for fee item %s: %w", id, ErrNotFound)
		}
	}
	fees := make([]models.StudentFee, 0, len(fs.FeeItems))
	for _, item := range fs.FeeItems {
		amount := item.Amount
		if o, ok := overrides[item.ID]; ok && item.IsEditableDuringEnrollment {
			if o.IsNegative() {
				return nil, fmt.Errorf("override %s for fee %s: %w", o, item.Name, ErrInvalidAmount)
			}
			if err := checkMoneyScale("override for fee "+item.Name, o); err != nil {
				return nil, err
			}
			amount = o
		}
		fees = append(fees, models.StudentFee{
			ID:             item.ID,
			TemplateID:     item.TemplateID,
			Name:           item.Name,
			Category:       item.Category,
			Order:          item.Order,
			Amount:         amount,
			AmountPaid:     decimal.Zero,
			AmountDue:      amount,
			IsCompulsory:   item.IsCompulsory,
			RecentPayments: []models.RecentPayment{},
		})
	}
	return fees, nil
}

func materializeScholarships(fs *models.FeeStructure, selected []uuid.UUID, now time.Time) ([]models.StudentScholarship, error) {
	chosen := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		if _, ok := fs.ScholarshipItem(id); !ok {
			return nil, fmt.Errorf("scholarship item %s: %w", id, ErrNotFound)
		}
		chosen[id] = true
	}
	out := make([]models.StudentScholarship, 0, len(fs.ScholarshipItems))
	for _, item := range fs.ScholarshipItems {
		if !item.IsAutoApplied && !chosen[item.ID] {
			continue
		}
		out = append(out, models.StudentScholarship{
			ID:            item.ID,
			TemplateID:    item.TemplateID,
			Name:          item.Name,
			Type:          item.Type,
			Amount:        item.Amount,
			IsAutoApplied: item.IsAutoApplied,
			IsActive:      true,
			AppliedDate:   now,
		})
	}
	return out, nil
}
