package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// OutstandingFilter narrows the outstanding balance listing. Set fields are ANDed.
type OutstandingFilter struct {
	AcademicYearID *uuid.UUID
	ClassID        *uuid.UUID
	Section        string
	Status         models.FeeStatusCode
	MinDue         *decimal.Decimal
	Limit          int
	Offset         int
}

// ReceiptFilter narrows the receipt listing. Set fields are ANDed.
type ReceiptFilter struct {
	AcademicYearID *uuid.UUID
	EnrollmentID   *uuid.UUID
	StudentID      *uuid.UUID
	Status         models.PaymentStatus
	Method         models.PaymentMethod
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// OutstandingRow is one line of the outstanding balance report
type OutstandingRow struct {
	EnrollmentID uuid.UUID              `json:"enrollment_id"`
	Student      models.StudentSnapshot `json:"student"`
	Class        models.ClassSnapshot   `json:"class"`
	NetAmount    models.NetAmount       `json:"net_amount"`
	FeeStatus    models.FeeStatus       `json:"fee_status"`
}

// DashboardStats aggregates the cached totals of one academic year
type DashboardStats struct {
	AcademicYearID    uuid.UUID                    `json:"academic_year_id"`
	Enrollments       int                          `json:"enrollments"`
	TotalFees         decimal.Decimal              `json:"total_fees"`
	TotalScholarships decimal.Decimal              `json:"total_scholarships"`
	NetBilled         decimal.Decimal              `json:"net_billed"`
	Collected         decimal.Decimal              `json:"collected"`
	Outstanding       decimal.Decimal              `json:"outstanding"`
	ByStatus          map[models.FeeStatusCode]int `json:"by_status"`
	Payments          int64                        `json:"payments"`
	CancelledPayments int64                        `json:"cancelled_payments"`
	GeneratedAt       time.Time                    `json:"generated_at"`
}

// ReportService answers read-only queries over the persisted ledger
type ReportService struct {
	db    *gorm.DB
	cache *RedisCache
	ttl   time.Duration
}

func NewReportService(db *gorm.DB, cache *RedisCache, ttl time.Duration) *ReportService {
	return &ReportService{db: db, cache: cache, ttl: ttl}
}

// Outstanding lists active enrollments that still owe money, largest due first
func (s *ReportService) Outstanding(ctx context.Context, f OutstandingFilter) ([]OutstandingRow, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.StudentEnrollment{}).Where("is_active = ?", true)
	if f.AcademicYearID != nil {
		q = q.Where("academic_year_id = ?", *f.AcademicYearID)
	}
	if f.ClassID != nil {
		q = q.Where("class_id = ?", *f.ClassID)
	}
	if f.Section != "" {
		q = q.Where("section = ?", f.Section)
	}
	if f.Status != "" {
		q = q.Where("fee_status_code = ?", f.Status)
	}
	if f.MinDue != nil {
		q = q.Where("net_due >= ?", *f.MinDue)
	} else {
		q = q.Where("net_due > ?", decimal.Zero)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count outstanding: %w", err)
	}

	var enrollments []models.StudentEnrollment
	limit, offset := page(f.Limit, f.Offset)
	if err := q.Order("net_due desc").Order("id").Limit(limit).Offset(offset).Find(&enrollments).Error; err != nil {
		return nil, 0, fmt.Errorf("list outstanding: %w", err)
	}

	rows := make([]OutstandingRow, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, OutstandingRow{
			EnrollmentID: e.ID,
			Student:      e.StudentInfo.Data(),
			Class:        e.ClassInfo.Data(),
			NetAmount:    e.Totals.NetAmount,
			FeeStatus:    e.FeeStatus,
		})
	}
	return rows, total, nil
}

// Receipts lists payments in receipt order
func (s *ReportService) Receipts(ctx context.Context, f ReceiptFilter) ([]models.Payment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if f.AcademicYearID != nil {
		q = q.Where("academic_year_id = ?", *f.AcademicYearID)
	}
	if f.EnrollmentID != nil {
		q = q.Where("student_enrollment_id = ?", *f.EnrollmentID)
	}
	if f.StudentID != nil {
		q = q.Where("student_id = ?", *f.StudentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Method != "" {
		q = q.Where("payment_method = ?", f.Method)
	}
	if f.From != nil {
		q = q.Where("payment_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("payment_date < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}

	var payments []models.Payment
	limit, offset := page(f.Limit, f.Offset)
	if err := q.Order("academic_year_id").Order("receipt_sequence").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	return payments, total, nil
}

// Dashboard sums the cached totals of an academic year. Results are cached until the
// next ledger mutation in that year or the TTL, whichever comes first.
func (s *ReportService) Dashboard(ctx context.Context, academicYearID uuid.UUID) (DashboardStats, error) {
	return GetOrSet(s.cache, ctx, dashboardKey(academicYearID), s.ttl, func() (DashboardStats, error) {
		return s.computeDashboard(ctx, academicYearID)
	})
}

func (s *ReportService) computeDashboard(ctx context.Context, academicYearID uuid.UUID) (DashboardStats, error) {
	stats := DashboardStats{
		AcademicYearID:    academicYearID,
		TotalFees:         decimal.Zero,
		TotalScholarships: decimal.Zero,
		NetBilled:         decimal.Zero,
		Collected:         decimal.Zero,
		Outstanding:       decimal.Zero,
		ByStatus:          map[models.FeeStatusCode]int{},
		GeneratedAt:       time.Now(),
	}

	var batch []models.StudentEnrollment
	err := s.db.WithContext(ctx).
		Select("id", "totals", "fee_status").
		Where("academic_year_id = ? AND is_active = ?", academicYearID, true).
		FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
			for _, e := range batch {
				stats.Enrollments++
				stats.TotalFees = stats.TotalFees.Add(e.Totals.Fees.Total)
				stats.TotalScholarships = stats.TotalScholarships.Add(e.Totals.Scholarships.Applied)
				stats.NetBilled = stats.NetBilled.Add(e.Totals.NetAmount.Total)
				stats.Collected = stats.Collected.Add(e.Totals.NetAmount.Paid)
				stats.Outstanding = stats.Outstanding.Add(e.Totals.NetAmount.Due)
				stats.ByStatus[e.FeeStatus.Status]++
			}
			return nil
		}).Error
	if err != nil {
		return stats, fmt.Errorf("dashboard enrollments: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("academic_year_id = ? AND status = ?", academicYearID, models.PaymentStatusCompleted).
		Count(&stats.Payments).Error; err != nil {
		return stats, fmt.Errorf("dashboard payments: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("academic_year_id = ? AND status = ?", academicYearID, models.PaymentStatusCancelled).
		Count(&stats.CancelledPayments).Error; err != nil {
		return stats, fmt.Errorf("dashboard cancelled payments: %w", err)
	}
	return stats, nil
}

func dashboardKey(academicYearID uuid.UUID) string {
	return "reports:dashboard:" + academicYearID.String()
}

// invalidateReports drops cached projections of a year after a committed mutation
func invalidateReports(ctx context.Context, cache *RedisCache, academicYearID uuid.UUID) {
	if err := cache.Delete(ctx, dashboardKey(academicYearID)); err != nil {
		log.Printf("invalidate report cache for %s: %v", academicYearID, err)
	}
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
