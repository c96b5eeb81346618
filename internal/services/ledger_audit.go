package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// AuditFinding describes one enrollment whose stored ledger does not add up
type AuditFinding struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	FeeID        uuid.UUID `json:"fee_id,omitempty"`
	Problem      string    `json:"problem"`
}

// AuditReport is the outcome of one ledger sweep
type AuditReport struct {
	Enrollments     int            `json:"enrollments"`
	Payments        int            `json:"payments"`
	PendingPayments int64          `json:"pending_payments"`
	Findings        []AuditFinding `json:"findings"`
}

// OK reports whether the sweep found nothing to repair
func (r AuditReport) OK() bool {
	return len(r.Findings) == 0 && r.PendingPayments == 0
}

// AuditLedger sweeps enrollments and checks that cached totals match their lines, that
// every fee line balances and that amounts paid match the completed payments booked
// against them. It only reads. A nil academicYearID sweeps every year.
func AuditLedger(ctx context.Context, db *gorm.DB, academicYearID *uuid.UUID, batchSize int) (AuditReport, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	report := AuditReport{Findings: []AuditFinding{}}

	q := db.WithContext(ctx).Model(&models.StudentEnrollment{})
	if academicYearID != nil {
		q = q.Where("academic_year_id = ?", *academicYearID)
	}

	var batch []models.StudentEnrollment
	err := q.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		ids := make([]uuid.UUID, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, e.ID)
		}

		var payments []models.Payment
		if err := db.WithContext(ctx).
			Select("id", "student_enrollment_id", "payment_items").
			Where("student_enrollment_id IN ? AND status = ?", ids, models.PaymentStatusCompleted).
			Find(&payments).Error; err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
		report.Payments += len(payments)

		paid := make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal, len(batch))
		for _, p := range payments {
			perFee := paid[p.StudentEnrollmentID]
			if perFee == nil {
				perFee = map[uuid.UUID]decimal.Decimal{}
				paid[p.StudentEnrollmentID] = perFee
			}
			for _, item := range p.PaymentItems {
				perFee[item.FeeID] = perFee[item.FeeID].Add(item.Amount)
			}
		}

		for i := range batch {
			report.Enrollments++
			report.Findings = append(report.Findings, auditEnrollment(&batch[i], paid[batch[i].ID])...)
		}
		return nil
	}).Error
	if err != nil {
		return report, fmt.Errorf("audit ledger: %w", err)
	}

	pq := db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", models.PaymentStatusPending)
	if academicYearID != nil {
		pq = pq.Where("academic_year_id = ?", *academicYearID)
	}
	if err := pq.Count(&report.PendingPayments).Error; err != nil {
		return report, fmt.Errorf("count pending payments: %w", err)
	}
	return report, nil
}

func auditEnrollment(enr *models.StudentEnrollment, paidByFee map[uuid.UUID]decimal.Decimal) []AuditFinding {
	var out []AuditFinding
	finding := func(feeID uuid.UUID, format string, args ...interface{}) {
		out = append(out, AuditFinding{EnrollmentID: enr.ID, FeeID: feeID, Problem: fmt.Sprintf(format, args...)})
	}

	for _, fee := range enr.Fees {
		if fee.AmountPaid.IsNegative() || fee.AmountDue.IsNegative() {
			finding(fee.ID, "negative balance paid=%s due=%s", fee.AmountPaid, fee.AmountDue)
		}
		if fee.IsWaived {
			if !fee.AmountDue.IsZero() {
				finding(fee.ID, "waived fee still due %s", fee.AmountDue)
			}
		} else if !fee.Amount.Equal(fee.AmountPaid.Add(fee.AmountDue)) {
			finding(fee.ID, "amount %s != paid %s + due %s", fee.Amount, fee.AmountPaid, fee.AmountDue)
		}
		if booked := paidByFee[fee.ID]; !booked.Equal(fee.AmountPaid) {
			finding(fee.ID, "paid %s but completed payments sum to %s", fee.AmountPaid, booked)
		}
	}

	totals, status := RecomputeTotals(enr.Fees, enr.Scholarships)
	if !totalsEqual(totals, enr.Totals) {
		finding(uuid.Nil, "cached totals net due %s, recomputed %s", enr.Totals.NetAmount.Due, totals.NetAmount.Due)
	}
	if status.Status != enr.FeeStatus.Status {
		finding(uuid.Nil, "cached status %s, recomputed %s", enr.FeeStatus.Status, status.Status)
	}
	if !enr.NetDue.Equal(totals.NetAmount.Due) || enr.FeeStatusCode != status.Status {
		finding(uuid.Nil, "flattened columns out of date")
	}
	return out
}

func totalsEqual(a, b models.Totals) bool {
	pairs := [][2]decimal.Decimal{
		{a.Fees.Compulsory, b.Fees.Compulsory},
		{a.Fees.Optional, b.Fees.Optional},
		{a.Fees.Total, b.Fees.Total},
		{a.Fees.Paid, b.Fees.Paid},
		{a.Fees.Due, b.Fees.Due},
		{a.Scholarships.Applied, b.Scholarships.Applied},
		{a.Scholarships.AutoApplied, b.Scholarships.AutoApplied},
		{a.Scholarships.Manual, b.Scholarships.Manual},
		{a.NetAmount.Total, b.NetAmount.Total},
		{a.NetAmount.Paid, b.NetAmount.Paid},
		{a.NetAmount.Due, b.NetAmount.Due},
	}
	for _, p := range pairs {
		if !p[0].Equal(p[1]) {
			return false
		}
	}
	return true
}
