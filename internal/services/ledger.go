package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger_app_echo/internal/models"
)

// DefaultRecentPaymentsLimit bounds the audit entries kept on each fee line
const DefaultRecentPaymentsLimit = 5

// MoneyScale is the number of decimal places money columns store
const MoneyScale = 2

// checkMoneyScale rejects amounts finer than the stored scale. Trailing zeros are fine.
func checkMoneyScale(what string, d decimal.Decimal) error {
	if !d.Equal(d.Round(MoneyScale)) {
		return fmt.Errorf("%s %s has more than %d decimal places: %w", what, d, MoneyScale, ErrInvalidAmount)
	}
	return nil
}

// Allocation assigns part of a payment to one fee line
type Allocation struct {
	FeeID  uuid.UUID       `json:"fee_id"`
	Amount decimal.Decimal `json:"amount"`
}

// RecomputeTotals derives the cached aggregate of an enrollment from its lines.
// It is the only place totals and fee status are computed.
func RecomputeTotals(fees []models.StudentFee, scholarships []models.StudentScholarship) (models.Totals, models.FeeStatus) {
	var t models.Totals
	t.Fees = models.FeeTotals{
		Compulsory: decimal.Zero,
		Optional:   decimal.Zero,
		Total:      decimal.Zero,
		Paid:       decimal.Zero,
		Due:        decimal.Zero,
	}
	t.Scholarships = models.ScholarshipTotals{
		Applied:     decimal.Zero,
		AutoApplied: decimal.Zero,
		Manual:      decimal.Zero,
	}

	var lastPayment *time.Time
	allWaived := len(fees) > 0
	for _, fee := range fees {
		if !fee.IsWaived {
			allWaived = false
			t.Fees.Total = t.Fees.Total.Add(fee.Amount)
			if fee.IsCompulsory {
				t.Fees.Compulsory = t.Fees.Compulsory.Add(fee.Amount)
			} else {
				t.Fees.Optional = t.Fees.Optional.Add(fee.Amount)
			}
		}
		t.Fees.Paid = t.Fees.Paid.Add(fee.AmountPaid)
		t.Fees.Due = t.Fees.Due.Add(fee.AmountDue)

		for _, rp := range fee.RecentPayments {
			if lastPayment == nil || rp.Date.After(*lastPayment) {
				d := rp.Date
				lastPayment = &d
			}
		}
	}

	for _, s := range scholarships {
		if !s.IsActive {
			continue
		}
		t.Scholarships.Applied = t.Scholarships.Applied.Add(s.Amount)
		if s.IsAutoApplied {
			t.Scholarships.AutoApplied = t.Scholarships.AutoApplied.Add(s.Amount)
		} else {
			t.Scholarships.Manual = t.Scholarships.Manual.Add(s.Amount)
		}
	}

	t.NetAmount.Total = floorZero(t.Fees.Total.Sub(t.Scholarships.Applied))
	t.NetAmount.Paid = t.Fees.Paid
	t.NetAmount.Due = floorZero(t.NetAmount.Total.Sub(t.NetAmount.Paid))

	status := models.FeeStatus{LastPaymentDate: lastPayment, OverdueAmount: decimal.Zero}
	switch {
	case allWaived:
		status.Status = models.FeeStatusWaived
	case t.NetAmount.Due.IsZero():
		status.Status = models.FeeStatusPaid
	case t.NetAmount.Paid.IsZero():
		status.Status = models.FeeStatusOverdue
		status.OverdueAmount = t.NetAmount.Due
	default:
		status.Status = models.FeeStatusPartial
		status.OverdueAmount = t.NetAmount.Due
	}
	return t, status
}

// AllocateGreedy spreads amount over non-waived fees with an outstanding due, in
// ascending order. It returns the allocations and whatever could not be placed.
func AllocateGreedy(fees []models.StudentFee, amount decimal.Decimal) ([]Allocation, decimal.Decimal) {
	idx := make([]int, 0, len(fees))
	for i := range fees {
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool { return fees[idx[a]].Order < fees[idx[b]].Order })

	remaining := amount
	var out []Allocation
	for _, i := range idx {
		if !remaining.IsPositive() {
			break
		}
		fee := fees[i]
		if fee.IsWaived || !fee.AmountDue.IsPositive() {
			continue
		}
		take := decimal.Min(fee.AmountDue, remaining)
		out = append(out, Allocation{FeeID: fee.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return out, remaining
}

// validateAllocation checks a caller-supplied split of amount across fee lines
func validateAllocation(fees []models.StudentFee, allocs []Allocation, amount decimal.Decimal) error {
	seen := make(map[uuid.UUID]bool, len(allocs))
	sum := decimal.Zero
	for _, a := range allocs {
		if seen[a.FeeID] {
			return fmt.Errorf("fee %s allocated twice: %w", a.FeeID, ErrInvalidAmount)
		}
		seen[a.FeeID] = true

		i := -1
		for j := range fees {
			if fees[j].ID == a.FeeID {
				i = j
				break
			}
		}
		if i < 0 {
			return fmt.Errorf("fee %s: %w", a.FeeID, ErrNotFound)
		}
		fee := fees[i]
		if fee.IsWaived {
			return fmt.Errorf("fee %s is waived: %w", a.FeeID, ErrInvalidAmount)
		}
		if !a.Amount.IsPositive() {
			return fmt.Errorf("allocation to fee %s must be positive: %w", a.FeeID, ErrInvalidAmount)
		}
		if err := checkMoneyScale("allocation to fee "+a.FeeID.String(), a.Amount); err != nil {
			return err
		}
		if a.Amount.GreaterThan(fee.AmountDue) {
			return fmt.Errorf("allocation %s exceeds due %s on fee %s: %w", a.Amount, fee.AmountDue, a.FeeID, ErrInvalidAmount)
		}
		sum = sum.Add(a.Amount)
	}
	if !sum.Equal(amount) {
		return fmt.Errorf("allocations sum to %s, payment is %s: %w", sum, amount, ErrInvalidAmount)
	}
	return nil
}

// applyAllocation books allocations onto the enrollment's fee lines and returns the
// payment items with each fee's balance after allocation.
func applyAllocation(enr *models.StudentEnrollment, allocs []Allocation, entry models.RecentPayment, limit int) []models.PaymentItem {
	if limit <= 0 {
		limit = DefaultRecentPaymentsLimit
	}
	items := make([]models.PaymentItem, 0, len(allocs))
	for _, a := range allocs {
		i := enr.Fee(a.FeeID)
		if i < 0 {
			continue
		}
		fee := &enr.Fees[i]
		fee.AmountPaid = fee.AmountPaid.Add(a.Amount)
		fee.AmountDue = fee.AmountDue.Sub(a.Amount)

		rp := entry
		rp.Amount = a.Amount
		recent := append(append([]models.RecentPayment{}, fee.RecentPayments...), rp)
		if len(recent) > limit {
			recent = recent[len(recent)-limit:]
		}
		fee.RecentPayments = recent

		items = append(items, models.PaymentItem{
			FeeID:      fee.ID,
			FeeName:    fee.Name,
			Amount:     a.Amount,
			FeeBalance: fee.AmountDue,
		})
	}
	return items
}

// reversePayment subtracts a payment's items back out of the enrollment's fee lines.
// Items whose fee line no longer exists are skipped. Each touched fee's recent payments
// are rebuilt from others, the enrollment's remaining completed payments, so entries
// trimmed when the cancelled payment was booked come back.
func reversePayment(enr *models.StudentEnrollment, payment *models.Payment, others []models.Payment) {
	for _, item := range payment.PaymentItems {
		i := enr.Fee(item.FeeID)
		if i < 0 {
			continue
		}
		fee := &enr.Fees[i]
		fee.AmountPaid = floorZero(fee.AmountPaid.Sub(item.Amount))
		if fee.IsWaived {
			fee.AmountDue = decimal.Zero
		} else {
			fee.AmountDue = fee.Amount.Sub(fee.AmountPaid)
		}
		fee.RecentPayments = rebuildRecentPayments(fee.ID, payment.ID, others, len(fee.RecentPayments))
	}
}

// rebuildRecentPayments lists the fee's allocations from payments, oldest first,
// keeping at most limit of the newest.
func rebuildRecentPayments(feeID, skip uuid.UUID, payments []models.Payment, limit int) []models.RecentPayment {
	sorted := append([]models.Payment(nil), payments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PaymentDate.Equal(sorted[j].PaymentDate) {
			return sorted[i].PaymentDate.Before(sorted[j].PaymentDate)
		}
		return sorted[i].ReceiptSequence < sorted[j].ReceiptSequence
	})
	recent := []models.RecentPayment{}
	for _, p := range sorted {
		if p.ID == skip || p.Status != models.PaymentStatusCompleted {
			continue
		}
		for _, it := range p.PaymentItems {
			if it.FeeID == feeID {
				recent = append(recent, models.RecentPayment{
					PaymentID: p.ID,
					ReceiptNo: p.ReceiptNo,
					Amount:    it.Amount,
					Date:      p.PaymentDate,
				})
			}
		}
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return recent
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
