package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger_app_echo/internal/models"
)

func TestCancelRestoresLedger(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	enr := s.enroll(t, db)
	payments := newPayments(db, nil)
	reversals := NewReversalService(db, nil, 0)
	ctx := context.Background()

	p := collect(t, payments, enr.ID, "1100")

	cancelled, err := reversals.Cancel(ctx, CancelRequest{PaymentID: p.ID, CancelledBy: "head@example.com", Reason: "bounced"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, cancelled.Status)
	assert.Equal(t, "head@example.com", cancelled.CancelledBy)
	assert.Equal(t, "bounced", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	after, err := loadEnrollment(db, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusOverdue, after.FeeStatus.Status)
	assert.Equal(t, "1100", after.Totals.NetAmount.Due.String())
	assert.True(t, after.Totals.NetAmount.Paid.IsZero())
	assert.Nil(t, after.FeeStatus.LastPaymentDate)
	for _, f := range after.Fees {
		assert.True(t, f.AmountPaid.IsZero(), f.Name)
		assert.True(t, f.AmountDue.Equal(f.Amount), f.Name)
		assert.Empty(t, f.RecentPayments, f.Name)
	}

	stored, err := payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, stored.Status)
	assert.Equal(t, "1", stored.ReceiptNo)
	assert.Len(t, stored.PaymentItems, 2, "items are kept on the cancelled receipt")

	next := collect(t, payments, enr.ID, "100")
	assert.Equal(t, "2", next.ReceiptNo, "cancelled receipt numbers are not reused")
}

func TestCancelRejects(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	enr := s.enroll(t, db)
	reversals := NewReversalService(db, nil, 0)
	ctx := context.Background()

	p := collect(t, newPayments(db, nil), enr.ID, "300")
	_, err := reversals.Cancel(ctx, CancelRequest{PaymentID: p.ID})
	require.NoError(t, err)

	_, err = reversals.Cancel(ctx, CancelRequest{PaymentID: p.ID})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = reversals.Cancel(ctx, CancelRequest{PaymentID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := loadEnrollment(db, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, "1100", after.Totals.NetAmount.Due.String(), "a second cancel does not reverse twice")
}

func TestCancelOneOfSeveralPayments(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	enr := s.enroll(t, db)
	payments := newPayments(db, nil)

	first := collect(t, payments, enr.ID, "600")
	collect(t, payments, enr.ID, "450")

	_, err := NewReversalService(db, nil, 0).Cancel(context.Background(), CancelRequest{PaymentID: first.ID})
	require.NoError(t, err)

	after, err := loadEnrollment(db, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPartial, after.FeeStatus.Status)
	assert.Equal(t, "450", after.Totals.NetAmount.Paid.String())
	assert.Equal(t, "650", after.Totals.NetAmount.Due.String())

	tuition := feeByName(t, after, "Tuition")
	assert.Equal(t, "400", tuition.AmountPaid.String())
	require.Len(t, tuition.RecentPayments, 1)
	assert.NotEqual(t, first.ID, tuition.RecentPayments[0].PaymentID)

	report, err := AuditLedger(context.Background(), db, nil, 0)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Findings)
}

func TestCancelRestoresTrimmedRecentPayments(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	enr := s.enroll(t, db)
	payments := newPayments(db, nil)

	var paid []*models.Payment
	for i := 0; i < DefaultRecentPaymentsLimit; i++ {
		paid = append(paid, collect(t, payments, enr.ID, "10"))
	}
	latest := collect(t, payments, enr.ID, "10")

	before, err := loadEnrollment(db, enr.ID)
	require.NoError(t, err)
	tuition := feeByName(t, before, "Tuition")
	require.Len(t, tuition.RecentPayments, DefaultRecentPaymentsLimit)
	assert.Equal(t, paid[1].ID, tuition.RecentPayments[0].PaymentID, "the oldest entry was trimmed")

	_, err = NewReversalService(db, nil, 0).Cancel(context.Background(), CancelRequest{PaymentID: latest.ID})
	require.NoError(t, err)

	after, err := loadEnrollment(db, enr.ID)
	require.NoError(t, err)
	tuition = feeByName(t, after, "Tuition")
	assert.Equal(t, "50", tuition.AmountPaid.String())
	require.Len(t, tuition.RecentPayments, DefaultRecentPaymentsLimit)
	for i, rp := range tuition.RecentPayments {
		assert.Equal(t, paid[i].ID, rp.PaymentID)
		assert.Equal(t, paid[i].ReceiptNo, rp.ReceiptNo)
	}
}
