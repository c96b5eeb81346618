package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger_app_echo/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestOutstandingReport(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	ctx := context.Background()
	payments := newPayments(db, nil)
	reports := NewReportService(db, nil, time.Minute)

	rani := s.enroll(t, db)
	budi := s.enrollStudent(t, db, s.addStudent(t, db, "A-002").ID)
	dewi := s.enrollStudent(t, db, s.addStudent(t, db, "A-003").ID)
	collect(t, payments, budi.ID, "800")
	collect(t, payments, dewi.ID, "1100")

	rows, total, err := reports.Outstanding(ctx, OutstandingFilter{AcademicYearID: &s.Year.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "settled enrollments are left out")
	require.Len(t, rows, 2)
	assert.Equal(t, rani.ID, rows[0].EnrollmentID, "largest due first")
	assert.Equal(t, "1100", rows[0].NetAmount.Due.String())
	assert.Equal(t, "Rani", rows[0].Student.Name)
	assert.Equal(t, budi.ID, rows[1].EnrollmentID)
	assert.Equal(t, models.FeeStatusPartial, rows[1].FeeStatus.Status)

	rows, total, err = reports.Outstanding(ctx, OutstandingFilter{Status: models.FeeStatusPartial})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, budi.ID, rows[0].EnrollmentID)

	minDue := dec("500")
	rows, _, err = reports.Outstanding(ctx, OutstandingFilter{MinDue: &minDue})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rani.ID, rows[0].EnrollmentID)

	rows, total, err = reports.Outstanding(ctx, OutstandingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 1)
	assert.Equal(t, budi.ID, rows[0].EnrollmentID)

	_, err = NewEnrollmentService(db, nil, 0).Deactivate(ctx, rani.ID)
	require.NoError(t, err)
	_, total, err = reports.Outstanding(ctx, OutstandingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "inactive enrollments are left out")
}

func TestReceiptsReport(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	ctx := context.Background()
	payments := newPayments(db, nil)
	reports := NewReportService(db, nil, time.Minute)

	enr := s.enroll(t, db)
	for _, amount := range []string{"100", "200", "300"} {
		collect(t, payments, enr.ID, amount)
	}
	_, err := payments.Collect(ctx, CollectRequest{EnrollmentID: enr.ID, Amount: dec("50"), Method: models.PaymentMethodOnline})
	require.NoError(t, err)

	list, total, err := reports.Receipts(ctx, ReceiptFilter{AcademicYearID: &s.Year.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, list, 4)
	for i, p := range list {
		assert.Equal(t, int64(i+1), p.ReceiptSequence)
	}

	list, _, err = reports.Receipts(ctx, ReceiptFilter{Method: models.PaymentMethodOnline})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "4", list[0].ReceiptNo)

	_, err = NewReversalService(db, nil, 0).Cancel(ctx, CancelRequest{PaymentID: list[0].ID})
	require.NoError(t, err)
	_, total, err = reports.Receipts(ctx, ReceiptFilter{Status: models.PaymentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	future := time.Now().Add(time.Hour)
	_, total, err = reports.Receipts(ctx, ReceiptFilter{From: &future})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDashboardIsCachedAndInvalidated(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	ctx := context.Background()
	cache, mr := newTestCache(t)
	payments := newPayments(db, cache)
	reports := NewReportService(db, cache, time.Minute)

	enr := s.enroll(t, db)
	collect(t, payments, enr.ID, "400")

	stats, err := reports.Dashboard(ctx, s.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Enrollments)
	assert.Equal(t, "1200", stats.TotalFees.String())
	assert.Equal(t, "100", stats.TotalScholarships.String())
	assert.Equal(t, "400", stats.Collected.String())
	assert.Equal(t, "700", stats.Outstanding.String())
	assert.Equal(t, 1, stats.ByStatus[models.FeeStatusPartial])
	assert.Equal(t, int64(1), stats.Payments)
	assert.True(t, mr.Exists("feeledger:"+dashboardKey(s.Year.ID)))

	// a write that bypasses the services is not seen until the entry goes away
	require.NoError(t, db.Model(&models.Payment{}).Where("1 = 1").Update("status", models.PaymentStatusPending).Error)
	cached, err := reports.Dashboard(ctx, s.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Payments)
	require.NoError(t, db.Model(&models.Payment{}).Where("1 = 1").Update("status", models.PaymentStatusCompleted).Error)

	collect(t, payments, enr.ID, "100")
	assert.False(t, mr.Exists("feeledger:"+dashboardKey(s.Year.ID)), "ledger writes drop the cached dashboard")

	fresh, err := reports.Dashboard(ctx, s.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", fresh.Collected.String())
	assert.Equal(t, int64(2), fresh.Payments)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("feeledger:"+dashboardKey(s.Year.ID)), "entries expire with the ttl")
}

func TestDashboardWithoutCache(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	s.enroll(t, db)

	stats, err := NewReportService(db, nil, 0).Dashboard(context.Background(), s.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Enrollments)
	assert.Equal(t, 1, stats.ByStatus[models.FeeStatusOverdue])
	assert.Equal(t, "1100", stats.NetBilled.String())
}

func TestPage(t *testing.T) {
	limit, offset := page(0, -3)
	assert.Equal(t, defaultPageSize, limit)
	assert.Zero(t, offset)
	limit, _ = page(1000, 0)
	assert.Equal(t, maxPageSize, limit)
}
