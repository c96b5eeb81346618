package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"feeledger_app_echo/internal/models"
	"feeledger_app_echo/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), services.GormConfig(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, services.AutoMigrate(db))
	return db
}

var base = time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC)

func newTestRunner(db *gorm.DB, r *Registry, now *time.Time) *Runner {
	runner := NewRunner(db, r)
	runner.now = func() time.Time { return *now }
	return runner
}

func seedTask(t *testing.T, db *gorm.DB, task *models.ScheduledTask) {
	t.Helper()
	require.NoError(t, db.Create(task).Error)
}

func reload(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func history(t *testing.T, db *gorm.DB, id uint) []models.ScheduledTaskHistory {
	t.Helper()
	var rows []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", id).Order("id").Find(&rows).Error)
	return rows
}

func TestRunnerCompletesOneTimeTask(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry()
	var got models.ScheduledTask
	r.Register("echo", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		got = task
		return map[string]interface{}{"echo": task.Arguments["word"]}, nil
	})

	task, err := BuildScheduledTask("echo", map[string]string{"word": "hello"}, base, nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)
	seedTask(t, db, task)

	now := base.Add(time.Minute)
	ran, err := newTestRunner(db, r, &now).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, "hello", got.Arguments["word"])

	after := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, after.Status)
	assert.Zero(t, after.Attempt)
	require.NotNil(t, after.LastRun)

	rows := history(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "success", rows[0].Status)
	assert.Equal(t, 1, rows[0].AttemptNumber)
	assert.Equal(t, "hello", rows[0].Result["echo"])

	ran, err = newTestRunner(db, r, &now).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran, "done tasks are not picked up again")
}

func TestRunnerSkipsFutureTasks(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry()
	r.Register("echo", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		return nil, nil
	})
	task, err := BuildScheduledTask("echo", nil, base.Add(time.Hour), nil, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	seedTask(t, db, task)

	now := base
	ran, err := newTestRunner(db, r, &now).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Equal(t, models.ScheduledTaskStatusActive, reload(t, db, task.ID).Status)
}

func TestRunnerRetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry()
	calls := 0
	r.Register("flaky", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, errors.New("smtp down")
	})
	task, err := BuildScheduledTask("flaky", nil, base, nil, models.ScheduledTaskTypeOneTime, 2)
	require.NoError(t, err)
	seedTask(t, db, task)

	now := base
	runner := newTestRunner(db, r, &now)
	_, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)

	after := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, after.Status)
	assert.Equal(t, 1, after.Attempt)
	assert.True(t, after.Due.Equal(base.Add(DefaultRetryDelay)), "retried after the delay")

	ran, err := runner.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran, "not due yet")

	now = base.Add(DefaultRetryDelay)
	_, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)

	after = reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusFailure, after.Status)
	assert.Equal(t, 2, after.Attempt)
	assert.Equal(t, 2, calls)

	rows := history(t, db, task.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "failure", rows[1].Status)
	assert.Equal(t, 2, rows[1].AttemptNumber)
	assert.Equal(t, "smtp down", rows[1].Result["error"])
}

func TestRunnerHandlerNotFound(t *testing.T) {
	db := newTestDB(t)
	task, err := BuildScheduledTask("missing", nil, base, nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)
	seedTask(t, db, task)

	now := base
	_, err = newTestRunner(db, NewRegistry(), &now).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ScheduledTaskStatusFailure, reload(t, db, task.ID).Status)
	rows := history(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "handler_not_found", rows[0].Status)
}

func TestRunnerAdvancesRecurringTask(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry()
	fail := false
	r.Register("nightly", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return map[string]interface{}{}, nil
	})
	rule := "FREQ=DAILY;BYHOUR=2;BYMINUTE=0;BYSECOND=0"
	task, err := BuildScheduledTask("nightly", nil, base, &rule, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledTaskTypeRecurring, task.TaskType, "a recurrence rule makes the task recurring")
	seedTask(t, db, task)

	now := base.Add(30 * time.Second)
	runner := newTestRunner(db, r, &now)
	_, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)

	after := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, after.Status)
	assert.True(t, after.Due.Equal(base.AddDate(0, 0, 1)), "next due %s", after.Due)

	fail = true
	now = base.AddDate(0, 0, 1).Add(time.Second)
	_, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)

	after = reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, after.Status, "a failed occurrence does not stop the schedule")
	assert.Zero(t, after.Attempt)
	assert.True(t, after.Due.Equal(base.AddDate(0, 0, 2)), "next due %s", after.Due)
}

func TestBuildScheduledTaskRejectsBadRule(t *testing.T) {
	rule := "FREQ=SOMETIMES"
	_, err := BuildScheduledTask("nightly", nil, base, &rule, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)
}

func TestEnsureRecurringIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rule := "FREQ=DAILY;BYHOUR=2;BYMINUTE=0;BYSECOND=0"
	now := base.Add(6 * time.Hour)

	first, err := EnsureRecurring(ctx, db, LedgerAuditTask.TaskID(), rule, nil, now)
	require.NoError(t, err)
	assert.True(t, first.Due.Equal(base.AddDate(0, 0, 1)), "first run %s", first.Due)
	assert.Equal(t, models.ScheduledTaskTypeRecurring, first.TaskType)

	second, err := EnsureRecurring(ctx, db, LedgerAuditTask.TaskID(), rule, nil, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.ScheduledTask{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type fakeNotifier struct {
	res services.NotifyResult
	err error
	got []uuid.UUID
}

func (f *fakeNotifier) Notify(ctx context.Context, paymentID uuid.UUID) (services.NotifyResult, error) {
	f.got = append(f.got, paymentID)
	return f.res, f.err
}

func TestSendReceiptTask(t *testing.T) {
	db := newTestDB(t)
	paymentID := uuid.New()
	task := models.ScheduledTask{Arguments: map[string]interface{}{"payment_id": paymentID.String()}}

	sent := &fakeNotifier{res: services.NotifyResult{Channel: models.NotificationChannelEmail, Recipient: "sari@example.com"}}
	result, err := (&SendReceiptTaskDef{Notifier: sent}).HandleExecution(context.Background(), db, task)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{paymentID}, sent.got)
	assert.Equal(t, "sent", result["status"])
	assert.Equal(t, "sari@example.com", result["recipient"])

	skipped := &fakeNotifier{res: services.NotifyResult{Channel: models.NotificationChannelNone, Skipped: "notifications disabled"}}
	result, err = (&SendReceiptTaskDef{Notifier: skipped}).HandleExecution(context.Background(), db, task)
	require.NoError(t, err)
	assert.Equal(t, "skipped", result["status"])

	_, err = (&SendReceiptTaskDef{Notifier: &fakeNotifier{err: errors.New("smtp down")}}).HandleExecution(context.Background(), db, task)
	assert.Error(t, err)

	_, err = (&SendReceiptTaskDef{}).HandleExecution(context.Background(), db, task)
	assert.Error(t, err, "no notifier configured")

	bad := models.ScheduledTask{Arguments: map[string]interface{}{"payment_id": "nope"}}
	_, err = (&SendReceiptTaskDef{Notifier: sent}).HandleExecution(context.Background(), db, bad)
	assert.Error(t, err)
}

func TestLedgerAuditTaskThroughRunner(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry()
	DefineTasks(r, &fakeNotifier{})
	assert.Equal(t, []string{"ledger_audit", "send_receipt"}, r.Names())

	task, err := BuildScheduledTask(LedgerAuditTask.TaskID(), map[string]int{"batch_size": 50}, base, nil, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	seedTask(t, db, task)

	now := base
	_, err = newTestRunner(db, r, &now).ProcessDue(context.Background())
	require.NoError(t, err)

	rows := history(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "success", rows[0].Status)
	assert.Equal(t, true, rows[0].Result["ok"])
	assert.Equal(t, float64(0), rows[0].Result["enrollments"])
}
