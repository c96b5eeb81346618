package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// DefaultRetryDelay is how long a failed task waits before its next attempt
const DefaultRetryDelay = 5 * time.Minute

// Runner executes due scheduled tasks. One runner per database is assumed.
type Runner struct {
	db         *gorm.DB
	registry   *Registry
	retryDelay time.Duration
	now        func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry) *Runner {
	return &Runner{db: db, registry: registry, retryDelay: DefaultRetryDelay, now: time.Now}
}

// ProcessDue runs every active task whose due time has passed and returns how many ran
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due").
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	if len(pending) == 0 {
		return 0, nil
	}
	log.Printf("Found %d pending tasks.", len(pending))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		if err := r.execute(ctx, task); err != nil {
			log.Printf("Task %s (ID: %d) bookkeeping failed: %v", task.TaskName, task.ID, err)
			continue
		}
		ran++
	}
	return ran, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) error {
	log.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	attempt := task.Attempt + 1
	startTime := r.now()

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		return r.finish(ctx, task, startTime, "handler_not_found", attempt, 0,
			map[string]interface{}{"error": "handler not found"},
			map[string]interface{}{"status": models.ScheduledTaskStatusFailure, "last_run": startTime, "attempt": attempt})
	}

	result, err := handler(ctx, r.db, task)
	runtimeMs := int(r.now().Sub(startTime).Milliseconds())

	if err != nil {
		log.Printf("Task %s failed on attempt %d: %v", task.TaskName, attempt, err)
		return r.finish(ctx, task, startTime, "failure", attempt, runtimeMs,
			map[string]interface{}{"error": err.Error()}, r.failureUpdates(task, startTime, attempt))
	}
	log.Printf("Task %s completed successfully.", task.TaskName)
	return r.finish(ctx, task, startTime, "success", attempt, runtimeMs, result, r.successUpdates(task, startTime))
}

func (r *Runner) failureUpdates(task models.ScheduledTask, ranAt time.Time, attempt int) map[string]interface{} {
	updates := map[string]interface{}{"last_run": ranAt}
	if attempt < task.MaxAttempt {
		updates["attempt"] = attempt
		updates["due"] = ranAt.Add(r.retryDelay)
		return updates
	}
	// out of attempts: a recurring task gives up on this occurrence only
	if next := task.NextDue(ranAt); !next.IsZero() {
		updates["attempt"] = 0
		updates["due"] = next
		return updates
	}
	updates["attempt"] = attempt
	updates["status"] = models.ScheduledTaskStatusFailure
	return updates
}

func (r *Runner) successUpdates(task models.ScheduledTask, ranAt time.Time) map[string]interface{} {
	updates := map[string]interface{}{"last_run": ranAt, "attempt": 0}
	if task.TaskType == models.ScheduledTaskTypeRecurring {
		if next := task.NextDue(ranAt); !next.IsZero() {
			updates["due"] = next
			return updates
		}
	}
	updates["status"] = models.ScheduledTaskStatusDone
	return updates
}

func (r *Runner) finish(ctx context.Context, task models.ScheduledTask, ranAt time.Time, status string, attempt, runtimeMs int, result, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           ranAt,
			RuntimeMs:       runtimeMs,
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          result,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		if err := tx.Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}
