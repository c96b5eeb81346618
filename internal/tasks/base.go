package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	if recurringInterval != nil {
		if _, err := rrule.StrToRRule(*recurringInterval); err != nil {
			return nil, fmt.Errorf("invalid recurring interval %q: %w", *recurringInterval, err)
		}
		taskType = models.ScheduledTaskTypeRecurring
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// EnsureRecurring creates an active recurring task named taskName unless one exists.
// The first run is the first occurrence of rule after now.
func EnsureRecurring(ctx context.Context, db *gorm.DB, taskName, rule string, args interface{}, now time.Time) (*models.ScheduledTask, error) {
	var existing models.ScheduledTask
	err := db.WithContext(ctx).
		Where("task_name = ? AND task_type = ? AND status = ?", taskName, models.ScheduledTaskTypeRecurring, models.ScheduledTaskStatusActive).
		Limit(1).Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("lookup %s schedule: %w", taskName, err)
	}
	if existing.ID != 0 {
		return &existing, nil
	}

	task, err := BuildScheduledTask(taskName, args, now.Truncate(time.Minute), &rule, models.ScheduledTaskTypeRecurring, 1)
	if err != nil {
		return nil, err
	}
	next := task.NextDue(now)
	if next.IsZero() {
		return nil, fmt.Errorf("recurring interval %q has no occurrence after %s", rule, now.Format(time.RFC3339))
	}
	task.Due = next

	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create %s schedule: %w", taskName, err)
	}
	log.Printf("Scheduled %s (ID: %d) first run at %s", taskName, task.ID, task.Due.Format(time.RFC3339))
	return task, nil
}
