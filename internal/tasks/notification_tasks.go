package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
	"feeledger_app_echo/internal/services"
)

// ReceiptNotifier is the delivery side of the send_receipt task
type ReceiptNotifier interface {
	Notify(ctx context.Context, paymentID uuid.UUID) (services.NotifyResult, error)
}

// SendReceiptArgs defines the arguments written next to the payment in its transaction
type SendReceiptArgs struct {
	PaymentID string `json:"payment_id"`
}

// SendReceiptTaskDef delivers a payment receipt to the student's guardian
type SendReceiptTaskDef struct {
	Notifier ReceiptNotifier
}

// TaskID returns the unique identifier for this task
func (t *SendReceiptTaskDef) TaskID() string {
	return services.ReceiptTaskName
}

// HandleExecution returns an error on delivery failure so the runner retries it
// up to the task's max attempts.
func (t *SendReceiptTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	raw, _ := task.Arguments["payment_id"].(string)
	paymentID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("payment_id %q: %w", raw, err)
	}
	if t.Notifier == nil {
		return nil, fmt.Errorf("receipt notifier not configured")
	}

	res, err := t.Notifier.Notify(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"payment_id": paymentID.String(),
		"channel":    string(res.Channel),
	}
	if res.Skipped != "" {
		log.Printf("[Task: %s] Skipping receipt for payment %s: %s", t.TaskID(), paymentID, res.Skipped)
		result["status"] = "skipped"
		result["reason"] = res.Skipped
		return result, nil
	}
	result["status"] = "sent"
	result["recipient"] = res.Recipient
	return result, nil
}
