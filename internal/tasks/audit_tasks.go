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

// LedgerAuditTaskDef runs the reconciliation sweep over enrollments and payments.
// Findings are reported in the task history; the ledger itself is never touched.
type LedgerAuditTaskDef struct{}

func (t *LedgerAuditTaskDef) TaskID() string {
	return "ledger_audit"
}

func (t *LedgerAuditTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var yearID *uuid.UUID
	if raw, ok := task.Arguments["academic_year_id"].(string); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("academic_year_id %q: %w", raw, err)
		}
		yearID = &id
	}
	batch := 0
	if v, ok := task.Arguments["batch_size"].(float64); ok {
		batch = int(v)
	}

	report, err := services.AuditLedger(ctx, db, yearID, batch)
	if err != nil {
		return nil, err
	}

	for _, f := range report.Findings {
		log.Printf("[Task: %s] enrollment %s fee %s: %s", t.TaskID(), f.EnrollmentID, f.FeeID, f.Problem)
	}
	if report.PendingPayments > 0 {
		log.Printf("[Task: %s] %d payments stuck in PENDING", t.TaskID(), report.PendingPayments)
	}

	findings := make([]interface{}, 0, len(report.Findings))
	for _, f := range report.Findings {
		findings = append(findings, map[string]interface{}{
			"enrollment_id": f.EnrollmentID.String(),
			"fee_id":        f.FeeID.String(),
			"problem":       f.Problem,
		})
	}
	return map[string]interface{}{
		"ok":               report.OK(),
		"enrollments":      report.Enrollments,
		"payments":         report.Payments,
		"pending_payments": report.PendingPayments,
		"findings":         findings,
	}, nil
}

var LedgerAuditTask = &LedgerAuditTaskDef{}
