package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptSequencer hands out per academic year receipt numbers
type ReceiptSequencer struct {
	now func() time.Time
}

func NewReceiptSequencer() *ReceiptSequencer {
	return &ReceiptSequencer{now: time.Now}
}

// upsert + RETURNING is one statement, so the increment and the read cannot interleave
// with another caller. Run inside the payment transaction the increment rolls back with it.
const nextSequenceSQL = `INSERT INTO receipt_sequences (academic_year_id, last_sequence, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (academic_year_id) DO UPDATE
SET last_sequence = receipt_sequences.last_sequence + 1, updated_at = excluded.updated_at
RETURNING last_sequence`

// Next atomically increments and returns the counter for academicYearID, creating it at 1
func (s *ReceiptSequencer) Next(ctx context.Context, db *gorm.DB, academicYearID uuid.UUID) (int64, error) {
	var next int64
	if err := db.WithContext(ctx).Raw(nextSequenceSQL, academicYearID, s.now()).Scan(&next).Error; err != nil {
		return 0, fmt.Errorf("next receipt sequence for %s: %w", academicYearID, err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("next receipt sequence for %s returned %d", academicYearID, next)
	}
	return next, nil
}

// FormatReceiptNo renders a sequence as a receipt number. Receipt numbers are unique
// within their academic year only.
func FormatReceiptNo(sequence int64) string {
	return strconv.FormatInt(sequence, 10)
}
