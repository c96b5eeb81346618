package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// DefaultMaxRetries bounds how often a ledger unit of work is replayed after an
// optimistic-lock conflict
const DefaultMaxRetries uint = 5

func loadEnrollment(tx *gorm.DB, id uuid.UUID) (*models.StudentEnrollment, error) {
	var enr models.StudentEnrollment
	if err := tx.First(&enr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("enrollment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load enrollment %s: %w", id, err)
	}
	return &enr, nil
}

// saveEnrollment writes the whole ledger row if nobody else has written it since it was
// read. A stale version yields ErrConcurrencyConflict.
func saveEnrollment(tx *gorm.DB, enr *models.StudentEnrollment) error {
	expected := enr.Version
	enr.Version = expected + 1

	res := tx.Model(enr).
		Where("version = ?", expected).
		Select("*").
		Omit("ID", "CreatedAt").
		Updates(enr)
	if res.Error != nil {
		enr.Version = expected
		return fmt.Errorf("save enrollment %s: %w", enr.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		enr.Version = expected
		return fmt.Errorf("enrollment %s changed since read: %w", enr.ID, ErrConcurrencyConflict)
	}
	return nil
}

// runLedgerTx runs fn in a transaction, replaying the whole transaction with exponential
// backoff when it fails with ErrConcurrencyConflict. Any other error is returned at once.
func runLedgerTx(ctx context.Context, db *gorm.DB, maxTries uint, fn func(tx *gorm.DB) error) error {
	if maxTries == 0 {
		maxTries = DefaultMaxRetries
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrConcurrencyConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	return err
}
