package services

import "errors"

// Error kinds returned by the ledger operations. Wrap with context and test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInactiveStructure   = errors.New("fee structure is inactive")
	ErrConflict            = errors.New("conflict")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrConcurrencyConflict = errors.New("concurrent modification")
	ErrValidation          = errors.New("validation failed")
)
