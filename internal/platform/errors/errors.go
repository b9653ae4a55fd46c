package apperrors

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrAuthRequired      = errors.New("authentication required")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrUnknownActivity   = errors.New("unknown activity")
	ErrStoreWriteFailed  = errors.New("ledger store write failed")
)
