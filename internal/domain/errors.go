package domain

import "errors"

var (
	ErrInvalidName       = errors.New("claimant name is empty")
	ErrAlreadyTaken      = errors.New("number already taken")
	ErrConflict          = errors.New("number was claimed concurrently")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrSlotNotFound      = errors.New("number not found")
	ErrNotInitialized    = errors.New("numbers are not initialized")
	ErrInvalidTotal      = errors.New("total numbers must be positive")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrSlotUnavailable   = errors.New("number cannot be selected")
)
