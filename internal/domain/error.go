package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Ledger / reconciliation
	ErrDuplicateReference = errors.New("payment reference already recorded")
	ErrAmbiguousMatch     = errors.New("more than one payment matches the fallback keys")
	ErrInvalidTransition  = errors.New("payment status transition not allowed")
	ErrAuthentication     = errors.New("webhook authentication failed")
	ErrMalformedEvent     = errors.New("malformed webhook event")

	// Collaborators
	ErrMembershipAPI = errors.New("chat membership api error")
	ErrResolution    = errors.New("bank account resolution failed")

	// Storage plumbing
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Bot session
	ErrSessionExpired = errors.New("session expired or not started")
)
