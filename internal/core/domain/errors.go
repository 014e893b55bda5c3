package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoElection indicates no election configuration is active.
	// Scanning cannot start until an election is configured.
	ErrNoElection = errors.New("no election configured")

	// ErrScanInProgress indicates a scanning session is already active.
	// At most one batch may be open at a time per process.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrNoScanInProgress indicates no scanning session is active.
	ErrNoScanInProgress = errors.New("no scan in progress")

	// ErrBackupRequired indicates a destructive operation is blocked
	// because no backup exists that is at least as recent as the last
	// data mutation.
	ErrBackupRequired = errors.New("backup required before destructive operation")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrScannerUnavailable indicates the scanner device could not be
	// started for a new session.
	ErrScannerUnavailable = errors.New("scanner unavailable")
)
