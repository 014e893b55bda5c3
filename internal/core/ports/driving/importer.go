package driving

import (
	"context"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

// ContinueImportOptions resolves the sheet currently awaiting
// adjudication before scanning resumes.
type ContinueImportOptions struct {
	// ForceAccept keeps the pending sheet as adjudicated-accepted.
	// False rejects it: the sheet is soft-deleted and not counted.
	ForceAccept bool
}

// ImportStatus is a snapshot of the scanning core's state.
type ImportStatus struct {
	// ElectionHash is the active election's content hash, empty when
	// unconfigured.
	ElectionHash string

	// Batches summarises all live batches, oldest first.
	Batches []domain.Batch

	// CanUnconfigure reports whether destructive operations are
	// currently permitted by the backup invariant.
	CanUnconfigure bool

	// Adjudication is the pending/resolved review bookkeeping.
	Adjudication domain.AdjudicationStatus
}

// ImportOrchestrator owns at most one scanning session at a time and
// drives the scan, interpret, validate, store, decide loop.
type ImportOrchestrator interface {
	// Configure replaces the election configuration. Fails with
	// domain.ErrScanInProgress while a session is active.
	Configure(ctx context.Context, election *domain.Election) error

	// StartImport opens a new batch and starts a scanner session,
	// returning the batch id immediately. Scanning proceeds in the
	// background. Fails with domain.ErrNoElection when unconfigured
	// and domain.ErrScanInProgress when a session is already active.
	StartImport(ctx context.Context) (string, error)

	// ContinueImport resolves the sheet awaiting adjudication, if any,
	// then resumes the scan loop. Fails with
	// domain.ErrNoScanInProgress when no session is active.
	ContinueImport(ctx context.Context, opts ContinueImportOptions) error

	// WaitForEndOfBatchOrScanningPause blocks until the open batch
	// closes or a sheet is awaiting adjudication. The scan loop is
	// fire-and-forget; this is the polling helper for callers that
	// need completion.
	WaitForEndOfBatchOrScanningPause(ctx context.Context) error

	// Status returns a snapshot of the core's state.
	Status(ctx context.Context) (*ImportStatus, error)

	// DoZero purges all batches, sheets and images, keeping the
	// election configuration. Blocked by the backup invariant unless
	// allowWithoutBackup is set.
	DoZero(ctx context.Context, allowWithoutBackup bool) error

	// Unconfigure additionally drops the election configuration.
	// Blocked by the backup invariant unless allowWithoutBackup is
	// set.
	Unconfigure(ctx context.Context, allowWithoutBackup bool) error
}
