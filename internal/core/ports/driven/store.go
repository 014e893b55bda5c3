package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

// Store is the durable record of the election, its batches and its
// sheets. Backed by SQLite on the appliance; a memory implementation
// exists for tests.
type Store interface {
	// SetElection replaces the active election configuration and wipes
	// all prior batches and sheets.
	SetElection(ctx context.Context, election *domain.Election) error

	// GetElection returns the active election configuration, or
	// domain.ErrNotFound when unconfigured.
	GetElection(ctx context.Context) (*domain.Election, error)

	// AddBatch opens a new batch with the given id and the next
	// "Batch N" label.
	AddBatch(ctx context.Context, id string) (*domain.Batch, error)

	// FinishBatch closes a batch, recording a terminal error message
	// when the session failed.
	FinishBatch(ctx context.Context, id, errorMessage string) error

	// PurgeOpenBatches hard-deletes batches left open by a prior
	// process, cascading to their sheets. Called once at startup; an
	// interrupted batch is incomplete and must not be resumed.
	PurgeOpenBatches(ctx context.Context) error

	// AddSheet stores a sheet. The requires-adjudication flag is
	// computed here, once, from the adjudication rule; sheets that
	// need no review are marked resolved immediately.
	AddSheet(ctx context.Context, id, batchID string, front, back domain.SheetSide, auditID string) (*domain.Sheet, error)

	// DeleteSheet soft-deletes a sheet.
	DeleteSheet(ctx context.Context, id string) error

	// DeleteBatch soft-deletes a batch and cascades to its sheets.
	DeleteBatch(ctx context.Context, id string) error

	// GetBatches returns all live batches with derived sheet counts,
	// oldest first.
	GetBatches(ctx context.Context) ([]domain.Batch, error)

	// GetNextAdjudicationSheet returns the oldest live sheet awaiting
	// review, or domain.ErrNotFound when none is pending.
	GetNextAdjudicationSheet(ctx context.Context) (*domain.Sheet, error)

	// AdjudicateSheet marks a pending sheet as reviewed and accepted.
	AdjudicateSheet(ctx context.Context, id string) error

	// AdjudicationStatus summarises pending and resolved review
	// counts across live sheets.
	AdjudicationStatus(ctx context.Context) (*domain.AdjudicationStatus, error)

	// BallotsCounted returns the number of accepted sheets: live and
	// not pending review.
	BallotsCounted(ctx context.Context) (int, error)

	// GetCanUnconfigure reports whether destructive operations are
	// currently permitted: always for test-mode elections, whenever
	// nothing has been counted, and otherwise only when the recorded
	// backup is at least as recent as every data mutation. The
	// comparison is computed fresh from timestamps on every call.
	GetCanUnconfigure(ctx context.Context) (bool, error)

	// RecordBackup records when a backup of the store completed.
	RecordBackup(ctx context.Context, completedAt time.Time) error

	// ResetElectionSession purges all batches and sheets and resets
	// the batch label sequence, keeping the election configuration.
	ResetElectionSession(ctx context.Context) error

	// Reset additionally drops the election configuration.
	Reset(ctx context.Context) error
}
