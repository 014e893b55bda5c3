package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
	"github.com/custodia-labs/batchscan/internal/logger"
)

// Ensure Importer implements the interface.
var _ driving.ImportOrchestrator = (*Importer)(nil)

// scanPollInterval paces WaitForEndOfBatchOrScanningPause.
const scanPollInterval = 25 * time.Millisecond

// importState is where the orchestrator's state machine currently is.
type importState int

const (
	// stateIdle: no open batch, no session.
	stateIdle importState = iota
	// stateScanning: batch open, session active, loop running.
	stateScanning
	// stateAwaitingAdjudication: batch open, loop paused because the
	// most recently stored sheet requires review.
	stateAwaitingAdjudication
)

// ImporterConfig carries workstation-level options for the orchestrator.
type ImporterConfig struct {
	// ReviewReasons selects which hand-marked conditions the
	// interpreter flags for adjudication.
	ReviewReasons []domain.AdjudicationReason

	// ImprintIDPrefix, when set, asks imprinter-equipped scanners to
	// print sequential audit ids on each sheet.
	ImprintIDPrefix string

	// ImagesDir is where scanned images live; purged by DoZero and
	// Unconfigure when set.
	ImagesDir string
}

// Importer coordinates scanning. It owns at most one active
// batch/scanner-session pair; the scan loop runs as a detached task
// chain where each sheet's processing schedules the next.
type Importer struct {
	scanner     driven.BatchScanner
	interpreter driven.SheetInterpreter
	store       driven.Store
	cfg         ImporterConfig

	mu       sync.Mutex
	state    importState
	session  driven.ScanSession
	batchID  string
	election *domain.Election
}

// NewImporter creates the import orchestrator. Batches left open by a
// prior process are purged immediately: an interrupted batch is
// incomplete and must never be resumed.
func NewImporter(
	scanner driven.BatchScanner,
	interpreter driven.SheetInterpreter,
	store driven.Store,
	cfg ImporterConfig,
) *Importer {
	if err := store.PurgeOpenBatches(context.Background()); err != nil {
		logger.Warn("Failed to purge open batches: %v", err)
	}
	return &Importer{
		scanner:     scanner,
		interpreter: interpreter,
		store:       store,
		cfg:         cfg,
	}
}

// Configure replaces the election configuration. The store wipes prior
// batches and sheets as part of the swap.
func (i *Importer) Configure(ctx context.Context, election *domain.Election) error {
	if election == nil {
		return fmt.Errorf("configure: %w", domain.ErrInvalidInput)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.session != nil {
		return domain.ErrScanInProgress
	}

	// Work on a copy so the caller keeps ownership of its struct.
	configured := *election
	if configured.ElectionHash == "" {
		configured.ElectionHash = configured.Definition.ContentHash()
	}
	if configured.CreatedAt.IsZero() {
		configured.CreatedAt = time.Now().UTC()
	}

	if err := i.store.SetElection(ctx, &configured); err != nil {
		return fmt.Errorf("set election: %w", err)
	}

	logger.Info("Configured election %s (%s)", configured.Definition.Title, configured.ElectionHash)
	return nil
}

// StartImport opens a new batch and starts a scanner session. The
// batch id is returned immediately; scanning proceeds asynchronously.
func (i *Importer) StartImport(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.session != nil {
		return "", domain.ErrScanInProgress
	}

	election, err := i.store.GetElection(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNoElection
	}
	if err != nil {
		return "", fmt.Errorf("get election: %w", err)
	}

	batch, err := i.store.AddBatch(ctx, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("add batch: %w", err)
	}

	session, err := i.scanner.ScanSheets(ctx, driven.ScanOptions{
		PaperSize:       election.Definition.PaperSize,
		Mode:            driven.ScanModeGray,
		ImprintIDPrefix: i.cfg.ImprintIDPrefix,
	})
	if err != nil {
		if ferr := i.store.FinishBatch(ctx, batch.ID, err.Error()); ferr != nil {
			logger.Warn("Failed to close batch %s: %v", batch.ID, ferr)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrScannerUnavailable, err)
	}

	i.session = session
	i.batchID = batch.ID
	i.election = election
	i.state = stateScanning

	logger.Info("Scanning %s (%s)", batch.Label, batch.ID)
	go i.scanOneSheet()

	return batch.ID, nil
}

// scanOneSheet fetches, interprets, validates and stores one sheet,
// then either schedules the next iteration or pauses for adjudication.
func (i *Importer) scanOneSheet() {
	// The loop outlives the operation that started it; it is detached
	// from any caller's context by design of the session lifecycle.
	ctx := context.Background()

	i.mu.Lock()
	session, batchID, election := i.session, i.batchID, i.election
	i.mu.Unlock()
	if session == nil {
		return
	}

	images, err := session.ScanSheet(ctx)
	if err != nil {
		i.failBatch(ctx, batchID, fmt.Errorf("scan sheet: %w", err))
		return
	}
	if images == nil {
		i.closeBatch(ctx, batchID)
		return
	}
	logger.Debug("Scanned sheet: %s / %s", images.FrontPath, images.BackPath)

	interpreted, err := i.interpreter.Interpret(ctx, election, i.cfg.ReviewReasons, images.FrontPath, images.BackPath)
	if err != nil {
		session.EndBatch()
		i.failBatch(ctx, batchID, fmt.Errorf("interpret sheet: %w", err))
		return
	}

	front, back, verr := domain.CanonicalizeSheet(sheetSide(interpreted.Front), sheetSide(interpreted.Back))
	if verr != nil {
		// A structurally invalid combination is stored anyway, as an
		// unreadable marker carrying the validator's description, so
		// it surfaces as an adjudicatable anomaly instead of being
		// silently dropped.
		reason := "invalid ballot: " + verr.Error()
		logger.Debug("Sheet failed validation: %s", reason)
		front.Interpretation = domain.UnreadablePage{Reason: reason}
		back.Interpretation = domain.UnreadablePage{Reason: reason}
	}

	sheet, err := i.store.AddSheet(ctx, uuid.NewString(), batchID, front, back, images.AuditID)
	if err != nil {
		session.EndBatch()
		i.failBatch(ctx, batchID, fmt.Errorf("add sheet: %w", err))
		return
	}

	status, err := i.store.AdjudicationStatus(ctx)
	if err != nil {
		session.EndBatch()
		i.failBatch(ctx, batchID, fmt.Errorf("adjudication status: %w", err))
		return
	}

	if status.Remaining == 0 {
		session.AcceptSheet()
		if err := i.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: false}); err != nil {
			logger.Warn("Failed to resume scanning: %v", err)
		}
		return
	}

	if domain.SheetIsUncastable(sheet.Front.Interpretation, sheet.Back.Interpretation) {
		session.RejectSheet()
	} else {
		session.ReviewSheet()
	}

	i.mu.Lock()
	i.state = stateAwaitingAdjudication
	i.mu.Unlock()
	logger.Info("Sheet %s awaiting adjudication", sheet.ID)
}

// ContinueImport resolves the pending sheet, if any, then resumes the
// scan loop.
func (i *Importer) ContinueImport(ctx context.Context, opts driving.ContinueImportOptions) error {
	i.mu.Lock()
	if i.session == nil {
		i.mu.Unlock()
		return domain.ErrNoScanInProgress
	}
	i.mu.Unlock()

	pending, err := i.store.GetNextAdjudicationSheet(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get pending sheet: %w", err)
	}

	if pending != nil {
		if opts.ForceAccept {
			if err := i.store.AdjudicateSheet(ctx, pending.ID); err != nil {
				return fmt.Errorf("adjudicate sheet: %w", err)
			}
			logger.Info("Sheet %s accepted by operator", pending.ID)
		} else {
			if err := i.store.DeleteSheet(ctx, pending.ID); err != nil {
				return fmt.Errorf("delete sheet: %w", err)
			}
			logger.Info("Sheet %s rejected by operator", pending.ID)
		}
	}

	i.mu.Lock()
	i.state = stateScanning
	i.mu.Unlock()
	go i.scanOneSheet()
	return nil
}

// WaitForEndOfBatchOrScanningPause blocks until the batch closes or a
// sheet is awaiting adjudication.
func (i *Importer) WaitForEndOfBatchOrScanningPause(ctx context.Context) error {
	for {
		i.mu.Lock()
		session, state := i.session, i.state
		i.mu.Unlock()

		if session == nil || state == stateAwaitingAdjudication {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scanPollInterval):
		}
	}
}

// Status returns a snapshot of the core's state.
func (i *Importer) Status(ctx context.Context) (*driving.ImportStatus, error) {
	status := &driving.ImportStatus{}

	election, err := i.store.GetElection(ctx)
	switch {
	case err == nil:
		status.ElectionHash = election.ElectionHash
	case errors.Is(err, domain.ErrNotFound):
		// Unconfigured; hash stays empty.
	default:
		return nil, fmt.Errorf("get election: %w", err)
	}

	batches, err := i.store.GetBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("get batches: %w", err)
	}
	status.Batches = batches

	adjudication, err := i.store.AdjudicationStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("adjudication status: %w", err)
	}
	status.Adjudication = *adjudication

	can, err := i.store.GetCanUnconfigure(ctx)
	if err != nil {
		return nil, fmt.Errorf("can unconfigure: %w", err)
	}
	status.CanUnconfigure = can

	return status, nil
}

// DoZero purges all batches, sheets and images, keeping the election.
func (i *Importer) DoZero(ctx context.Context, allowWithoutBackup bool) error {
	if err := i.checkDestructive(ctx, allowWithoutBackup); err != nil {
		return err
	}
	if err := i.store.ResetElectionSession(ctx); err != nil {
		return fmt.Errorf("reset election session: %w", err)
	}
	i.clearImages()
	logger.Info("Zeroed all scan data")
	return nil
}

// Unconfigure purges everything including the election configuration.
func (i *Importer) Unconfigure(ctx context.Context, allowWithoutBackup bool) error {
	if err := i.checkDestructive(ctx, allowWithoutBackup); err != nil {
		return err
	}
	if err := i.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	i.clearImages()
	logger.Info("Unconfigured election")
	return nil
}

// checkDestructive gates destructive operations on the session state
// and the backup invariant.
func (i *Importer) checkDestructive(ctx context.Context, allowWithoutBackup bool) error {
	i.mu.Lock()
	active := i.session != nil
	i.mu.Unlock()
	if active {
		return domain.ErrScanInProgress
	}

	if allowWithoutBackup {
		return nil
	}
	can, err := i.store.GetCanUnconfigure(ctx)
	if err != nil {
		return fmt.Errorf("can unconfigure: %w", err)
	}
	if !can {
		return domain.ErrBackupRequired
	}
	return nil
}

// failBatch records a terminal error on the batch and returns to idle.
func (i *Importer) failBatch(ctx context.Context, batchID string, cause error) {
	logger.Warn("Batch %s failed: %v", batchID, cause)
	if err := i.store.FinishBatch(ctx, batchID, cause.Error()); err != nil {
		logger.Warn("Failed to close batch %s: %v", batchID, err)
	}
	i.clearSession()
}

// closeBatch records a normal end of batch and returns to idle.
func (i *Importer) closeBatch(ctx context.Context, batchID string) {
	if err := i.store.FinishBatch(ctx, batchID, ""); err != nil {
		logger.Warn("Failed to close batch %s: %v", batchID, err)
	}
	logger.Info("Batch %s complete", batchID)
	i.clearSession()
}

func (i *Importer) clearSession() {
	i.mu.Lock()
	i.session = nil
	i.batchID = ""
	i.election = nil
	i.state = stateIdle
	i.mu.Unlock()
}

// clearImages removes scanned image files after a destructive
// operation.
func (i *Importer) clearImages() {
	if i.cfg.ImagesDir == "" {
		return
	}
	if err := os.RemoveAll(i.cfg.ImagesDir); err != nil {
		logger.Warn("Failed to remove images dir: %v", err)
		return
	}
	if err := os.MkdirAll(i.cfg.ImagesDir, 0700); err != nil {
		logger.Warn("Failed to recreate images dir: %v", err)
	}
}

// sheetSide projects an interpreter page result onto the stored side,
// preferring the normalised image.
func sheetSide(result driven.PageResult) domain.SheetSide {
	path := result.NormalizedImagePath
	if path == "" {
		path = result.OriginalImagePath
	}
	return domain.SheetSide{ImagePath: path, Interpretation: result.Interpretation}
}
