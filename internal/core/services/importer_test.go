package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scannermem "github.com/custodia-labs/batchscan/internal/adapters/driven/scanner/memory"
	storagemem "github.com/custodia-labs/batchscan/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
)

// fakeInterpreter returns scripted results keyed by front image path,
// falling back to a clean machine-marked sheet.
type fakeInterpreter struct {
	mu      sync.Mutex
	results map[string]*driven.InterpretedSheet
	err     error
}

func newFakeInterpreter() *fakeInterpreter {
	return &fakeInterpreter{results: make(map[string]*driven.InterpretedSheet)}
}

func (f *fakeInterpreter) script(frontPath string, sheet *driven.InterpretedSheet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[frontPath] = sheet
}

func (f *fakeInterpreter) Interpret(
	_ context.Context,
	_ *domain.Election,
	_ []domain.AdjudicationReason,
	frontPath, backPath string,
) (*driven.InterpretedSheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if sheet, ok := f.results[frontPath]; ok {
		return sheet, nil
	}
	return interpretedSheet(frontPath, backPath,
		domain.BMDPage{BallotID: "b-1"},
		domain.BlankPage{},
	), nil
}

func interpretedSheet(frontPath, backPath string, front, back domain.PageInterpretation) *driven.InterpretedSheet {
	return &driven.InterpretedSheet{
		Front: driven.PageResult{Interpretation: front, OriginalImagePath: frontPath, NormalizedImagePath: frontPath},
		Back:  driven.PageResult{Interpretation: back, OriginalImagePath: backPath, NormalizedImagePath: backPath},
	}
}

// overvotedHMPB is a valid hand-marked pair flagged for review but
// still castable.
func overvotedHMPB() (domain.PageInterpretation, domain.PageInterpretation) {
	meta := domain.PageMetadata{
		BallotStyleID: "style-1",
		PrecinctID:    "precinct-1",
		BallotType:    domain.BallotTypePrecinct,
		ElectionHash:  "abc123",
	}
	frontMeta, backMeta := meta, meta
	frontMeta.PageNumber = 1
	backMeta.PageNumber = 2
	front := domain.HMPBPage{
		Votes:               map[string][]string{"contest-1": {"opt-a", "opt-b"}},
		AdjudicationReasons: []domain.AdjudicationReason{domain.ReasonOvervote},
		Metadata:            frontMeta,
	}
	back := domain.HMPBPage{
		Votes:    map[string][]string{"contest-2": {"opt-c"}},
		Metadata: backMeta,
	}
	return front, back
}

type importerFixture struct {
	importer    *Importer
	scanner     *scannermem.Scanner
	interpreter *fakeInterpreter
	store       *storagemem.Store
}

func setupImporter(t *testing.T) *importerFixture {
	t.Helper()
	scanner := scannermem.NewScanner()
	interpreter := newFakeInterpreter()
	store := storagemem.NewStore()
	importer := NewImporter(scanner, interpreter, store, ImporterConfig{
		ReviewReasons: []domain.AdjudicationReason{domain.ReasonOvervote},
	})
	return &importerFixture{importer: importer, scanner: scanner, interpreter: interpreter, store: store}
}

func (f *importerFixture) configure(t *testing.T) {
	t.Helper()
	election := &domain.Election{
		Definition: domain.ElectionDefinition{
			Title: "General Election",
			Date:  "2026-11-03",
		},
		Jurisdiction: "Sample County",
		TestMode:     true,
	}
	require.NoError(t, f.importer.Configure(context.Background(), election))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStartImportWithoutElection(t *testing.T) {
	f := setupImporter(t)

	_, err := f.importer.StartImport(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoElection)
}

func TestImportCleanBatch(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	session := scannermem.NewSession().
		Sheet("f1.png", "b1.png", "A-00001").
		Sheet("f2.png", "b2.png", "A-00002").
		End()
	f.scanner.AddSession(session)

	batchID, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, batchID)

	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	// Both clean sheets were dropped into the accepted tray and the
	// batch closed normally.
	assert.Equal(t, 2, session.Accepted)
	assert.Equal(t, 0, session.Rejected)
	assert.Equal(t, 0, session.Reviewed)

	batches, err := f.store.GetBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Batch 1", batches[0].Label)
	assert.NotNil(t, batches[0].EndedAt)
	assert.Empty(t, batches[0].Error)
	assert.Equal(t, 2, batches[0].SheetCount)

	counted, err := f.store.BallotsCounted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counted)
}

func TestStartImportWhileScanning(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	frontHMPB, backHMPB := overvotedHMPB()
	f.interpreter.script("f1.png", interpretedSheet("f1.png", "b1.png", frontHMPB, backHMPB))
	f.scanner.AddSession(scannermem.NewSession().Sheet("f1.png", "b1.png", "").End())

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	// The session is paused for adjudication, still active.
	_, err = f.importer.StartImport(ctx)
	assert.ErrorIs(t, err, domain.ErrScanInProgress)

	require.NoError(t, f.importer.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: true}))
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))
}

func TestFlaggedSheetPausesForReview(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	frontHMPB, backHMPB := overvotedHMPB()
	f.interpreter.script("f1.png", interpretedSheet("f1.png", "b1.png", frontHMPB, backHMPB))
	session := scannermem.NewSession().
		Sheet("f1.png", "b1.png", "").
		Sheet("f2.png", "b2.png", "").
		End()
	f.scanner.AddSession(session)

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	// A castable flagged sheet is held rather than rejected.
	assert.Equal(t, 1, session.Reviewed)
	assert.Equal(t, 0, session.Rejected)

	status, err := f.store.AdjudicationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Remaining)

	// Operator accepts; scanning resumes and finishes the batch.
	require.NoError(t, f.importer.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: true}))
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	status, err = f.store.AdjudicationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 1, status.Adjudicated)

	counted, err := f.store.BallotsCounted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counted)
}

func TestRejectedSheetIsDeleted(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	f.interpreter.script("f1.png", interpretedSheet("f1.png", "b1.png",
		domain.UnreadablePage{Reason: "decode failed"},
		domain.BlankPage{},
	))
	session := scannermem.NewSession().Sheet("f1.png", "b1.png", "").End()
	f.scanner.AddSession(session)

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	// An uncastable sheet is returned to the operator.
	assert.Equal(t, 1, session.Rejected)
	assert.Equal(t, 0, session.Reviewed)

	require.NoError(t, f.importer.ContinueImport(ctx, driving.ContinueImportOptions{}))
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	counted, err := f.store.BallotsCounted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counted)
}

func TestInvalidSheetStoredAsUnreadable(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	// Two machine-marked summary pages back to back cannot be one
	// sheet.
	f.interpreter.script("f1.png", interpretedSheet("f1.png", "b1.png",
		domain.BMDPage{BallotID: "b-1"},
		domain.BMDPage{BallotID: "b-2"},
	))
	session := scannermem.NewSession().Sheet("f1.png", "b1.png", "").End()
	f.scanner.AddSession(session)

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	assert.Equal(t, 1, session.Rejected)

	pending, err := f.store.GetNextAdjudicationSheet(ctx)
	require.NoError(t, err)
	unreadable, ok := pending.Front.Interpretation.(domain.UnreadablePage)
	require.True(t, ok)
	assert.Contains(t, unreadable.Reason, "invalid ballot")
}

func TestScannerUnavailable(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	// No scripted session: the scanner refuses to start.
	_, err := f.importer.StartImport(ctx)
	require.ErrorIs(t, err, domain.ErrScannerUnavailable)

	// The batch is closed immediately with the failure recorded.
	batches, err := f.store.GetBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.NotNil(t, batches[0].EndedAt)
	assert.Contains(t, batches[0].Error, "no scripted session")

	// A fresh session can start afterwards.
	f.scanner.AddSession(scannermem.NewSession().End())
	_, err = f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))
}

func TestScanErrorFailsBatch(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	f.scanner.AddSession(scannermem.NewSession().Error(errors.New("paper jam")).End())

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	batches, err := f.store.GetBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.NotNil(t, batches[0].EndedAt)
	assert.Contains(t, batches[0].Error, "paper jam")
}

func TestInterpreterErrorEndsSession(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	f.interpreter.err = errors.New("interpreter crashed")
	session := scannermem.NewSession().Sheet("f1.png", "b1.png", "").End()
	f.scanner.AddSession(session)

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	assert.Equal(t, 1, session.EndBatchCalls)

	batches, err := f.store.GetBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Contains(t, batches[0].Error, "interpreter crashed")
}

func TestContinueImportWithoutSession(t *testing.T) {
	f := setupImporter(t)

	err := f.importer.ContinueImport(context.Background(), driving.ContinueImportOptions{})

	assert.ErrorIs(t, err, domain.ErrNoScanInProgress)
}

func TestConfigureWhileScanning(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	frontHMPB, backHMPB := overvotedHMPB()
	f.interpreter.script("f1.png", interpretedSheet("f1.png", "b1.png", frontHMPB, backHMPB))
	f.scanner.AddSession(scannermem.NewSession().Sheet("f1.png", "b1.png", "").End())

	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	err = f.importer.Configure(ctx, &domain.Election{})
	assert.ErrorIs(t, err, domain.ErrScanInProgress)

	require.NoError(t, f.importer.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: true}))
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))
}

func TestConfigureFillsDerivedFields(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)

	election := &domain.Election{
		Definition: domain.ElectionDefinition{Title: "Primary", Date: "2026-03-10"},
	}
	require.NoError(t, f.importer.Configure(ctx, election))

	stored, err := f.store.GetElection(ctx)
	require.NoError(t, err)
	assert.Equal(t, election.Definition.ContentHash(), stored.ElectionHash)
	assert.False(t, stored.CreatedAt.IsZero())

	// The caller's struct is left untouched.
	assert.Empty(t, election.ElectionHash)
	assert.True(t, election.CreatedAt.IsZero())
}

func TestStatusSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)

	// Unconfigured: empty hash, unconfigure permitted.
	status, err := f.importer.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.ElectionHash)
	assert.True(t, status.CanUnconfigure)

	f.configure(t)
	f.scanner.AddSession(scannermem.NewSession().Sheet("f1.png", "b1.png", "").End())
	_, err = f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	status, err = f.importer.Status(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.ElectionHash)
	require.Len(t, status.Batches, 1)
	assert.Equal(t, 1, status.Batches[0].SheetCount)
	assert.Equal(t, 0, status.Adjudication.Remaining)
}

func TestDoZeroKeepsElection(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	f.scanner.AddSession(scannermem.NewSession().Sheet("f1.png", "b1.png", "").End())
	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	require.NoError(t, f.importer.DoZero(ctx, false))

	_, err = f.store.GetElection(ctx)
	require.NoError(t, err)
	batches, err := f.store.GetBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestUnconfigureDropsElection(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)
	f.configure(t)

	require.NoError(t, f.importer.Unconfigure(ctx, false))

	_, err := f.store.GetElection(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDestructiveOpsRequireBackup(t *testing.T) {
	ctx := context.Background()
	f := setupImporter(t)

	// A live-mode election with counted sheets and no backup.
	election := &domain.Election{
		Definition:   domain.ElectionDefinition{Title: "General", Date: "2026-11-03"},
		Jurisdiction: "Sample County",
	}
	require.NoError(t, f.importer.Configure(ctx, election))
	f.scanner.AddSession(scannermem.NewSession().Sheet("f1.png", "b1.png", "").End())
	_, err := f.importer.StartImport(ctx)
	require.NoError(t, err)
	require.NoError(t, f.importer.WaitForEndOfBatchOrScanningPause(waitCtx(t)))

	assert.ErrorIs(t, f.importer.DoZero(ctx, false), domain.ErrBackupRequired)
	assert.ErrorIs(t, f.importer.Unconfigure(ctx, false), domain.ErrBackupRequired)

	// A fresh backup lifts the gate.
	require.NoError(t, f.store.RecordBackup(ctx, time.Now().UTC().Add(time.Minute)))
	require.NoError(t, f.importer.DoZero(ctx, false))

	// The override skips the check entirely.
	require.NoError(t, f.importer.Unconfigure(ctx, true))
}
