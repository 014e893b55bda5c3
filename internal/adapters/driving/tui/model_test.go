package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/custodia-labs/batchscan/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
)

// fakeOrchestrator records calls and serves a canned status.
type fakeOrchestrator struct {
	mu        sync.Mutex
	status    driving.ImportStatus
	starts    int
	continues []driving.ContinueImportOptions
}

func (f *fakeOrchestrator) Configure(context.Context, *domain.Election) error { return nil }

func (f *fakeOrchestrator) StartImport(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return "batch-1", nil
}

func (f *fakeOrchestrator) ContinueImport(_ context.Context, opts driving.ContinueImportOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continues = append(f.continues, opts)
	return nil
}

func (f *fakeOrchestrator) WaitForEndOfBatchOrScanningPause(context.Context) error { return nil }

func (f *fakeOrchestrator) Status(context.Context) (*driving.ImportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	return &status, nil
}

func (f *fakeOrchestrator) DoZero(context.Context, bool) error      { return nil }
func (f *fakeOrchestrator) Unconfigure(context.Context, bool) error { return nil }

func setupModel(status driving.ImportStatus) (Model, *fakeOrchestrator) {
	orchestrator := &fakeOrchestrator{status: status}
	return NewModel(orchestrator, storagemem.NewStore()), orchestrator
}

func runCmd(t *testing.T, model Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	updated, _ := model.Update(cmd())
	return updated.(Model)
}

func TestQuitKey(t *testing.T) {
	model, _ := setupModel(driving.ImportStatus{})

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestStartKeyOpensBatch(t *testing.T) {
	model, orchestrator := setupModel(driving.ImportStatus{ElectionHash: "abc"})

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})

	require.NotNil(t, cmd)
	assert.IsType(t, batchStartedMsg{}, cmd())
	assert.Equal(t, 1, orchestrator.starts)
}

func TestAcceptAndRejectOnlyWhileHeld(t *testing.T) {
	model, orchestrator := setupModel(driving.ImportStatus{ElectionHash: "abc"})

	// Without a held sheet the review keys do nothing.
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	assert.Nil(t, cmd)

	model.status = &driving.ImportStatus{
		ElectionHash: "abc",
		Adjudication: domain.AdjudicationStatus{Remaining: 1},
	}

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	require.NotNil(t, cmd)
	cmd()
	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	cmd()

	require.Len(t, orchestrator.continues, 2)
	assert.True(t, orchestrator.continues[0].ForceAccept)
	assert.False(t, orchestrator.continues[1].ForceAccept)
}

func TestStatusMsgUpdatesModel(t *testing.T) {
	model, _ := setupModel(driving.ImportStatus{})
	model.err = errors.New("stale")

	updated, _ := model.Update(statusMsg{
		status:  &driving.ImportStatus{ElectionHash: "abc"},
		counted: 42,
	})

	m := updated.(Model)
	assert.Equal(t, "abc", m.status.ElectionHash)
	assert.Equal(t, 42, m.counted)
	assert.NoError(t, m.err)
}

func TestViewStates(t *testing.T) {
	model, _ := setupModel(driving.ImportStatus{})

	// Before the first status arrives.
	assert.Contains(t, model.View(), "loading")

	model.status = &driving.ImportStatus{}
	assert.Contains(t, model.View(), "No election configured")

	model.status = &driving.ImportStatus{
		ElectionHash: "abc123",
		Batches: []domain.Batch{
			{Label: "Batch 1", SheetCount: 3, Error: "paper jam"},
		},
		Adjudication:   domain.AdjudicationStatus{Remaining: 1},
		CanUnconfigure: false,
	}
	view := model.View()
	assert.Contains(t, view, "abc123")
	assert.Contains(t, view, "Batch 1")
	assert.Contains(t, view, "paper jam")
	assert.Contains(t, view, "needs review")
	assert.Contains(t, view, "Backup needed")
}

func TestFetchStatusRoundTrip(t *testing.T) {
	model, _ := setupModel(driving.ImportStatus{ElectionHash: "abc"})

	msg := model.fetchStatus()()

	status, ok := msg.(statusMsg)
	require.True(t, ok)
	assert.Equal(t, "abc", status.status.ElectionHash)
}
