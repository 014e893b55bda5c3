// Package tui provides the live scanning dashboard: batch progress,
// adjudication prompts and the backup gate, refreshed by polling the
// orchestrator.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
)

// Ensure Model implements tea.Model.
var _ tea.Model = (*Model)(nil)

// pollInterval paces the status refresh.
const pollInterval = 500 * time.Millisecond

type tickMsg time.Time

type statusMsg struct {
	status  *driving.ImportStatus
	counted int
}

type errMsg struct {
	err error
}

type batchStartedMsg struct{}

// Model is the dashboard's Elm-architecture model.
type Model struct {
	importer driving.ImportOrchestrator
	store    driven.Store

	status  *driving.ImportStatus
	counted int
	err     error

	keys    KeyMap
	styles  Styles
	spinner spinner.Model
	width   int
}

// NewModel creates the dashboard model.
func NewModel(importer driving.ImportOrchestrator, store driven.Store) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		importer: importer,
		store:    store,
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		spinner:  sp,
	}
}

// Init starts the spinner and the status poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatus reads a fresh snapshot from the orchestrator.
func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		status, err := m.importer.Status(ctx)
		if err != nil {
			return errMsg{err}
		}
		counted, err := m.store.BallotsCounted(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{status: status, counted: counted}
	}
}

func (m Model) startBatch() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.importer.StartImport(context.Background()); err != nil {
			return errMsg{err}
		}
		return batchStartedMsg{}
	}
}

func (m Model) resolveSheet(accept bool) tea.Cmd {
	return func() tea.Msg {
		err := m.importer.ContinueImport(context.Background(),
			driving.ContinueImportOptions{ForceAccept: accept})
		if err != nil {
			return errMsg{err}
		}
		return batchStartedMsg{}
	}
}

// awaitingReview reports whether a sheet is currently held.
func (m Model) awaitingReview() bool {
	return m.status != nil && m.status.Adjudication.Remaining > 0
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			return m, m.startBatch()
		case key.Matches(msg, m.keys.Accept):
			if m.awaitingReview() {
				return m, m.resolveSheet(true)
			}
		case key.Matches(msg, m.keys.Reject):
			if m.awaitingReview() {
				return m, m.resolveSheet(false)
			}
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())

	case statusMsg:
		m.status = msg.status
		m.counted = msg.counted
		m.err = nil
		return m, nil

	case batchStartedMsg:
		return m, m.fetchStatus()

	case errMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("batchscan"))
	b.WriteString("\n\n")

	if m.status == nil {
		b.WriteString(m.spinner.View() + " loading\n")
		return b.String()
	}

	if m.status.ElectionHash == "" {
		b.WriteString("No election configured.\n")
		b.WriteString(m.helpLine())
		return b.String()
	}

	b.WriteString(m.styles.Label.Render("Election  "))
	b.WriteString(m.styles.Value.Render(m.status.ElectionHash))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render("Counted   "))
	b.WriteString(m.styles.Value.Render(humanize.Comma(int64(m.counted))))
	b.WriteString("\n\n")

	if m.awaitingReview() {
		b.WriteString(m.styles.Warning.Render("Sheet needs review: accept (a) or reject (r)"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.batchPanel())
	b.WriteString("\n")

	if !m.status.CanUnconfigure {
		b.WriteString(m.styles.Warning.Render("Backup needed before destructive operations"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(m.styles.Error.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.helpLine())
	return b.String()
}

func (m Model) batchPanel() string {
	if len(m.status.Batches) == 0 {
		return m.styles.Muted.Render("No batches scanned.") + "\n"
	}

	var rows []string
	for _, batch := range m.status.Batches {
		state := m.spinner.View() + " scanning"
		switch {
		case batch.Error != "":
			state = m.styles.Error.Render("failed: " + batch.Error)
		case batch.EndedAt != nil:
			state = "closed"
		}
		rows = append(rows, fmt.Sprintf("%-10s  %4d sheets  %s",
			batch.Label, batch.SheetCount, state))
	}
	return m.styles.Panel.Render(strings.Join(rows, "\n")) + "\n"
}

func (m Model) helpLine() string {
	bindings := []key.Binding{m.keys.Start, m.keys.Accept, m.keys.Reject, m.keys.Quit}
	var parts []string
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return m.styles.Muted.Render(strings.Join(parts, " · "))
}

// Run starts the dashboard program.
func Run(importer driving.ImportOrchestrator, store driven.Store) error {
	_, err := tea.NewProgram(NewModel(importer, store), tea.WithAltScreen()).Run()
	return err
}
