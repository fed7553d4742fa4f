package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pmontanari/screenops/internal/broadcast"
)

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.viewMode == ViewModeList {
			return m, tea.Batch(m.loadRuns, tickCmd())
		}
		// Keep ticking so the list is fresh when the user goes back.
		return m, tickCmd()

	case runsLoadedMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.runs = msg.runs
		if m.selected >= len(m.runs) && len(m.runs) > 0 {
			m.selected = len(m.runs) - 1
		}
		m.lastUpdate = timeNow()
		return m, nil

	case runDetailMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.detail = msg.run
		m.viewMode = ViewModeDetail
		return m, m.startTail(msg.run.ID)

	case tailStartedMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.tailCh = msg.ch
		m.tailCancel = msg.cancel
		return m, waitForTailEvent(m.tailCh)

	case tailEventMsg:
		switch msg.Type {
		case broadcast.EventOutput:
			m.appendTail(msg.Data)
		case broadcast.EventFinished:
			m.tailDone = true
			if m.detail != nil {
				m.detail.ExitCode = msg.ExitCode
			}
		}
		if m.tailCh != nil {
			return m, waitForTailEvent(m.tailCh)
		}
		return m, nil

	case tailClosedMsg:
		m.tailDone = true
		m.tailCh = nil
		return m, nil

	case runStoppedMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
		}
		return m, m.loadRuns
	}

	return m, nil
}

// appendTail splits an output chunk into lines for the tail panel.
func (m *Model) appendTail(chunk string) {
	for _, line := range strings.Split(strings.TrimRight(chunk, "\n"), "\n") {
		m.tailLines = append(m.tailLines, line)
	}
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.closeTail()
		m.quitting = true
		return m, tea.Quit

	case "esc":
		// Go back to list view if in detail view
		if m.viewMode == ViewModeDetail {
			m.closeTail()
			m.viewMode = ViewModeList
			return m, m.loadRuns
		}
		return m, nil

	case "enter":
		// Open the selected run with a live tail
		if m.viewMode == ViewModeList && m.selected < len(m.runs) {
			return m, m.loadDetail(m.runs[m.selected].ID)
		}
		return m, nil

	case "up", "k":
		if m.viewMode == ViewModeList && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.viewMode == ViewModeList && m.selected < len(m.runs)-1 {
			m.selected++
		}
		return m, nil

	case "g":
		if m.viewMode == ViewModeList {
			m.selected = 0
		}
		return m, nil

	case "G":
		if m.viewMode == ViewModeList && len(m.runs) > 0 {
			m.selected = len(m.runs) - 1
		}
		return m, nil

	case "s":
		// Stop the selected run
		if m.viewMode == ViewModeList && m.selected < len(m.runs) {
			run := m.runs[m.selected]
			if run.Running() {
				return m, m.stopRun(run.ID)
			}
		}
		if m.viewMode == ViewModeDetail && m.detail != nil && !m.tailDone {
			return m, m.stopRun(m.detail.ID)
		}
		return m, nil

	case "r":
		// Manual refresh
		if m.viewMode == ViewModeList {
			return m, m.loadRuns
		}
		return m, nil
	}

	return m, nil
}
