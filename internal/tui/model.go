package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/store"
)

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// listLimit is how many runs the list view shows.
const listLimit = 50

// Model holds the state for the TUI.
type Model struct {
	client *Client

	// UI state
	viewMode     ViewMode
	runs         []store.Run
	selected     int
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	errorMessage string

	// Detail view state
	detail     *store.Run
	tailLines  []string
	tailDone   bool
	tailCh     <-chan broadcast.Event
	tailCancel context.CancelFunc
}

// New creates a new TUI model talking to the given dashboard address.
func New(baseURL string) Model {
	return Model{
		client:     NewClient(baseURL),
		lastUpdate: time.Now(),
	}
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadRuns,
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// timeNow is swapped out in tests.
var timeNow = time.Now

// tickMsg is sent on a regular interval to refresh the UI.
type tickMsg time.Time

// tickCmd returns a command that sends a tick message every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type runsLoadedMsg struct {
	runs []store.Run
	err  error
}

type runDetailMsg struct {
	run *store.Run
	err error
}

type runStoppedMsg struct {
	err error
}

type tailStartedMsg struct {
	ch     <-chan broadcast.Event
	cancel context.CancelFunc
	err    error
}

type tailEventMsg broadcast.Event

type tailClosedMsg struct{}

// loadRuns fetches the recent runs for the list view.
func (m Model) loadRuns() tea.Msg {
	runs, err := m.client.ListRuns(listLimit)
	return runsLoadedMsg{runs: runs, err: err}
}

func (m Model) loadDetail(runID int64) tea.Cmd {
	return func() tea.Msg {
		run, err := m.client.GetRun(runID)
		return runDetailMsg{run: run, err: err}
	}
}

func (m Model) stopRun(runID int64) tea.Cmd {
	return func() tea.Msg {
		return runStoppedMsg{err: m.client.StopRun(runID)}
	}
}

func (m Model) startTail(runID int64) tea.Cmd {
	return func() tea.Msg {
		ch, cancel, err := m.client.Tail(runID)
		return tailStartedMsg{ch: ch, cancel: cancel, err: err}
	}
}

// waitForTailEvent delivers the next streamed event as a message.
func waitForTailEvent(ch <-chan broadcast.Event) tea.Cmd {
	return func() tea.Msg {
		ev, open := <-ch
		if !open {
			return tailClosedMsg{}
		}
		return tailEventMsg(ev)
	}
}

// closeTail tears down any live stream before leaving the detail view.
func (m *Model) closeTail() {
	if m.tailCancel != nil {
		m.tailCancel()
		m.tailCancel = nil
	}
	m.tailCh = nil
	m.tailLines = nil
	m.tailDone = false
	m.detail = nil
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
