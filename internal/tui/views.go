package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pmontanari/screenops/internal/store"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	var sections []string

	sections = append(sections, m.renderHeader(""))
	sections = append(sections, m.renderStats())
	sections = append(sections, m.renderRunList())
	sections = append(sections, m.renderHelpBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the monitor header.
func (m Model) renderHeader(suffix string) string {
	titleText := "⚙ Screenops Monitor"
	if suffix != "" {
		titleText += " - " + suffix
	}
	title := titleStyle.Render(titleText)
	subtitle := subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05")))

	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", subtitle)
	return headerStyle.Render(header)
}

// renderStats renders the statistics bar.
func (m Model) renderStats() string {
	var running, completed, failed, cancelled int
	for _, run := range m.runs {
		switch run.Status {
		case store.StatusRunning, store.StatusPending:
			running++
		case store.StatusCompleted:
			completed++
		case store.StatusFailed:
			failed++
		case store.StatusCancelled:
			cancelled++
		}
	}

	stats := []string{
		fmt.Sprintf("%s %d", keyStyle.Render("Runs:"), len(m.runs)),
		fmt.Sprintf("%s %d", keyStyle.Render("Running:"), running),
		fmt.Sprintf("%s %d", keyStyle.Render("Completed:"), completed),
		fmt.Sprintf("%s %d", keyStyle.Render("Failed:"), failed),
	}
	if cancelled > 0 {
		stats = append(stats, fmt.Sprintf("%s %d", keyStyle.Render("Cancelled:"), cancelled))
	}

	content := strings.Join(stats, "  │  ")
	return statsStyle.Render(content)
}

// renderRunList renders the list of runs.
func (m Model) renderRunList() string {
	if len(m.runs) == 0 {
		return runListStyle.Render(subtitleStyle.Render("No runs yet"))
	}

	var rows []string

	rows = append(rows, titleStyle.Render("Runs"))
	rows = append(rows, "")

	header := fmt.Sprintf("   %-6s  %-24s  %-12s  %-10s  %s",
		"ID", "Operation", "Status", "Started", "Duration")
	rows = append(rows, keyStyle.Render(header))
	rows = append(rows, keyStyle.Render(strings.Repeat("─", 70)))

	for i, run := range m.runs {
		rows = append(rows, m.renderRunRow(run, i == m.selected))
	}

	content := strings.Join(rows, "\n")
	return runListStyle.Render(content)
}

// renderRunRow renders a single run row.
func (m Model) renderRunRow(run store.Run, selected bool) string {
	cursor := " "
	if selected {
		cursor = iconArrow
	}

	operation := padRight(truncate(run.Operation, 24), 24)

	icon, text, style := statusDisplay(run.Status)
	statusCol := style.Render(fmt.Sprintf("%s %s", icon, padRight(text, 10)))

	startedStr := run.StartedAt.Local().Format("15:04:05")

	durationStr := "running..."
	if !run.Running() {
		durationStr = formatDuration(run.Duration())
	}

	row := fmt.Sprintf("%s  %-6d  %s  %s  %-10s  %s",
		cursor,
		run.ID,
		operation,
		statusCol,
		startedStr,
		durationStyle.Render(durationStr),
	)

	if selected {
		return runItemSelectedStyle.Render(row)
	}
	return runItemStyle.Render(row)
}

// renderHelpBar renders the help/status bar at the bottom.
func (m Model) renderHelpBar() string {
	if m.errorMessage != "" {
		return statusBarStyle.Render(statusErrorStyle.Render("Error: " + m.errorMessage))
	}

	help := "q: quit  │  ↑/↓: navigate  │  enter: tail  │  s: stop  │  r: refresh"
	return statusBarStyle.Render(help)
}

// renderDetailView renders a run with its live output tail.
func (m Model) renderDetailView() string {
	if m.detail == nil {
		return "Loading run..."
	}

	run := m.detail
	var sections []string

	sections = append(sections, m.renderHeader(fmt.Sprintf("run #%d", run.ID)))

	// Run info panel
	var info []string
	info = append(info, titleStyle.Render("Run"))
	info = append(info, "")
	info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Operation:"), valueStyle.Render(run.Operation)))

	icon, text, style := statusDisplay(run.Status)
	if m.tailDone && run.ExitCode != nil {
		icon, text, style = statusDisplay(store.StatusForExit(*run.ExitCode))
	}
	info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Status:"), style.Render(icon+" "+text)))

	info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Started:"), valueStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04:05"))))
	if run.ExitCode != nil {
		info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Exit code:"), valueStyle.Render(fmt.Sprintf("%d", *run.ExitCode))))
	}
	if len(run.Params) > 0 {
		var params []string
		for k, v := range run.Params {
			params = append(params, fmt.Sprintf("%s=%v", k, v))
		}
		info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Params:"), valueStyle.Render(truncate(strings.Join(params, " "), 60))))
	}

	sections = append(sections, runListStyle.Render(strings.Join(info, "\n")))

	// Output tail panel
	var output []string
	outputTitle := "Output"
	if !m.tailDone {
		outputTitle = "Output (live)"
	}
	output = append(output, titleStyle.Render(outputTitle))
	output = append(output, "")

	lines := m.tailLines
	visible := m.tailHeight()
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	if len(lines) == 0 {
		output = append(output, subtitleStyle.Render("No output yet"))
	} else {
		for _, line := range lines {
			output = append(output, iconBullet+" "+truncate(line, max(20, m.width-10)))
		}
	}

	sections = append(sections, outputStyle.Render(strings.Join(output, "\n")))

	helpText := "esc: back  │  s: stop  │  q: quit"
	sections = append(sections, statusBarStyle.Render(helpText))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// tailHeight is how many output lines fit under the info panels.
func (m Model) tailHeight() int {
	h := m.height - 18
	if h < 5 {
		return 5
	}
	return h
}

func statusDisplay(status store.Status) (string, string, lipgloss.Style) {
	switch status {
	case store.StatusRunning:
		return iconRunning, "Running", statusRunningStyle
	case store.StatusCompleted:
		return iconSuccess, "Completed", statusSuccessStyle
	case store.StatusFailed:
		return iconError, "Failed", statusErrorStyle
	case store.StatusCancelled:
		return iconCancelled, "Cancelled", statusCancelledStyle
	default:
		return iconIdle, "Pending", statusIdleStyle
	}
}

// Helper functions

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncate truncates a string to a maximum length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// padRight pads a string with spaces to reach the desired length.
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
