package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pmontanari/screenops/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Monitor runs in a terminal UI",
	Long: `Open an interactive terminal monitor against a running screenops server.

The monitor lists recent runs with their status and tails the output of
a selected run live.

Navigation:
  ↑/↓ or k/j  - Navigate run list
  enter       - Tail the selected run
  s           - Stop the selected run
  esc         - Go back to the run list
  g/G         - Jump to top/bottom
  r           - Refresh data
  q           - Quit

Example:
  screenops tui --server http://localhost:8080`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringP("server", "s", "http://localhost:8080", "Dashboard server base URL")
}

func runTUI(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")

	model := tui.New(serverURL)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
