package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/schedule"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a screenops configuration file",
	Long: `Validate the syntax and semantics of a screenops configuration file.

This command loads and validates the configuration file without starting
anything. It checks for:
  - Valid YAML syntax
  - Required fields
  - Valid store driver configuration
  - Board stage mappings
  - Valid cron expressions in schedules

Example:
  screenops validate --config ./screenops.yaml`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().StringP("config", "c", "screenops.yaml", "Path to configuration file")
	validateCmd.MarkFlagRequired("config")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	logger.Info("validating configuration", "path", configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	// Load and validate configuration (Load validates automatically)
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	// Cron expressions are only parsed when schedules start; check them
	// here so a typo fails fast.
	for _, entry := range cfg.Schedules {
		if err := schedule.ValidateExpr(entry.Cron); err != nil {
			logger.Error("invalid schedule", "operation", entry.Operation, "cron", entry.Cron, "error", err)
			return fmt.Errorf("schedule for %s: %w", entry.Operation, err)
		}
	}

	// Print validation summary
	logger.Info("configuration is valid",
		"path", configPath,
		"boards", len(cfg.Boards),
		"schedules", len(cfg.Schedules),
		"store_driver", cfg.Store.Driver)

	// Print board details
	for i, board := range cfg.Boards {
		logger.Info(fmt.Sprintf("board %d", i+1),
			"name", board.Name,
			"job_id", board.JobID,
			"subject_prefix", board.SubjectPrefix,
			"stages", len(board.Stages))
	}

	return nil
}
