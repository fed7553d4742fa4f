package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/ops"
)

// configEnv carries the config path into re-executed children.
const configEnv = "SCREENOPS_CONFIG"

var opCmd = &cobra.Command{
	Use:   "op <operation>",
	Short: "Run a single operation to completion",
	Long: `Run one operation in the foreground, writing its progress to stdout.

This is also the entry point the orchestrator re-executes for each run:
parameters arrive through SCREENING_PARAM_* environment variables and
the process exit code becomes the run's result.

Example:
  screenops op process_test_results --config ./screenops.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runOp,
	// The orchestrator records the exit code; keep usage noise out of
	// the captured output.
	SilenceUsage: true,
}

func init() {
	opCmd.Flags().StringP("config", "c", "", "Path to configuration file (defaults to $SCREENOPS_CONFIG)")
}

func runOp(cmd *cobra.Command, args []string) error {
	operation := args[0]

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv(configEnv)
	}
	if configPath == "" {
		configPath = "screenops.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	params := ops.DecodeEnv(os.Environ())

	if err := ops.Run(cmd.Context(), operation, cfg, params, os.Stdout); err != nil {
		fmt.Fprintf(os.Stdout, "ERROR: %v\n", err)
		return err
	}
	return nil
}
