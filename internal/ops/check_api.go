package ops

import (
	"context"
	"fmt"
	"io"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/manatal"
	"github.com/pmontanari/screenops/internal/testdome"
)

func init() {
	register(Descriptor{
		ID:          "check_api",
		Name:        "Check API",
		Description: "Verifies connectivity and credentials against the ATS and assessment APIs.",
		Group:       1,
	}, runCheckAPI)
}

func runCheckAPI(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	atsClient := manatal.New(cfg.Manatal)

	for _, board := range cfg.Boards {
		labels := boardStageLabels(board)
		stages, err := atsClient.ResolveStages(ctx, labels...)
		if err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
		fmt.Fprintf(out, "Board %s (job %s): %d stages resolved\n", board.Name, board.JobID, len(stages))
		for _, label := range labels {
			fmt.Fprintf(out, "  %-35s -> %d\n", label, stages[label])
		}
	}

	if cfg.TestDome.ClientID != "" {
		if err := testdome.New(cfg.TestDome).Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "TestDome: ok")
	} else {
		fmt.Fprintln(out, "TestDome: skipped (no credentials)")
	}

	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func boardStageLabels(board config.Board) []string {
	keys := []string{config.StageNewApplication, config.StagePreliminaryTest, config.StageInterview}
	var labels []string
	for _, key := range keys {
		if label := board.StageLabel(key); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
