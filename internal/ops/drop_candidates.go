package ops

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/mailer"
	"github.com/pmontanari/screenops/internal/manatal"
)

// dropBatchLimit caps how many candidates one run may drop. The cap
// keeps a misconfigured stage name from clearing a whole pipeline
// before anyone notices.
const dropBatchLimit = 20

func init() {
	register(Descriptor{
		ID:          "drop_candidates",
		Name:        "Drop Candidates",
		Description: "Deactivates the matches in a stage and notifies each candidate by email.",
		Group:       2,
		Inputs: append(boardInputs(), Input{
			Name: "stage_name", Label: "Stage name", Type: "text", Default: "",
		}),
	}, runDropCandidates)
}

func runDropCandidates(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	atsClient := manatal.New(cfg.Manatal)
	sender := mailer.New(cfg.SMTP)
	templates := mailer.NewTemplateStore(cfg.Templates.Dir)

	template, err := templates.Read(cfg.Templates.DropFile)
	if err != nil {
		return fmt.Errorf("drop email template: %w", err)
	}

	for _, board := range enabledBoards(cfg, params) {
		if err := dropBoard(ctx, cfg, atsClient, sender, template, board, params, out); err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
	}
	return nil
}

func dropBoard(ctx context.Context, cfg *config.Config, atsClient *manatal.Client, sender *mailer.Mailer, template string, board config.Board, params Params, out io.Writer) error {
	stageName := params.String("stage_name", board.StageLabel(config.StageNewApplication))
	if stageName == "" {
		return fmt.Errorf("no stage configured")
	}

	stageID, err := atsClient.ResolveStage(ctx, stageName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "== Board %s: matches in %q for job %s ==\n", board.Name, stageName, board.JobID)
	matches, err := atsClient.JobMatches(ctx, board.JobID, stageID, manatal.MatchFilter{
		StageName:  stageName,
		OnlyActive: true,
		Limit:      dropBatchLimit,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found %d matches (batch cap %d).\n", len(matches), dropBatchLimit)

	for idx, match := range matches {
		cand, err := atsClient.Candidate(ctx, match.Candidate)
		if err != nil {
			return err
		}
		email := cand.NormalizedEmail()
		label := email
		if label == "" {
			label = "!!! MISSING EMAIL !!!"
		}
		fmt.Fprintf(out, "- Match %d / candidate #%d - %s (%s)\n", match.ID, idx+1, cand.DisplayName(), label)

		if err := atsClient.DropMatch(ctx, match.ID); err != nil {
			return err
		}
		fmt.Fprintln(out, "  Dropped.")

		if sender.Enabled() && email != "" {
			if err := sender.SendTemplate(ctx, email, cfg.SMTP.Subject, template, cand.GivenName()); err != nil {
				return err
			}
			fmt.Fprintln(out, "  Email sent.")
		} else {
			fmt.Fprintln(out, "  Email NOT sent (missing credentials or address).")
		}

		if err := pause(ctx, time.Duration(cfg.SMTP.PaceSeconds)*time.Second); err != nil {
			return err
		}
	}
	return nil
}
