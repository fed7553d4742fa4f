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

// invitePace is shorter than the drop pace; invite mail carries no
// attachment and the provider tolerates a faster cadence.
const invitePace = 33 * time.Second

func init() {
	register(Descriptor{
		ID:          "send_test_invites",
		Name:        "Send Test Invites",
		Description: "Emails the technical-test invitation to every candidate waiting in the preliminary test stage.",
		Group:       2,
		Inputs:      boardInputs(),
	}, runSendTestInvites)
}

func runSendTestInvites(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	atsClient := manatal.New(cfg.Manatal)
	sender := mailer.New(cfg.SMTP)
	templates := mailer.NewTemplateStore(cfg.Templates.Dir)

	template, err := templates.Read(cfg.Templates.InviteFile)
	if err != nil {
		return fmt.Errorf("invite email template: %w", err)
	}

	for _, board := range enabledBoards(cfg, params) {
		if err := inviteBoard(ctx, cfg, atsClient, sender, template, board, out); err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
	}
	return nil
}

func inviteBoard(ctx context.Context, cfg *config.Config, atsClient *manatal.Client, sender *mailer.Mailer, template string, board config.Board, out io.Writer) error {
	stageName := board.StageLabel(config.StagePreliminaryTest)
	stageID, err := atsClient.ResolveStage(ctx, stageName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "== Board %s: matches in %q for job %s ==\n", board.Name, stageName, board.JobID)
	matches, err := atsClient.JobMatches(ctx, board.JobID, stageID, manatal.MatchFilter{
		StageName:  stageName,
		OnlyActive: true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found %d matches.\n", len(matches))

	for idx, match := range matches {
		cand, err := atsClient.Candidate(ctx, match.Candidate)
		if err != nil {
			return err
		}
		email := cand.NormalizedEmail()
		fmt.Fprintf(out, "- Match %d / candidate #%d - %s (%s)\n", match.ID, idx+1, cand.DisplayName(), email)

		if sender.Enabled() && email != "" {
			if err := sender.SendTemplate(ctx, email, cfg.SMTP.Subject, template, cand.GivenName()); err != nil {
				return err
			}
			fmt.Fprintln(out, "  Email sent.")
		} else {
			fmt.Fprintln(out, "  Email NOT sent (missing credentials or address).")
		}

		if err := pause(ctx, invitePace); err != nil {
			return err
		}
	}
	return nil
}
