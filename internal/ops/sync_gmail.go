package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pmontanari/screenops/internal/apiclient"
	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/gmailbox"
	"github.com/pmontanari/screenops/internal/manatal"
)

// atsPause spaces out per-candidate ATS reads.
const atsPause = 500 * time.Millisecond

func init() {
	register(Descriptor{
		ID:          "sync_gmail",
		Name:        "Sync Gmail",
		Description: "Copies the free-text section of each candidate's application email into an ATS note.",
		Group:       1,
		Inputs:      boardInputs(),
	}, runSyncGmail)
}

func runSyncGmail(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	atsClient := manatal.New(cfg.Manatal)
	mailbox, err := gmailbox.New(ctx, cfg.Gmail)
	if err != nil {
		return err
	}
	account, err := mailbox.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Authenticated as %s\n", account)

	for _, board := range enabledBoards(cfg, params) {
		if err := syncBoard(ctx, atsClient, mailbox, board, out); err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
	}
	return nil
}

func syncBoard(ctx context.Context, atsClient *manatal.Client, mailbox *gmailbox.Mailbox, board config.Board, out io.Writer) error {
	fmt.Fprintf(out, "== Board %s ==\n", board.Name)

	matches, err := boardMatches(ctx, atsClient, board, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Unique candidates across all stages: %d\n", len(matches))
	if len(matches) == 0 {
		return nil
	}

	var created, skipped int
	for _, match := range matches {
		if err := pause(ctx, atsPause); err != nil {
			return err
		}
		cand, err := atsClient.Candidate(ctx, match.Candidate)
		if err != nil {
			return err
		}
		if cand.NormalizedEmail() == "" {
			fmt.Fprintf(out, "  %s (id %d): no email on record, skipping\n", cand.DisplayName(), cand.ID)
			skipped++
			continue
		}

		tagged, err := atsClient.HasTaggedNote(ctx, cand.ID, manatal.NoteTag)
		if err != nil {
			return err
		}
		if tagged {
			fmt.Fprintf(out, "  %s: already synced\n", cand.NormalizedEmail())
			continue
		}

		msg, err := mailbox.SearchRecruitmentMail(ctx, cand.NormalizedEmail(), board.SubjectPrefix)
		if errors.Is(err, apiclient.ErrNotFound) {
			fmt.Fprintf(out, "  %s: no recruitment email found\n", cand.NormalizedEmail())
			skipped++
			continue
		}
		if err != nil {
			return err
		}

		if _, err := atsClient.EnsureNote(ctx, cand.ID, manatal.NoteTag, msg.Subject, msg.Body); err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s: note created (%s)\n", cand.NormalizedEmail(), preview(msg.Body))
		created++
	}

	fmt.Fprintf(out, "Done [%s]: created %d notes, skipped %d\n", board.Name, created, skipped)
	return nil
}

// boardMatches collects the active matches of every configured stage,
// deduplicated by candidate.
func boardMatches(ctx context.Context, atsClient *manatal.Client, board config.Board, out io.Writer) ([]manatal.Match, error) {
	var matches []manatal.Match
	seen := make(map[int64]struct{})
	for _, label := range boardStageLabels(board) {
		stageID, err := atsClient.ResolveStage(ctx, label)
		if err != nil {
			return nil, err
		}
		stageMatches, err := atsClient.JobMatches(ctx, board.JobID, stageID, manatal.MatchFilter{
			StageName:  label,
			OnlyActive: true,
		})
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Stage %q: %d matches\n", label, len(stageMatches))
		for _, m := range stageMatches {
			if _, dup := seen[m.Candidate]; dup {
				continue
			}
			seen[m.Candidate] = struct{}{}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func preview(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	if len(flat) > 80 {
		return flat[:80] + "..."
	}
	return flat
}

// pause sleeps unless the run is cancelled first.
func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
