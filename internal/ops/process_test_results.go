package ops

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pmontanari/screenops/internal/classify"
	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/mailer"
	"github.com/pmontanari/screenops/internal/manatal"
	"github.com/pmontanari/screenops/internal/testdome"
)

// resultsPace is the pause after each outbound email in this operation.
const resultsPace = 85 * time.Second

func init() {
	register(Descriptor{
		ID:          "process_test_results",
		Name:        "Process Test Results",
		Description: "Classifies assessment results and promotes, drops and emails candidates accordingly.",
		Group:       2,
		Inputs: append([]Input{
			{Name: "dry_run", Label: "Dry run", Type: "bool", Default: true},
		}, boardInputs()...),
	}, runProcessTestResults)
}

func runProcessTestResults(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	// Mutations stay off unless the operator explicitly flips the switch.
	dryRun := params.Bool("dry_run", true)
	if dryRun {
		fmt.Fprintln(out, "DRY RUN: no candidate will be moved, dropped or emailed.")
	}

	atsClient := manatal.New(cfg.Manatal)
	sender := mailer.New(cfg.SMTP)
	templates := mailer.NewTemplateStore(cfg.Templates.Dir)

	results, err := testdome.New(cfg.TestDome).FetchResults(ctx)
	if err != nil {
		return err
	}
	printResultsByStatus(out, results)
	byEmail := testdome.ResultsByEmail(results)

	thresholds := classify.Thresholds{Pass: cfg.Classify.PassThreshold, Fail: cfg.Classify.FailThreshold}

	for _, board := range enabledBoards(cfg, params) {
		if err := processBoard(ctx, boardRun{
			cfg:        cfg,
			ats:        atsClient,
			sender:     sender,
			templates:  templates,
			board:      board,
			byEmail:    byEmail,
			thresholds: thresholds,
			dryRun:     dryRun,
		}, out); err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
	}
	return nil
}

type boardRun struct {
	cfg        *config.Config
	ats        *manatal.Client
	sender     *mailer.Mailer
	templates  *mailer.TemplateStore
	board      config.Board
	byEmail    map[string][]testdome.Result
	thresholds classify.Thresholds
	dryRun     bool
}

func processBoard(ctx context.Context, run boardRun, out io.Writer) error {
	fromStage := run.board.StageLabel(config.StagePreliminaryTest)
	toStage := run.board.StageLabel(config.StageInterview)
	fmt.Fprintf(out, "\n== %s / %s ==\n", run.board.Name, fromStage)

	stages, err := run.ats.ResolveStages(ctx, fromStage, toStage)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Looking for matches in %q for job %s...\n", fromStage, run.board.JobID)
	matches, err := run.ats.JobMatches(ctx, run.board.JobID, stages[fromStage], manatal.MatchFilter{
		StageName:  fromStage,
		OnlyActive: true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found %d matches in the source stage.\n", len(matches))

	counts := make(map[classify.Outcome]int)
	type summaryRow struct {
		link, email, test, score, timeUsed string
	}
	var summary []summaryRow

	for _, match := range matches {
		cand, err := run.ats.Candidate(ctx, match.Candidate)
		if err != nil {
			return err
		}
		email := cand.NormalizedEmail()
		fmt.Fprintf(out, "%-25s | email: %-30s | id: %-10d | match: %d\n", cand.DisplayName(), email, cand.ID, match.ID)

		outcome, test := classify.Classify(run.byEmail[email], run.thresholds)
		counts[outcome]++

		row := summaryRow{
			link:  fmt.Sprintf("https://app.manatal.com/candidates/%d", cand.ID),
			email: email,
		}
		if test != nil {
			row.test = test.TestName
			row.timeUsed = test.TimeUsed
			if test.Score != nil {
				row.score = fmt.Sprintf("%.0f/100", *test.Score)
			}
			fmt.Fprintf(out, "  Test: %s | Score: %s | (%s) %s\n", row.test, row.score, row.timeUsed, test.TakenAt.Format("2006-01-02"))
		}
		summary = append(summary, row)

		switch outcome {
		case classify.OutcomeAmbiguous:
			fmt.Fprintln(out, "  Multiple assessment records, left for manual review.")
		case classify.OutcomeZeroScore:
			fmt.Fprintln(out, "  Score 0.")
		case classify.OutcomeNeedsReview:
			fmt.Fprintln(out, "  Needs review.")
		case classify.OutcomeAnomalousStatus:
			fmt.Fprintf(out, "  Anomalous status: %s\n", test.StatusLabel)
		}

		// Result notes are written even in dry runs: they are idempotent
		// and only record what the vendor already reported.
		if outcome == classify.OutcomePass || outcome == classify.OutcomeFail || outcome == classify.OutcomeNeedsReview {
			if err := writeResultNote(ctx, run.ats, cand.ID, test); err != nil {
				return err
			}
		}

		if run.dryRun || test == nil {
			continue
		}
		if err := actOnOutcome(ctx, run, outcome, match, cand, toStage, stages[toStage], out); err != nil {
			return err
		}
	}

	printCounts(out, counts)

	fmt.Fprintf(out, "\n-- Summary %s --\n", run.board.Name)
	for _, row := range summary {
		fmt.Fprintf(out, "%s (%s) | %s | %s | %s\n", row.link, row.email, row.test, row.score, row.timeUsed)
	}
	return nil
}

func writeResultNote(ctx context.Context, atsClient *manatal.Client, candidateID int64, test *testdome.Result) error {
	has, err := atsClient.HasTestResultNote(ctx, candidateID)
	if err != nil || has {
		return err
	}
	score := "-"
	if test.Score != nil {
		score = fmt.Sprintf("%.0f%%", *test.Score)
	}
	_, err = atsClient.CreateNote(ctx, candidateID,
		fmt.Sprintf("Testdome: %s | %s | (%s)", score, test.TestName, test.TimeUsed))
	return err
}

func actOnOutcome(ctx context.Context, run boardRun, outcome classify.Outcome, match manatal.Match, cand manatal.Candidate, toStage string, toStageID int64, out io.Writer) error {
	email := cand.NormalizedEmail()
	switch outcome {
	case classify.OutcomeZeroScore:
		return run.ats.DropMatch(ctx, match.ID)

	case classify.OutcomePass:
		if err := run.ats.MoveMatch(ctx, match.ID, toStageID); err != nil {
			return err
		}
		fmt.Fprintf(out, "  Passed -> moved to %q.\n", toStage)
		return sendOutcomeMail(ctx, run, email, cand.GivenName(), run.cfg.Templates.PassFile, out)

	case classify.OutcomeFail:
		if err := run.ats.DropMatch(ctx, match.ID); err != nil {
			return err
		}
		fmt.Fprintln(out, "  Dropped.")
		return sendOutcomeMail(ctx, run, email, cand.GivenName(), run.cfg.Templates.DropFile, out)
	}
	return nil
}

func sendOutcomeMail(ctx context.Context, run boardRun, email, name, templateFile string, out io.Writer) error {
	if templateFile == "" || email == "" || !run.sender.Enabled() {
		return nil
	}
	template, err := run.templates.Read(templateFile)
	if err != nil {
		return err
	}
	if err := run.sender.SendTemplate(ctx, email, run.cfg.SMTP.Subject, template, name); err != nil {
		return err
	}
	fmt.Fprintln(out, "  Email sent.")
	return pause(ctx, resultsPace)
}

func printResultsByStatus(out io.Writer, results []testdome.Result) {
	byStatus := make(map[string][]testdome.Result)
	for _, r := range results {
		byStatus[r.StatusLabel] = append(byStatus[r.StatusLabel], r)
	}
	labels := make([]string, 0, len(byStatus))
	for label := range byStatus {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		group := byStatus[label]
		fmt.Fprintf(out, "\n=== %s (%d) ===\n", label, len(group))
		for _, r := range group {
			fmt.Fprintf(out, "%-25s | %-30s | %s\n", r.Name, r.Email, r.TestName)
		}
	}
	fmt.Fprintln(out, "\n----")
}

func printCounts(out io.Writer, counts map[classify.Outcome]int) {
	order := []classify.Outcome{
		classify.OutcomePass,
		classify.OutcomeFail,
		classify.OutcomeNeedsReview,
		classify.OutcomeNotTaken,
		classify.OutcomeAmbiguous,
		classify.OutcomeAnomalousStatus,
		classify.OutcomeInvited,
		classify.OutcomeZeroScore,
	}
	fmt.Fprintln(out)
	total := 0
	for _, outcome := range order {
		fmt.Fprintf(out, "%s: %d\n", outcome, counts[outcome])
		total += counts[outcome]
	}
	fmt.Fprintf(out, "Total: %d\n", total)
}
