package ops

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/manatal"
)

var funnelHeaders = []string{
	"stage_name", "stage_rank", "drop", "standing", "pass",
	"total", "perc_pass", "perc_drop", "perc_drop_cum",
}

func init() {
	register(Descriptor{
		ID:          "export_funnel",
		Name:        "Export Funnel",
		Description: "Exports per-stage conversion statistics over several date ranges to an Excel file.",
		Group:       3,
		Inputs:      boardInputs(),
	}, runExportFunnel)
}

// funnelRanges returns the reporting windows: full history, then one
// row block per calendar year, then the last twelve months.
func funnelRanges(now time.Time) [][2]time.Time {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	ranges := [][2]time.Time{{start, now}}
	for year := 2022; year <= now.Year(); year++ {
		end := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)
		if end.After(now) {
			end = now
		}
		ranges = append(ranges, [2]time.Time{time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), end})
	}
	ranges = append(ranges, [2]time.Time{now.AddDate(-1, 0, 0), now})
	return ranges
}

func runExportFunnel(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error {
	atsClient := manatal.New(cfg.Manatal)
	now := time.Now().UTC()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rowIdx := 1
	writeRow := func(cells []any) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		rowIdx++
		return f.SetSheetRow(sheet, cell, &cells)
	}

	headerCells := make([]any, len(funnelHeaders))
	for i, h := range funnelHeaders {
		headerCells[i] = h
	}
	if err := writeRow(headerCells); err != nil {
		return err
	}

	for _, board := range enabledBoards(cfg, params) {
		fmt.Fprintf(out, "== Board %s: fetching all matches for job %s ==\n", board.Name, board.JobID)
		matches, err := atsClient.AllJobMatches(ctx, board.JobID)
		if err != nil {
			return fmt.Errorf("board %s: %w", board.Name, err)
		}
		fmt.Fprintf(out, "Fetched %d matches.\n", len(matches))

		if err := writeRow([]any{fmt.Sprintf("Board %s", board.Name)}); err != nil {
			return err
		}
		for _, window := range funnelRanges(now) {
			since, to := window[0], window[1]
			if err := writeRow([]any{fmt.Sprintf("From %s to %s",
				since.Format("2 January 2006"), to.Format("2 January 2006"))}); err != nil {
				return err
			}
			for _, row := range funnelRows(matches, since, to) {
				if err := writeRow([]any{
					row.StageName, row.StageRank, row.Drop, row.Standing, row.Pass,
					row.Total, row.PercPass, row.PercDrop, row.PercDropCum,
				}); err != nil {
					return err
				}
			}
			if err := writeRow(nil); err != nil {
				return err
			}
		}
	}

	path := fmt.Sprintf("funnel_%s.xlsx", now.Format("20060102_150405"))
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	fmt.Fprintf(out, "Excel saved to %s\n", path)
	return nil
}
