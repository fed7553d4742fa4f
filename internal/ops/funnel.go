package ops

import (
	"math"
	"sort"
	"time"

	"github.com/pmontanari/screenops/internal/manatal"
)

// excludedRanks are pipeline positions that never enter the funnel
// (parked and archival stages).
var excludedRanks = map[string]struct{}{"1": {}, "5": {}, "6": {}, "7": {}}

// FunnelRow is one pipeline stage's conversion numbers over a date
// range.
type FunnelRow struct {
	StageName   string  `json:"stage_name"`
	StageRank   int     `json:"stage_rank"`
	Drop        int     `json:"drop"`
	Standing    int     `json:"standing"`
	Pass        int     `json:"pass"`
	Total       int     `json:"total"`
	PercPass    float64 `json:"perc_pass"`
	PercDrop    float64 `json:"perc_drop"`
	PercDropCum float64 `json:"perc_drop_cum"`
}

// funnelRows buckets matches by pipeline stage and walks the stages in
// rank order. Candidates neither dropped nor still standing in a stage
// passed through it, so each stage's total is the previous stage's
// pass count.
func funnelRows(matches []manatal.Match, since, to time.Time) []FunnelRow {
	var filtered []manatal.Match
	for _, m := range matches {
		// The vendor omits job_pipeline_stage on some historical
		// matches. Without a stage a match cannot be bucketed.
		if m.JobPipelineStage == nil {
			continue
		}
		updated, err := time.Parse(time.RFC3339, m.UpdatedAt)
		if err != nil {
			continue
		}
		updated = updated.UTC()
		if updated.Before(since) || updated.After(to) {
			continue
		}
		if _, excluded := excludedRanks[m.Rank]; excluded {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) == 0 {
		return nil
	}

	byStage := make(map[string][]manatal.Match)
	for _, m := range filtered {
		byStage[m.JobPipelineStage.Name] = append(byStage[m.JobPipelineStage.Name], m)
	}
	stageNames := make([]string, 0, len(byStage))
	for name := range byStage {
		stageNames = append(stageNames, name)
	}
	sort.Slice(stageNames, func(i, j int) bool {
		return byStage[stageNames[i]][0].JobPipelineStage.Rank < byStage[stageNames[j]][0].JobPipelineStage.Rank
	})

	var rows []FunnelRow
	left := len(filtered)
	for _, name := range stageNames {
		if left == 0 {
			break
		}
		group := byStage[name]
		dropped, standing := 0, 0
		for _, m := range group {
			if m.IsActive {
				standing++
			} else {
				dropped++
			}
		}
		passed := left - dropped - standing

		rows = append(rows, FunnelRow{
			StageName:   name,
			StageRank:   group[0].JobPipelineStage.Rank,
			Drop:        dropped,
			Standing:    standing,
			Pass:        passed,
			Total:       left,
			PercPass:    round2(float64(passed) / float64(left)),
			PercDrop:    round2(float64(dropped) / float64(left)),
			PercDropCum: round2(float64(dropped) / float64(len(filtered))),
		})
		left = passed
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
