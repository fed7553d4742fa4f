// Package classify maps a candidate's assessment records to a pipeline
// outcome. Functions here are pure; acting on an outcome (dropping,
// moving stage, emailing) is the caller's job and sits behind its own
// dry-run switch.
package classify

import (
	"github.com/pmontanari/screenops/internal/testdome"
)

type Outcome string

const (
	// OutcomeNotTaken means no assessment record exists for the candidate.
	OutcomeNotTaken Outcome = "not_taken"
	// OutcomeAmbiguous means several records matched and no automated
	// decision is made; a human resolves it.
	OutcomeAmbiguous Outcome = "ambiguous"
	// OutcomeAnomalousStatus covers records stuck in a non-final state.
	OutcomeAnomalousStatus Outcome = "anomalous_status"
	// OutcomeInvited means the candidate filled the form but has not
	// started the assessment yet.
	OutcomeInvited   Outcome = "invited"
	OutcomeZeroScore Outcome = "zero_score"
	OutcomePass      Outcome = "pass"
	OutcomeFail      Outcome = "fail"
	// OutcomeNeedsReview is the band between the fail and pass thresholds.
	OutcomeNeedsReview Outcome = "needs_review"
)

// Thresholds are score cutoffs on the normalized 0-100 scale. A score
// at or above Pass passes, strictly below Fail fails, anything between
// lands in needs_review.
type Thresholds struct {
	Pass float64
	Fail float64
}

// DefaultThresholds reproduce the production cutoffs.
var DefaultThresholds = Thresholds{Pass: 80, Fail: 60}

// abnormalStatuses are assessment states that should never be acted on
// automatically.
var abnormalStatuses = map[string]struct{}{
	testdome.StatusDidNotTake:        {},
	testdome.StatusCanceled:          {},
	testdome.StatusStarted:           {},
	testdome.StatusSendingInvitation: {},
	testdome.StatusPaused:            {},
}

// Classify decides the outcome for the set of assessment records
// matching one candidate. When exactly one record exists it is returned
// alongside the outcome so the caller can report score and test name.
func Classify(records []testdome.Result, th Thresholds) (Outcome, *testdome.Result) {
	switch len(records) {
	case 0:
		return OutcomeNotTaken, nil
	case 1:
	default:
		return OutcomeAmbiguous, nil
	}

	rec := records[0]
	if _, ok := abnormalStatuses[rec.Status]; ok {
		return OutcomeAnomalousStatus, &rec
	}
	if rec.Status == testdome.StatusInvited {
		return OutcomeInvited, &rec
	}
	if rec.Score == nil || *rec.Score == 0 {
		return OutcomeZeroScore, &rec
	}
	switch {
	case *rec.Score >= th.Pass:
		return OutcomePass, &rec
	case *rec.Score < th.Fail:
		return OutcomeFail, &rec
	default:
		return OutcomeNeedsReview, &rec
	}
}
