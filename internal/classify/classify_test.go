package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/testdome"
)

func completed(score float64) testdome.Result {
	return testdome.Result{Status: testdome.StatusCompleted, Score: &score}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		records []testdome.Result
		want    Outcome
	}{
		{"no records", nil, OutcomeNotTaken},
		{"two records", []testdome.Result{completed(85), completed(90)}, OutcomeAmbiguous},
		{"did not take", []testdome.Result{{Status: testdome.StatusDidNotTake}}, OutcomeAnomalousStatus},
		{"canceled", []testdome.Result{{Status: testdome.StatusCanceled}}, OutcomeAnomalousStatus},
		{"started but incomplete", []testdome.Result{{Status: testdome.StatusStarted}}, OutcomeAnomalousStatus},
		{"invitation in flight", []testdome.Result{{Status: testdome.StatusSendingInvitation}}, OutcomeAnomalousStatus},
		{"paused", []testdome.Result{{Status: testdome.StatusPaused}}, OutcomeAnomalousStatus},
		{"invited ignores score", []testdome.Result{{Status: testdome.StatusInvited, Score: ptr(95.0)}}, OutcomeInvited},
		{"missing score", []testdome.Result{{Status: testdome.StatusCompleted}}, OutcomeZeroScore},
		{"zero score", []testdome.Result{completed(0)}, OutcomeZeroScore},
		{"85 passes", []testdome.Result{completed(85)}, OutcomePass},
		{"exactly 80 passes", []testdome.Result{completed(80)}, OutcomePass},
		{"55 fails", []testdome.Result{completed(55)}, OutcomeFail},
		{"70 needs review", []testdome.Result{completed(70)}, OutcomeNeedsReview},
		{"exactly 60 needs review", []testdome.Result{completed(60)}, OutcomeNeedsReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Classify(tt.records, DefaultThresholds)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_ReturnsSingleRecord(t *testing.T) {
	rec := completed(85)
	rec.Email = "a@example.com"

	outcome, matched := Classify([]testdome.Result{rec}, DefaultThresholds)
	assert.Equal(t, OutcomePass, outcome)
	require.NotNil(t, matched)
	assert.Equal(t, "a@example.com", matched.Email)

	_, matched = Classify(nil, DefaultThresholds)
	assert.Nil(t, matched)

	_, matched = Classify([]testdome.Result{completed(1), completed(2)}, DefaultThresholds)
	assert.Nil(t, matched)
}

func TestClassify_CustomThresholds(t *testing.T) {
	th := Thresholds{Pass: 90, Fail: 70}
	got, _ := Classify([]testdome.Result{completed(85)}, th)
	assert.Equal(t, OutcomeNeedsReview, got)
	got, _ = Classify([]testdome.Result{completed(65)}, th)
	assert.Equal(t, OutcomeFail, got)
}

func ptr[T any](v T) *T { return &v }
