package testdome

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result is one assessment per candidate, flattened from the vendor's
// candidate+activities shape to what the pipeline operations consume.
type Result struct {
	Email       string
	Name        string
	TestName    string
	Status      string
	StatusLabel string
	// Score is normalized to the 0-100 range. Nil means the vendor
	// reported no score and the status does not imply one.
	Score    *float64
	TimeUsed string
	TakenAt  time.Time
}

// Vendor status tokens as they appear on the wire.
const (
	StatusCompleted         = "completed"
	StatusInvited           = "invited"
	StatusDidNotTake        = "didNotTake"
	StatusCanceled          = "canceled"
	StatusStarted           = "started"
	StatusSendingInvitation = "sendingInvitation"
	StatusPaused            = "paused"
)

var statusLabels = map[string]string{
	StatusCompleted:         "Completed",
	StatusInvited:           "Invited",
	StatusDidNotTake:        "Didn't take",
	StatusCanceled:          "Canceled",
	StatusStarted:           "Started",
	StatusSendingInvitation: "Sending invitation",
	StatusPaused:            "Paused",
}

// StatusLabel maps a vendor status token to its human label. Unknown
// tokens pass through unchanged so new vendor states stay visible.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

type candidatePage struct {
	Value        []apiCandidate `json:"value"`
	HasMoreItems bool           `json:"hasMoreItems"`
}

type apiCandidate struct {
	Email      string        `json:"email"`
	Name       string        `json:"name"`
	Activities []apiActivity `json:"activities"`
}

type apiActivity struct {
	Status          string   `json:"status"`
	Score           *float64 `json:"score"`
	MaxScore        *float64 `json:"maxScore"`
	TimeUsedSeconds *int     `json:"timeUsedInSeconds"`
	DateCreated     string   `json:"dateCreated"`
	Test            *apiTest `json:"test"`
}

type apiTest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// latestActivity picks the most recent activity by creation date. The
// vendor keeps one activity per invitation, so re-invited candidates
// carry several and only the newest reflects current state.
func latestActivity(activities []apiActivity) (apiActivity, bool) {
	if len(activities) == 0 {
		return apiActivity{}, false
	}
	sorted := make([]apiActivity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return parseVendorTime(sorted[i].DateCreated).Before(parseVendorTime(sorted[j].DateCreated))
	})
	return sorted[len(sorted)-1], true
}

func parseVendorTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalizeScore brings vendor scores to a 0-100 scale. Scores arrive
// either as absolute points with a max, or as a 0-1 fraction. A missing
// score for a candidate who never took the test counts as zero.
func normalizeScore(score, maxScore *float64, status string) *float64 {
	if score == nil {
		if status == StatusDidNotTake || status == StatusCanceled {
			zero := 0.0
			return &zero
		}
		return nil
	}
	s := *score
	switch {
	case maxScore != nil && *maxScore > 1 && s > 1:
		s = s / *maxScore * 100
	case s > 0 && s <= 1:
		s *= 100
	}
	return &s
}

func formatTimeUsed(seconds *int) string {
	if seconds == nil {
		return ""
	}
	s := *seconds
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func normalize(c apiCandidate) Result {
	r := Result{
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Name:  c.Name,
	}
	act, ok := latestActivity(c.Activities)
	if !ok {
		return r
	}
	r.Status = act.Status
	r.StatusLabel = StatusLabel(act.Status)
	r.Score = normalizeScore(act.Score, act.MaxScore, act.Status)
	r.TimeUsed = formatTimeUsed(act.TimeUsedSeconds)
	r.TakenAt = parseVendorTime(act.DateCreated)
	if act.Test != nil {
		r.TestName = act.Test.Name
	}
	return r
}
