package testdome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/config"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name   string
		score  *float64
		max    *float64
		status string
		want   *float64
	}{
		{"points over max", ptr(17.0), ptr(20.0), StatusCompleted, ptr(85.0)},
		{"fraction scaled", ptr(0.55), nil, StatusCompleted, ptr(55.0)},
		{"already percentage", ptr(70.0), nil, StatusCompleted, ptr(70.0)},
		{"missing with didNotTake", nil, nil, StatusDidNotTake, ptr(0.0)},
		{"missing with canceled", nil, nil, StatusCanceled, ptr(0.0)},
		{"missing with invited stays nil", nil, nil, StatusInvited, nil},
		{"zero stays zero", ptr(0.0), ptr(20.0), StatusCompleted, ptr(0.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScore(tt.score, tt.max, tt.status)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestFormatTimeUsed(t *testing.T) {
	assert.Equal(t, "", formatTimeUsed(nil))
	assert.Equal(t, "0:05:07", formatTimeUsed(ptr(307)))
	assert.Equal(t, "1:00:00", formatTimeUsed(ptr(3600)))
	assert.Equal(t, "2:30:05", formatTimeUsed(ptr(9005)))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Didn't take", StatusLabel(StatusDidNotTake))
	assert.Equal(t, "Sending invitation", StatusLabel(StatusSendingInvitation))
	assert.Equal(t, "someNewState", StatusLabel("someNewState"))
}

func TestNormalize_LatestActivityWins(t *testing.T) {
	cand := apiCandidate{
		Email: " Ada@Example.COM ",
		Name:  "Ada Lovelace",
		Activities: []apiActivity{
			{
				Status:      StatusCanceled,
				DateCreated: "2026-01-10T09:00:00",
				Test:        &apiTest{ID: 1, Name: "Backend"},
			},
			{
				Status:          StatusCompleted,
				Score:           ptr(18.0),
				MaxScore:        ptr(20.0),
				TimeUsedSeconds: ptr(1800),
				DateCreated:     "2026-02-01T09:00:00",
				Test:            &apiTest{ID: 1, Name: "Backend"},
			},
		},
	}

	r := normalize(cand)
	assert.Equal(t, "ada@example.com", r.Email)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "Completed", r.StatusLabel)
	require.NotNil(t, r.Score)
	assert.InDelta(t, 90.0, *r.Score, 0.001)
	assert.Equal(t, "0:30:00", r.TimeUsed)
	assert.Equal(t, "Backend", r.TestName)
}

func TestFetchResults_Pagination(t *testing.T) {
	var tokenCalls, pageCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("GET /v3/candidates", func(w http.ResponseWriter, r *http.Request) {
		pageCalls++
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "test,activities", r.URL.Query().Get("$expand"))

		skip := r.URL.Query().Get("$skip")
		page := candidatePage{HasMoreItems: skip == "0"}
		if skip == "0" {
			page.Value = []apiCandidate{
				{Email: "a@example.com", Activities: []apiActivity{{Status: StatusInvited, DateCreated: "2026-01-01T00:00:00"}}},
				{Email: "b@example.com", Activities: []apiActivity{{Status: StatusCompleted, Score: ptr(0.8), DateCreated: "2026-01-02T00:00:00"}}},
			}
		} else {
			page.Value = []apiCandidate{
				{Email: "c@example.com"},
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(config.TestDome{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		PageSize:     2,
	})

	results, err := c.FetchResults(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a@example.com", results[0].Email)
	assert.Equal(t, "c@example.com", results[2].Email)
	require.NotNil(t, results[1].Score)
	assert.InDelta(t, 80.0, *results[1].Score, 0.001)
	assert.Equal(t, 2, pageCalls)
	assert.GreaterOrEqual(t, tokenCalls, 1)
}

func TestResultsByEmail(t *testing.T) {
	results := []Result{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
		{Email: "a@example.com"},
		{Email: ""},
	}
	byEmail := ResultsByEmail(results)
	assert.Len(t, byEmail, 2)
	assert.Len(t, byEmail["a@example.com"], 2)
	assert.Len(t, byEmail["b@example.com"], 1)
}
