// Package manatal is the typed gateway to the applicant-tracking API.
// Every operation is a thin composition of resilience-client calls with
// domain-specific filtering; records are parsed and validated at this
// boundary and treated as transient.
package manatal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pmontanari/screenops/internal/apiclient"
	"github.com/pmontanari/screenops/internal/config"
)

// NoteTag marks notes written by the mailbox sync so re-runs can detect
// already-processed candidates. It is the sole duplicate-prevention
// mechanism: best-effort, not a strong guarantee.
const NoteTag = "[GMAIL_SYNC]"

// testResultMarker identifies assessment-result notes, matched
// case-insensitively against existing note bodies.
const testResultMarker = "testdome"

const pageSize = 200

// Client exposes the gateway operations over the applicant-tracking API.
type Client struct {
	api *apiclient.Client
}

// New creates a gateway client from configuration. The API key is sent as
// a Token authorization header; the prefix is added when absent.
func New(cfg config.Manatal, opts ...apiclient.Option) *Client {
	token := strings.TrimSpace(cfg.APIKey)
	if !strings.HasPrefix(strings.ToLower(token), "token ") {
		token = "Token " + token
	}

	opts = append([]apiclient.Option{
		apiclient.WithAuth(func(r *http.Request) {
			r.Header.Set("Authorization", token)
		}),
	}, opts...)

	return &Client{api: apiclient.New(cfg.BaseURL, opts...)}
}

// ResolveStages maps human-readable stage labels to backend identifiers by
// scanning the paginated stage listing, matching case-insensitively.
// An unresolved label is an error, never a silent default.
func (c *Client) ResolveStages(ctx context.Context, names ...string) (map[string]int64, error) {
	wanted := make(map[string]string, len(names)) // lowercase -> original label
	for _, name := range names {
		wanted[strings.ToLower(name)] = name
	}

	found := make(map[string]int64, len(names))
	stages, err := apiclient.CollectPages[Stage](ctx, c.api, fmt.Sprintf("/match-stages/?page_size=%d", pageSize))
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}

	for _, stage := range stages {
		key := strings.ToLower(stage.Name)
		if label, ok := wanted[key]; ok {
			if _, seen := found[label]; !seen {
				found[label] = stage.ID
			}
		}
	}

	for _, name := range names {
		if _, ok := found[name]; !ok {
			return nil, fmt.Errorf("stage %q: %w", name, apiclient.ErrNotFound)
		}
	}

	return found, nil
}

// ResolveStage resolves a single stage label.
func (c *Client) ResolveStage(ctx context.Context, name string) (int64, error) {
	stages, err := c.ResolveStages(ctx, name)
	if err != nil {
		return 0, err
	}
	return stages[name], nil
}

// MatchFilter narrows a job-match listing.
type MatchFilter struct {
	// StageName, when set, additionally requires an exact (case-insensitive)
	// stage label match alongside the stage id.
	StageName string
	// OnlyActive keeps only currently active matches.
	OnlyActive bool
	// Limit caps the result at the first N matches. Zero means no cap.
	// Some operations intentionally look at only the first few for safety
	// during manual review.
	Limit int
}

// JobMatches fetches the matches of a job in an exact stage, applying the
// filter while paginating so a capped listing stops early.
func (c *Client) JobMatches(ctx context.Context, jobID string, stageID int64, filter MatchFilter) ([]Match, error) {
	var matches []Match

	first := fmt.Sprintf("/jobs/%s/matches/?page_size=%d", url.PathEscape(jobID), pageSize)
	err := apiclient.VisitPages(ctx, c.api, first, func(m Match) bool {
		if !m.InStage(stageID) {
			return true
		}
		if filter.StageName != "" && !strings.EqualFold(strings.TrimSpace(m.Stage.Name), strings.TrimSpace(filter.StageName)) {
			return true
		}
		if filter.OnlyActive && !m.IsActive {
			return true
		}
		matches = append(matches, m)
		return filter.Limit == 0 || len(matches) < filter.Limit
	})
	if err != nil {
		return nil, fmt.Errorf("listing matches for job %s: %w", jobID, err)
	}

	return matches, nil
}

// AllJobMatches fetches every match of a job across all stages and
// activity states, fully paginated. Used by the funnel export.
func (c *Client) AllJobMatches(ctx context.Context, jobID string) ([]Match, error) {
	first := fmt.Sprintf("/jobs/%s/matches/?page_size=%d", url.PathEscape(jobID), pageSize)
	matches, err := apiclient.CollectPages[Match](ctx, c.api, first)
	if err != nil {
		return nil, fmt.Errorf("listing all matches for job %s: %w", jobID, err)
	}
	return matches, nil
}

// Candidate fetches a single candidate record.
func (c *Client) Candidate(ctx context.Context, id int64) (Candidate, error) {
	var cand Candidate
	if err := c.api.GetJSON(ctx, fmt.Sprintf("/candidates/%d/", id), &cand); err != nil {
		return Candidate{}, fmt.Errorf("fetching candidate %d: %w", id, err)
	}
	if cand.ID == 0 {
		return Candidate{}, &apiclient.DecodeError{Err: fmt.Errorf("candidate %d: response missing id", id)}
	}
	return cand, nil
}

// CandidateByEmail looks a candidate up by email address. Zero results is
// ErrNotFound; more than one is ErrAmbiguous, left for a human to resolve.
func (c *Client) CandidateByEmail(ctx context.Context, email string) (Candidate, error) {
	var page struct {
		Results []Candidate `json:"results"`
	}
	target := "/candidates/?email=" + url.QueryEscape(email)
	if err := c.api.GetJSON(ctx, target, &page); err != nil {
		return Candidate{}, fmt.Errorf("looking up candidate %s: %w", email, err)
	}

	switch len(page.Results) {
	case 0:
		return Candidate{}, fmt.Errorf("candidate %s: %w", email, apiclient.ErrNotFound)
	case 1:
		return page.Results[0], nil
	default:
		return Candidate{}, fmt.Errorf("candidate %s has %d records: %w", email, len(page.Results), apiclient.ErrAmbiguous)
	}
}

// CandidateMatches lists every match of a candidate across jobs.
func (c *Client) CandidateMatches(ctx context.Context, candidateID int64) ([]Match, error) {
	matches, err := apiclient.CollectPages[Match](ctx, c.api, fmt.Sprintf("/candidates/%d/matches/", candidateID))
	if err != nil {
		return nil, fmt.Errorf("listing matches for candidate %d: %w", candidateID, err)
	}
	return matches, nil
}

// MoveMatch moves a match to another stage. Single PATCH, no rollback on
// failure of any wider multi-step operation.
func (c *Client) MoveMatch(ctx context.Context, matchID, stageID int64) error {
	payload := map[string]any{"stage": map[string]any{"id": stageID}}
	if err := c.api.PatchJSON(ctx, fmt.Sprintf("/matches/%d/", matchID), payload, nil); err != nil {
		return fmt.Errorf("moving match %d to stage %d: %w", matchID, stageID, err)
	}
	return nil
}

// DropMatch deactivates a match, rejecting the candidate from the pipeline.
func (c *Client) DropMatch(ctx context.Context, matchID int64) error {
	// The vendor expects the flag as a string literal here.
	payload := map[string]any{"is_active": "false"}
	if err := c.api.PatchJSON(ctx, fmt.Sprintf("/matches/%d/", matchID), payload, nil); err != nil {
		return fmt.Errorf("dropping match %d: %w", matchID, err)
	}
	return nil
}

// ListNotes lists a candidate's notes. The endpoint returns either a bare
// array or a results envelope depending on API version.
func (c *Client) ListNotes(ctx context.Context, candidateID int64) ([]Note, error) {
	var raw json.RawMessage
	if err := c.api.GetJSON(ctx, fmt.Sprintf("/candidates/%d/notes/", candidateID), &raw); err != nil {
		return nil, fmt.Errorf("listing notes for candidate %d: %w", candidateID, err)
	}

	var notes []Note
	if err := json.Unmarshal(raw, &notes); err == nil {
		return notes, nil
	}

	var envelope struct {
		Results []Note `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &apiclient.DecodeError{Err: fmt.Errorf("notes for candidate %d: %w", candidateID, err)}
	}
	return envelope.Results, nil
}

// HasTaggedNote reports whether any note on the candidate contains the
// marker string.
func (c *Client) HasTaggedNote(ctx context.Context, candidateID int64, tag string) (bool, error) {
	notes, err := c.ListNotes(ctx, candidateID)
	if err != nil {
		return false, err
	}
	for _, note := range notes {
		if strings.Contains(strings.ToLower(note.Body()), strings.ToLower(tag)) {
			return true, nil
		}
	}
	return false, nil
}

// HasTestResultNote reports whether the candidate already carries an
// assessment-result note.
func (c *Client) HasTestResultNote(ctx context.Context, candidateID int64) (bool, error) {
	return c.HasTaggedNote(ctx, candidateID, testResultMarker)
}

// CreateNote posts a plain note on a candidate.
func (c *Client) CreateNote(ctx context.Context, candidateID int64, info string) (Note, error) {
	var note Note
	payload := map[string]string{"info": info}
	if err := c.api.PostJSON(ctx, fmt.Sprintf("/candidates/%d/notes/", candidateID), payload, &note); err != nil {
		return Note{}, fmt.Errorf("creating note for candidate %d: %w", candidateID, err)
	}
	return note, nil
}

// EnsureNote creates a tagged note unless one with the same tag already
// exists, and reports whether a note was created. This is the idempotent
// note-tagging primitive: its correctness depends on the tag being present
// in every prior write.
func (c *Client) EnsureNote(ctx context.Context, candidateID int64, tag, subject, body string) (bool, error) {
	exists, err := c.HasTaggedNote(ctx, candidateID, tag)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	info := tag + "\n\n" + body
	if subject != "" {
		info = fmt.Sprintf("%s **%s**\n\n%s", tag, subject, body)
	}

	if _, err := c.CreateNote(ctx, candidateID, info); err != nil {
		return false, err
	}
	return true, nil
}
