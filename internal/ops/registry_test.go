package ops

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/config"
)

func TestDescriptors(t *testing.T) {
	descriptors := Descriptors()
	require.Len(t, descriptors, 6)

	var ids []string
	lastGroup := 0
	for _, d := range descriptors {
		ids = append(ids, d.ID)
		assert.GreaterOrEqual(t, d.Group, lastGroup, "ordered by group")
		lastGroup = d.Group
		assert.NotEmpty(t, d.Name)
		assert.NotEmpty(t, d.Description)
	}
	assert.ElementsMatch(t, []string{
		"check_api", "sync_gmail", "drop_candidates",
		"process_test_results", "send_test_invites", "export_funnel",
	}, ids)
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("process_test_results")
	require.True(t, ok)
	assert.Equal(t, "process_test_results", d.ID)

	require.Len(t, d.Inputs, 3)
	assert.Equal(t, "dry_run", d.Inputs[0].Name)
	assert.Equal(t, true, d.Inputs[0].Default, "dry run defaults on")

	_, ok = Lookup("reticulate_splines")
	assert.False(t, ok)
}

func TestRun_UnknownOperation(t *testing.T) {
	var buf bytes.Buffer
	err := Run(context.Background(), "nope", &config.Config{}, nil, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestEnabledBoards(t *testing.T) {
	cfg := &config.Config{Boards: []config.Board{
		{Name: "dev"},
		{Name: "tl"},
	}}

	boards := enabledBoards(cfg, Params{})
	require.Len(t, boards, 2)

	boards = enabledBoards(cfg, Params{"board_dev": "false"})
	require.Len(t, boards, 1)
	assert.Equal(t, "tl", boards[0].Name)

	boards = enabledBoards(cfg, Params{"board_dev": "false", "board_tl": "false"})
	assert.Empty(t, boards)
}

func TestEnabledBoards_UnlistedBoardDefaultsOn(t *testing.T) {
	cfg := &config.Config{Boards: []config.Board{
		{Name: "dev"},
		{Name: "qa"},
	}}

	// qa has no dashboard toggle, so nothing can turn it off.
	boards := enabledBoards(cfg, Params{"board_dev": "false"})
	require.Len(t, boards, 1)
	assert.Equal(t, "qa", boards[0].Name)
}
