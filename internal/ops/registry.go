// Package ops defines the screening operations an operator can run and
// the parameter plumbing between the dashboard, the orchestrator and
// the child process executing them.
package ops

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pmontanari/screenops/internal/config"
)

// Input describes one dashboard-editable parameter of an operation.
type Input struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Type    string   `json:"type"` // "bool", "text" or "select"
	Default any      `json:"default"`
	Options []string `json:"options,omitempty"`
}

// Descriptor is the dashboard-facing description of an operation.
type Descriptor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Group       int     `json:"group"`
	Inputs      []Input `json:"inputs"`
}

// Func executes one operation inside the child process. All progress
// reporting goes through out, which the orchestrator streams line by
// line.
type Func func(ctx context.Context, cfg *config.Config, params Params, out io.Writer) error

type operation struct {
	descriptor Descriptor
	run        Func
}

var registry = map[string]operation{}

func register(d Descriptor, fn Func) {
	if _, dup := registry[d.ID]; dup {
		panic(fmt.Sprintf("duplicate operation id %q", d.ID))
	}
	registry[d.ID] = operation{descriptor: d, run: fn}
}

// Descriptors returns all operations ordered by group then id.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, op := range registry {
		out = append(out, op.descriptor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lookup finds an operation's descriptor by id.
func Lookup(id string) (Descriptor, bool) {
	op, ok := registry[id]
	return op.descriptor, ok
}

// Run executes the named operation. Unknown ids are an error rather
// than a panic since the id crosses a process boundary.
func Run(ctx context.Context, id string, cfg *config.Config, params Params, out io.Writer) error {
	op, ok := registry[id]
	if !ok {
		return fmt.Errorf("unknown operation %q", id)
	}
	return op.run(ctx, cfg, params, out)
}

// boardInputs lists the dashboard toggles for the two well-known
// boards, dev and tl. Boards under any other name still run: they get
// no toggle, and enabledBoards treats a missing board_<name> param as
// on.
func boardInputs() []Input {
	return []Input{
		{Name: "board_dev", Label: "Board DEV", Type: "bool", Default: true},
		{Name: "board_tl", Label: "Board TL", Type: "bool", Default: true},
	}
}

// enabledBoards resolves which configured boards a run should touch,
// honoring the board_<name> toggles with default on.
func enabledBoards(cfg *config.Config, params Params) []config.Board {
	var boards []config.Board
	for _, b := range cfg.Boards {
		if params.Bool("board_"+b.Name, true) {
			boards = append(boards, b)
		}
	}
	return boards
}
