package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuttlelab/shuttle/analysis"
	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/banking"
)

// A Workload describes the logical memories of one kernel to analyze. It is
// the JSON surface of the analyze command.
type Workload struct {
	Name     string       `json:"name"`
	Scopes   []ScopeDesc  `json:"scopes"`
	Memories []MemoryDesc `json:"memories"`
}

// A ScopeDesc places one control scope in its pipeline.
type ScopeDesc struct {
	Sym        int  `json:"sym"`
	Stage      int  `json:"stage"`
	Step       int  `json:"step"`
	InPipeline bool `json:"in_pipeline"`
}

// A MemoryDesc describes one logical memory and its duplicate candidates.
type MemoryDesc struct {
	Sym        int             `json:"sym"`
	Duplicates []DuplicateDesc `json:"duplicates"`
}

// A DuplicateDesc describes one candidate configuration of a memory. A zero
// depth stands for an unbuffered memory. An absent pipeline marks the
// duplicate as outside any pipeline.
type DuplicateDesc struct {
	Banking  []BankingDesc `json:"banking"`
	Depth    int           `json:"depth"`
	Pipeline *int          `json:"pipeline"`
	Padding  []int         `json:"padding"`
	Accum    *AccumDesc    `json:"accum"`
	Resource string        `json:"resource"`
	Reads    []AccessDesc  `json:"reads"`
	Writes   []AccessDesc  `json:"writes"`
}

// A BankingDesc describes one modular banking scheme.
type BankingDesc struct {
	Banks int   `json:"banks"`
	Block int   `json:"block"`
	Alpha []int `json:"alpha"`
	Dims  []int `json:"dims"`
}

// An AccumDesc classifies the accumulation of a duplicate. Kind is one of
// none, reduce, and fma.
type AccumDesc struct {
	Kind string `json:"kind"`
	Op   string `json:"op"`
}

// An AccessDesc describes one unrolled access of a memory.
type AccessDesc struct {
	Sym     int     `json:"sym"`
	Unroll  []int   `json:"unroll"`
	Scope   *int    `json:"scope"`
	Pattern [][]int `json:"pattern"`
}

// LoadWorkload reads and validates a workload description. An empty workload
// name defaults to the file name.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	w := &Workload{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if w.Name == "" {
		base := filepath.Base(path)
		w.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	for _, m := range w.Memories {
		if len(m.Duplicates) == 0 {
			return nil, fmt.Errorf(
				"memory %d has no duplicate candidates", m.Sym)
		}
	}

	return w, nil
}

// scopeTable turns the scope descriptions into the analyzer's scope table.
func (w *Workload) scopeTable() map[ir.Value]access.ScopeInfo {
	scopes := make(map[ir.Value]access.ScopeInfo, len(w.Scopes))

	for _, s := range w.Scopes {
		scopes[ir.Value(s.Sym)] = access.ScopeInfo{
			Stage:      s.Stage,
			Step:       s.Step,
			InPipeline: s.InPipeline,
		}
	}

	return scopes
}

// groups turns the duplicate descriptions of a memory into analyzer input.
func (m MemoryDesc) groups() []analysis.DuplicateGroup {
	mem := ir.Value(m.Sym)
	groups := make([]analysis.DuplicateGroup, 0, len(m.Duplicates))

	for _, d := range m.Duplicates {
		groups = append(groups, analysis.DuplicateGroup{
			Reads:  accessSets(mem, d.Reads),
			Writes: accessSets(mem, d.Writes),
			Memory: banking.Memory{
				Banking:  bankingSchemes(d.Banking),
				Resource: d.Resource,
			},
			Depth:    depthOrUnbuffered(d.Depth),
			Pipeline: symOrNone(d.Pipeline),
			Padding:  d.Padding,
			Accum:    accumOf(d.Accum),
		})
	}

	return groups
}

func bankingSchemes(descs []BankingDesc) []banking.Banking {
	schemes := make([]banking.Banking, len(descs))

	for i, d := range descs {
		block := d.Block
		if block == 0 {
			block = 1
		}

		schemes[i] = banking.NewModBanking(d.Banks, block, d.Alpha, d.Dims)
	}

	return schemes
}

func accessSets(mem ir.Value, descs []AccessDesc) []access.Set {
	if len(descs) == 0 {
		return nil
	}

	accs := make([]access.Access, 0, len(descs))

	for _, d := range descs {
		acc := access.Access{
			Sym:    ir.Value(d.Sym),
			Mem:    mem,
			Unroll: access.UnrollID(d.Unroll),
			Scope:  symOrNone(d.Scope),
		}

		if len(d.Pattern) > 0 {
			acc.Pattern = access.MakeMatrix(d.Pattern)
		}

		accs = append(accs, acc)
	}

	return []access.Set{access.MakeSet(accs...)}
}

func depthOrUnbuffered(depth int) int {
	if depth == 0 {
		return 1
	}

	return depth
}

func symOrNone(sym *int) ir.Value {
	if sym == nil {
		return ir.None
	}

	return ir.Value(*sym)
}

func accumOf(d *AccumDesc) banking.Accum {
	if d == nil {
		return banking.Accum{}
	}

	switch d.Kind {
	case "", "none":
		return banking.Accum{}
	case "reduce":
		return banking.Reduce(d.Op)
	case "fma":
		return banking.Accum{Kind: banking.AccumFMA}
	default:
		return banking.Accum{Kind: banking.AccumUnknown}
	}
}
