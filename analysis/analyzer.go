// Package analysis runs the banking analysis over the logical memories of a
// compilation: it builds the candidate duplicates, schedules their ports,
// and commits the decisions into the metadata store that downstream passes
// read.
package analysis

import (
	"fmt"
	"log"
	"sort"

	"github.com/shuttlelab/shuttle/hooking"
	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/banking"
	"github.com/shuttlelab/shuttle/mem/duplication"
	"github.com/shuttlelab/shuttle/mem/metadata"
)

// A DuplicateGroup is the raw material of one candidate duplicate: the
// accesses routed to it and the configuration to evaluate it under.
type DuplicateGroup struct {
	Reads    []access.Set
	Writes   []access.Set
	Memory   banking.Memory
	Depth    int
	Pipeline ir.Value
	Padding  []int
	Accum    banking.Accum
}

// A BankingAnalyzer turns duplicate groups into scheduled Instances and
// commits the surviving decisions to the metadata store. Observers attach
// through the hooking interface and are invoked at the positions declared in
// this package.
type BankingAnalyzer struct {
	hooking.HookableBase

	name   string
	store  *ir.Store
	scopes map[ir.Value]access.ScopeInfo
}

// Name returns the analyzer's name.
func (a *BankingAnalyzer) Name() string {
	return a.name
}

// AnalyzeMemory builds and schedules one Instance per duplicate group of a
// logical memory. The returned Instances are transient candidates. Nothing
// is stored until Commit.
func (a *BankingAnalyzer) AnalyzeMemory(
	mem ir.Value,
	groups []DuplicateGroup,
) ([]duplication.Instance, error) {
	if len(groups) == 0 {
		return nil, &ir.InvariantError{
			Sym:    mem,
			Detail: "memory has no duplicate candidates",
		}
	}

	insts := make([]duplication.Instance, 0, len(groups))

	for i, g := range groups {
		inst, err := duplication.MakeInstanceBuilder().
			WithReads(g.Reads...).
			WithWrites(g.Writes...).
			WithMemory(g.Memory).
			WithDepth(g.Depth).
			WithPipeline(g.Pipeline).
			WithPadding(g.Padding).
			WithAccum(g.Accum).
			WithScopeInfo(a.scopes).
			Build()
		if err != nil {
			return nil, fmt.Errorf(
				"analyzing duplicate %d of %s: %w", i, mem, err)
		}

		a.hookBankingDecided(mem, i, &inst)
		a.hookPortsAssigned(mem, i, inst)

		insts = append(insts, inst)
	}

	return insts, nil
}

// Commit writes the decisions of the given Instances into the metadata
// store: the duplicate configurations on the memory symbol, and the routing
// and port tables on every access symbol. Committing the same memory again
// replaces all of its earlier entries.
func (a *BankingAnalyzer) Commit(
	mem ir.Value,
	insts []duplication.Instance,
) error {
	if len(insts) == 0 {
		return &ir.InvariantError{
			Sym:    mem,
			Detail: "committing a memory with no duplicates",
		}
	}

	dups := make([]banking.Memory, len(insts))
	for i := range insts {
		dups[i] = insts[i].ToMemory()
	}
	metadata.SetDuplicates(a.store, mem, dups)

	padding, err := mergedPadding(mem, insts)
	if err != nil {
		return err
	}
	if padding != nil {
		metadata.SetPadding(a.store, mem, padding)
	}

	metadata.SetAccumulator(a.store, mem, mergedAccum(insts))

	if hint := sharedResource(insts); hint != "" {
		metadata.SetResourceHint(a.store, mem, hint)
	}

	tables, err := routeAccesses(insts)
	if err != nil {
		return err
	}

	syms := make([]ir.Value, 0, len(tables))
	for sym := range tables {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })

	var readers, writers []ir.Value

	for _, sym := range syms {
		t := tables[sym]

		if t.reader {
			readers = append(readers, sym)

			for _, uid := range t.dispatch.UIDs() {
				if _, err := t.dispatch.ResolveReader(sym, uid); err != nil {
					return err
				}
			}
		}

		if t.writer {
			writers = append(writers, sym)
		}

		metadata.SetDispatch(a.store, sym, t.dispatch)
		metadata.SetPorts(a.store, sym, t.ports)

		for _, uid := range t.dispatch.UIDs() {
			routed, _ := t.dispatch.Get(uid)
			a.hookDispatchResolved(mem, sym, uid, routed, t.reader)
		}
	}

	metadata.SetReaders(a.store, mem, readers)
	metadata.SetWriters(a.store, mem, writers)

	return nil
}

// FinalizeUnrolled commits the winning Instance of an unrolled memory,
// collapsing its duplicates to the single surviving configuration.
func (a *BankingAnalyzer) FinalizeUnrolled(
	mem ir.Value,
	winner duplication.Instance,
) error {
	if err := winner.Validate(); err != nil {
		return err
	}

	if err := a.Commit(mem, []duplication.Instance{winner}); err != nil {
		return err
	}

	_, err := metadata.Instance(a.store, mem)

	return err
}

// accessTables gathers the routing of one access symbol across all
// duplicates of a memory.
type accessTables struct {
	dispatch *duplication.Dispatch
	ports    *duplication.PortMap
	reader   bool
	writer   bool
}

func routeAccesses(
	insts []duplication.Instance,
) (map[ir.Value]*accessTables, error) {
	tables := make(map[ir.Value]*accessTables)

	ensure := func(sym ir.Value) *accessTables {
		t, ok := tables[sym]
		if !ok {
			t = &accessTables{
				dispatch: duplication.NewDispatch(),
				ports:    duplication.NewPortMap(),
			}
			tables[sym] = t
		}

		return t
	}

	route := func(dup int, inst duplication.Instance,
		sets []access.Set, asReader bool) error {
		for _, set := range sets {
			for _, acc := range set {
				port, err := inst.PortOf(acc)
				if err != nil {
					return err
				}

				t := ensure(acc.Sym)
				t.reader = t.reader || asReader
				t.writer = t.writer || !asReader
				t.dispatch.Add(acc.Unroll, dup)
				t.ports.Set(dup, acc.Unroll, port)
			}
		}

		return nil
	}

	for dup, inst := range insts {
		if err := route(dup, inst, inst.Reads, true); err != nil {
			return nil, err
		}

		if err := route(dup, inst, inst.Writes, false); err != nil {
			return nil, err
		}
	}

	return tables, nil
}

// mergedPadding requires every duplicate that states a padding to state the
// same one.
func mergedPadding(
	mem ir.Value,
	insts []duplication.Instance,
) ([]int, error) {
	var padding []int

	for _, inst := range insts {
		if inst.Padding == nil {
			continue
		}

		if padding == nil {
			padding = inst.Padding
			continue
		}

		if !equalInts(padding, inst.Padding) {
			return nil, &ir.InvariantError{
				Sym: mem,
				Detail: fmt.Sprintf(
					"duplicates disagree on padding: %v and %v",
					padding, inst.Padding),
			}
		}
	}

	return padding, nil
}

// mergedAccum folds the accumulation classifications of all duplicates.
// Disagreeing non trivial classifications degrade to unknown.
func mergedAccum(insts []duplication.Instance) banking.Accum {
	merged := banking.Accum{}

	for _, inst := range insts {
		if inst.Accum.Kind == banking.AccumNone {
			continue
		}

		if merged.Kind == banking.AccumNone {
			merged = inst.Accum
			continue
		}

		if merged != inst.Accum {
			return banking.Accum{Kind: banking.AccumUnknown}
		}
	}

	return merged
}

// sharedResource returns the resource hint when every duplicate agrees on a
// non empty one.
func sharedResource(insts []duplication.Instance) string {
	hint := insts[0].Memory.Resource

	for _, inst := range insts[1:] {
		if inst.Memory.Resource != hint {
			return ""
		}
	}

	return hint
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// A BankingAnalyzerBuilder configures and creates BankingAnalyzers.
type BankingAnalyzerBuilder struct {
	store  *ir.Store
	scopes map[ir.Value]access.ScopeInfo
}

// MakeBankingAnalyzerBuilder returns a builder with default settings.
func MakeBankingAnalyzerBuilder() BankingAnalyzerBuilder {
	return BankingAnalyzerBuilder{}
}

// WithStore sets the metadata store the analyzer commits into.
func (b BankingAnalyzerBuilder) WithStore(
	s *ir.Store,
) BankingAnalyzerBuilder {
	b.store = s
	return b
}

// WithScopeInfo sets the table placing each control scope in its pipeline.
func (b BankingAnalyzerBuilder) WithScopeInfo(
	scopes map[ir.Value]access.ScopeInfo,
) BankingAnalyzerBuilder {
	b.scopes = scopes
	return b
}

// Build creates the analyzer.
func (b BankingAnalyzerBuilder) Build(name string) *BankingAnalyzer {
	b.storeMustBeSet()

	return &BankingAnalyzer{
		name:   name,
		store:  b.store,
		scopes: b.scopes,
	}
}

func (b BankingAnalyzerBuilder) storeMustBeSet() {
	if b.store == nil {
		log.Panicf("analysis: banking analyzer requires a metadata store")
	}
}
