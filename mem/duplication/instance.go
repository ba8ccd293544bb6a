package duplication

import (
	"fmt"
	"log"
	"sort"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/banking"
)

// An Instance is one candidate physical duplicate of a logical memory: the
// accesses it serves, the banking configuration chosen for it, and the port
// each access was scheduled onto. Instances are produced by the banking
// search, compared by cost, and committed through the analysis once a winner
// is picked.
type Instance struct {
	// Reads and Writes hold the access groups this duplicate serves. Each
	// group is mutually exclusive and shares port wiring.
	Reads  []access.Set
	Writes []access.Set

	// Ctrls is the sorted set of control scopes the accesses execute in.
	Ctrls []ir.Value

	// Pipeline is the pipelined controller the duplicate is buffered
	// against, or ir.None for an unbuffered duplicate.
	Pipeline ir.Value

	// Memory is the banking configuration of this duplicate.
	Memory banking.Memory

	// Depth is the buffer depth. Depth 1 means no buffering.
	Depth int

	// Cost orders candidate duplicates for the external search. Lower is
	// better. The value is not interpreted here.
	Cost float64

	// Ports maps every access, by access.Access.Key, to its scheduled
	// port.
	Ports map[string]Port

	// Padding is the per-dimension size padding the configuration
	// assumes.
	Padding []int

	// Accum classifies how writes accumulate.
	Accum banking.Accum
}

// ToMemory projects the duplicate into the Memory record committed to
// metadata.
func (i Instance) ToMemory() banking.Memory {
	return banking.Memory{
		Banking:  i.Memory.Banking,
		Depth:    i.Depth,
		Accum:    i.Accum,
		Resource: i.Memory.Resource,
	}
}

// PortOf returns the scheduled port of one access.
func (i Instance) PortOf(a access.Access) (Port, error) {
	p, ok := i.Ports[a.Key()]
	if !ok {
		return Port{}, &ir.MissingMetadataError{
			Sym:  a.Sym,
			Kind: ir.KindPorts,
		}
	}

	return p, nil
}

// Accesses returns every access of the duplicate, reads first, in group
// order.
func (i Instance) Accesses() []access.Access {
	var accs []access.Access

	for _, set := range i.Reads {
		accs = append(accs, set...)
	}

	for _, set := range i.Writes {
		accs = append(accs, set...)
	}

	return accs
}

// Validate checks the structural invariants of a finished duplicate: a
// positive depth, a port for every access, and mux offsets inside their
// slot width.
func (i Instance) Validate() error {
	if i.Depth < 1 {
		return &ir.InvariantError{
			Sym:    ir.None,
			Detail: fmt.Sprintf("duplicate has depth %d", i.Depth),
		}
	}

	for _, a := range i.Accesses() {
		p, ok := i.Ports[a.Key()]
		if !ok {
			return &ir.MissingMetadataError{Sym: a.Sym, Kind: ir.KindPorts}
		}

		if p.MuxOffset < 0 || p.MuxOffset >= p.MuxWidth {
			return &ir.InvariantError{
				Sym: a.Sym,
				Detail: fmt.Sprintf(
					"access %s holds lane %d of a %d wide slot",
					a.Key(), p.MuxOffset, p.MuxWidth),
			}
		}
	}

	return nil
}

// An InstanceBuilder assembles and schedules one candidate duplicate.
type InstanceBuilder struct {
	reads    []access.Set
	writes   []access.Set
	pipeline ir.Value
	memory   banking.Memory
	depth    int
	padding  []int
	accum    banking.Accum
	scopes   map[ir.Value]access.ScopeInfo
}

// MakeInstanceBuilder returns a builder for an unbuffered duplicate with
// default settings.
func MakeInstanceBuilder() InstanceBuilder {
	return InstanceBuilder{
		depth:    1,
		pipeline: ir.None,
	}
}

// WithReads sets the read access groups.
func (b InstanceBuilder) WithReads(sets ...access.Set) InstanceBuilder {
	b.reads = sets
	return b
}

// WithWrites sets the write access groups.
func (b InstanceBuilder) WithWrites(sets ...access.Set) InstanceBuilder {
	b.writes = sets
	return b
}

// WithMemory sets the banking configuration under evaluation.
func (b InstanceBuilder) WithMemory(m banking.Memory) InstanceBuilder {
	b.memory = m
	return b
}

// WithDepth sets the buffer depth.
func (b InstanceBuilder) WithDepth(depth int) InstanceBuilder {
	b.depth = depth
	return b
}

// WithPipeline sets the pipelined controller the duplicate buffers against.
func (b InstanceBuilder) WithPipeline(scope ir.Value) InstanceBuilder {
	b.pipeline = scope
	return b
}

// WithPadding sets the per-dimension padding the configuration assumes.
func (b InstanceBuilder) WithPadding(padding []int) InstanceBuilder {
	b.padding = padding
	return b
}

// WithAccum sets the accumulation classification.
func (b InstanceBuilder) WithAccum(a banking.Accum) InstanceBuilder {
	b.accum = a
	return b
}

// WithScopeInfo sets the table placing each control scope in its pipeline.
func (b InstanceBuilder) WithScopeInfo(
	scopes map[ir.Value]access.ScopeInfo,
) InstanceBuilder {
	b.scopes = scopes
	return b
}

// Build schedules the accesses onto ports and returns the finished
// duplicate.
func (b InstanceBuilder) Build() (Instance, error) {
	b.depthMustBePositive()

	if err := b.checkBuffering(); err != nil {
		return Instance{}, err
	}

	readPorts, readWidths, err := schedulePorts(scheduleInput{
		sets:     b.reads,
		scopes:   b.scopes,
		buffered: b.pipeline.Valid(),
		depth:    b.depth,
	})
	if err != nil {
		return Instance{}, err
	}

	writePorts, writeWidths, err := schedulePorts(scheduleInput{
		sets:     b.writes,
		scopes:   b.scopes,
		buffered: b.pipeline.Valid(),
		depth:    b.depth,
	})
	if err != nil {
		return Instance{}, err
	}

	ports := make(map[string]Port, len(readPorts)+len(writePorts))
	for k, p := range readPorts {
		ports[k] = p
	}
	for k, p := range writePorts {
		ports[k] = p
	}

	inst := Instance{
		Reads:    b.reads,
		Writes:   b.writes,
		Ctrls:    b.controlScopes(),
		Pipeline: b.pipeline,
		Memory:   b.memory,
		Depth:    b.depth,
		Ports:    ports,
		Padding:  b.padding,
		Accum:    b.accum,
	}
	inst.Cost = duplicateCost(b.memory, b.depth, readWidths, writeWidths)

	if err := inst.Validate(); err != nil {
		return Instance{}, err
	}

	return inst, nil
}

// checkBuffering enforces that buffered duplicates name their pipeline and
// unbuffered ones do not.
func (b InstanceBuilder) checkBuffering() error {
	if b.depth > 1 && !b.pipeline.Valid() {
		return &ir.InvariantError{
			Sym: ir.None,
			Detail: fmt.Sprintf(
				"depth %d duplicate has no pipeline scope", b.depth),
		}
	}

	if b.depth == 1 && b.pipeline.Valid() {
		return &ir.InvariantError{
			Sym:    b.pipeline,
			Detail: "unbuffered duplicate names a pipeline scope",
		}
	}

	return nil
}

func (b InstanceBuilder) controlScopes() []ir.Value {
	seen := make(map[ir.Value]bool)

	var scopes []ir.Value

	for _, set := range append(append([]access.Set{}, b.reads...), b.writes...) {
		for _, a := range set {
			if !a.Scope.Valid() || seen[a.Scope] {
				continue
			}

			seen[a.Scope] = true
			scopes = append(scopes, a.Scope)
		}
	}

	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })

	return scopes
}

func (b InstanceBuilder) depthMustBePositive() {
	if b.depth < 1 {
		log.Panicf("duplication: buffer depth must be positive, got %d",
			b.depth)
	}
}
