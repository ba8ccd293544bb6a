package access

import (
	"strconv"
	"strings"

	"github.com/shuttlelab/shuttle/ir"
)

// An UnrollID names one concrete copy of an access after loop unrolling, as
// the sequence of unroll indices from the outermost unrolled loop inward.
// The empty UnrollID is the sole copy of an access under no unrolling.
type UnrollID []int

// Key returns a canonical string form usable as a map key.
func (u UnrollID) Key() string {
	var sb strings.Builder

	for i, idx := range u {
		if i > 0 {
			sb.WriteByte(',')
		}

		sb.WriteString(strconv.Itoa(idx))
	}

	return sb.String()
}

// Equal reports whether two unroll identities name the same copy.
func (u UnrollID) Equal(o UnrollID) bool {
	if len(u) != len(o) {
		return false
	}

	for i := range u {
		if u[i] != o[i] {
			return false
		}
	}

	return true
}

// Clone returns an independent copy.
func (u UnrollID) Clone() UnrollID {
	if u == nil {
		return nil
	}

	c := make(UnrollID, len(u))
	copy(c, u)

	return c
}

func (u UnrollID) String() string {
	return "[" + u.Key() + "]"
}

// An Access is one concrete unrolled read or write of a memory.
type Access struct {
	// Sym is the access node in the program graph.
	Sym ir.Value

	// Mem is the logical memory the access touches.
	Mem ir.Value

	// Unroll names which unrolled copy this record stands for.
	Unroll UnrollID

	// Scope is the control scope the access executes in. Scopes absent
	// from the analysis scope table count as outside any pipeline.
	Scope ir.Value

	// Pattern is the affine address function, when known.
	Pattern Matrix
}

// Key identifies the access uniquely within one memory's analysis.
func (a Access) Key() string {
	return a.Sym.String() + a.Unroll.String()
}

// A Set is one mutually exclusive access group. At most one member is active
// in any cycle, so the whole group can share physical port wiring.
type Set []Access

// MakeSet builds a group from the given accesses, dropping duplicates by
// Key while keeping first-seen order.
func MakeSet(accs ...Access) Set {
	seen := make(map[string]bool, len(accs))
	set := make(Set, 0, len(accs))

	for _, a := range accs {
		k := a.Key()
		if seen[k] {
			continue
		}

		seen[k] = true
		set = append(set, a)
	}

	return set
}

// ScopeInfo places one control scope in its enclosing pipeline.
type ScopeInfo struct {
	// Stage is the pipeline stage index the scope is scheduled in.
	Stage int

	// Step is the logical time step within the stage.
	Step int

	// InPipeline reports whether the scope sits in a pipelined controller
	// at all. When false, Stage and Step are meaningless.
	InPipeline bool
}
