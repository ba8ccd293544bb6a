package banking

import (
	"fmt"
	"strings"

	"github.com/shuttlelab/shuttle/ir"
)

// AccumKind classifies how a memory accumulates written values.
type AccumKind int

const (
	// AccumNone marks plain writes that overwrite the stored value.
	AccumNone AccumKind = iota

	// AccumReduce marks read-modify-write accumulation through a named
	// reduction operator.
	AccumReduce

	// AccumFMA marks fused multiply-accumulate writes.
	AccumFMA

	// AccumUnknown marks accumulation the analysis could not classify, or
	// conflicting classifications merged from several duplicates.
	AccumUnknown
)

var accumKindNames = map[AccumKind]string{
	AccumNone:    "none",
	AccumReduce:  "reduce",
	AccumFMA:     "fma",
	AccumUnknown: "unknown",
}

func (k AccumKind) String() string {
	if name, ok := accumKindNames[k]; ok {
		return name
	}

	return "unknown"
}

// An Accum is the accumulation classification of a memory. Op names the
// reduction operator and is only meaningful for AccumReduce.
type Accum struct {
	Kind AccumKind
	Op   string
}

// Reduce returns the accumulation record for a named reduction operator.
func Reduce(op string) Accum {
	return Accum{Kind: AccumReduce, Op: op}
}

func (a Accum) String() string {
	if a.Kind == AccumReduce && a.Op != "" {
		return fmt.Sprintf("reduce(%s)", a.Op)
	}

	return a.Kind.String()
}

// A Memory is one physical configuration of a logical memory. Banking holds
// either a single flat scheme over all dimensions or one scheme per
// dimension. Depth is the buffer depth. Depth 1 means unbuffered.
type Memory struct {
	Banking  []Banking
	Depth    int
	Accum    Accum
	Resource string
}

// Unit returns the degenerate configuration of a memory of the given rank:
// one bank, no blocking, depth 1. Its bank offset is the row major flat
// index.
func Unit(rank int) Memory {
	return Memory{
		Banking: []Banking{UnitBanking(rank)},
		Depth:   1,
	}
}

// TotalBanks returns the product of the bank counts of all schemes.
func (m Memory) TotalBanks() int {
	total := 1
	for _, b := range m.Banking {
		total *= b.NumBanks()
	}

	return total
}

// BankSelects evaluates every banking scheme on the address vector,
// returning one bank index per scheme. Each scheme sees only the address
// components of the dimensions it governs.
func (m Memory) BankSelects(addr []int) ([]int, error) {
	if err := m.checkShape(len(addr)); err != nil {
		return nil, err
	}

	selects := make([]int, len(m.Banking))

	for i, b := range m.Banking {
		dims := b.AxisDims()
		sub := make([]int, len(dims))

		for j, d := range dims {
			if d < 0 || d >= len(addr) {
				return nil, &ir.InvariantError{
					Sym: ir.None,
					Detail: fmt.Sprintf(
						"banking scheme %d governs dimension %d "+
							"of a rank %d address",
						i, d, len(addr)),
				}
			}

			sub[j] = addr[d]
		}

		selects[i] = b.BankSelect(sub)
	}

	return selects, nil
}

// checkShape enforces the two supported banking shapes: one flat scheme over
// all dimensions, or exactly one scheme per dimension.
func (m Memory) checkShape(rank int) error {
	if len(m.Banking) == 1 || len(m.Banking) == rank {
		return nil
	}

	return &ir.UnsupportedError{
		Detail: fmt.Sprintf(
			"%d banking schemes over %d dimensions, want 1 or %d",
			len(m.Banking), rank, rank),
	}
}

func (m Memory) String() string {
	var sb strings.Builder

	sb.WriteString("memory{")

	for i, b := range m.Banking {
		if i > 0 {
			sb.WriteString(", ")
		}

		fmt.Fprintf(&sb, "%v", b)
	}

	fmt.Fprintf(&sb, "; depth=%d", m.Depth)

	if m.Accum.Kind != AccumNone {
		fmt.Fprintf(&sb, "; accum=%v", m.Accum)
	}

	if m.Resource != "" {
		fmt.Fprintf(&sb, "; resource=%s", m.Resource)
	}

	sb.WriteString("}")

	return sb.String()
}
