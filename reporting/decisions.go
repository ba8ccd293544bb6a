package reporting

import (
	"fmt"
	"strings"

	"github.com/shuttlelab/shuttle/analysis"
	"github.com/shuttlelab/shuttle/hooking"
	"github.com/shuttlelab/shuttle/mem/banking"
)

// Tables written by the DecisionRecorder.
const (
	// BankingTable holds one BankingEntry row per analyzed duplicate.
	BankingTable = "banking_decisions"

	// PortTable holds one PortEntry row per scheduled access.
	PortTable = "port_assignments"

	// DispatchTable holds one DispatchEntry row per committed unrolled
	// access.
	DispatchTable = "dispatch_resolutions"
)

// A BankingEntry is one analyzed duplicate of a memory.
type BankingEntry struct {
	Mem      string
	Dup      int
	Banks    int
	Depth    int
	Pipeline string
	Scheme   string
	Padding  string
	Accum    string
	Resource string
	Cost     float64
}

// A PortEntry is the port one access was scheduled onto.
type PortEntry struct {
	Mem         string
	Dup         int
	Access      string
	Unroll      string
	BufferStage int
	MuxSlot     int
	MuxWidth    int
	MuxOffset   int
	Broadcast   int
}

// A DispatchEntry is the duplicate routing of one committed unrolled access.
type DispatchEntry struct {
	Mem    string
	Access string
	Unroll string
	Dups   string
	Reader bool
}

// A DecisionRecorder is a hook that writes every decision a BankingAnalyzer
// makes into a report database.
type DecisionRecorder struct {
	recorder DataRecorder
}

// NewDecisionRecorder creates the decision tables in the given recorder and
// returns a hook ready to be accepted by a BankingAnalyzer.
func NewDecisionRecorder(recorder DataRecorder) *DecisionRecorder {
	r := &DecisionRecorder{recorder: recorder}

	r.recorder.CreateTable(BankingTable, BankingEntry{})
	r.recorder.CreateTable(PortTable, PortEntry{})
	r.recorder.CreateTable(DispatchTable, DispatchEntry{})

	return r
}

// Func implements hooking.Hook.
func (r *DecisionRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case analysis.HookPosBankingDecided:
		r.recordBanking(ctx.Item.(*analysis.BankingDecision))
	case analysis.HookPosPortsAssigned:
		r.recordPort(ctx.Item.(*analysis.PortAssignment))
	case analysis.HookPosDispatchResolved:
		r.recordDispatch(ctx.Item.(*analysis.DispatchResolution))
	}
}

func (r *DecisionRecorder) recordBanking(d *analysis.BankingDecision) {
	mem := d.Instance.ToMemory()

	r.recorder.InsertData(BankingTable, BankingEntry{
		Mem:      d.Mem.String(),
		Dup:      d.Dup,
		Banks:    mem.TotalBanks(),
		Depth:    mem.Depth,
		Pipeline: d.Instance.Pipeline.String(),
		Scheme:   schemeString(mem),
		Padding:  fmt.Sprint(d.Instance.Padding),
		Accum:    mem.Accum.String(),
		Resource: mem.Resource,
		Cost:     d.Instance.Cost,
	})
}

func (r *DecisionRecorder) recordPort(p *analysis.PortAssignment) {
	r.recorder.InsertData(PortTable, PortEntry{
		Mem:         p.Mem.String(),
		Dup:         p.Dup,
		Access:      p.Access.Sym.String(),
		Unroll:      p.Access.Unroll.String(),
		BufferStage: p.Port.BufferStage,
		MuxSlot:     p.Port.MuxSlot,
		MuxWidth:    p.Port.MuxWidth,
		MuxOffset:   p.Port.MuxOffset,
		Broadcast:   p.Port.Broadcast,
	})
}

func (r *DecisionRecorder) recordDispatch(d *analysis.DispatchResolution) {
	r.recorder.InsertData(DispatchTable, DispatchEntry{
		Mem:    d.Mem.String(),
		Access: d.Sym.String(),
		Unroll: d.UID.String(),
		Dups:   fmt.Sprint(d.Dups),
		Reader: d.IsReader,
	})
}

func schemeString(m banking.Memory) string {
	parts := make([]string, len(m.Banking))
	for i, b := range m.Banking {
		parts[i] = fmt.Sprintf("%v", b)
	}

	return strings.Join(parts, "; ")
}
