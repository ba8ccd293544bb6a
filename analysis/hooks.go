package analysis

import (
	"github.com/shuttlelab/shuttle/hooking"
	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/duplication"
)

// Hook positions fired by the BankingAnalyzer.
var (
	// HookPosBankingDecided fires once per analyzed duplicate with a
	// *BankingDecision item.
	HookPosBankingDecided = &hooking.HookPos{Name: "BankingDecided"}

	// HookPosPortsAssigned fires once per scheduled access with a
	// *PortAssignment item.
	HookPosPortsAssigned = &hooking.HookPos{Name: "PortsAssigned"}

	// HookPosDispatchResolved fires once per committed unrolled access
	// with a *DispatchResolution item.
	HookPosDispatchResolved = &hooking.HookPos{Name: "DispatchResolved"}
)

// A BankingDecision reports one analyzed duplicate of a memory.
type BankingDecision struct {
	Mem      ir.Value
	Dup      int
	Instance *duplication.Instance
}

// A PortAssignment reports the port one access was scheduled onto.
type PortAssignment struct {
	Mem    ir.Value
	Dup    int
	Access access.Access
	Port   duplication.Port
}

// A DispatchResolution reports the duplicates one unrolled access routes to.
type DispatchResolution struct {
	Mem      ir.Value
	Sym      ir.Value
	UID      access.UnrollID
	Dups     []int
	IsReader bool
}

func (a *BankingAnalyzer) hookBankingDecided(
	mem ir.Value,
	dup int,
	inst *duplication.Instance,
) {
	if a.NumHooks() == 0 {
		return
	}

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    HookPosBankingDecided,
		Item:   &BankingDecision{Mem: mem, Dup: dup, Instance: inst},
	})
}

func (a *BankingAnalyzer) hookPortsAssigned(
	mem ir.Value,
	dup int,
	inst duplication.Instance,
) {
	if a.NumHooks() == 0 {
		return
	}

	for _, acc := range inst.Accesses() {
		port, err := inst.PortOf(acc)
		if err != nil {
			continue
		}

		a.InvokeHook(hooking.HookCtx{
			Domain: a,
			Pos:    HookPosPortsAssigned,
			Item: &PortAssignment{
				Mem:    mem,
				Dup:    dup,
				Access: acc,
				Port:   port,
			},
		})
	}
}

func (a *BankingAnalyzer) hookDispatchResolved(
	mem, sym ir.Value,
	uid access.UnrollID,
	dups []int,
	isReader bool,
) {
	if a.NumHooks() == 0 {
		return
	}

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    HookPosDispatchResolved,
		Item: &DispatchResolution{
			Mem:      mem,
			Sym:      sym,
			UID:      uid,
			Dups:     dups,
			IsReader: isReader,
		},
	})
}
