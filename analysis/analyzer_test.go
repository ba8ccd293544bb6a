package analysis

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/shuttlelab/shuttle/hooking"
	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/banking"
	"github.com/shuttlelab/shuttle/mem/duplication"
	"github.com/shuttlelab/shuttle/mem/metadata"
)

// atPos matches hook contexts fired at one position.
type atPos struct {
	pos *hooking.HookPos
}

func (m atPos) Matches(x any) bool {
	ctx, ok := x.(hooking.HookCtx)
	return ok && ctx.Pos == m.pos
}

func (m atPos) String() string {
	return "hook context at " + m.pos.Name
}

var _ = Describe("BankingAnalyzer", func() {
	const (
		memSym    = ir.Value(1)
		readerA   = ir.Value(5)
		writerSym = ir.Value(6)
		readerB   = ir.Value(7)
		pipeline  = ir.Value(30)
	)

	var (
		mockCtrl *gomock.Controller
		store    *ir.Store
		scopes   map[ir.Value]access.ScopeInfo
		analyzer *BankingAnalyzer
		pattern  access.Matrix
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		store = ir.NewStore()
		scopes = map[ir.Value]access.ScopeInfo{
			10: {Stage: 0, Step: 0, InPipeline: true},
			11: {Stage: 1, Step: 0, InPipeline: true},
		}
		analyzer = MakeBankingAnalyzerBuilder().
			WithStore(store).
			WithScopeInfo(scopes).
			Build("BankingAnalyzer")
		pattern = access.MakeMatrix([][]int{{1, 0}, {0, 1}})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	bankedMemory := func(n int) banking.Memory {
		return banking.Memory{
			Banking: []banking.Banking{
				banking.NewModBanking(n, 1, []int{1, 2}, []int{0, 1}),
			},
			Depth: 2,
		}
	}

	read := func(sym ir.Value, uid access.UnrollID) access.Access {
		return access.Access{
			Sym: sym, Mem: memSym, Unroll: uid, Scope: 10, Pattern: pattern,
		}
	}

	write := func(sym ir.Value, uid access.UnrollID) access.Access {
		return access.Access{
			Sym: sym, Mem: memSym, Unroll: uid, Scope: 11, Pattern: pattern,
		}
	}

	twoDuplicates := func() []DuplicateGroup {
		return []DuplicateGroup{
			{
				Reads:    []access.Set{access.MakeSet(read(readerA, nil))},
				Writes:   []access.Set{access.MakeSet(write(writerSym, nil))},
				Memory:   bankedMemory(4),
				Depth:    2,
				Pipeline: pipeline,
			},
			{
				Reads:    []access.Set{access.MakeSet(read(readerB, nil))},
				Writes:   []access.Set{access.MakeSet(write(writerSym, nil))},
				Memory:   bankedMemory(2),
				Depth:    2,
				Pipeline: pipeline,
			},
		}
	}

	It("should analyze every duplicate group", func() {
		insts, err := analyzer.AnalyzeMemory(memSym, twoDuplicates())

		Expect(err).To(BeNil())
		Expect(insts).To(HaveLen(2))
		Expect(insts[0].Memory.TotalBanks()).To(Equal(4))
		Expect(insts[1].Memory.TotalBanks()).To(Equal(2))
		Expect(insts[0].Cost).To(BeNumerically(">", insts[1].Cost))
	})

	It("should refuse a memory with no candidates", func() {
		_, err := analyzer.AnalyzeMemory(memSym, nil)

		var invariant *ir.InvariantError
		Expect(errors.As(err, &invariant)).To(BeTrue())
	})

	It("should commit duplicates, routing, and ports", func() {
		insts, err := analyzer.AnalyzeMemory(memSym, twoDuplicates())
		Expect(err).To(BeNil())

		Expect(analyzer.Commit(memSym, insts)).To(Succeed())

		dups, err := metadata.Duplicates(store, memSym)
		Expect(err).To(BeNil())
		Expect(dups).To(HaveLen(2))
		Expect(dups[0].Depth).To(Equal(2))

		readers, err := metadata.Readers(store, memSym)
		Expect(err).To(BeNil())
		Expect(readers).To(Equal([]ir.Value{readerA, readerB}))

		writers, err := metadata.Writers(store, memSym)
		Expect(err).To(BeNil())
		Expect(writers).To(Equal([]ir.Value{writerSym}))

		d, err := metadata.Dispatch(store, readerA)
		Expect(err).To(BeNil())
		dup, err := d.ResolveReader(readerA, nil)
		Expect(err).To(BeNil())
		Expect(dup).To(Equal(0))

		d, err = metadata.Dispatch(store, writerSym)
		Expect(err).To(BeNil())
		targets, err := d.ResolveWriter(writerSym, nil)
		Expect(err).To(BeNil())
		Expect(targets).To(Equal([]int{0, 1}))

		ports, err := metadata.Ports(store, writerSym)
		Expect(err).To(BeNil())
		_, ok := ports.Get(0, nil)
		Expect(ok).To(BeTrue())
		_, ok = ports.Get(1, nil)
		Expect(ok).To(BeTrue())
	})

	It("should refuse a reader routed to two duplicates", func() {
		groups := twoDuplicates()
		groups[1].Reads = append(groups[1].Reads,
			access.MakeSet(read(readerA, nil)))

		insts, err := analyzer.AnalyzeMemory(memSym, groups)
		Expect(err).To(BeNil())

		err = analyzer.Commit(memSym, insts)

		var invariant *ir.InvariantError
		Expect(errors.As(err, &invariant)).To(BeTrue())
		Expect(invariant.Sym).To(Equal(readerA))
	})

	It("should commit the same state twice", func() {
		insts, err := analyzer.AnalyzeMemory(memSym, twoDuplicates())
		Expect(err).To(BeNil())

		Expect(analyzer.Commit(memSym, insts)).To(Succeed())
		first, err := metadata.Duplicates(store, memSym)
		Expect(err).To(BeNil())

		Expect(analyzer.Commit(memSym, insts)).To(Succeed())
		second, err := metadata.Duplicates(store, memSym)
		Expect(err).To(BeNil())

		Expect(second).To(Equal(first))

		d, err := metadata.Dispatch(store, writerSym)
		Expect(err).To(BeNil())
		targets, _ := d.Get(nil)
		Expect(targets).To(Equal([]int{0, 1}))
	})

	It("should merge padding and accumulation across duplicates", func() {
		groups := twoDuplicates()
		groups[0].Padding = []int{0, 2}
		groups[1].Padding = []int{0, 2}
		groups[0].Accum = banking.Reduce("add")

		insts, err := analyzer.AnalyzeMemory(memSym, groups)
		Expect(err).To(BeNil())
		Expect(analyzer.Commit(memSym, insts)).To(Succeed())

		padding, err := metadata.Padding(store, memSym)
		Expect(err).To(BeNil())
		Expect(padding).To(Equal([]int{0, 2}))

		accum, err := metadata.Accumulator(store, memSym)
		Expect(err).To(BeNil())
		Expect(accum).To(Equal(banking.Reduce("add")))
	})

	It("should refuse duplicates that disagree on padding", func() {
		groups := twoDuplicates()
		groups[0].Padding = []int{0, 2}
		groups[1].Padding = []int{1, 0}

		insts, err := analyzer.AnalyzeMemory(memSym, groups)
		Expect(err).To(BeNil())

		Expect(analyzer.Commit(memSym, insts)).To(HaveOccurred())
	})

	It("should degrade conflicting accumulation to unknown", func() {
		groups := twoDuplicates()
		groups[0].Accum = banking.Reduce("add")
		groups[1].Accum = banking.Accum{Kind: banking.AccumFMA}

		insts, err := analyzer.AnalyzeMemory(memSym, groups)
		Expect(err).To(BeNil())
		Expect(analyzer.Commit(memSym, insts)).To(Succeed())

		accum, err := metadata.Accumulator(store, memSym)
		Expect(err).To(BeNil())
		Expect(accum.Kind).To(Equal(banking.AccumUnknown))
	})

	It("should collapse duplicates when finalizing the winner", func() {
		insts, err := analyzer.AnalyzeMemory(memSym, twoDuplicates())
		Expect(err).To(BeNil())

		winner := insts[1]
		Expect(analyzer.FinalizeUnrolled(memSym, winner)).To(Succeed())

		inst, err := metadata.Instance(store, memSym)
		Expect(err).To(BeNil())
		Expect(inst.TotalBanks()).To(Equal(2))

		d, err := metadata.Dispatch(store, readerB)
		Expect(err).To(BeNil())
		dup, err := d.ResolveReader(readerB, nil)
		Expect(err).To(BeNil())
		Expect(dup).To(Equal(0))
	})

	It("should fire hooks at every decision position", func() {
		hook := NewMockHook(mockCtrl)
		analyzer.AcceptHook(hook)

		// One duplicate with one read and one write: one banking
		// decision, two port assignments, two dispatch resolutions.
		hook.EXPECT().Func(atPos{HookPosBankingDecided}).Times(1)
		hook.EXPECT().Func(atPos{HookPosPortsAssigned}).Times(2)
		hook.EXPECT().Func(atPos{HookPosDispatchResolved}).Times(2)

		groups := twoDuplicates()[:1]
		insts, err := analyzer.AnalyzeMemory(memSym, groups)
		Expect(err).To(BeNil())
		Expect(analyzer.Commit(memSym, insts)).To(Succeed())
	})

	It("should panic when built without a store", func() {
		Expect(func() {
			MakeBankingAnalyzerBuilder().Build("NoStore")
		}).To(Panic())
	})
})
