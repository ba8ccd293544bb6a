package duplication

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
	"github.com/shuttlelab/shuttle/mem/banking"
)

var _ = Describe("InstanceBuilder", func() {
	var (
		scopes  map[ir.Value]access.ScopeInfo
		memory  banking.Memory
		pattern access.Matrix
		other   access.Matrix
	)

	BeforeEach(func() {
		scopes = map[ir.Value]access.ScopeInfo{
			10: {Stage: 0, Step: 0, InPipeline: true},
			11: {Stage: 1, Step: 0, InPipeline: true},
			12: {Stage: 0, Step: 1, InPipeline: true},
			20: {InPipeline: false},
		}
		memory = banking.Memory{
			Banking: []banking.Banking{
				banking.NewModBanking(4, 1, []int{1, 2}, []int{0, 1}),
			},
			Depth: 2,
		}
		pattern = access.MakeMatrix([][]int{{1, 0}, {0, 1}})
		other = access.MakeMatrix([][]int{{2, 0}, {0, 1}})
	})

	read := func(sym ir.Value, uid access.UnrollID,
		scope ir.Value, p access.Matrix) access.Access {
		return access.Access{
			Sym: sym, Mem: 1, Unroll: uid, Scope: scope, Pattern: p,
		}
	}

	It("should share a slot between groups at the same stage and step", func() {
		r0 := read(2, access.UnrollID{0}, 10, pattern)
		r1 := read(2, access.UnrollID{1}, 10, pattern)
		r2 := read(3, nil, 10, other)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0, r1), access.MakeSet(r2)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		p0, err := inst.PortOf(r0)
		Expect(err).To(BeNil())
		p1, err := inst.PortOf(r1)
		Expect(err).To(BeNil())
		p2, err := inst.PortOf(r2)
		Expect(err).To(BeNil())

		Expect(p0.MuxSlot).To(Equal(p1.MuxSlot))
		Expect(p0.MuxSlot).To(Equal(p2.MuxSlot))
		Expect(p0.MuxWidth).To(Equal(3))
		Expect(p1.MuxWidth).To(Equal(3))
		Expect(p2.MuxWidth).To(Equal(3))

		Expect(p0.MuxOffset).To(Equal(0))
		Expect(p1.MuxOffset).To(Equal(1))
		Expect(p2.MuxOffset).To(Equal(2))

		Expect(p0.BufferStage).To(Equal(0))
	})

	It("should count broadcast partners by address function", func() {
		r0 := read(2, access.UnrollID{0}, 10, pattern)
		r1 := read(2, access.UnrollID{1}, 10, pattern)
		r2 := read(3, nil, 10, other)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0, r1), access.MakeSet(r2)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		p0, _ := inst.PortOf(r0)
		p1, _ := inst.PortOf(r1)
		p2, _ := inst.PortOf(r2)

		Expect(p0.Broadcast).To(Equal(2))
		Expect(p1.Broadcast).To(Equal(2))
		Expect(p2.Broadcast).To(Equal(1))
	})

	It("should give each step its own slot in stage and step order", func() {
		r0 := read(2, nil, 10, pattern)
		r1 := read(3, nil, 12, other)
		r2 := read(4, nil, 20, other)

		inst, err := MakeInstanceBuilder().
			WithReads(
				access.MakeSet(r0),
				access.MakeSet(r1),
				access.MakeSet(r2)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		outside, _ := inst.PortOf(r2)
		first, _ := inst.PortOf(r0)
		second, _ := inst.PortOf(r1)

		Expect(outside.BufferStage).To(Equal(UnbufferedStage))
		Expect(outside.Buffered()).To(BeFalse())
		Expect(outside.MuxSlot).To(Equal(0))
		Expect(first.MuxSlot).To(Equal(1))
		Expect(second.MuxSlot).To(Equal(2))
	})

	It("should number read and write slots independently", func() {
		r0 := read(2, nil, 10, pattern)
		w0 := read(6, nil, 11, other)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0)).
			WithWrites(access.MakeSet(w0)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		rp, _ := inst.PortOf(r0)
		wp, _ := inst.PortOf(w0)

		Expect(rp.MuxSlot).To(Equal(0))
		Expect(wp.MuxSlot).To(Equal(0))
		Expect(wp.BufferStage).To(Equal(1))
	})

	It("should rotate buffer stages across the depth", func() {
		scopes[13] = access.ScopeInfo{Stage: 3, Step: 0, InPipeline: true}
		r0 := read(2, nil, 13, pattern)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		p, _ := inst.PortOf(r0)
		Expect(p.BufferStage).To(Equal(1))
	})

	It("should leave every access unbuffered when there is no pipeline", func() {
		r0 := read(2, nil, 10, pattern)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0)).
			WithMemory(memory).
			WithDepth(1).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		p, _ := inst.PortOf(r0)
		Expect(p.BufferStage).To(Equal(UnbufferedStage))
	})

	It("should collect sorted control scopes", func() {
		r0 := read(2, nil, 12, pattern)
		r1 := read(3, nil, 10, other)
		w0 := read(6, nil, 11, other)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0), access.MakeSet(r1)).
			WithWrites(access.MakeSet(w0)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())
		Expect(inst.Ctrls).To(Equal([]ir.Value{10, 11, 12}))
	})

	It("should score banks, buffer copies, and mux width", func() {
		r0 := read(2, access.UnrollID{0}, 10, pattern)
		r1 := read(2, access.UnrollID{1}, 10, pattern)
		w0 := read(6, nil, 11, other)

		inst, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0, r1)).
			WithWrites(access.MakeSet(w0)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		// 4 banks, one extra buffer copy of each, a 2 wide read slot
		// and a 1 wide write slot.
		want := 4*bankWeight + 4*bufferWeight + 3*muxWeight
		Expect(inst.Cost).To(Equal(want))
	})

	It("should refuse a buffered duplicate without a pipeline", func() {
		_, err := MakeInstanceBuilder().
			WithMemory(memory).
			WithDepth(2).
			WithScopeInfo(scopes).
			Build()

		var invariant *ir.InvariantError
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &invariant)).To(BeTrue())
	})

	It("should refuse a pipeline on an unbuffered duplicate", func() {
		_, err := MakeInstanceBuilder().
			WithMemory(memory).
			WithDepth(1).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should refuse a group that spans buffer stages", func() {
		r0 := read(2, access.UnrollID{0}, 10, pattern)
		r1 := read(2, access.UnrollID{1}, 11, pattern)

		_, err := MakeInstanceBuilder().
			WithReads(access.MakeSet(r0, r1)).
			WithMemory(memory).
			WithDepth(2).
			WithPipeline(30).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should panic on a non positive depth", func() {
		Expect(func() {
			_, _ = MakeInstanceBuilder().WithDepth(0).Build()
		}).To(Panic())
	})

	It("should project the committed memory on ToMemory", func() {
		inst, err := MakeInstanceBuilder().
			WithMemory(banking.Memory{
				Banking:  memory.Banking,
				Depth:    1,
				Resource: "SRAM",
			}).
			WithDepth(2).
			WithPipeline(30).
			WithAccum(banking.Reduce("add")).
			WithScopeInfo(scopes).
			Build()

		Expect(err).To(BeNil())

		m := inst.ToMemory()
		Expect(m.Banking).To(Equal(memory.Banking))
		Expect(m.Depth).To(Equal(2))
		Expect(m.Accum).To(Equal(banking.Reduce("add")))
		Expect(m.Resource).To(Equal("SRAM"))
	})
})

var _ = Describe("Instance", func() {
	It("should reject an access without a port", func() {
		inst := Instance{
			Reads: []access.Set{
				access.MakeSet(access.Access{Sym: 2}),
			},
			Depth: 1,
			Ports: map[string]Port{},
		}

		err := inst.Validate()

		var missing *ir.MissingMetadataError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Sym).To(Equal(ir.Value(2)))
	})

	It("should reject a lane outside the slot width", func() {
		a := access.Access{Sym: 2}
		inst := Instance{
			Reads: []access.Set{access.MakeSet(a)},
			Depth: 1,
			Ports: map[string]Port{
				a.Key(): {MuxWidth: 2, MuxOffset: 2, Broadcast: 1},
			},
		}

		Expect(inst.Validate()).To(HaveOccurred())
	})
})
