package duplication

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
)

var _ = Describe("Dispatch", func() {
	var d *Dispatch

	BeforeEach(func() {
		d = NewDispatch()
	})

	It("should keep duplicate targets sorted and unique", func() {
		uid := access.UnrollID{0, 1}

		d.Add(uid, 2)
		d.Add(uid, 0)
		d.Add(uid, 2)
		d.Add(uid, 1)

		dups, ok := d.Get(uid)
		Expect(ok).To(BeTrue())
		Expect(dups).To(Equal([]int{0, 1, 2}))
	})

	It("should report unrouted copies", func() {
		_, ok := d.Get(access.UnrollID{3})
		Expect(ok).To(BeFalse())
	})

	It("should list routed copies in canonical order", func() {
		d.Add(access.UnrollID{1, 0}, 0)
		d.Add(access.UnrollID{0, 1}, 0)

		uids := d.UIDs()
		Expect(uids).To(HaveLen(2))
		Expect(uids[0]).To(Equal(access.UnrollID{0, 1}))
		Expect(uids[1]).To(Equal(access.UnrollID{1, 0}))
	})

	It("should resolve a reader to its single duplicate", func() {
		d.Add(access.UnrollID{2}, 1)

		dup, err := d.ResolveReader(7, access.UnrollID{2})
		Expect(err).To(BeNil())
		Expect(dup).To(Equal(1))
	})

	It("should refuse a reader with several duplicates", func() {
		uid := access.UnrollID{2}
		d.Add(uid, 0)
		d.Add(uid, 1)

		_, err := d.ResolveReader(7, uid)

		var invariant *ir.InvariantError
		Expect(errors.As(err, &invariant)).To(BeTrue())
		Expect(invariant.Sym).To(Equal(ir.Value(7)))
	})

	It("should refuse resolving an unrouted copy", func() {
		_, err := d.ResolveReader(7, access.UnrollID{9})

		var missing *ir.MissingMetadataError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Sym).To(Equal(ir.Value(7)))
		Expect(missing.Kind).To(Equal(ir.KindDispatch))
	})

	It("should let a writer broadcast to several duplicates", func() {
		uid := access.UnrollID{0}
		d.Add(uid, 0)
		d.Add(uid, 2)

		dups, err := d.ResolveWriter(8, uid)
		Expect(err).To(BeNil())
		Expect(dups).To(Equal([]int{0, 2}))
	})

	It("should copy out resolved targets", func() {
		uid := access.UnrollID{0}
		d.Add(uid, 0)

		dups, _ := d.Get(uid)
		dups[0] = 99

		again, _ := d.Get(uid)
		Expect(again).To(Equal([]int{0}))
	})
})

var _ = Describe("PortMap", func() {
	var m *PortMap

	BeforeEach(func() {
		m = NewPortMap()
	})

	It("should key ports by duplicate and unroll identity", func() {
		uid := access.UnrollID{1}

		m.Set(0, uid, Port{MuxSlot: 0, MuxWidth: 2, MuxOffset: 0, Broadcast: 1})
		m.Set(1, uid, Port{MuxSlot: 3, MuxWidth: 1, MuxOffset: 0, Broadcast: 1})

		p0, ok := m.Get(0, uid)
		Expect(ok).To(BeTrue())
		Expect(p0.MuxSlot).To(Equal(0))

		p1, ok := m.Get(1, uid)
		Expect(ok).To(BeTrue())
		Expect(p1.MuxSlot).To(Equal(3))

		_, ok = m.Get(2, uid)
		Expect(ok).To(BeFalse())
	})

	It("should list unroll identities once", func() {
		uid := access.UnrollID{1}
		m.Set(0, uid, Port{MuxWidth: 1, Broadcast: 1})
		m.Set(1, uid, Port{MuxWidth: 1, Broadcast: 1})

		Expect(m.UIDs()).To(HaveLen(1))
	})

	It("should fail fatally on a missing port", func() {
		Expect(func() {
			m.MustGet(5, 0, access.UnrollID{0})
		}).To(Panic())
	})
})
