// Package duplication resolves the physical copies of a logical memory. It
// aggregates the accesses of each candidate duplicate into an Instance,
// schedules them onto time multiplexed buffer ports, and routes every
// unrolled access to the duplicates it targets.
package duplication

import (
	"fmt"
	"sort"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
)

// UnbufferedStage marks an access that executes outside the enclosing
// pipeline scope. Such accesses see a single unrotated view of the memory
// regardless of buffer depth.
const UnbufferedStage = -1

// A Port records where one concrete access lands on a duplicate's physical
// read or write ports.
type Port struct {
	// BufferStage is the pipeline stage whose buffer copy the access
	// reads or writes, or UnbufferedStage.
	BufferStage int

	// MuxSlot identifies the time multiplexed group the access shares a
	// physical port with.
	MuxSlot int

	// MuxWidth is the number of parallel accesses sharing the slot.
	MuxWidth int

	// MuxOffset is the first lane of the slot this access occupies.
	MuxOffset int

	// Broadcast is the number of accesses in the slot that read the same
	// addresses as this one, itself included.
	Broadcast int
}

// Buffered reports whether the access goes through a rotating buffer copy.
func (p Port) Buffered() bool {
	return p.BufferStage != UnbufferedStage
}

func (p Port) String() string {
	stage := "unbuffered"
	if p.Buffered() {
		stage = fmt.Sprintf("stage %d", p.BufferStage)
	}

	return fmt.Sprintf("port{%s, slot %d, lane %d/%d, broadcast %d}",
		stage, p.MuxSlot, p.MuxOffset, p.MuxWidth, p.Broadcast)
}

// A PortMap is the committed port table of one access symbol. Entries are
// keyed by duplicate index and unroll identity, since a broadcast write may
// land on different ports of different duplicates.
type PortMap struct {
	entries map[portKey]Port
	uids    map[string]access.UnrollID
}

type portKey struct {
	dup int
	uid string
}

// NewPortMap returns an empty port table.
func NewPortMap() *PortMap {
	return &PortMap{
		entries: make(map[portKey]Port),
		uids:    make(map[string]access.UnrollID),
	}
}

// Set records the port of one unrolled copy on one duplicate, replacing any
// prior record.
func (m *PortMap) Set(dup int, uid access.UnrollID, p Port) {
	m.entries[portKey{dup: dup, uid: uid.Key()}] = p
	m.uids[uid.Key()] = uid.Clone()
}

// Get returns the port of one unrolled copy on one duplicate.
func (m *PortMap) Get(dup int, uid access.UnrollID) (Port, bool) {
	p, ok := m.entries[portKey{dup: dup, uid: uid.Key()}]

	return p, ok
}

// UIDs returns every unroll identity with at least one port, in canonical
// order.
func (m *PortMap) UIDs() []access.UnrollID {
	keys := make([]string, 0, len(m.uids))
	for k := range m.uids {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	uids := make([]access.UnrollID, len(keys))
	for i, k := range keys {
		uids[i] = m.uids[k]
	}

	return uids
}

// MustGet returns the port of one unrolled copy, failing fatally when the
// port was never assigned.
func (m *PortMap) MustGet(sym ir.Value, dup int, uid access.UnrollID) Port {
	p, ok := m.Get(dup, uid)
	if !ok {
		ir.Must(&ir.MissingMetadataError{Sym: sym, Kind: ir.KindPorts})
	}

	return p
}
