package duplication

import (
	"fmt"
	"sort"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
)

// A Dispatch routes the unrolled copies of one access symbol to the physical
// duplicates each copy targets.
type Dispatch struct {
	entries map[string]*dispatchEntry
}

type dispatchEntry struct {
	uid  access.UnrollID
	dups []int
}

// NewDispatch returns an empty dispatch table.
func NewDispatch() *Dispatch {
	return &Dispatch{entries: make(map[string]*dispatchEntry)}
}

// Add routes one unrolled copy to one duplicate. Adding the same pair twice
// is a no-op.
func (d *Dispatch) Add(uid access.UnrollID, dup int) {
	key := uid.Key()

	e, ok := d.entries[key]
	if !ok {
		e = &dispatchEntry{uid: uid.Clone()}
		d.entries[key] = e
	}

	i := sort.SearchInts(e.dups, dup)
	if i < len(e.dups) && e.dups[i] == dup {
		return
	}

	e.dups = append(e.dups, 0)
	copy(e.dups[i+1:], e.dups[i:])
	e.dups[i] = dup
}

// Get returns the duplicate indices one unrolled copy routes to, in
// ascending order.
func (d *Dispatch) Get(uid access.UnrollID) ([]int, bool) {
	e, ok := d.entries[uid.Key()]
	if !ok {
		return nil, false
	}

	dups := make([]int, len(e.dups))
	copy(dups, e.dups)

	return dups, true
}

// UIDs returns every routed unroll identity in canonical order.
func (d *Dispatch) UIDs() []access.UnrollID {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	uids := make([]access.UnrollID, len(keys))
	for i, k := range keys {
		uids[i] = d.entries[k].uid
	}

	return uids
}

// ResolveReader returns the single duplicate a reader copy routes to. A
// reader with no entry or with several targets is an analysis invariant
// violation.
func (d *Dispatch) ResolveReader(sym ir.Value, uid access.UnrollID) (int, error) {
	dups, ok := d.Get(uid)
	if !ok {
		return 0, &ir.MissingMetadataError{Sym: sym, Kind: ir.KindDispatch}
	}

	if len(dups) != 1 {
		return 0, &ir.InvariantError{
			Sym: sym,
			Detail: fmt.Sprintf(
				"reader copy %s routes to %d duplicates %v",
				uid, len(dups), dups),
		}
	}

	return dups[0], nil
}

// ResolveWriter returns the duplicates a writer copy broadcasts to, at least
// one.
func (d *Dispatch) ResolveWriter(sym ir.Value, uid access.UnrollID) ([]int, error) {
	dups, ok := d.Get(uid)
	if !ok {
		return nil, &ir.MissingMetadataError{Sym: sym, Kind: ir.KindDispatch}
	}

	if len(dups) == 0 {
		return nil, &ir.InvariantError{
			Sym:    sym,
			Detail: fmt.Sprintf("writer copy %s routes to no duplicate", uid),
		}
	}

	return dups, nil
}
