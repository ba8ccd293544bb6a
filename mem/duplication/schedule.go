package duplication

import (
	"fmt"
	"sort"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/access"
)

type scheduleInput struct {
	sets     []access.Set
	scopes   map[ir.Value]access.ScopeInfo
	buffered bool
	depth    int
}

type slotKey struct {
	stage int
	step  int
}

// schedulePorts assigns every access of one direction to a mux slot.
//
// Groups that are active at the same time step and hit the same buffer stage
// share one slot, whose width is the total number of parallel accesses it
// carries. Groups pack back to back inside the slot, so every access gets a
// disjoint lane range. Slots are numbered in (stage, step) order to keep the
// assignment deterministic across runs.
func schedulePorts(in scheduleInput) (map[string]Port, []int, error) {
	buckets := make(map[slotKey][]access.Set)

	for _, set := range in.sets {
		if len(set) == 0 {
			continue
		}

		key, err := bucketOf(set, in)
		if err != nil {
			return nil, nil, err
		}

		buckets[key] = append(buckets[key], set)
	}

	keys := make([]slotKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].stage != keys[j].stage {
			return keys[i].stage < keys[j].stage
		}

		return keys[i].step < keys[j].step
	})

	ports := make(map[string]Port)
	widths := make([]int, 0, len(keys))

	for slot, key := range keys {
		sets := buckets[key]

		width := 0
		for _, set := range sets {
			width += len(set)
		}
		widths = append(widths, width)

		var members []access.Access
		for _, set := range sets {
			members = append(members, set...)
		}

		for lane, a := range members {
			ports[a.Key()] = Port{
				BufferStage: key.stage,
				MuxSlot:     slot,
				MuxWidth:    width,
				MuxOffset:   lane,
				Broadcast:   broadcastFactor(a, members),
			}
		}
	}

	return ports, widths, nil
}

// bucketOf places one mutually exclusive group at its (stage, step) slot
// key. All members must agree on the placement, otherwise the group could
// not share wiring.
func bucketOf(set access.Set, in scheduleInput) (slotKey, error) {
	key := placeAccess(set[0], in)

	for _, a := range set[1:] {
		if placeAccess(a, in) != key {
			return slotKey{}, &ir.InvariantError{
				Sym: a.Sym,
				Detail: fmt.Sprintf(
					"mutually exclusive group of %s spans buffer stages",
					set[0].Key()),
			}
		}
	}

	return key, nil
}

// placeAccess maps one access to its buffer stage and time step. The stage
// rotates across the depth buffer copies. Accesses outside the pipeline, or
// of an unbuffered duplicate, see the single unrotated copy.
func placeAccess(a access.Access, in scheduleInput) slotKey {
	info, known := in.scopes[a.Scope]

	if !in.buffered || !known || !info.InPipeline {
		step := 0
		if known {
			step = info.Step
		}

		return slotKey{stage: UnbufferedStage, step: step}
	}

	return slotKey{stage: info.Stage % in.depth, step: info.Step}
}

// broadcastFactor counts the slot members reading through the same address
// function as a, a itself included. Unknown address functions never match.
func broadcastFactor(a access.Access, members []access.Access) int {
	if !a.Pattern.Known() {
		return 1
	}

	count := 0

	for _, m := range members {
		if a.Pattern.Equal(m.Pattern) {
			count++
		}
	}

	return count
}
