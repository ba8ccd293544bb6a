// Package metadata is the typed surface over the ir.Store through which the
// banking analyses publish their results and downstream passes read them.
// Every accessor distinguishes metadata that was never written from metadata
// that is present but malformed.
package metadata

import (
	"fmt"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/banking"
	"github.com/shuttlelab/shuttle/mem/duplication"
)

// Duplicates returns the candidate physical configurations of a logical
// memory.
func Duplicates(s *ir.Store, mem ir.Value) ([]banking.Memory, error) {
	return lookup[[]banking.Memory](s, mem, ir.KindDuplicates)
}

// SetDuplicates replaces the candidate configurations of a logical memory.
func SetDuplicates(s *ir.Store, mem ir.Value, dups []banking.Memory) {
	s.Put(mem, ir.KindDuplicates, dups)
}

// Instance returns the single physical configuration of a memory whose
// duplicates have been resolved. A memory still carrying several candidates
// has no instance yet.
func Instance(s *ir.Store, mem ir.Value) (banking.Memory, error) {
	dups, err := Duplicates(s, mem)
	if err != nil {
		return banking.Memory{}, err
	}

	if len(dups) != 1 {
		return banking.Memory{}, &ir.InvariantError{
			Sym: mem,
			Detail: fmt.Sprintf(
				"%d duplicates did not collapse to a single instance",
				len(dups)),
		}
	}

	return dups[0], nil
}

// MustInstance is Instance for callers past the point where a missing
// instance is recoverable.
func MustInstance(s *ir.Store, mem ir.Value) banking.Memory {
	m, err := Instance(s, mem)
	ir.Must(err)

	return m
}

// Padding returns the per-dimension padding of a memory.
func Padding(s *ir.Store, mem ir.Value) ([]int, error) {
	return lookup[[]int](s, mem, ir.KindPadding)
}

// SetPadding records the per-dimension padding of a memory.
func SetPadding(s *ir.Store, mem ir.Value, padding []int) {
	s.Put(mem, ir.KindPadding, padding)
}

// Dispatch returns the duplicate routing table of an access symbol.
func Dispatch(s *ir.Store, acc ir.Value) (*duplication.Dispatch, error) {
	return lookup[*duplication.Dispatch](s, acc, ir.KindDispatch)
}

// SetDispatch replaces the duplicate routing table of an access symbol.
func SetDispatch(s *ir.Store, acc ir.Value, d *duplication.Dispatch) {
	s.Put(acc, ir.KindDispatch, d)
}

// Ports returns the committed port table of an access symbol.
func Ports(s *ir.Store, acc ir.Value) (*duplication.PortMap, error) {
	return lookup[*duplication.PortMap](s, acc, ir.KindPorts)
}

// SetPorts replaces the committed port table of an access symbol.
func SetPorts(s *ir.Store, acc ir.Value, m *duplication.PortMap) {
	s.Put(acc, ir.KindPorts, m)
}

// Readers returns the access symbols reading a memory.
func Readers(s *ir.Store, mem ir.Value) ([]ir.Value, error) {
	return lookup[[]ir.Value](s, mem, ir.KindReaders)
}

// SetReaders records the access symbols reading a memory.
func SetReaders(s *ir.Store, mem ir.Value, readers []ir.Value) {
	s.Put(mem, ir.KindReaders, readers)
}

// Writers returns the access symbols writing a memory.
func Writers(s *ir.Store, mem ir.Value) ([]ir.Value, error) {
	return lookup[[]ir.Value](s, mem, ir.KindWriters)
}

// SetWriters records the access symbols writing a memory.
func SetWriters(s *ir.Store, mem ir.Value, writers []ir.Value) {
	s.Put(mem, ir.KindWriters, writers)
}

// Accumulator returns the accumulation classification of a memory.
func Accumulator(s *ir.Store, mem ir.Value) (banking.Accum, error) {
	return lookup[banking.Accum](s, mem, ir.KindAccumulator)
}

// SetAccumulator records the accumulation classification of a memory.
func SetAccumulator(s *ir.Store, mem ir.Value, a banking.Accum) {
	s.Put(mem, ir.KindAccumulator, a)
}

// IsWriteBuffer reports the write buffer flag. An absent flag is false.
func IsWriteBuffer(s *ir.Store, mem ir.Value) bool {
	return flag(s, mem, ir.KindWriteBuffer)
}

// SetWriteBuffer sets or clears the write buffer flag.
func SetWriteBuffer(s *ir.Store, mem ir.Value, on bool) {
	setFlag(s, mem, ir.KindWriteBuffer, on)
}

// IsNonBuffer reports the flag forcing a memory to stay unbuffered. An
// absent flag is false.
func IsNonBuffer(s *ir.Store, mem ir.Value) bool {
	return flag(s, mem, ir.KindNonBuffer)
}

// SetNonBuffer sets or clears the non buffer flag.
func SetNonBuffer(s *ir.Store, mem ir.Value, on bool) {
	setFlag(s, mem, ir.KindNonBuffer, on)
}

// ResourceHint returns the target resource tag of a memory, if any. The tag
// is passed through to physical mapping and never interpreted here.
func ResourceHint(s *ir.Store, mem ir.Value) (string, bool) {
	data, ok := s.Get(mem, ir.KindResourceHint)
	if !ok {
		return "", false
	}

	hint, ok := data.(string)
	if !ok {
		return "", false
	}

	return hint, true
}

// SetResourceHint records the target resource tag of a memory.
func SetResourceHint(s *ir.Store, mem ir.Value, hint string) {
	s.Put(mem, ir.KindResourceHint, hint)
}

// lookup reads one typed entry, reporting absence and malformation apart.
func lookup[T any](s *ir.Store, sym ir.Value, kind ir.Kind) (T, error) {
	var zero T

	data, ok := s.Get(sym, kind)
	if !ok {
		return zero, &ir.MissingMetadataError{Sym: sym, Kind: kind}
	}

	typed, ok := data.(T)
	if !ok {
		return zero, &ir.InvariantError{
			Sym: sym,
			Detail: fmt.Sprintf(
				"%s metadata holds %T", kind, data),
		}
	}

	return typed, nil
}

func flag(s *ir.Store, sym ir.Value, kind ir.Kind) bool {
	data, ok := s.Get(sym, kind)
	if !ok {
		return false
	}

	on, ok := data.(bool)

	return ok && on
}

func setFlag(s *ir.Store, sym ir.Value, kind ir.Kind, on bool) {
	if !on {
		s.Drop(sym, kind)
		return
	}

	s.Put(sym, kind, true)
}
