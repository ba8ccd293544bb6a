package ir

import "log"

// Kind names one metadata entry type. Each value holds at most one entry per
// kind.
type Kind int

// Metadata kinds written by the banking analyses.
const (
	KindDuplicates Kind = iota
	KindPadding
	KindDispatch
	KindPorts
	KindReaders
	KindWriters
	KindAccumulator
	KindWriteBuffer
	KindNonBuffer
	KindResourceHint
	numKinds
)

var kindNames = [numKinds]string{
	"duplicates",
	"padding",
	"dispatch",
	"ports",
	"readers",
	"writers",
	"accumulator",
	"write buffer",
	"non buffer",
	"resource hint",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}

	return kindNames[k]
}

// A Store holds the metadata of every value in one compilation. Entries are
// keyed by value and kind. Writing an entry replaces any prior entry of the
// same kind on the same value.
//
// A Store is not safe for concurrent use. The analyses run single threaded
// over one compilation, matching the front end.
type Store struct {
	slots []map[Kind]any
}

// NewStore returns an empty metadata store.
func NewStore() *Store {
	return &Store{}
}

// Put attaches data of the given kind to v, replacing any prior entry.
func (s *Store) Put(v Value, k Kind, data any) {
	s.valueMustBeValid(v)

	if int(v) >= len(s.slots) {
		grown := make([]map[Kind]any, int(v)+1)
		copy(grown, s.slots)
		s.slots = grown
	}

	if s.slots[v] == nil {
		s.slots[v] = make(map[Kind]any)
	}

	s.slots[v][k] = data
}

// Get returns the entry of the given kind on v, if any.
func (s *Store) Get(v Value, k Kind) (any, bool) {
	if !v.Valid() || int(v) >= len(s.slots) || s.slots[v] == nil {
		return nil, false
	}

	data, ok := s.slots[v][k]

	return data, ok
}

// Drop removes the entry of the given kind from v. Dropping an absent entry
// is a no-op.
func (s *Store) Drop(v Value, k Kind) {
	if !v.Valid() || int(v) >= len(s.slots) || s.slots[v] == nil {
		return
	}

	delete(s.slots[v], k)
}

// NumValues returns the size of the handle space seen so far.
func (s *Store) NumValues() int {
	return len(s.slots)
}

func (s *Store) valueMustBeValid(v Value) {
	if !v.Valid() {
		log.Panicf("ir: cannot attach metadata to invalid value %s", v)
	}
}
