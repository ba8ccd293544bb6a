package ir

import (
	"fmt"
	"log"
)

// A MissingMetadataError reports a lookup of metadata that was never written.
// It usually means an analysis pass ran out of order.
type MissingMetadataError struct {
	Sym  Value
	Kind Kind
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("%s has no %s metadata", e.Sym, e.Kind)
}

// An InvariantError reports metadata that is present but violates a structural
// rule of the analyses, such as a memory whose duplicates did not collapse to
// a single instance after unrolling.
type InvariantError struct {
	Sym    Value
	Detail string
}

func (e *InvariantError) Error() string {
	if !e.Sym.Valid() {
		return e.Detail
	}

	return fmt.Sprintf("%s: %s", e.Sym, e.Detail)
}

// An UnsupportedError reports a configuration the analyses recognize but
// deliberately refuse, such as a banking scheme that groups dimensions in a
// shape the offset calculation cannot express.
type UnsupportedError struct {
	Detail string
}

func (e *UnsupportedError) Error() string {
	return "unsupported: " + e.Detail
}

// Must panics when err is not nil. It converts a lookup that the caller knows
// cannot fail into a fatal error when that knowledge turns out to be wrong.
func Must(err error) {
	if err != nil {
		log.Panicf("ir: %s", err)
	}
}
