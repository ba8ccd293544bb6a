// Package ir carries the value handles and the per-compilation metadata store
// that the memory analyses read and write. The front end owns the program
// graph; this package only names its nodes and remembers what the analyses
// decided about them.
package ir

import "strconv"

// A Value identifies one node of the staged program graph. Handles are dense
// small integers assigned by the front end. The analyses never mint new
// values, they only attach metadata to existing ones.
type Value int

// None marks an empty value slot, such as the pipeline scope of a memory that
// is not buffered.
const None Value = -1

// Valid reports whether v refers to an actual program node.
func (v Value) Valid() bool {
	return v >= 0
}

func (v Value) String() string {
	if !v.Valid() {
		return "v?"
	}

	return "v" + strconv.Itoa(int(v))
}
