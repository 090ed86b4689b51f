// Package matchpoint tracks the instruction words software breakpoints
// overwrite, so they can be restored when the breakpoint is removed.
package matchpoint

// Kind is the protocol-visible matchpoint type, the leading digit of a
// Z/z RSP packet.
type Kind int

const (
	BPMemory Kind = iota
	BPHardware
	WPWrite
	WPRead
	WPAccess
)

type key struct {
	kind Kind
	addr uint32
}

// Table maps (kind, address) to the instruction word saved when the
// matchpoint was inserted. Keys are unique; Add silently overwrites an
// existing entry, since the protocol allows GDB to re-insert a breakpoint
// it already set.
type Table struct {
	entries map[key]uint32
}

// NewTable returns an empty matchpoint table.
func NewTable() *Table {
	return &Table{entries: make(map[key]uint32)}
}

// Add records savedInstr under (kind, addr), overwriting any prior entry.
func (t *Table) Add(kind Kind, addr uint32, savedInstr uint32) {
	t.entries[key{kind, addr}] = savedInstr
}

// Remove deletes (kind, addr) and returns the saved instruction word
// atomically with the deletion. ok is false if no such entry existed.
func (t *Table) Remove(kind Kind, addr uint32) (savedInstr uint32, ok bool) {
	k := key{kind, addr}
	savedInstr, ok = t.entries[k]
	if ok {
		delete(t.entries, k)
	}
	return
}

// Lookup returns the saved instruction word for (kind, addr) without
// removing it.
func (t *Table) Lookup(kind Kind, addr uint32) (savedInstr uint32, ok bool) {
	savedInstr, ok = t.entries[key{kind, addr}]
	return
}

// Len reports how many matchpoints are currently tracked.
func (t *Table) Len() int { return len(t.entries) }
