// Package traceflags implements the named boolean flag registry exposed to
// GDB through "monitor set debug <flag> <bool>" / "monitor show debug".
package traceflags

import "sort"

// Well-known flag names. Rsp gates wire-level packet tracing; Break gates
// matchpoint insert/remove tracing; Exec gates continue/step/syscall
// tracing. RemoteDebug is a legacy alias for Rsp, kept because the
// reference implementation's monitor help text documents "set
// remote-debug" as a separate-looking command even though it toggles the
// same underlying flag.
const (
	Rsp         = "rsp"
	Break       = "break"
	Exec        = "exec"
	RemoteDebug = "remote-debug"
)

var aliases = map[string]string{
	RemoteDebug: Rsp,
}

// Flags is a small registry of named boolean flags, queryable and
// iterable in a stable (sorted) order.
type Flags struct {
	values map[string]bool
}

// New returns a registry seeded with the server's well-known flags, all
// false, then overridden by initial.
func New(initial map[string]bool) *Flags {
	f := &Flags{values: map[string]bool{
		Rsp:   false,
		Break: false,
		Exec:  false,
	}}
	for k, v := range initial {
		f.Set(k, v)
	}
	return f
}

func canonical(name string) string {
	if target, ok := aliases[name]; ok {
		return target
	}
	return name
}

// IsFlag reports whether name (or an alias of it) is a known flag.
func (f *Flags) IsFlag(name string) bool {
	_, ok := f.values[canonical(name)]
	return ok
}

// Get returns the current value of a flag. False if name is unknown.
func (f *Flags) Get(name string) bool {
	return f.values[canonical(name)]
}

// Set assigns a flag's value. No-op if name (and any alias target) is
// unknown.
func (f *Flags) Set(name string, val bool) {
	name = canonical(name)
	if _, ok := f.values[name]; ok {
		f.values[name] = val
	}
}

// Names returns the known flag names (canonical, not aliases) in sorted
// order, for "monitor show debug" with no argument.
func (f *Flags) Names() []string {
	out := make([]string, 0, len(f.values))
	for k := range f.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
