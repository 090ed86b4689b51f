// Package rsplog builds logrus loggers gated by the server's trace-flag
// registry, one per concern, mirroring delve's pkg/logflags package:
// a flag that is off drops the logger to PanicLevel so nothing is emitted.
// Flipping the flag at runtime (via "monitor set debug ...") changes the
// logger's level on the next call to Refresh.
package rsplog

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

// Loggers holds one gated logger per trace category, plus an ungated
// logger for conditions that must always be visible (fatal aborts,
// startup banners).
type Loggers struct {
	flags *traceflags.Flags

	Wire    *logrus.Logger // rsp
	Break   *logrus.Logger // break
	Exec    *logrus.Logger // exec
	Always  *logrus.Logger // never gated
}

func newBase(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   isatty.IsTerminal(os.Stderr.Fd()),
		DisableColors: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	return l
}

// New builds the server's loggers against the given flag registry and
// writes to a TTY-aware colorable stderr, matching the levels the flags
// hold at construction time.
func New(flags *traceflags.Flags) *Loggers {
	out := colorable.NewColorable(os.Stderr)
	l := &Loggers{
		flags:  flags,
		Wire:   newBase(out),
		Break:  newBase(out),
		Exec:   newBase(out),
		Always: newBase(out),
	}
	l.Refresh()
	return l
}

// Refresh re-reads the flag registry and updates each gated logger's
// level. Call after any "monitor set debug ..." mutation.
func (l *Loggers) Refresh() {
	setLevel(l.Wire, l.flags.Get(traceflags.Rsp))
	setLevel(l.Break, l.flags.Get(traceflags.Break))
	setLevel(l.Exec, l.flags.Get(traceflags.Exec))
	l.Always.SetLevel(logrus.InfoLevel)
}

func setLevel(l *logrus.Logger, enabled bool) {
	if enabled {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.PanicLevel)
	}
}
