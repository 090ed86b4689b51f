// Package rspserver implements the RSP packet dispatcher and
// execution-control state machine that front a target.Target, translating
// GDB requests into target operations and target events into stop-replies.
package rspserver

import (
	"io"
	"os"

	"github.com/mablinov/riscv-gdbserver/internal/matchpoint"
	"github.com/mablinov/riscv-gdbserver/internal/rsplog"
	"github.com/mablinov/riscv-gdbserver/internal/rspconn"
	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
	"github.com/mablinov/riscv-gdbserver/internal/target"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

// DummyTID is the only thread id this stub ever reports.
const DummyTID = 1

// KillBehavior selects what happens on a GDB 'k' (kill) packet.
type KillBehavior int

const (
	ExitOnKill KillBehavior = iota
	ResetOnKill
)

// SyscallContinuation records which resume mode should be re-entered once
// the pending semihosted syscall's F-reply arrives.
type SyscallContinuation int

const (
	SyscallNonePending SyscallContinuation = iota
	SyscallFinishStep
	SyscallFinishContinue
)

// Config is the construction-time, immutable configuration for a Server.
type Config struct {
	BufSize        int
	InitialTimeout int64 // seconds; 0 means unbounded
	KillBehavior   KillBehavior
	InitialFlags   map[string]bool

	// Flags, when set, is used directly instead of building a fresh
	// registry from InitialFlags. Lets a caller share one *traceflags.Flags
	// instance between the Server and a Target constructed ahead of it, so
	// "monitor set debug exec" toggles the target's own tracing too.
	Flags *traceflags.Flags
}

// Server is the RSP server core: the packet dispatcher, execution-control
// loop, query/monitor engine and matchpoint bookkeeping. It owns no
// transport or CPU state of its own beyond what's listed here; Connection
// and Target are injected collaborators.
type Server struct {
	conn   rspconn.Connection
	cpu    target.Target
	flags  *traceflags.Flags
	log    *rsplog.Loggers
	pkt    *rsppkt.Packet
	mpTab  *matchpoint.Table

	killBehavior KillBehavior

	timeoutSeconds int64
	exitRequested  bool
	syscallCont    SyscallContinuation

	// lastSignal is what '?' reports; it starts as TRAP so that an
	// initial status query before any resume still gets a sane answer.
	lastSignal target.Signal

	// stdout is where "monitor echo" writes; overridable for tests.
	stdout io.Writer
}

// SetStdout overrides the writer "monitor echo" writes to. Intended for
// tests; production callers can leave the os.Stdout default in place.
func (s *Server) SetStdout(w io.Writer) { s.stdout = w }

// Flags returns the server's trace-flag registry, so a caller can wire the
// same "monitor set debug <flag>" toggles a client controls over the wire
// into other components (e.g. the target's own debug logging) that were
// constructed before the Server.
func (s *Server) Flags() *traceflags.Flags { return s.flags }

// New constructs a Server. cfg may be the zero value, in which case
// sensible defaults (4096-byte packets, unbounded timeout, exit on kill)
// are used.
func New(conn rspconn.Connection, cpu target.Target, cfg Config) *Server {
	bufSize := cfg.BufSize
	if bufSize <= 0 {
		bufSize = rsppkt.DefaultBufSize
	}
	flags := cfg.Flags
	if flags == nil {
		flags = traceflags.New(cfg.InitialFlags)
	}
	return &Server{
		conn:           conn,
		cpu:            cpu,
		flags:          flags,
		log:            rsplog.New(flags),
		pkt:            rsppkt.New(bufSize),
		mpTab:          matchpoint.NewTable(),
		killBehavior:   cfg.KillBehavior,
		timeoutSeconds: cfg.InitialTimeout,
		syscallCont:    SyscallNonePending,
		lastSignal:     target.SignalTrap,
		stdout:         os.Stdout,
	}
}

// Serve is the top-level server loop: accept/reconnect, dispatch one
// packet at a time, until an "exit" monitor command or an unrecoverable
// connect failure. It returns nil on orderly shutdown.
func (s *Server) Serve() error {
	for !s.exitRequested {
		for !s.conn.IsConnected() {
			if !s.conn.Connect() {
				s.log.Always.Error("unable to establish connection: aborting")
				return errConnectFailed
			}
			// A stale continuation from a prior session must not
			// leak into this one.
			s.syscallCont = SyscallNonePending
		}
		s.handleOneRequest()
	}
	return nil
}

var errConnectFailed = serverError("connection failed")

type serverError string

func (e serverError) Error() string { return string(e) }

func (s *Server) handleOneRequest() {
	if !s.conn.GetPkt(s.pkt) {
		s.conn.Close()
		return
	}
	s.dispatch()
}

// dispatch switches on the first byte of the received packet. Handlers
// are free to send zero, one or several
// packets (the syscall round-trip and continue/step paths send exactly
// one stop-reply once the target halts or a syscall is requested).
func (s *Server) dispatch() {
	data := s.pkt.Data()[:s.pkt.Len()]
	if len(data) == 0 {
		s.replyEmpty()
		return
	}

	switch data[0] {
	case '!':
		s.replyOK()
	case '?':
		s.reportLastStop()
	case 'A', 'b', 'B', 'd', 'r', 't':
		s.handleDeprecated(data[0])
	case 'c', 'C':
		s.cmdContinue()
	case 'D':
		s.replyOK()
		s.conn.Close()
	case 'F':
		s.syscallReply()
	case 'g':
		s.readAllRegs()
	case 'G':
		s.writeAllRegs()
	case 'H', 'T':
		s.replyOK()
	case 'i', 'I':
		s.reportException(s.lastSignal)
	case 'k':
		s.cmdKill()
	case 'm':
		s.readMem()
	case 'M':
		s.writeMem()
	case 'X':
		s.writeMemBin()
	case 'p':
		s.readReg()
	case 'P':
		s.writeReg()
	case 'q':
		s.query()
	case 'Q':
		s.set()
	case 'R':
		// Restart, accepted silently: no reply defined.
	case 's', 'S':
		s.cmdSingleStep()
	case 'v':
		s.replyEmpty()
	case 'z':
		s.removeMatchpoint()
	case 'Z':
		s.insertMatchpoint()
	default:
		s.log.Always.Warnf("unknown RSP request %q", string(data))
		s.replyEmpty()
	}
}

func (s *Server) handleDeprecated(b byte) {
	switch b {
	case 'A':
		s.log.Always.Warn("RSP 'A' packet not supported: ignored")
		s.pkt.PackStr("E01")
		s.conn.PutPkt(s.pkt)
	case 'b':
		s.log.Always.Warn("RSP 'b' packet is deprecated and not supported: ignored")
	case 'B':
		s.log.Always.Warn("RSP 'B' packet is deprecated (use 'Z'/'z' packets instead): ignored")
	case 'd':
		s.log.Always.Warn("RSP 'd' packet is deprecated (define a 'Q' packet instead): ignored")
	case 'r':
		s.log.Always.Warn("RSP 'r' packet is deprecated (use 'R' packet instead): ignored")
	case 't':
		s.log.Always.Warn("RSP 't' packet not supported: ignored")
	}
}

func (s *Server) cmdKill() {
	switch s.killBehavior {
	case ExitOnKill:
		s.exitRequested = true
	case ResetOnKill:
		// Intentionally a no-op: we don't actually reset on kill,
		// matching the reference implementation's behavior.
	}
}

func (s *Server) replyOK() {
	s.pkt.PackStr("OK")
	s.conn.PutPkt(s.pkt)
}

func (s *Server) replyEmpty() {
	s.pkt.PackStr("")
	s.conn.PutPkt(s.pkt)
}

func (s *Server) replyErr(code string) {
	s.pkt.PackStr(code)
	s.conn.PutPkt(s.pkt)
}

func (s *Server) reportLastStop() {
	s.reportException(s.lastSignal)
}

// reportException sends an "S<xx>" stop-reply and remembers it as the
// last signal, so a subsequent '?' repeats it.
func (s *Server) reportException(sig target.Signal) {
	s.lastSignal = sig
	s.pkt.PackStr("S" + rsppkt.Val2Hex(uint64(sig), 1, rsppkt.BigEndian))
	s.conn.PutPkt(s.pkt)
}
