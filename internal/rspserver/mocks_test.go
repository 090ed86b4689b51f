package rspserver

import (
	"io"
	"time"

	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
	"github.com/mablinov/riscv-gdbserver/internal/target"
)

// mockConn is a rspconn.Connection test double that records outbound
// packets instead of writing them to a socket.
type mockConn struct {
	outbox       [][]byte
	connected    bool
	closed       bool
	breakPending bool

	// breakQueue, if non-empty, overrides breakPending: each HaveBreak
	// call pops one value, letting a test script a break arriving after
	// an earlier poll already returned false.
	breakQueue []bool
}

func (m *mockConn) Connect() bool { m.connected = true; return true }
func (m *mockConn) Close()        { m.closed = true; m.connected = false }
func (m *mockConn) IsConnected() bool { return m.connected }
func (m *mockConn) GetPkt(pkt *rsppkt.Packet) bool { return false }

func (m *mockConn) PutPkt(pkt *rsppkt.Packet) {
	data := append([]byte{}, pkt.Data()[:pkt.Len()]...)
	m.outbox = append(m.outbox, data)
}

func (m *mockConn) HaveBreak() bool {
	if len(m.breakQueue) > 0 {
		b := m.breakQueue[0]
		m.breakQueue = m.breakQueue[1:]
		return b
	}
	b := m.breakPending
	m.breakPending = false
	return b
}

func (m *mockConn) lastReply() string {
	if len(m.outbox) == 0 {
		return ""
	}
	return string(m.outbox[len(m.outbox)-1])
}

// mockTarget is a target.Target test double with a scripted queue of
// Resume results, a byte-addressable memory map and a 33-slot register
// file (32 GPRs plus PC at target.PCRegNum).
type mockTarget struct {
	regs [33]uint64
	mem  map[uint32]byte

	resumeQueue  []target.ResumeResult
	resetResult  target.ResumeResult
	cycles, instrs uint64

	cmdOut string
	cmdOK  bool
}

func newMockTarget() *mockTarget {
	return &mockTarget{mem: make(map[uint32]byte), resetResult: target.ResumeSuccess}
}

func (m *mockTarget) Resume(typ target.ResumeType, slice time.Duration) target.ResumeResult {
	if len(m.resumeQueue) == 0 {
		return target.ResumeSuccess
	}
	r := m.resumeQueue[0]
	m.resumeQueue = m.resumeQueue[1:]
	return r
}

func (m *mockTarget) Reset(target.ResetType) target.ResumeResult { return m.resetResult }
func (m *mockTarget) Terminate() target.ResumeResult             { return target.ResumeSuccess }

func (m *mockTarget) ReadRegister(id int) (value uint64, byteSize int) {
	if id < 0 || id >= len(m.regs) {
		return 0, -1
	}
	return m.regs[id], 4
}

func (m *mockTarget) WriteRegister(id int, value uint64) (byteSize int) {
	if id < 0 || id >= len(m.regs) {
		return -1
	}
	m.regs[id] = value
	return 4
}

func (m *mockTarget) Read(addr uint32, buf []byte) (n int) {
	for i := range buf {
		buf[i] = m.mem[addr+uint32(i)]
	}
	return len(buf)
}

func (m *mockTarget) Write(addr uint32, buf []byte) (n int) {
	for i, b := range buf {
		m.mem[addr+uint32(i)] = b
	}
	return len(buf)
}

func (m *mockTarget) CycleCount() uint64 { return m.cycles }
func (m *mockTarget) InstrCount() uint64 { return m.instrs }

func (m *mockTarget) Command(cmd string, out io.Writer) bool {
	if !m.cmdOK {
		return false
	}
	io.WriteString(out, m.cmdOut)
	return true
}

func newTestServer(conn *mockConn, cpu *mockTarget) *Server {
	return New(conn, cpu, Config{})
}

func dispatchWith(s *Server, payload string) {
	s.pkt.PackStr(payload)
	s.dispatch()
}
