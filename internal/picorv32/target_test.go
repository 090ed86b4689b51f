package picorv32

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mablinov/riscv-gdbserver/internal/target"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

func TestResumeStepAdvancesOneInstruction(t *testing.T) {
	p := New(nil, nil)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], encodeI(0x13, 1, 0x0, 0, 1)) // addi x1, x0, 1
	p.LoadMemory(0, buf[:])

	res := p.Resume(target.ResumeStep, 0)
	assert.Equal(t, target.ResumeStepped, res)

	v, _ := p.ReadRegister(1)
	assert.Equal(t, uint64(1), v)
}

func TestResumeStepEcall(t *testing.T) {
	p := New(nil, nil)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 0x73) // ecall
	p.LoadMemory(0, buf[:])

	res := p.Resume(target.ResumeStep, 0)
	assert.Equal(t, target.ResumeSyscall, res)
}

func TestResumeContinueUntilEbreak(t *testing.T) {
	p := New(nil, nil)
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], encodeI(0x13, 1, 0x0, 0, 1)) // addi x1, x0, 1
	binary.LittleEndian.PutUint32(buf[4:8], 0x00100073)                 // ebreak
	p.LoadMemory(0, buf[:])

	res := p.Resume(target.ResumeContinue, time.Second)
	assert.Equal(t, target.ResumeInterrupted, res)
}

func TestResumeStopIsSuccess(t *testing.T) {
	p := New(nil, nil)
	assert.Equal(t, target.ResumeSuccess, p.Resume(target.ResumeStop, 0))
}

func TestReadWriteRegisterPC(t *testing.T) {
	p := New(nil, nil)
	n := p.WriteRegister(pcRegNum, 0x1000)
	assert.Equal(t, 4, n)
	v, sz := p.ReadRegister(pcRegNum)
	assert.Equal(t, 4, sz)
	assert.Equal(t, uint64(0x1000), v)
}

func TestReadRegisterOutOfRange(t *testing.T) {
	p := New(nil, nil)
	_, sz := p.ReadRegister(99)
	assert.Equal(t, -1, sz)
}

func TestReadWriteMemory(t *testing.T) {
	p := New(nil, nil)
	n := p.Write(0x10, []byte{1, 2, 3, 4})
	require.Equal(t, 4, n)

	out := make([]byte, 4)
	n = p.Read(0x10, out)
	require.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestResetClearsState(t *testing.T) {
	p := New(nil, nil)
	p.WriteRegister(1, 42)
	p.Reset(target.ResetWarm)
	v, _ := p.ReadRegister(1)
	assert.Equal(t, uint64(0), v)
}

func TestCommandRegsDumpsRegisterFile(t *testing.T) {
	p := New(nil, nil)
	p.WriteRegister(1, 0x42)
	var buf bytes.Buffer
	ok := p.Command("regs", &buf)
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "x1  = 0x00000042")
	assert.Contains(t, buf.String(), "pc  = 0x00000000")
}

func TestCommandUnknownReturnsFalse(t *testing.T) {
	p := New(nil, nil)
	var buf bytes.Buffer
	ok := p.Command("nonsense", &buf)
	assert.False(t, ok)
}

func TestCycleAndInstrCountsAdvance(t *testing.T) {
	p := New(nil, nil)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], encodeI(0x13, 1, 0x0, 0, 1))
	p.LoadMemory(0, buf[:])
	p.Resume(target.ResumeStep, 0)
	assert.Equal(t, uint64(1), p.CycleCount())
	assert.Equal(t, uint64(1), p.InstrCount())
}

func TestLogIfTracedDoesNotPanicWithoutFlags(t *testing.T) {
	p := New(nil, nil)
	assert.NotPanics(t, func() { p.logIfTraced("test %d", 1) })
}

func TestLogIfTracedRespectsExecFlag(t *testing.T) {
	var out bytes.Buffer
	base := logrus.New()
	base.SetOutput(&out)
	base.SetLevel(logrus.DebugLevel)

	flags := traceflags.New(map[string]bool{traceflags.Exec: true})
	p := New(flags, logrus.NewEntry(base))
	assert.NotPanics(t, func() { p.logIfTraced("test %d", 1) })
	assert.Contains(t, out.String(), "test 1")

	out.Reset()
	flags.Set(traceflags.Exec, false)
	p.logIfTraced("test %d", 2)
	assert.Empty(t, out.String())
}
