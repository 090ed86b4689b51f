package picorv32

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mablinov/riscv-gdbserver/internal/target"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

// Picorv32 adapts the cpu interpreter to target.Target. It is the
// bundled reference target used by the "serve" command's default
// configuration, in place of the reference implementation's Verilator
// co-simulation.
type Picorv32 struct {
	impl  *cpu
	log   *logrus.Entry
	flags *traceflags.Flags
}

// New constructs a Picorv32 target with a zeroed register file and
// memory image.
func New(flags *traceflags.Flags, log *logrus.Entry) *Picorv32 {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Picorv32{impl: newCPU(), log: log, flags: flags}
}

// LoadMemory copies data into the guest address space starting at addr,
// for use by callers that construct a target outside of the GDB 'M'/'X'
// write path (e.g. preloading a test binary).
func (p *Picorv32) LoadMemory(addr uint32, data []byte) {
	copy(p.impl.mem[addr:], data)
}

func (p *Picorv32) Resume(typ target.ResumeType, slice time.Duration) target.ResumeResult {
	switch typ {
	case target.ResumeStop:
		return target.ResumeSuccess

	case target.ResumeStep:
		switch p.impl.step() {
		case stepEcall:
			return target.ResumeSyscall
		case stepIllegal:
			p.logIfTraced("illegal instruction at 0x%08x", p.impl.pc)
			return target.ResumeStepped
		default:
			return target.ResumeStepped
		}

	case target.ResumeContinue:
		deadline := time.Now().Add(slice)
		for {
			for i := 0; i < runSamplePeriod; i++ {
				switch p.impl.step() {
				case stepEcall:
					return target.ResumeSyscall
				case stepEbreak:
					return target.ResumeInterrupted
				}
			}
			if slice <= 0 || time.Now().After(deadline) {
				return target.ResumeTimeout
			}
		}
	}
	return target.ResumeNone
}

func (p *Picorv32) Reset(target.ResetType) target.ResumeResult {
	p.impl = newCPU()
	return target.ResumeSuccess
}

func (p *Picorv32) Terminate() target.ResumeResult {
	return target.ResumeSuccess
}

func (p *Picorv32) ReadRegister(id int) (value uint64, byteSize int) {
	if id == pcRegNum {
		return uint64(p.impl.pc), 4
	}
	if id < 0 || id >= 32 {
		return 0, -1
	}
	return uint64(p.impl.readReg(id)), 4
}

func (p *Picorv32) WriteRegister(id int, value uint64) (byteSize int) {
	if id == pcRegNum {
		p.impl.pc = uint32(value)
		return 4
	}
	if id < 0 || id >= 32 {
		return -1
	}
	p.impl.writeReg(id, uint32(value))
	return 4
}

func (p *Picorv32) Read(addr uint32, buf []byte) (n int) {
	for i := range buf {
		buf[i] = p.impl.readMem8(addr + uint32(i))
	}
	return len(buf)
}

func (p *Picorv32) Write(addr uint32, buf []byte) (n int) {
	for i, b := range buf {
		p.impl.writeMem8(addr+uint32(i), b)
	}
	return len(buf)
}

func (p *Picorv32) CycleCount() uint64 { return p.impl.cycles }
func (p *Picorv32) InstrCount() uint64 { return p.impl.instrs }

// Command supports a single target-specific monitor command, "regs",
// that dumps the register file. Everything else is unrecognized, which
// mirrors the reference implementation's wrapper (command() there is a
// stub that always returns false).
func (p *Picorv32) Command(cmd string, out io.Writer) bool {
	if strings.TrimSpace(cmd) != "regs" {
		return false
	}
	for i := 0; i < 32; i++ {
		fmt.Fprintf(out, "x%-2d = 0x%08x\n", i, p.impl.readReg(i))
	}
	fmt.Fprintf(out, "pc  = 0x%08x\n", p.impl.pc)
	return true
}

func (p *Picorv32) logIfTraced(format string, args ...interface{}) {
	if p.flags != nil && p.flags.Get(traceflags.Exec) {
		p.log.Debugf(format, args...)
	}
}
