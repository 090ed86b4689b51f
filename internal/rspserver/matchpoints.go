package rspserver

import (
	"encoding/binary"
	"fmt"

	"github.com/mablinov/riscv-gdbserver/internal/matchpoint"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

// BreakInstr is the RV32 EBREAK instruction, used to overwrite memory for
// software breakpoints.
const BreakInstr uint32 = 0x00100073

// insertMatchpoint and removeMatchpoint handle 'Z'/'z'. The reference
// implementation's handlers begin with an unconditional empty-reply
// return, leaving software breakpoints unimplemented at the RSP layer even
// though the matchpoint table and instruction-patching logic exist below.
// We preserve that empty-reply contract exactly: GDB falls
// back to inserting its own breakpoints in memory. The save/patch/restore
// logic is implemented as insertSoftwareBreakpoint/removeSoftwareBreakpoint
// below and is exercised directly by tests, not reachable from the wire,
// matching the original's shape.
func (s *Server) insertMatchpoint() {
	s.replyEmpty()
}

func (s *Server) removeMatchpoint() {
	s.replyEmpty()
}

// insertSoftwareBreakpoint saves the instruction word at addr into the
// matchpoint table and overwrites it with BreakInstr.
func (s *Server) insertSoftwareBreakpoint(addr uint32) error {
	var buf [4]byte
	if n := s.cpu.Read(addr, buf[:]); n != 4 {
		return fmt.Errorf("failed to read memory when inserting breakpoint at 0x%x", addr)
	}
	instr := binary.LittleEndian.Uint32(buf[:])
	s.mpTab.Add(matchpoint.BPMemory, addr, instr)

	if s.flags.Get(traceflags.Break) {
		s.log.Break.Debugf("inserting breakpoint over instruction 0x%08x at 0x%08x", instr, addr)
	}

	binary.LittleEndian.PutUint32(buf[:], BreakInstr)
	if n := s.cpu.Write(addr, buf[:]); n != 4 {
		return fmt.Errorf("failed to write BREAK instruction at 0x%x", addr)
	}
	return nil
}

// removeSoftwareBreakpoint restores the instruction word saved at addr.
func (s *Server) removeSoftwareBreakpoint(addr uint32) error {
	instr, ok := s.mpTab.Remove(matchpoint.BPMemory, addr)
	if !ok {
		return fmt.Errorf("no software breakpoint recorded at 0x%x", addr)
	}

	if s.flags.Get(traceflags.Break) {
		s.log.Break.Debugf("putting back instruction 0x%08x at 0x%08x", instr, addr)
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], instr)
	if n := s.cpu.Write(addr, buf[:]); n != 4 {
		return fmt.Errorf("failed to write memory removing breakpoint at 0x%x", addr)
	}
	return nil
}
