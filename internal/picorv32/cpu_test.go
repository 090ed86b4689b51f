package picorv32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeU(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xfffff000) | rd<<7 | opcode
}

func putInstr(c *cpu, addr uint32, instr uint32) {
	binary.LittleEndian.PutUint32(c.mem[addr:], instr)
}

func TestRegZeroAlwaysZero(t *testing.T) {
	c := newCPU()
	c.writeReg(0, 0xff)
	assert.Equal(t, uint32(0), c.readReg(0))
}

func TestAddi(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, encodeI(0x13, 1, 0x0, 0, 5)) // addi x1, x0, 5
	res := c.step()
	assert.Equal(t, stepOK, res)
	assert.Equal(t, uint32(5), c.readReg(1))
	assert.Equal(t, uint32(4), c.pc)
}

func TestLui(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, encodeU(0x37, 1, 0x12345000)) // lui x1, 0x12345
	c.step()
	assert.Equal(t, uint32(0x12345000), c.readReg(1))
}

func TestAuipc(t *testing.T) {
	c := newCPU()
	c.pc = 0x100
	putInstr(c, 0x100, encodeU(0x17, 1, 0x1000))
	c.step()
	assert.Equal(t, uint32(0x100+0x1000), c.readReg(1))
}

func TestAddRegisters(t *testing.T) {
	c := newCPU()
	c.writeReg(1, 10)
	c.writeReg(2, 20)
	putInstr(c, 0, encodeR(0x33, 3, 0x0, 1, 2, 0x00)) // add x3, x1, x2
	c.step()
	assert.Equal(t, uint32(30), c.readReg(3))
}

func TestSubRegisters(t *testing.T) {
	c := newCPU()
	c.writeReg(1, 30)
	c.writeReg(2, 20)
	putInstr(c, 0, encodeR(0x33, 3, 0x0, 1, 2, 0x20)) // sub x3, x1, x2
	c.step()
	assert.Equal(t, uint32(10), c.readReg(3))
}

func TestBranchEqualTaken(t *testing.T) {
	c := newCPU()
	c.writeReg(1, 5)
	c.writeReg(2, 5)
	// beq x1, x2, +8
	instr := uint32(0)
	instr |= (8 >> 12 & 0x1) << 31
	instr |= (8 >> 5 & 0x3f) << 25
	instr |= 2 << 20
	instr |= 1 << 15
	instr |= 0x0 << 12
	instr |= (8 >> 1 & 0xf) << 8
	instr |= (8 >> 11 & 0x1) << 7
	instr |= 0x63
	putInstr(c, 0, instr)
	c.step()
	assert.Equal(t, uint32(8), c.pc)
}

func TestLoadStoreWord(t *testing.T) {
	c := newCPU()
	c.writeReg(1, 100) // base addr
	c.writeReg(2, 0xdeadbeef)
	// sw x2, 0(x1), S-type encoding
	storeInstr := uint32(0)
	storeInstr |= (0 & 0x7f) << 25
	storeInstr |= 2 << 20
	storeInstr |= 1 << 15
	storeInstr |= 0x2 << 12
	storeInstr |= (0 & 0x1f) << 7
	storeInstr |= 0x23
	putInstr(c, 0, storeInstr)
	res := c.step()
	require.Equal(t, stepOK, res)
	assert.Equal(t, uint32(0xdeadbeef), c.readMem32(100))

	c.pc = 4
	putInstr(c, 4, encodeI(0x03, 3, 0x2, 1, 0)) // lw x3, 0(x1)
	c.step()
	assert.Equal(t, uint32(0xdeadbeef), c.readReg(3))
}

func TestJalSetsLinkAndPC(t *testing.T) {
	c := newCPU()
	// jal x1, +8
	instr := uint32(0)
	instr |= (8 >> 20 & 0x1) << 31
	instr |= (8 >> 1 & 0x3ff) << 21
	instr |= (8 >> 11 & 0x1) << 20
	instr |= (8 >> 12 & 0xff) << 12
	instr |= 1 << 7
	instr |= 0x6f
	putInstr(c, 0, instr)
	c.step()
	assert.Equal(t, uint32(4), c.readReg(1))
	assert.Equal(t, uint32(8), c.pc)
}

func TestEcallReturnsStepEcall(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, 0x73) // ecall
	res := c.step()
	assert.Equal(t, stepEcall, res)
	assert.Equal(t, uint32(4), c.pc)
}

func TestEbreakReturnsStepEbreak(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, 0x00100073) // ebreak
	res := c.step()
	assert.Equal(t, stepEbreak, res)
}

func TestIllegalInstruction(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, 0xffffffff)
	res := c.step()
	assert.Equal(t, stepIllegal, res)
}

func TestFenceIsNoop(t *testing.T) {
	c := newCPU()
	putInstr(c, 0, 0x0f)
	res := c.step()
	assert.Equal(t, stepOK, res)
	assert.Equal(t, uint32(4), c.pc)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int32(-1), signExtend(0xfff, 12))
	assert.Equal(t, int32(1), signExtend(0x1, 12))
}

func TestMemBoundsAreSafe(t *testing.T) {
	c := newCPU()
	assert.Equal(t, uint8(0), c.readMem8(memSize+100))
	c.writeMem8(memSize+100, 0xff) // must not panic
}
