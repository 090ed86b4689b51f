package rsppkt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVal2HexLittleEndian(t *testing.T) {
	assert.Equal(t, "78563412", Val2Hex(0x12345678, 4, LittleEndian))
}

func TestVal2HexBigEndian(t *testing.T) {
	assert.Equal(t, "12345678", Val2Hex(0x12345678, 4, BigEndian))
}

func TestHex2ValRoundTrip(t *testing.T) {
	s := Val2Hex(0xdeadbeef, 4, LittleEndian)
	v, err := Hex2Val(s, 4, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), v)
}

func TestHex2ValShortInput(t *testing.T) {
	_, err := Hex2Val("ab", 4, LittleEndian)
	assert.Error(t, err)
}

func TestHex2ValBadDigit(t *testing.T) {
	_, err := Hex2Val("zz112233", 4, LittleEndian)
	assert.Error(t, err)
}

func TestHex2AsciiAscii2HexRoundTrip(t *testing.T) {
	s := Ascii2Hex("reset cold")
	out, err := Hex2Ascii(s)
	require.NoError(t, err)
	assert.Equal(t, "reset cold", out)
}

func TestHex2AsciiOddLength(t *testing.T) {
	_, err := Hex2Ascii("abc")
	assert.Error(t, err)
}

func TestCharHexRoundTrip(t *testing.T) {
	for n := 0; n < 16; n++ {
		c := Hex2Char(uint8(n))
		assert.Equal(t, n, Char2Hex(c))
	}
}

func TestChar2HexInvalid(t *testing.T) {
	assert.Equal(t, -1, Char2Hex('z'))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"debug", "rsp", "1"}, Split("  debug   rsp\t1\n"))
	assert.Nil(t, Split("   "))
}

func TestParseHexUint32(t *testing.T) {
	v, err := ParseHexUint32("1000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), v)
}

func TestRspUnescape(t *testing.T) {
	data := []byte{'a', '}', 0x23 ^ 0x20, 'b'}
	n := RspUnescape(data)
	assert.Equal(t, []byte{'a', 0x23, 'b'}, data[:n])
}
