package evm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected []Instruction
	}{
		{
			name:     "empty code",
			code:     "0x",
			expected: []Instruction{},
		},
		{
			name: "push4 followed by eq",
			code: "0x63a9059cbb14",
			expected: []Instruction{
				{PC: 0, Op: vm.PUSH4, Operand: []byte{0xa9, 0x05, 0x9c, 0xbb}},
				{PC: 5, Op: vm.EQ},
			},
		},
		{
			name: "push operand is not decoded as opcode",
			code: "0x606300",
			expected: []Instruction{
				{PC: 0, Op: vm.PUSH1, Operand: []byte{0x63}},
				{PC: 2, Op: vm.STOP},
			},
		},
		{
			name: "push0 has no operand",
			code: "5f5f01",
			expected: []Instruction{
				{PC: 0, Op: vm.PUSH0},
				{PC: 1, Op: vm.PUSH0},
				{PC: 2, Op: vm.ADD},
			},
		},
		{
			name: "push32 at end of code",
			code: "0x7f" + "11223344556677889900aabbccddeeff11223344556677889900aabbccddeeff",
			expected: []Instruction{
				{PC: 0, Op: vm.PUSH32, Operand: []byte{
					0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
					0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrs, err := DisassembleHex(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, instrs)
		})
	}
}

func TestDisassembleTruncated(t *testing.T) {
	instrs, err := DisassembleHex("0x600163aabb")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, uint64(2), decodeErr.PC)
	assert.Equal(t, vm.PUSH4, decodeErr.Op)
	assert.Equal(t, 4, decodeErr.Want)
	assert.Equal(t, 2, decodeErr.Have)

	// prefix decoded before the truncated push is kept
	assert.Len(t, instrs, 1)
	assert.Equal(t, vm.PUSH1, instrs[0].Op)
}

func TestDisassembleHexInvalid(t *testing.T) {
	_, err := DisassembleHex("0xzz")
	assert.Error(t, err)

	_, err = DisassembleHex("0x123")
	assert.Error(t, err)
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "00000 PUSH4 0xa9059cbb", Instruction{Op: vm.PUSH4, Operand: []byte{0xa9, 0x05, 0x9c, 0xbb}}.String())
	assert.Equal(t, "00005 EQ", Instruction{PC: 5, Op: vm.EQ}.String())
}
