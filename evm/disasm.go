package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Instruction is a single decoded opcode with its immediate operand (push-family only).
type Instruction struct {
	PC      uint64
	Op      vm.OpCode
	Operand []byte
}

func (i Instruction) String() string {
	if len(i.Operand) == 0 {
		return fmt.Sprintf("%05d %v", i.PC, i.Op)
	}
	return fmt.Sprintf("%05d %v 0x%x", i.PC, i.Op, i.Operand)
}

// DecodeError is returned when a push operand runs past the end of the code.
type DecodeError struct {
	PC   uint64
	Op   vm.OpCode
	Want int
	Have int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("truncated bytecode: %v at pc %v needs %v operand bytes, %v left", e.Op, e.PC, e.Want, e.Have)
}

// pushSize returns the number of immediate bytes following op.
func pushSize(op vm.OpCode) int {
	if op >= vm.PUSH1 && op <= vm.PUSH32 {
		return int(op-vm.PUSH1) + 1
	}
	return 0
}

// Disassemble decodes raw EVM bytecode into its instruction stream.
// Unknown opcodes are kept as-is (their name renders as "opcode 0x.. not defined").
// On truncated input the instructions decoded so far are returned together with a *DecodeError.
func Disassemble(code []byte) ([]Instruction, error) {
	instrs := make([]Instruction, 0, len(code)/2)

	for pc := 0; pc < len(code); {
		op := vm.OpCode(code[pc])
		size := pushSize(op)

		instr := Instruction{
			PC: uint64(pc),
			Op: op,
		}

		if size > 0 {
			have := len(code) - pc - 1
			if have < size {
				return instrs, &DecodeError{
					PC:   uint64(pc),
					Op:   op,
					Want: size,
					Have: have,
				}
			}
			instr.Operand = code[pc+1 : pc+1+size]
		}

		instrs = append(instrs, instr)
		pc += 1 + size
	}

	return instrs, nil
}

// DisassembleHex decodes hex encoded bytecode, with or without 0x prefix.
func DisassembleHex(code string) ([]Instruction, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "0x") && !strings.HasPrefix(code, "0X") {
		code = "0x" + code
	}

	raw, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex: %w", err)
	}

	return Disassemble(raw)
}
