package evm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector is a 4-byte function selector.
type Selector [4]byte

// SelectorOf computes the selector of a canonical function signature.
func SelectorOf(signature string) Selector {
	var sel Selector
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// Hex returns the selector as 8 lowercase hex chars without prefix.
func (s Selector) Hex() string {
	return hex.EncodeToString(s[:])
}

// ExtractSelectors collects the unique PUSH4 operands of an instruction stream.
// The result is sorted so repeated runs over the same code produce the same order.
func ExtractSelectors(instrs []Instruction) []Selector {
	seen := map[Selector]bool{}
	selectors := []Selector{}

	for _, instr := range instrs {
		if instr.Op != vm.PUSH4 || len(instr.Operand) != 4 {
			continue
		}

		var sel Selector
		copy(sel[:], instr.Operand)
		if seen[sel] {
			continue
		}

		seen[sel] = true
		selectors = append(selectors, sel)
	}

	slices.SortFunc(selectors, func(a, b Selector) int {
		return bytes.Compare(a[:], b[:])
	})

	return selectors
}

// SelectorsFromCode disassembles code and extracts its selectors.
// Truncated code yields no selectors; the decode error is returned for logging only.
func SelectorsFromCode(code []byte) ([]Selector, error) {
	instrs, err := Disassemble(code)
	if err != nil {
		return []Selector{}, err
	}

	return ExtractSelectors(instrs), nil
}
