package vm

import "fmt"

// Opcode is a single grid byte interpreted as an instruction.
type Opcode byte

const (
	// ========================================================================
	// Literals
	// ========================================================================

	OpPush0 Opcode = '0'
	OpPush9 Opcode = '9'

	// ========================================================================
	// Arithmetic and logic
	// ========================================================================

	OpAdd     Opcode = '+' // Pop a, b; push a+b
	OpSub     Opcode = '-' // Pop a, b; push b-a
	OpMul     Opcode = '*' // Pop a, b; push a*b
	OpDiv     Opcode = '/' // Pop a, b; push b/a (halt if a == 0)
	OpMod     Opcode = '%' // Pop a, b; push b%a (halt if a == 0)
	OpNot     Opcode = '!' // Pop v; push 1 if v == 0 else 0
	OpGreater Opcode = '`' // Pop a, b; push 1 if b > a else 0

	// ========================================================================
	// Control flow
	// ========================================================================

	OpRight    Opcode = '>'
	OpLeft     Opcode = '<'
	OpUp       Opcode = '^'
	OpDown     Opcode = 'v'
	OpRandom   Opcode = '?'
	OpHorizIf  Opcode = '_' // Pop v; Right if v == 0 else Left
	OpVertIf   Opcode = '|' // Pop v; Down if v == 0 else Up
	OpBridge   Opcode = '#' // Skip the next cell
	OpEnd      Opcode = '@'
	OpStringOn Opcode = '"'

	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpDup  Opcode = ':'
	OpSwap Opcode = '\\'
	OpPop  Opcode = '$'

	// ========================================================================
	// Input / output
	// ========================================================================

	OpOutInt  Opcode = '.'
	OpOutChar Opcode = ','
	OpInInt   Opcode = '&'
	OpInChar  Opcode = '~'

	// ========================================================================
	// Grid access
	// ========================================================================

	OpPut Opcode = 'p' // Pop y, x, v; grid(x, y) = v
	OpGet Opcode = 'g' // Pop y, x; push grid(x, y)

	OpNop Opcode = ' '
)

// OpcodeInfo describes an instruction for tooling (debug output, hover docs).
type OpcodeInfo struct {
	Name      string // Short mnemonic
	StackPop  int    // Values popped
	StackPush int    // Values pushed (-1 = variable)
	Doc       string // One-line description
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpAdd:     {"ADD", 2, 1, "Pop a and b, push a+b"},
	OpSub:     {"SUB", 2, 1, "Pop a and b, push b-a"},
	OpMul:     {"MUL", 2, 1, "Pop a and b, push a*b"},
	OpDiv:     {"DIV", 2, 1, "Pop a and b, push b/a truncated toward zero; halts when a is 0"},
	OpMod:     {"MOD", 2, 1, "Pop a and b, push b%a with the sign of b; halts when a is 0"},
	OpNot:     {"NOT", 1, 1, "Pop v, push 1 if v is 0, otherwise 0"},
	OpGreater: {"GREATER", 2, 1, "Pop a and b, push 1 if b > a, otherwise 0"},

	OpRight:    {"RIGHT", 0, 0, "Move right"},
	OpLeft:     {"LEFT", 0, 0, "Move left"},
	OpUp:       {"UP", 0, 0, "Move up"},
	OpDown:     {"DOWN", 0, 0, "Move down"},
	OpRandom:   {"RANDOM", 0, 0, "Move in a random cardinal direction"},
	OpHorizIf:  {"HORIZ_IF", 1, 0, "Pop v, move right if v is 0, otherwise left"},
	OpVertIf:   {"VERT_IF", 1, 0, "Pop v, move down if v is 0, otherwise up"},
	OpBridge:   {"BRIDGE", 0, 0, "Skip the next cell"},
	OpEnd:      {"END", 0, 0, "End the program"},
	OpStringOn: {"STRING", 0, -1, "Toggle string mode: push each cell's byte until the next \""},

	OpDup:  {"DUP", 1, 2, "Duplicate the top value"},
	OpSwap: {"SWAP", 2, 2, "Swap the top two values"},
	OpPop:  {"POP", 1, 0, "Pop and discard the top value"},

	OpOutInt:  {"OUT_INT", 1, 0, "Pop v, write it as a decimal number followed by a space"},
	OpOutChar: {"OUT_CHAR", 1, 0, "Pop v, write it as a single byte"},
	OpInInt:   {"IN_INT", 0, 1, "Read a line and push it as an integer"},
	OpInChar:  {"IN_CHAR", 0, 1, "Read a byte and push it; nothing is pushed at end of input"},

	OpPut: {"PUT", 3, 0, "Pop y, x and v, store v as a byte at (x, y)"},
	OpGet: {"GET", 2, 1, "Pop y and x, push the byte at (x, y)"},

	OpNop: {"NOP", 0, 0, "No operation"},
}

func init() {
	for d := OpPush0; d <= OpPush9; d++ {
		opcodeInfoTable[d] = OpcodeInfo{
			Name:      fmt.Sprintf("PUSH_%c", byte(d)),
			StackPush: 1,
			Doc:       fmt.Sprintf("Push %c", byte(d)),
		}
	}
}

// GetOpcodeInfo returns metadata for an opcode.
// Unrecognized bytes report as no-ops named UNKNOWN(0xHH).
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Doc: "No operation"}
}

// IsKnown reports whether op is part of the instruction set.
func (op Opcode) IsKnown() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// AllOpcodes returns every defined opcode.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
