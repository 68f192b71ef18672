package vm

import (
	"fmt"
	"strings"
)

// Stack is the operand stack. Popping an empty stack yields 0; programs
// rely on this for implicit zero operands.
type Stack struct {
	values []int64
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push pushes v.
func (s *Stack) Push(v int64) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value, or 0 when empty.
func (s *Stack) Pop() int64 {
	if len(s.values) == 0 {
		return 0
	}
	last := len(s.values) - 1
	v := s.values[last]
	s.values = s.values[:last]
	return v
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (int64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[len(s.values)-1], true
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int {
	return len(s.values)
}

// DuplicateTop pushes a copy of the top value. It does nothing on an
// empty stack.
func (s *Stack) DuplicateTop() {
	if v, ok := s.Peek(); ok {
		s.Push(v)
	}
}

// SwapTop exchanges the top two values. It does nothing with fewer than two.
func (s *Stack) SwapTop() {
	n := len(s.values)
	if n < 2 {
		return
	}
	s.values[n-1], s.values[n-2] = s.values[n-2], s.values[n-1]
}

// Values returns a copy of the stack contents, bottom first.
func (s *Stack) Values() []int64 {
	out := make([]int64, len(s.values))
	copy(out, s.values)
	return out
}

// String renders the stack as "[0x41 ('A'), 0x0A]".
func (s *Stack) String() string {
	parts := make([]string, len(s.values))
	for i, v := range s.values {
		parts[i] = FormatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatValue renders a stack value as 0xHH, appending the character for
// printable ASCII. Negative values render in two's complement.
func FormatValue(v int64) string {
	hex := fmt.Sprintf("0x%02X", uint64(v))
	if isPrintable(v) {
		return fmt.Sprintf("%s ('%c')", hex, rune(v))
	}
	return hex
}

func isPrintable(v int64) bool {
	return v >= 0x20 && v <= 0x7E
}
