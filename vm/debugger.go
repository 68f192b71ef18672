package vm

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Debug introspection: per-step snapshots and the step gate
// ---------------------------------------------------------------------------

// DebugHeader opens every rendered snapshot.
const DebugHeader = "=== Step Debug Info ==="

const debugFooter = "=================="

// Snapshot is the interpreter state immediately before an instruction
// executes.
type Snapshot struct {
	Step        uint64
	X, Y        int
	Instruction byte
	Direction   Direction
	Mode        Mode
	Stack       []int64 // bottom first
	Grid        [][]byte
}

// Snapshot captures the current state. The stack and grid are copied.
func (in *Interpreter) Snapshot() *Snapshot {
	return &Snapshot{
		Step:        in.steps,
		X:           in.x,
		Y:           in.y,
		Instruction: in.grid.Get(in.x, in.y),
		Direction:   in.direction,
		Mode:        in.mode,
		Stack:       in.stack.Values(),
		Grid:        in.grid.Rows(),
	}
}

// Render writes the snapshot in the step-debug text format: a header,
// the state lines, then the grid with the current cell shown as [c].
func (s *Snapshot) Render(w io.Writer) error {
	var sb strings.Builder

	stack := make([]string, len(s.Stack))
	for i, v := range s.Stack {
		stack[i] = FormatValue(v)
	}

	fmt.Fprintf(&sb, "\n%s\n", DebugHeader)
	fmt.Fprintf(&sb, "Position: (%d, %d)\n", s.X, s.Y)
	fmt.Fprintf(&sb, "Current instruction: %c\n", rune(s.Instruction))
	fmt.Fprintf(&sb, "Direction: %s\n", s.Direction)
	fmt.Fprintf(&sb, "Stack: [%s]\n", strings.Join(stack, ", "))
	fmt.Fprintf(&sb, "Mode: %s\n", s.Mode)

	for y, row := range s.Grid {
		for x, b := range row {
			if x == s.X && y == s.Y {
				fmt.Fprintf(&sb, "[%c]", rune(b))
			} else {
				fmt.Fprintf(&sb, " %c ", rune(b))
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s\n\n", debugFooter)

	_, err := io.WriteString(w, sb.String())
	return err
}

func (s *Snapshot) String() string {
	var sb strings.Builder
	_ = s.Render(&sb)
	return sb.String()
}

// debugStep renders a snapshot to the output and blocks on one input line.
// End of input does not stop the program; the gate simply stops pausing.
func (in *Interpreter) debugStep() error {
	if !in.debug {
		return nil
	}

	snap := in.Snapshot()
	if in.onSnapshot != nil {
		in.onSnapshot(snap)
	}
	if err := snap.Render(in.out); err != nil {
		return fmt.Errorf("%w: debug write: %v", ErrIO, err)
	}

	if _, err := in.in.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: debug read: %v", ErrIO, err)
	}
	return nil
}
