package vm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Fatal run errors. Defined halts (@, division by zero) are not errors.
var (
	// ErrBadInput is returned when '&' reads something that is not an integer.
	ErrBadInput = errors.New("invalid integer input")

	// ErrIO is returned when the input or output stream fails.
	ErrIO = errors.New("i/o failure")
)

// ---------------------------------------------------------------------------
// Interpreter: fetch-execute-advance engine
// ---------------------------------------------------------------------------

// Interpreter runs one program over one grid. It is single-use: construct
// it, call Run once, then discard it.
type Interpreter struct {
	grid  *Grid
	stack *Stack

	x, y      int
	direction Direction
	mode      Mode

	in  *bufio.Reader
	out io.Writer

	debug      bool
	onSnapshot func(*Snapshot)
	random     DirectionSource

	steps  uint64
	halted bool
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithDirectionSource sets the source consulted by '?'.
func WithDirectionSource(src DirectionSource) Option {
	return func(in *Interpreter) { in.random = src }
}

// WithSnapshotHook registers fn to receive every debug snapshot before it
// is written. It is only called when debugging is enabled.
func WithSnapshotHook(fn func(*Snapshot)) Option {
	return func(in *Interpreter) { in.onSnapshot = fn }
}

// NewInterpreter creates an interpreter positioned at (x, y) heading dir.
// The grid is used in place; 'p' writes are visible to the caller.
// A nil input behaves as an empty stream and a nil output discards.
func NewInterpreter(grid *Grid, x, y int, dir Direction, input io.Reader, output io.Writer, debug bool, opts ...Option) *Interpreter {
	if input == nil {
		input = strings.NewReader("")
	}
	if output == nil {
		output = io.Discard
	}
	br, ok := input.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(input)
	}

	interp := &Interpreter{
		grid:      grid,
		stack:     NewStack(),
		x:         wrap(x, grid.Width()),
		y:         wrap(y, grid.Height()),
		direction: dir,
		mode:      Interpret,
		in:        br,
		out:       output,
		debug:     debug,
	}
	for _, opt := range opts {
		opt(interp)
	}
	if interp.random == nil {
		interp.random = NewRandomDirections(0)
	}
	return interp
}

// Run executes until the program halts. It returns nil for '@' and for a
// zero divisor, and the fatal error otherwise. A program without a
// reachable halt runs forever.
func (in *Interpreter) Run() error {
	for {
		halted, err := in.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// Step executes a single tick: the debug gate if enabled, then one fetch,
// execute and advance. It reports whether the program has halted.
func (in *Interpreter) Step() (bool, error) {
	if in.halted {
		return true, nil
	}

	if err := in.debugStep(); err != nil {
		in.halted = true
		return true, err
	}

	b := in.grid.Get(in.x, in.y)
	in.steps++

	switch in.mode {
	case Interpret:
		halt, err := dispatchTable[b](in)
		if err != nil {
			in.halted = true
			return true, fmt.Errorf("at (%d, %d) %q: %w", in.x, in.y, b, err)
		}
		if halt {
			in.halted = true
			return true, nil
		}
	case StringPush:
		if b == byte(OpStringOn) {
			in.mode = Interpret
		} else {
			in.stack.Push(int64(b))
		}
	}

	in.forward()
	return false, nil
}

// forward moves one cell in the current direction, wrapping at the edges.
func (in *Interpreter) forward() {
	dx, dy := in.direction.Delta()
	in.x = wrap(in.x+dx, in.grid.Width())
	in.y = wrap(in.y+dy, in.grid.Height())
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Grid returns the grid being executed.
func (in *Interpreter) Grid() *Grid { return in.grid }

// Stack returns the operand stack.
func (in *Interpreter) Stack() *Stack { return in.stack }

// Position returns the current instruction pointer cell.
func (in *Interpreter) Position() (x, y int) { return in.x, in.y }

// Direction returns the current heading.
func (in *Interpreter) Direction() Direction { return in.direction }

// Mode returns the current interpretation mode.
func (in *Interpreter) Mode() Mode { return in.mode }

// Steps returns the number of instructions fetched so far.
func (in *Interpreter) Steps() uint64 { return in.steps }

// Halted reports whether the program has stopped.
func (in *Interpreter) Halted() bool { return in.halted }

// ---------------------------------------------------------------------------
// Embedding
// ---------------------------------------------------------------------------

// RunSource runs src from (0, 0) heading right with the given input and
// returns everything written to output. Output produced before a fatal
// error is returned along with the error.
func RunSource(src, input string) (string, error) {
	grid, err := FromSource(src)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	interp := NewInterpreter(grid, 0, 0, Right, strings.NewReader(input), &out, false)
	err = interp.Run()
	return out.String(), err
}
