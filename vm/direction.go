package vm

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Direction is the heading of the instruction pointer.
type Direction int

const (
	Right Direction = iota
	Down
	Left
	Up
)

var directionNames = [...]string{
	Right: "Right",
	Down:  "Down",
	Left:  "Left",
	Up:    "Up",
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Delta returns the unit step for the direction.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Right:
		return 1, 0
	case Left:
		return -1, 0
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	}
	return 0, 0
}

// ParseDirection accepts a direction name ("right", "Up", ...) or one of
// the arrow opcodes > < ^ v.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "right", ">", "":
		return Right, nil
	case "down", "v":
		return Down, nil
	case "left", "<":
		return Left, nil
	case "up", "^":
		return Up, nil
	}
	return Right, fmt.Errorf("unknown direction %q", s)
}

// Mode is the interpretation mode.
type Mode int

const (
	// Interpret dispatches each cell as an opcode.
	Interpret Mode = iota
	// StringPush pushes each cell's byte until the next '"'.
	StringPush
)

func (m Mode) String() string {
	switch m {
	case Interpret:
		return "Interpret"
	case StringPush:
		return "StringPush"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// DirectionSource chooses the heading for the '?' opcode.
type DirectionSource interface {
	NextDirection() Direction
}

// DirectionFunc adapts a function to DirectionSource.
type DirectionFunc func() Direction

// NextDirection calls f.
func (f DirectionFunc) NextDirection() Direction { return f() }

// FixedDirection always returns the same direction.
type FixedDirection Direction

// NextDirection returns d.
func (d FixedDirection) NextDirection() Direction { return Direction(d) }

// RandomDirections draws uniformly from the four cardinal directions.
type RandomDirections struct {
	rng *rand.Rand
}

// NewRandomDirections returns a source seeded with seed. A zero seed draws
// a seed from the runtime's entropy source.
func NewRandomDirections(seed uint64) *RandomDirections {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomDirections{rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// NextDirection returns a uniformly random direction.
func (r *RandomDirections) NextDirection() Direction {
	return Direction(r.rng.IntN(4))
}
