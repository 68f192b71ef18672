package vm

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrEmptyGrid is returned when a grid would have zero width or height.
// Toroidal addressing is undefined on such a grid.
var ErrEmptyGrid = errors.New("empty program grid")

// Grid is the mutable, toroidal program field.
// Width and height are fixed at construction; cells may be rewritten by
// running code.
type Grid struct {
	width  int
	height int
	cells  [][]byte
}

// FromSource builds a grid from program text. Rows are split on '\n' and
// right-padded with spaces to the longest row. A trailing newline yields a
// trailing empty row.
func FromSource(src string) (*Grid, error) {
	lines := strings.Split(src, "\n")
	rows := make([][]byte, len(lines))
	for i, line := range lines {
		rows[i] = []byte(line)
	}
	return FromRows(rows)
}

// FromRows builds a grid from raw rows, padding each to the widest.
// The rows are copied.
func FromRows(rows [][]byte) (*Grid, error) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 || len(rows) == 0 {
		return nil, ErrEmptyGrid
	}

	cells := make([][]byte, len(rows))
	for y, row := range rows {
		belt := make([]byte, width)
		n := copy(belt, row)
		for x := n; x < width; x++ {
			belt[x] = ' '
		}
		cells[y] = belt
	}
	return &Grid{width: width, height: len(rows), cells: cells}, nil
}

// FromRandom builds a w×h grid of random bytes, for fuzzing and demos.
func FromRandom(w, h int, r *rand.Rand) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyGrid, w, h)
	}
	cells := make([][]byte, h)
	for y := range cells {
		belt := make([]byte, w)
		for x := range belt {
			belt[x] = byte(r.UintN(256))
		}
		cells[y] = belt
	}
	return &Grid{width: w, height: h, cells: cells}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Get returns the byte at (x, y). Both coordinates wrap, so any int is a
// valid address.
func (g *Grid) Get(x, y int) byte {
	return g.cells[wrap(y, g.height)][wrap(x, g.width)]
}

// Set stores v at (x, y), wrapping both coordinates.
func (g *Grid) Set(x, y int, v byte) {
	g.cells[wrap(y, g.height)][wrap(x, g.width)] = v
}

// Row returns a copy of row y (wrapped).
func (g *Grid) Row(y int) []byte {
	row := g.cells[wrap(y, g.height)]
	out := make([]byte, len(row))
	copy(out, row)
	return out
}

// Rows returns a deep copy of all rows.
func (g *Grid) Rows() [][]byte {
	out := make([][]byte, g.height)
	for y := range out {
		out[y] = g.Row(y)
	}
	return out
}

// Source renders the grid back to program text. Padding is kept, so
// FromSource(g.Source()) reproduces g exactly.
func (g *Grid) Source() string {
	var sb strings.Builder
	for y, row := range g.cells {
		if y > 0 {
			sb.WriteByte('\n')
		}
		sb.Write(row)
	}
	return sb.String()
}

// String renders the grid for display, one line per row, with
// non-printable bytes shown as □.
func (g *Grid) String() string {
	var sb strings.Builder
	for _, row := range g.cells {
		for _, b := range row {
			if isPrintable(int64(b)) {
				sb.WriteByte(b)
			} else {
				sb.WriteRune('□')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// wrap reduces n into [0, size) using Euclidean modulo.
func wrap(n, size int) int {
	m := n % size
	if m < 0 {
		m += size
	}
	return m
}
