package vm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// handler executes one opcode. It returns halt=true for a defined,
// successful termination and a non-nil error for a fatal one.
type handler func(in *Interpreter) (halt bool, err error)

// dispatchTable maps every byte to its handler. Bytes outside the
// instruction set map to nop. The table is never modified after init.
var dispatchTable = buildDispatchTable()

func buildDispatchTable() [256]handler {
	var t [256]handler
	for i := range t {
		t[i] = opNop
	}

	for d := OpPush0; d <= OpPush9; d++ {
		t[d] = pushDigit(int64(d - OpPush0))
	}

	t[OpAdd] = binaryOp(func(a, b int64) int64 { return a + b })
	t[OpSub] = binaryOp(func(a, b int64) int64 { return b - a })
	t[OpMul] = binaryOp(func(a, b int64) int64 { return a * b })
	t[OpDiv] = divisionOp(func(a, b int64) int64 { return b / a })
	t[OpMod] = divisionOp(func(a, b int64) int64 { return b % a })
	t[OpNot] = opNot
	t[OpGreater] = binaryOp(func(a, b int64) int64 { return boolValue(b > a) })

	t[OpRight] = setDirection(Right)
	t[OpLeft] = setDirection(Left)
	t[OpUp] = setDirection(Up)
	t[OpDown] = setDirection(Down)
	t[OpRandom] = opRandom
	t[OpHorizIf] = branch(Right, Left)
	t[OpVertIf] = branch(Down, Up)
	t[OpStringOn] = opStringOn

	t[OpDup] = opDup
	t[OpSwap] = opSwap
	t[OpPop] = opPop

	t[OpOutInt] = opOutInt
	t[OpOutChar] = opOutChar
	t[OpBridge] = opBridge
	t[OpPut] = opPut
	t[OpGet] = opGet
	t[OpInInt] = opInInt
	t[OpInChar] = opInChar
	t[OpEnd] = opEnd

	return t
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func opNop(in *Interpreter) (bool, error) { return false, nil }

func opEnd(in *Interpreter) (bool, error) { return true, nil }

func pushDigit(d int64) handler {
	return func(in *Interpreter) (bool, error) {
		in.stack.Push(d)
		return false, nil
	}
}

// binaryOp pops a then b and pushes fn(a, b).
func binaryOp(fn func(a, b int64) int64) handler {
	return func(in *Interpreter) (bool, error) {
		a := in.stack.Pop()
		b := in.stack.Pop()
		in.stack.Push(fn(a, b))
		return false, nil
	}
}

// divisionOp is binaryOp for / and %, except that a zero divisor halts the
// program. Both operands are consumed either way.
func divisionOp(fn func(a, b int64) int64) handler {
	return func(in *Interpreter) (bool, error) {
		a := in.stack.Pop()
		b := in.stack.Pop()
		if a == 0 {
			return true, nil
		}
		in.stack.Push(fn(a, b))
		return false, nil
	}
}

func opNot(in *Interpreter) (bool, error) {
	in.stack.Push(boolValue(in.stack.Pop() == 0))
	return false, nil
}

func setDirection(d Direction) handler {
	return func(in *Interpreter) (bool, error) {
		in.direction = d
		return false, nil
	}
}

func opRandom(in *Interpreter) (bool, error) {
	in.direction = in.random.NextDirection()
	return false, nil
}

// branch pops v and heads onZero if v == 0, otherwise onNonZero.
func branch(onZero, onNonZero Direction) handler {
	return func(in *Interpreter) (bool, error) {
		if in.stack.Pop() == 0 {
			in.direction = onZero
		} else {
			in.direction = onNonZero
		}
		return false, nil
	}
}

func opStringOn(in *Interpreter) (bool, error) {
	in.mode = StringPush
	return false, nil
}

func opDup(in *Interpreter) (bool, error) {
	in.stack.DuplicateTop()
	return false, nil
}

func opSwap(in *Interpreter) (bool, error) {
	in.stack.SwapTop()
	return false, nil
}

func opPop(in *Interpreter) (bool, error) {
	in.stack.Pop()
	return false, nil
}

func opOutInt(in *Interpreter) (bool, error) {
	v := in.stack.Pop()
	if _, err := io.WriteString(in.out, strconv.FormatInt(v, 10)+" "); err != nil {
		return false, fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	return false, nil
}

func opOutChar(in *Interpreter) (bool, error) {
	v := in.stack.Pop()
	if _, err := in.out.Write([]byte{byte(v)}); err != nil {
		return false, fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	return false, nil
}

// opBridge moves once here; the loop's normal advance supplies the second
// move, so exactly one cell is skipped.
func opBridge(in *Interpreter) (bool, error) {
	in.forward()
	return false, nil
}

func opPut(in *Interpreter) (bool, error) {
	y := in.stack.Pop()
	x := in.stack.Pop()
	v := in.stack.Pop()
	in.grid.Set(int(x), int(y), byte(v))
	return false, nil
}

func opGet(in *Interpreter) (bool, error) {
	y := in.stack.Pop()
	x := in.stack.Pop()
	in.stack.Push(int64(in.grid.Get(int(x), int(y))))
	return false, nil
}

func opInInt(in *Interpreter) (bool, error) {
	line, err := in.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	text := strings.TrimSpace(line)
	if text == "" && err != nil {
		return false, fmt.Errorf("%w: unexpected end of input", ErrBadInput)
	}
	n, perr := strconv.ParseInt(text, 10, 64)
	if perr != nil {
		return false, fmt.Errorf("%w: %q is not an integer", ErrBadInput, text)
	}
	in.stack.Push(n)
	return false, nil
}

func opInChar(in *Interpreter) (bool, error) {
	b, err := in.in.ReadByte()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	in.stack.Push(int64(b))
	return false, nil
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
