// Package vm implements the funge execution engine.
//
// This package contains:
//   - Grid: the toroidal, self-modifiable program field
//   - Stack: the int64 operand stack with zero-on-empty pops
//   - A 256-entry dispatch table mapping grid bytes to handlers
//   - Interpreter: the fetch-execute-advance loop
//   - Snapshot: step-by-step debug introspection
//
// An Interpreter is single-threaded and single-use. Hosts that run several
// programs at once build one Grid and one Interpreter per run.
package vm
