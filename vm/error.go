package vm

import (
	"errors"
	"fmt"
)

// Stage identifies where an error was raised.
type Stage int

const (
	StageParse Stage = iota
	StageCodegen
	StageRuntime
)

func (s Stage) String() string {
	switch s {
	case StageParse:
		return "parse"
	case StageCodegen:
		return "codegen"
	case StageRuntime:
		return "runtime"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Error is a single reported error. Offset is a byte offset into the
// expression source, or -1 when the error has no source location.
type Error struct {
	Stage   Stage
	Message string
	Offset  int
}

func (e *Error) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s error: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s error at offset %d: %s", e.Stage, e.Offset, e.Message)
}

// ErrStackImbalance is returned by Program.Run when execution does not
// leave exactly one value on the operand stack.
var ErrStackImbalance = errors.New("vm: stack imbalance")
