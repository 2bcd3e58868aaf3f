package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Assert panics with the caller's location when condition is false.
// The optional args are a format string followed by its arguments.
func Assert(condition bool, args ...any) bool {
	if condition {
		return true
	}

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
		line = 0
	}

	filename := filepath.Base(file)

	if len(args) > 0 {
		format := args[0].(string)
		message := fmt.Sprintf(format, args[1:]...)
		panic(fmt.Sprintf("Assertion failed: %s at %s:%d\n", message, filename, line))
	}
	panic(fmt.Sprintf("Assertion failed at %s:%d\n", filename, line))
}

func NoError(err error) {
	Assert(err == nil, "expected no error, got: %v", err)
}

// Cast attempts to cast the provided value 'data' to the specified
// type 'T'. If the cast is not possible, it triggers an assertion failure.
//
// Example usage:
//
//	hp := Cast[*page.HeapPage](p)
func Cast[T any](data any) T {
	castedData, ok := data.(T)
	Assert(ok, "couldn't cast %T to %T", data, *new(T))
	return castedData
}
