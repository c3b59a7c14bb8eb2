package cmd

import (
	"errors"
	"fmt"
)

// usageError marks a CLI-usage mistake (wrong argument count, malformed
// flag) distinct from a runtime failure, so main can map it to exit code
// 2 rather than the default 1 (§6).
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCodeFor maps an error returned from Execute to the CLI exit code
// described in §6: 1 for an ordinary runtime failure, 2 for a usageError.
func ExitCodeFor(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}
