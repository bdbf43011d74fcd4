package task

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBool is returned by ParseBool for unrecognised input.
var ErrInvalidBool = errors.New("task: invalid boolean")

// ParseBool accepts the flag spellings used in task lists:
// true, t, yes, y, 1, mark and false, f, no, n, 0, space (case-insensitive).
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "mark":
		return true, nil
	case "false", "f", "no", "n", "0", "space":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
	}
}
