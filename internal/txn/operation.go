package txn

import (
	"fmt"
	"strings"
)

// Operation names a link strategy for materializing files in the library.
type Operation string

const (
	OpMove     Operation = "move"
	OpCopy     Operation = "copy"
	OpHardlink Operation = "hardlink"
	OpSymlink  Operation = "symlink"
)

// ParseOperation validates a link strategy name from configuration or the
// state store.
func ParseOperation(value string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(value))); op {
	case OpMove, OpCopy, OpHardlink, OpSymlink:
		return op, nil
	default:
		return "", fmt.Errorf("unknown link operation %q", value)
	}
}
