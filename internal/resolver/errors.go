package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModuleNotFound is matched by every ModuleNotFoundError.
var ErrModuleNotFound = errors.New("module not found")

// ModuleNotFoundError reports a specifier that resolved to no existing file.
type ModuleNotFoundError struct {
	Specifier string
	FromPath  string
	// Tried lists the candidate paths in the order they were checked.
	Tried []string
}

func (e *ModuleNotFoundError) Error() string {
	msg := fmt.Sprintf("cannot find module %q from %s", e.Specifier, e.FromPath)
	if len(e.Tried) > 0 {
		msg += " (tried " + strings.Join(e.Tried, ", ") + ")"
	}
	return msg
}

func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}
