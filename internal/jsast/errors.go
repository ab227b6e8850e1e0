package jsast

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports malformed module source.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: syntax error: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error: %s", e.Path, e.Line, e.Column, e.Detail)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}
