package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by stores.
var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// Position is a location in SQL text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

// SyntaxError reports malformed SQL. It is fatal and surfaced verbatim.
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// CircularDependencyError reports a dependency cycle. Cycle lists the full
// path and repeats the first name at the end: [a b c a].
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownNameError reports a referenced name found in neither pool.
// It is not fatal: the name is treated as a real table.
type UnknownNameError struct {
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("%q is not a known sub-query, treating it as a table", e.Name)
}

// CompositionRenderError reports that assembling a WITH clause would produce
// structurally invalid SQL.
type CompositionRenderError struct {
	Names  []string
	Reason string
	Err    error
}

func (e *CompositionRenderError) Error() string {
	msg := "composition failed"
	if len(e.Names) > 0 {
		msg += fmt.Sprintf(" for %s", strings.Join(e.Names, ", "))
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompositionRenderError) Unwrap() error {
	return e.Err
}

// DepthExceededError reports that recursion passed the configured bound,
// which happens on adversarial or pathologically nested input.
type DepthExceededError struct {
	Name  string
	Limit int
}

func (e *DepthExceededError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("maximum nesting depth %d exceeded", e.Limit)
	}
	return fmt.Sprintf("maximum dependency depth %d exceeded while resolving %q", e.Limit, e.Name)
}

// InUseError reports that an entity cannot be removed or renamed because
// other entities depend on it.
type InUseError struct {
	Name       string
	Dependents []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%q is referenced by %s", e.Name, strings.Join(e.Dependents, ", "))
}
