package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Entity is a named sub-query: one CTE definition that can be edited, stored
// and composed independently of the statement it came from.
type Entity struct {
	// Name is unique within the entity's pool (compared case-insensitively).
	Name string `json:"name" yaml:"name"`
	// Body is the standalone executable query of the sub-query.
	Body string `json:"body" yaml:"-"`
	// Description is free text carried in the on-disk header.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Dependencies are the relation names referenced by Body, in order of appearance.
	// Names that are not entities of the same pool are real tables.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Columns is the declared column list, rendered as name (c1, c2) AS (...).
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	// OutputColumns are inferred from the top-level select list.
	OutputColumns []string `json:"output_columns,omitempty" yaml:"-"`
	// Quoted is set when the name was written as a quoted identifier and
	// must be rendered quoted to keep its exact spelling.
	Quoted bool `json:"quoted,omitempty" yaml:"quoted,omitempty"`
	// Recursive marks an entity defined under WITH RECURSIVE that may reference itself.
	Recursive bool `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	// UpdatedAt is the last modification time (file mtime for shared entities).
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Key returns the normalized lookup key of the entity name.
func (e *Entity) Key() string {
	return NormalizeName(e.Name)
}

// Clone returns a deep copy, so that callers holding a snapshot never observe
// later edits made through the pool.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Dependencies = append([]string(nil), e.Dependencies...)
	c.Columns = append([]string(nil), e.Columns...)
	c.OutputColumns = append([]string(nil), e.OutputColumns...)
	return &c
}

// NormalizeName folds a (possibly qualified) SQL name for comparison.
// Unquoted SQL identifiers are case-insensitive, so "Orders" and "orders"
// address the same entity.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if isASCII(name) {
		return strings.ToLower(name)
	}
	return cases.Fold().String(name)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// ModelKind distinguishes the main query from its sub-queries.
type ModelKind int

// Model kinds.
const (
	ModelMain ModelKind = iota
	ModelSub
)

// String returns the string representation of the kind.
func (k ModelKind) String() string {
	switch k {
	case ModelMain:
		return "main"
	case ModelSub:
		return "sub"
	default:
		return "unknown"
	}
}
