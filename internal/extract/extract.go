// Package extract splits a leading WITH block into named definitions and
// the remaining statement.
package extract

import (
	"strings"

	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// Materialization is the optional [NOT] MATERIALIZED hint of a definition.
type Materialization int

const (
	MaterializeDefault Materialization = iota
	MaterializeAlways
	MaterializeNever
)

// Definition is one "name [(cols)] AS (body)" item of a WITH block.
type Definition struct {
	Name string
	// Quoted is set when the name was a quoted identifier.
	Quoted  bool
	Columns []string
	// Body is the standalone query between the parentheses, trimmed.
	Body         string
	Materialized Materialization
	// Pos is the position of the name in the source text.
	Pos core.Position
}

// Result is the outcome of Extract.
type Result struct {
	Definitions []Definition
	// Recursive is set when the block was introduced by WITH RECURSIVE.
	Recursive bool
	// Remainder is the statement following the WITH block.
	Remainder string
}

// HasWith reports whether any definitions were extracted.
func (r *Result) HasWith() bool {
	return len(r.Definitions) > 0
}

// Names returns definition names in source order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Definitions))
	for i, d := range r.Definitions {
		names[i] = d.Name
	}
	return names
}

// Extract parses an optional leading WITH block. Text without a WITH block
// is returned unchanged as the remainder. A malformed block fails with a
// *core.SyntaxError and no partial result.
func Extract(sql string) (*Result, error) {
	toks, err := sqltext.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	if err := sqltext.CheckBalanced(toks); err != nil {
		return nil, err
	}

	cur := sqltext.NewCursor(toks)
	if !cur.Match(sqltext.TOKEN_WITH) {
		return &Result{Remainder: sql}, nil
	}

	res := &Result{Recursive: cur.Match(sqltext.TOKEN_RECURSIVE)}
	seen := make(map[string]bool)
	for {
		def, err := definition(cur, sql)
		if err != nil {
			return nil, err
		}
		key := core.NormalizeName(def.Name)
		if seen[key] {
			return nil, &core.SyntaxError{Pos: def.Pos, Message: "duplicate sub-query name " + quote(def.Name)}
		}
		seen[key] = true
		res.Definitions = append(res.Definitions, def)

		if !cur.Match(sqltext.TOKEN_COMMA) {
			break
		}
	}

	if cur.AtEOF() {
		return nil, sqltext.Unexpected(cur.Tok(), "a statement after the WITH block")
	}
	res.Remainder = strings.TrimSpace(sql[cur.Tok().Pos.Offset:])
	return res, nil
}

func definition(cur *sqltext.Cursor, sql string) (Definition, error) {
	name, err := cur.Expect(sqltext.TOKEN_IDENT, "sub-query name")
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Name: name.Literal, Quoted: name.Quoted, Pos: name.Pos}

	if cur.Match(sqltext.TOKEN_LPAREN) {
		for {
			col, err := cur.Expect(sqltext.TOKEN_IDENT, "column name")
			if err != nil {
				return Definition{}, err
			}
			def.Columns = append(def.Columns, col.Literal)
			if !cur.Match(sqltext.TOKEN_COMMA) {
				break
			}
		}
		if _, err := cur.Expect(sqltext.TOKEN_RPAREN, `")"`); err != nil {
			return Definition{}, err
		}
	}

	if _, err := cur.Expect(sqltext.TOKEN_AS, "AS"); err != nil {
		return Definition{}, err
	}
	switch {
	case cur.Match(sqltext.TOKEN_NOT):
		if _, err := cur.Expect(sqltext.TOKEN_MATERIALIZED, "MATERIALIZED"); err != nil {
			return Definition{}, err
		}
		def.Materialized = MaterializeNever
	case cur.Match(sqltext.TOKEN_MATERIALIZED):
		def.Materialized = MaterializeAlways
	}

	open := cur.Tok()
	closing, err := cur.SkipGroup()
	if err != nil {
		return Definition{}, err
	}
	def.Body = strings.TrimSpace(sql[open.End:closing.Pos.Offset])
	if def.Body == "" {
		return Definition{}, &core.SyntaxError{Pos: open.Pos, Message: "empty body for sub-query " + quote(def.Name)}
	}
	return def, nil
}

func quote(name string) string {
	return `"` + name + `"`
}
