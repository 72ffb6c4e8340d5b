// Package scanner discovers which relations a query body reads from.
//
// The scan walks the token stream once and tracks, per parenthesized
// scope, whether the next word is in relation position (after FROM, JOIN
// or a comma inside a FROM list). The same walk covers simple queries,
// both branches of UNION/INTERSECT/EXCEPT, derived tables, subqueries in
// any clause and nested WITH blocks, whose names are local and therefore
// excluded from the result.
package scanner

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// DefaultMaxDepth bounds parenthesis nesting during a scan.
const DefaultMaxDepth = 64

// Reference is one relation reference found in a body.
type Reference struct {
	// Name is the dotted name as written, with quotes removed.
	Name string
	// Start and End are byte offsets of the reference in the scanned text.
	Start int
	End   int
	// Qualified is set for schema-qualified names such as sales.orders.
	Qualified bool
}

// Scanner extracts relation names from query bodies.
type Scanner struct {
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxDepth overrides the nesting bound.
func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxDepth returns the configured nesting bound.
func (s *Scanner) MaxDepth() int {
	return s.maxDepth
}

// Scan returns the deduplicated relation names referenced by body, in
// order of first appearance.
func (s *Scanner) Scan(body string) ([]string, error) {
	refs, err := s.References(body)
	if err != nil {
		return nil, err
	}
	return Names(refs), nil
}

// References returns every relation reference in body, including repeats.
func (s *Scanner) References(body string) ([]Reference, error) {
	toks, err := sqltext.Tokenize(body)
	if err != nil {
		return nil, err
	}
	w := &walker{
		cur:      sqltext.NewCursor(toks),
		maxDepth: s.maxDepth,
	}
	if err := w.scope(scopeQuery, 0, nil); err != nil {
		return nil, err
	}
	if !w.cur.AtEOF() {
		return nil, sqltext.Unexpected(w.cur.Tok(), "end of input")
	}
	return w.refs, nil
}

// Names deduplicates references by normalized name, keeping the spelling
// of the first occurrence.
func Names(refs []Reference) []string {
	seen := make(map[string]bool, len(refs))
	var names []string
	for _, ref := range refs {
		key := core.NormalizeName(ref.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, ref.Name)
	}
	return names
}

type scopeMode int

const (
	// scopeQuery is a statement or subquery: FROM introduces relations.
	scopeQuery scopeMode = iota
	// scopeFrom is a parenthesized FROM item: a derived table or a join group.
	scopeFrom
	// scopeExpr is a function call or expression group: FROM is an argument
	// keyword as in EXTRACT(YEAR FROM d), unless the group holds a subquery.
	scopeExpr
)

type walker struct {
	cur      *sqltext.Cursor
	maxDepth int
	refs     []Reference
}

// scope walks tokens until the ")" closing the current scope or EOF.
// The closing token is left for the caller to consume.
func (w *walker) scope(mode scopeMode, depth int, locals map[string]bool) error {
	if depth > w.maxDepth {
		return &core.DepthExceededError{Limit: w.maxDepth}
	}

	first := w.cur.Tok()
	if mode != scopeQuery && first.Is(sqltext.TOKEN_SELECT, sqltext.TOKEN_WITH, sqltext.TOKEN_VALUES, sqltext.TOKEN_TABLE) {
		mode = scopeQuery
	}

	if w.cur.Check(sqltext.TOKEN_WITH) {
		var err error
		if locals, err = w.withBlock(depth, locals); err != nil {
			return err
		}
	}

	expectRelation := mode == scopeFrom
	inFrom := mode == scopeFrom

	for {
		tok := w.cur.Tok()
		switch tok.Type {
		case sqltext.TOKEN_EOF, sqltext.TOKEN_RPAREN:
			return nil

		case sqltext.TOKEN_LPAREN:
			child := scopeExpr
			if expectRelation {
				child = scopeFrom
			}
			if err := w.group(child, depth, locals); err != nil {
				return err
			}
			expectRelation = false
			continue

		case sqltext.TOKEN_FROM:
			if mode != scopeExpr {
				expectRelation, inFrom = true, true
			}

		case sqltext.TOKEN_JOIN:
			if mode != scopeExpr {
				expectRelation, inFrom = true, true
			}

		case sqltext.TOKEN_COMMA:
			expectRelation = inFrom

		case sqltext.TOKEN_LATERAL, sqltext.TOKEN_ONLY:
			// keep expecting a relation

		case sqltext.TOKEN_ON, sqltext.TOKEN_USING:
			expectRelation = false

		case sqltext.TOKEN_WHERE, sqltext.TOKEN_GROUP, sqltext.TOKEN_HAVING, sqltext.TOKEN_ORDER,
			sqltext.TOKEN_LIMIT, sqltext.TOKEN_OFFSET, sqltext.TOKEN_FETCH, sqltext.TOKEN_QUALIFY,
			sqltext.TOKEN_WINDOW, sqltext.TOKEN_FOR, sqltext.TOKEN_RETURNING, sqltext.TOKEN_SELECT,
			sqltext.TOKEN_UNION, sqltext.TOKEN_INTERSECT, sqltext.TOKEN_EXCEPT, sqltext.TOKEN_MINUS,
			sqltext.TOKEN_SEMICOLON:
			expectRelation, inFrom = false, false

		case sqltext.TOKEN_TABLE:
			// TABLE name is shorthand for SELECT * FROM name
			if mode == scopeQuery && w.cur.Peek(1).Type == sqltext.TOKEN_IDENT {
				w.cur.Next()
				if err := w.relation(depth, locals); err != nil {
					return err
				}
				continue
			}

		case sqltext.TOKEN_IDENT:
			if expectRelation {
				expectRelation = false
				if err := w.relation(depth, locals); err != nil {
					return err
				}
				continue
			}
		default:
			if expectRelation && tok.Type.IsKeyword() {
				expectRelation = false
			}
		}
		w.cur.Next()
	}
}

// group consumes "(" ... ")" and scans its content as a nested scope.
func (w *walker) group(mode scopeMode, depth int, locals map[string]bool) error {
	open := w.cur.Tok()
	w.cur.Next()
	if err := w.scope(mode, depth+1, locals); err != nil {
		return err
	}
	if !w.cur.Match(sqltext.TOKEN_RPAREN) {
		return &core.SyntaxError{Pos: open.Pos, Message: "unbalanced parentheses: missing \")\""}
	}
	return nil
}

// relation consumes a dotted name in relation position. A name followed by
// "(" is a table function and not a relation; its arguments are scanned.
func (w *walker) relation(depth int, locals map[string]bool) error {
	first := w.cur.Tok()
	parts := []string{first.Literal}
	end := first.End
	w.cur.Next()
	for w.cur.Check(sqltext.TOKEN_DOT) && w.cur.Peek(1).Type == sqltext.TOKEN_IDENT {
		w.cur.Next()
		end = w.cur.Tok().End
		parts = append(parts, w.cur.Tok().Literal)
		w.cur.Next()
	}

	if w.cur.Check(sqltext.TOKEN_LPAREN) {
		return w.group(scopeExpr, depth, locals)
	}

	if len(parts) == 1 && locals[core.NormalizeName(parts[0])] {
		return nil
	}
	w.refs = append(w.refs, Reference{
		Name:      strings.Join(parts, "."),
		Start:     first.Pos.Offset,
		End:       end,
		Qualified: len(parts) > 1,
	})
	return nil
}

// withBlock consumes a nested WITH list, scanning every body, and returns
// the local names it introduces layered over the enclosing ones.
func (w *walker) withBlock(depth int, outer map[string]bool) (map[string]bool, error) {
	w.cur.Next() // WITH
	w.cur.Match(sqltext.TOKEN_RECURSIVE)

	// collect names first: bodies may reference siblings in either direction
	start := w.cur.Index()
	locals := make(map[string]bool, len(outer)+4)
	for k := range outer {
		locals[k] = true
	}
	for {
		name, err := w.cur.Expect(sqltext.TOKEN_IDENT, "sub-query name")
		if err != nil {
			return nil, err
		}
		locals[core.NormalizeName(name.Literal)] = true
		if w.cur.Check(sqltext.TOKEN_LPAREN) {
			if _, err := w.cur.SkipGroup(); err != nil {
				return nil, err
			}
		}
		if _, err := w.cur.Expect(sqltext.TOKEN_AS, "AS"); err != nil {
			return nil, err
		}
		w.cur.Match(sqltext.TOKEN_NOT)
		w.cur.Match(sqltext.TOKEN_MATERIALIZED)
		if _, err := w.cur.SkipGroup(); err != nil {
			return nil, err
		}
		if !w.cur.Match(sqltext.TOKEN_COMMA) {
			break
		}
	}
	end := w.cur.Index()

	// second pass: scan bodies with all local names visible
	w.cur.Seek(start)
	for w.cur.Index() < end {
		if w.cur.Check(sqltext.TOKEN_AS) && w.cur.Peek(1).Is(sqltext.TOKEN_LPAREN, sqltext.TOKEN_NOT, sqltext.TOKEN_MATERIALIZED) {
			w.cur.Next()
			w.cur.Match(sqltext.TOKEN_NOT)
			w.cur.Match(sqltext.TOKEN_MATERIALIZED)
			if err := w.group(scopeQuery, depth, locals); err != nil {
				return nil, err
			}
			continue
		}
		w.cur.Next()
	}
	return locals, nil
}
