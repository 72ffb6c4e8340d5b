// Package compose renders a main query and an ordered set of sub-queries
// into one statement with a WITH clause.
package compose

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/decompose"
	"github.com/leapstack-labs/ctesplit/internal/extract"
	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// Config holds Composer options.
type Config struct {
	// Dialect selects identifier quoting and the default validator:
	// "ansi" (default), "postgres", "duckdb", "sqlite" or "mysql".
	Dialect string
	// Validator overrides the dialect's validator.
	Validator Validator
	// Resolver orders the dependencies of a reconstructed model.
	Resolver *dag.Resolver
	Logger   *slog.Logger
}

// Composer assembles WITH clauses.
type Composer struct {
	quote     sqltext.QuoteStyle
	validator Validator
	resolver  *dag.Resolver
	logger    *slog.Logger
}

// New creates a Composer. An unknown dialect is an error.
func New(cfg Config) (*Composer, error) {
	c := &Composer{quote: sqltext.QuoteDouble, validator: cfg.Validator, resolver: cfg.Resolver, logger: cfg.Logger}

	switch strings.ToLower(cfg.Dialect) {
	case "", "ansi", "postgres", "duckdb", "sqlite":
		if c.validator == nil {
			c.validator = TokenValidator{}
		}
	case "mysql", "tidb":
		c.quote = sqltext.QuoteBacktick
		if c.validator == nil {
			c.validator = NewMySQLValidator()
		}
	default:
		return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}

	if c.resolver == nil {
		c.resolver = dag.NewResolver()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// Compose renders entities, in the given order, as the WITH clause of
// mainBody. A WITH block already present in mainBody is merged after the
// supplied entities. Without entities mainBody is returned unchanged.
func (c *Composer) Compose(mainBody string, entities []*core.Entity) (string, error) {
	if len(entities) == 0 {
		return mainBody, nil
	}

	items := make([]item, 0, len(entities))
	recursive := false
	for _, e := range entities {
		items = append(items, item{name: e.Name, quoted: e.Quoted, columns: e.Columns, body: e.Body})
		recursive = recursive || e.Recursive
	}

	ext, err := extract.Extract(mainBody)
	if err != nil {
		return "", &core.CompositionRenderError{Reason: "main query is malformed", Err: err}
	}
	remainder := ext.Remainder
	if ext.HasWith() {
		recursive = recursive || ext.Recursive
		for _, def := range ext.Definitions {
			items = append(items, item{name: def.Name, quoted: def.Quoted, columns: def.Columns, body: def.Body, hint: def.Materialized})
		}
	}

	if err := checkItems(items); err != nil {
		return "", err
	}

	sql := c.render(items, recursive, remainder)
	if err := c.validator.Validate(sql); err != nil {
		return "", &core.CompositionRenderError{Names: itemNames(items), Reason: "rendered SQL failed validation", Err: err}
	}

	c.logger.Debug("composed statement", "sub_queries", len(items), "recursive", recursive)
	return sql, nil
}

// ReconstructSQL renders the model id of a decomposition with all of its
// transitive dependencies in dependency order. A model without
// dependencies renders as its body alone.
func (c *Composer) ReconstructSQL(d *decompose.Decomposition, id decompose.NodeID) (string, error) {
	m := d.Model(id)
	if m == nil {
		return "", fmt.Errorf("model %d does not exist", id)
	}

	order, err := c.resolver.TopologicalOrder(d.DependencyNames(id), d.Adjacency())
	if err != nil {
		return "", err
	}
	if len(order) == 0 {
		return m.Body, nil
	}

	items := make([]item, 0, len(order))
	recursive := false
	for _, name := range order {
		depID, _ := d.Lookup(name)
		dm := d.Model(depID)
		items = append(items, item{name: dm.Name, quoted: dm.Quoted, columns: dm.Columns, body: dm.Body, hint: dm.Materialized})
		recursive = recursive || dm.Recursive
	}
	if err := checkItems(items); err != nil {
		return "", err
	}

	sql := c.render(items, recursive || d.Recursive && m.Kind == core.ModelMain, m.Body)
	if err := c.validator.Validate(sql); err != nil {
		return "", &core.CompositionRenderError{Names: itemNames(items), Reason: "rendered SQL failed validation", Err: err}
	}
	return sql, nil
}

type item struct {
	name    string
	quoted  bool
	columns []string
	body    string
	hint    extract.Materialization
}

func checkItems(items []item) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.name) == "" {
			return &core.CompositionRenderError{Reason: "sub-query without a name"}
		}
		if strings.TrimSpace(it.body) == "" {
			return &core.CompositionRenderError{Names: []string{it.name}, Reason: "empty body"}
		}
		key := core.NormalizeName(it.name)
		if seen[key] {
			return &core.CompositionRenderError{Names: []string{it.name}, Reason: "duplicate sub-query name"}
		}
		seen[key] = true
	}
	return nil
}

func itemNames(items []item) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names
}

func (c *Composer) render(items []item, recursive bool, remainder string) string {
	var b strings.Builder
	b.WriteString("WITH ")
	if recursive {
		b.WriteString("RECURSIVE ")
	}
	for i, it := range items {
		if i > 0 {
			b.WriteString(",\n")
		}
		if it.quoted {
			b.WriteString(sqltext.Quote(it.name, c.quote))
		} else {
			b.WriteString(c.ident(it.name))
		}
		if len(it.columns) > 0 {
			cols := make([]string, len(it.columns))
			for j, col := range it.columns {
				cols[j] = c.ident(col)
			}
			b.WriteString(" (" + strings.Join(cols, ", ") + ")")
		}
		b.WriteString(" AS ")
		switch it.hint {
		case extract.MaterializeAlways:
			b.WriteString("MATERIALIZED ")
		case extract.MaterializeNever:
			b.WriteString("NOT MATERIALIZED ")
		}
		b.WriteString("(")
		b.WriteString(it.body)
		if endsInComment(it.body) {
			b.WriteString("\n")
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(remainder))
	return b.String()
}

// Ident renders name as an identifier, quoted in the dialect's style when
// it would not read back as written.
func (c *Composer) Ident(name string) string {
	return c.ident(name)
}

func (c *Composer) ident(name string) string {
	if !sqltext.NeedsQuoting(name) {
		return name
	}
	return sqltext.QuoteIdent(name, c.quote)
}

// endsInComment reports whether trailing text after the last token is a
// comment, in which case a closing parenthesis must go on a new line.
func endsInComment(body string) bool {
	toks, err := sqltext.Tokenize(body)
	if err != nil || len(toks) < 2 {
		return false
	}
	last := toks[len(toks)-2]
	return strings.TrimSpace(body[last.End:]) != ""
}
