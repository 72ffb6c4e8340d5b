package sqltext

import "strings"

// QuoteStyle selects the identifier quoting of a dialect.
type QuoteStyle int

// Quote styles.
const (
	QuoteDouble   QuoteStyle = iota // "name" (ANSI, Postgres, DuckDB)
	QuoteBacktick                   // `name` (MySQL)
)

// NeedsQuoting reports whether name must be quoted to be read back as a
// single identifier with the same spelling.
func NeedsQuoting(name string) bool {
	if name == "" || IsKeyword(name) {
		return true
	}
	for i, r := range name {
		if i == 0 {
			if !isIdentStart(r) {
				return true
			}
			continue
		}
		if !isIdentPart(r) {
			return true
		}
	}
	return false
}

// QuoteIdent renders name as an identifier, quoting only when needed.
func QuoteIdent(name string, style QuoteStyle) string {
	if !NeedsQuoting(name) {
		return name
	}
	return Quote(name, style)
}

// Quote renders name as a quoted identifier unconditionally.
func Quote(name string, style QuoteStyle) string {
	q := `"`
	if style == QuoteBacktick {
		q = "`"
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}
