package scanner

import (
	"errors"
	"regexp"
	"strings"

	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// Result is the outcome of ScanWithFallback.
type Result struct {
	Names []string
	// Degraded is set when the token scan failed and names came from the
	// pattern matcher. Degraded names may be incomplete.
	Degraded bool
	// Cause is the error that forced the fallback.
	Cause error
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`--[^\n]*`)
	reStringLit    = regexp.MustCompile(`'(?:[^']|'')*'`)
	reRelation     = regexp.MustCompile(`(?i)\b(?:from|join)\s+((?:"[^"]+"|` + "`[^`]+`" + `|[\p{L}_][\p{L}\p{N}_$]*)(?:\s*\.\s*(?:"[^"]+"|` + "`[^`]+`" + `|[\p{L}_][\p{L}\p{N}_$]*))*)(\s*\()?`)
)

// ScanWithFallback runs Scan and, if the body cannot be tokenized or
// parsed, falls back to a FROM/JOIN pattern match. Depth errors are not
// recovered: a body that nests past the bound is rejected either way.
func (s *Scanner) ScanWithFallback(body string) Result {
	names, err := s.Scan(body)
	if err == nil {
		return Result{Names: names}
	}
	var depthErr *core.DepthExceededError
	if errors.As(err, &depthErr) {
		return Result{Cause: err, Degraded: true}
	}
	s.logger.Debug("token scan failed, using pattern fallback", "error", err)
	return Result{Names: fallbackNames(body), Degraded: true, Cause: err}
}

func fallbackNames(body string) []string {
	text := reBlockComment.ReplaceAllString(body, " ")
	text = reLineComment.ReplaceAllString(text, " ")
	text = reStringLit.ReplaceAllString(text, "''")

	var refs []Reference
	for _, m := range reRelation.FindAllStringSubmatch(text, -1) {
		if m[2] != "" {
			continue // table function
		}
		name := unquoteDotted(m[1])
		if name == "" || sqltext.IsKeyword(strings.ToLower(name)) {
			continue
		}
		refs = append(refs, Reference{Name: name, Qualified: strings.Contains(name, ".")})
	}
	return Names(refs)
}

func unquoteDotted(raw string) string {
	parts := strings.Split(raw, ".")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, "\"`")
		if p == "" {
			return ""
		}
		parts[i] = p
	}
	return strings.Join(parts, ".")
}
