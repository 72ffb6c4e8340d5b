package library

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Header is the YAML frontmatter of a library file.
type Header struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty"`
	Columns      []string       `yaml:"columns,omitempty"`
	Recursive    bool           `yaml:"recursive,omitempty"`
	Quoted       bool           `yaml:"quoted,omitempty"`
	Meta         map[string]any `yaml:"meta,omitempty"` // extension point for custom fields
}

var knownFields = map[string]bool{
	"name":         true,
	"description":  true,
	"dependencies": true,
	"columns":      true,
	"recursive":    true,
	"quoted":       true,
	"meta":         true,
}

// frontmatterPattern matches a leading /*--- ... ---*/ block.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

// Parsed is the result of ParseFile.
type Parsed struct {
	Header  Header
	Body    string
	HasYAML bool
	// HasDependencies is set when the header lists dependencies explicitly,
	// even as an empty list.
	HasDependencies bool
}

// ParseFile splits file content into header and body. Content without a
// header is all body. Unknown header fields are rejected.
func ParseFile(content string) (*Parsed, error) {
	p := &Parsed{Body: strings.TrimSpace(content)}

	m := frontmatterPattern.FindStringSubmatch(content)
	if m == nil {
		return p, nil
	}
	p.HasYAML = true
	p.Body = strings.TrimSpace(content[len(m[0]):])

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &raw); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range raw {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}
	_, p.HasDependencies = raw["dependencies"]

	if err := yaml.Unmarshal([]byte(m[1]), &p.Header); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}
	return p, nil
}

// Render produces the on-disk form of an entity: a frontmatter header
// followed by the body.
func Render(e *core.Entity) (string, error) {
	h := Header{
		Name:         e.Name,
		Description:  e.Description,
		Dependencies: e.Dependencies,
		Columns:      e.Columns,
		Recursive:    e.Recursive,
		Quoted:       e.Quoted,
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	return "/*---\n" + buf.String() + "---*/\n" + strings.TrimSpace(e.Body) + "\n", nil
}

// FrontmatterParseError reports a malformed header.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError reports a header field outside the known set.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
