package compose

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expression driver

	"github.com/leapstack-labs/ctesplit/internal/extract"
	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// Validator checks that rendered SQL is structurally sound.
type Validator interface {
	Validate(sql string) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(sql string) error

// Validate calls f(sql).
func (f ValidatorFunc) Validate(sql string) error {
	return f(sql)
}

// TokenValidator is the dialect-neutral check: the text must tokenize,
// parentheses must balance, and the WITH block must extract cleanly.
type TokenValidator struct{}

// Validate implements Validator.
func (TokenValidator) Validate(sql string) error {
	toks, err := sqltext.Tokenize(sql)
	if err != nil {
		return err
	}
	if err := sqltext.CheckBalanced(toks); err != nil {
		return err
	}
	_, err = extract.Extract(sql)
	return err
}

// MySQLValidator parses the statement with the TiDB MySQL parser.
type MySQLValidator struct {
	token TokenValidator
}

// NewMySQLValidator creates a MySQLValidator.
func NewMySQLValidator() *MySQLValidator {
	return &MySQLValidator{}
}

// Validate implements Validator.
func (v *MySQLValidator) Validate(sql string) error {
	if err := v.token.Validate(sql); err != nil {
		return err
	}
	// parsers are not safe for concurrent use
	if _, err := parser.New().ParseOneStmt(sql, "", ""); err != nil {
		return fmt.Errorf("mysql parser rejected statement: %w", err)
	}
	return nil
}

// Canonical parses sql with the TiDB parser and restores it in canonical
// form, so that two statements can be compared ignoring whitespace and
// keyword case.
func Canonical(sql string) (string, error) {
	node, err := parser.New().ParseOneStmt(sql, "", "")
	if err != nil {
		return "", err
	}
	return restore(node)
}

func restore(node ast.Node) (string, error) {
	var b strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &b)
	if err := node.Restore(ctx); err != nil {
		return "", err
	}
	return b.String(), nil
}
