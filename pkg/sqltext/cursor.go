package sqltext

import (
	"fmt"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Cursor walks a token slice produced by Tokenize. The slice always ends
// with TOKEN_EOF, so Tok never runs out of bounds.
type Cursor struct {
	toks []Token
	i    int
}

// NewCursor creates a cursor positioned at the first token.
func NewCursor(toks []Token) *Cursor {
	if len(toks) == 0 || toks[len(toks)-1].Type != TOKEN_EOF {
		toks = append(toks, Token{Type: TOKEN_EOF})
	}
	return &Cursor{toks: toks}
}

// Index returns the position of the current token.
func (c *Cursor) Index() int { return c.i }

// Seek moves the cursor to token index i.
func (c *Cursor) Seek(i int) {
	if i >= len(c.toks) {
		i = len(c.toks) - 1
	}
	c.i = i
}

// Tok returns the current token.
func (c *Cursor) Tok() Token { return c.toks[c.i] }

// Peek returns the token n positions ahead of the current one.
func (c *Cursor) Peek(n int) Token {
	if c.i+n >= len(c.toks) {
		return c.toks[len(c.toks)-1]
	}
	return c.toks[c.i+n]
}

// Next advances to the next token; it never moves past EOF.
func (c *Cursor) Next() {
	if c.i < len(c.toks)-1 {
		c.i++
	}
}

// Check reports whether the current token has type t.
func (c *Cursor) Check(t TokenType) bool { return c.toks[c.i].Type == t }

// Match consumes the current token if it has type t.
func (c *Cursor) Match(t TokenType) bool {
	if c.Check(t) {
		c.Next()
		return true
	}
	return false
}

// Expect consumes a token of type t or returns a syntax error describing what was found.
func (c *Cursor) Expect(t TokenType, what string) (Token, error) {
	tok := c.Tok()
	if tok.Type != t {
		return tok, Unexpected(tok, what)
	}
	c.Next()
	return tok, nil
}

// AtEOF reports whether the cursor reached the end of input.
func (c *Cursor) AtEOF() bool { return c.Check(TOKEN_EOF) }

// SkipGroup expects the current token to be "(" and moves past its matching
// ")". It returns the closing token.
func (c *Cursor) SkipGroup() (Token, error) {
	open, err := c.Expect(TOKEN_LPAREN, `"("`)
	if err != nil {
		return open, err
	}
	depth := 1
	for {
		tok := c.Tok()
		switch tok.Type {
		case TOKEN_EOF:
			return tok, &core.SyntaxError{Pos: open.Pos, Message: "unbalanced parentheses: missing \")\""}
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				c.Next()
				return tok, nil
			}
		}
		c.Next()
	}
}

// Unexpected builds a syntax error for an unexpected token.
func Unexpected(tok Token, expected string) *core.SyntaxError {
	found := tok.Type.String()
	if tok.Type == TOKEN_IDENT || tok.Type.IsKeyword() {
		found = fmt.Sprintf("%q", tok.Literal)
	}
	if tok.Type == TOKEN_EOF {
		found = "end of input"
	}
	return &core.SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected %s, expected %s", found, expected)}
}

// CheckBalanced verifies that parentheses are balanced across the token stream.
func CheckBalanced(toks []Token) error {
	var stack []Token
	for _, tok := range toks {
		switch tok.Type {
		case TOKEN_LPAREN:
			stack = append(stack, tok)
		case TOKEN_RPAREN:
			if len(stack) == 0 {
				return &core.SyntaxError{Pos: tok.Pos, Message: "unbalanced parentheses: unexpected \")\""}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return &core.SyntaxError{Pos: stack[len(stack)-1].Pos, Message: "unbalanced parentheses: missing \")\""}
	}
	return nil
}
