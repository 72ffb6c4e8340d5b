// Package sqltext tokenizes SQL text with byte-accurate positions.
//
// It is deliberately grammar-light: it knows the keywords needed to find
// WITH blocks, relation sources and select lists, and treats every other
// word as an identifier. Callers slice the original input with token
// offsets, so bodies round-trip with their formatting intact.
package sqltext

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// TokenType represents the type of a lexical token.
type TokenType int

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for SQL token conventions
const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	TOKEN_IDENT  // orders, "Order Items", `t`
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello', $$body$$
	TOKEN_PARAM  // $1, ?, :name, @var

	TOKEN_STAR      // *
	TOKEN_OPERATOR  // + - / % = < > <= >= <> != || :: and friends
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]

	keywordStart
	// Keywords (alphabetical)
	TOKEN_ALL
	TOKEN_AS
	TOKEN_BY
	TOKEN_CROSS
	TOKEN_DISTINCT
	TOKEN_EXCEPT
	TOKEN_FETCH
	TOKEN_FOR
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_INNER
	TOKEN_INTERSECT
	TOKEN_JOIN
	TOKEN_LATERAL
	TOKEN_LEFT
	TOKEN_LIMIT
	TOKEN_MATERIALIZED
	TOKEN_MINUS
	TOKEN_NATURAL
	TOKEN_NOT
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_ONLY
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_QUALIFY
	TOKEN_RECURSIVE
	TOKEN_RETURNING
	TOKEN_RIGHT
	TOKEN_SELECT
	TOKEN_TABLE
	TOKEN_UNION
	TOKEN_USING
	TOKEN_VALUES
	TOKEN_WHERE
	TOKEN_WINDOW
	TOKEN_WITH
	keywordEnd
)

var keywords = map[string]TokenType{
	"all":          TOKEN_ALL,
	"as":           TOKEN_AS,
	"by":           TOKEN_BY,
	"cross":        TOKEN_CROSS,
	"distinct":     TOKEN_DISTINCT,
	"except":       TOKEN_EXCEPT,
	"fetch":        TOKEN_FETCH,
	"for":          TOKEN_FOR,
	"from":         TOKEN_FROM,
	"full":         TOKEN_FULL,
	"group":        TOKEN_GROUP,
	"having":       TOKEN_HAVING,
	"inner":        TOKEN_INNER,
	"intersect":    TOKEN_INTERSECT,
	"join":         TOKEN_JOIN,
	"lateral":      TOKEN_LATERAL,
	"left":         TOKEN_LEFT,
	"limit":        TOKEN_LIMIT,
	"materialized": TOKEN_MATERIALIZED,
	"minus":        TOKEN_MINUS,
	"natural":      TOKEN_NATURAL,
	"not":          TOKEN_NOT,
	"offset":       TOKEN_OFFSET,
	"on":           TOKEN_ON,
	"only":         TOKEN_ONLY,
	"order":        TOKEN_ORDER,
	"outer":        TOKEN_OUTER,
	"qualify":      TOKEN_QUALIFY,
	"recursive":    TOKEN_RECURSIVE,
	"returning":    TOKEN_RETURNING,
	"right":        TOKEN_RIGHT,
	"select":       TOKEN_SELECT,
	"table":        TOKEN_TABLE,
	"union":        TOKEN_UNION,
	"using":        TOKEN_USING,
	"values":       TOKEN_VALUES,
	"where":        TOKEN_WHERE,
	"window":       TOKEN_WINDOW,
	"with":         TOKEN_WITH,
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:       "EOF",
	TOKEN_ILLEGAL:   "ILLEGAL",
	TOKEN_IDENT:     "IDENT",
	TOKEN_NUMBER:    "NUMBER",
	TOKEN_STRING:    "STRING",
	TOKEN_PARAM:     "PARAM",
	TOKEN_STAR:      "*",
	TOKEN_OPERATOR:  "OPERATOR",
	TOKEN_DOT:       ".",
	TOKEN_COMMA:     ",",
	TOKEN_SEMICOLON: ";",
	TOKEN_LPAREN:    "(",
	TOKEN_RPAREN:    ")",
	TOKEN_LBRACKET:  "[",
	TOKEN_RBRACKET:  "]",
}

func init() {
	for word, tt := range keywords {
		tokenNames[tt] = strings.ToUpper(word)
	}
}

// String returns a string representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// IsKeyword reports whether the token type is a reserved keyword.
func (t TokenType) IsKeyword() bool {
	return t > keywordStart && t < keywordEnd
}

// LookupIdent returns the keyword token type for a lower-cased word, or TOKEN_IDENT.
func LookupIdent(word string) TokenType {
	if tok, ok := keywords[word]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// IsKeyword reports whether word (any case) is a reserved keyword.
func IsKeyword(word string) bool {
	return LookupIdent(strings.ToLower(word)) != TOKEN_IDENT
}

// Token is a lexical token.
type Token struct {
	Type TokenType
	// Literal is the source text for words and operators, the unescaped
	// value for strings and quoted identifiers.
	Literal string
	// Quoted is set for identifiers written with quotes or backticks.
	Quoted bool
	// Pos is the start of the token.
	Pos core.Position
	// End is the byte offset just past the token.
	End int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}

// Is reports whether the token has any of the given types.
func (t Token) Is(types ...TokenType) bool {
	for _, tt := range types {
		if t.Type == tt {
			return true
		}
	}
	return false
}
