package sqltext

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input string
	pos   int // current byte offset
	line  int // current line number (1-based)
	col   int // current column number (1-based)
	err   *core.SyntaxError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Err returns the first lexical error, if any.
func (l *Lexer) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// peek returns the byte at pos+n without advancing.
func (l *Lexer) peek(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

// advance moves forward n bytes, tracking lines and columns.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else if l.input[l.pos] < utf8.RuneSelf || utf8.RuneStart(l.input[l.pos]) {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) currentPos() core.Position {
	return core.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) fail(pos core.Position, msg string) {
	if l.err == nil {
		l.err = &core.SyntaxError{Pos: pos, Message: msg}
	}
}

// NextToken returns the next token. After a lexical error it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	if l.err != nil {
		return Token{Type: TOKEN_EOF, Pos: l.currentPos(), End: l.pos}
	}
	l.skipWhitespaceAndComments()
	if l.err != nil {
		return Token{Type: TOKEN_EOF, Pos: l.currentPos(), End: l.pos}
	}

	pos := l.currentPos()
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Pos: pos, End: l.pos}
	}

	ch := l.input[l.pos]
	switch {
	case ch == '\'':
		lit, ok := l.readQuoted('\'')
		if !ok {
			l.fail(pos, "unterminated string literal")
		}
		return Token{Type: TOKEN_STRING, Literal: lit, Pos: pos, End: l.pos}
	case ch == '"' || ch == '`':
		lit, ok := l.readQuoted(ch)
		if !ok {
			l.fail(pos, "unterminated quoted identifier")
		}
		return Token{Type: TOKEN_IDENT, Literal: lit, Quoted: true, Pos: pos, End: l.pos}
	case ch == '$':
		return l.readDollar(pos)
	case isDigit(ch) || (ch == '.' && isDigit(l.peek(1))):
		return Token{Type: TOKEN_NUMBER, Literal: l.readNumber(), Pos: pos, End: l.pos}
	case ch == '?':
		l.advance(1)
		return Token{Type: TOKEN_PARAM, Literal: "?", Pos: pos, End: l.pos}
	case (ch == ':' || ch == '@') && isIdentStart(l.runeAt(l.pos+1)):
		l.advance(1)
		l.readWord()
		return Token{Type: TOKEN_PARAM, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
	}

	if r := l.runeAt(l.pos); isIdentStart(r) {
		word := l.readWord()
		return Token{Type: LookupIdent(strings.ToLower(word)), Literal: word, Pos: pos, End: l.pos}
	}

	var tt TokenType
	switch ch {
	case '*':
		tt = TOKEN_STAR
	case '.':
		tt = TOKEN_DOT
	case ',':
		tt = TOKEN_COMMA
	case ';':
		tt = TOKEN_SEMICOLON
	case '(':
		tt = TOKEN_LPAREN
	case ')':
		tt = TOKEN_RPAREN
	case '[':
		tt = TOKEN_LBRACKET
	case ']':
		tt = TOKEN_RBRACKET
	case '+', '-', '/', '%', '=', '<', '>', '!', '|', '&', '^', '~', ':', '#', '@':
		return l.readOperator(pos)
	default:
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		l.advance(size)
		return Token{Type: TOKEN_ILLEGAL, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
	}
	l.advance(1)
	return Token{Type: tt, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
}

// skipWhitespaceAndComments skips whitespace, -- line comments and /* block */ comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			l.advance(1)
		case ch == '-' && l.peek(1) == '-':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance(1)
			}
		case ch == '/' && l.peek(1) == '*':
			start := l.currentPos()
			l.advance(2)
			closed := false
			for l.pos < len(l.input) {
				if l.input[l.pos] == '*' && l.peek(1) == '/' {
					l.advance(2)
					closed = true
					break
				}
				l.advance(1)
			}
			if !closed {
				l.fail(start, "unterminated block comment")
				return
			}
		default:
			return
		}
	}
}

// readQuoted reads a literal delimited by q, where a doubled q is an escape.
func (l *Lexer) readQuoted(q byte) (string, bool) {
	l.advance(1)
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == q {
			if l.peek(1) == q {
				b.WriteByte(q)
				l.advance(2)
				continue
			}
			l.advance(1)
			return b.String(), true
		}
		b.WriteByte(ch)
		l.advance(1)
	}
	return b.String(), false
}

// readDollar reads $1 parameters and $tag$...$tag$ strings.
func (l *Lexer) readDollar(pos core.Position) Token {
	if isDigit(l.peek(1)) {
		l.advance(1)
		for isDigit(l.peek(0)) {
			l.advance(1)
		}
		return Token{Type: TOKEN_PARAM, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
	}

	end := strings.IndexByte(l.input[l.pos+1:], '$')
	if end < 0 {
		l.advance(1)
		return Token{Type: TOKEN_ILLEGAL, Literal: "$", Pos: pos, End: l.pos}
	}
	tag := l.input[l.pos : l.pos+end+2]
	for _, r := range tag[1 : len(tag)-1] {
		if !isIdentPart(r) {
			l.advance(1)
			return Token{Type: TOKEN_ILLEGAL, Literal: "$", Pos: pos, End: l.pos}
		}
	}

	l.advance(len(tag))
	closing := strings.Index(l.input[l.pos:], tag)
	if closing < 0 {
		l.fail(pos, "unterminated dollar-quoted string")
		l.advance(len(l.input) - l.pos)
		return Token{Type: TOKEN_STRING, Pos: pos, End: l.pos}
	}
	lit := l.input[l.pos : l.pos+closing]
	l.advance(closing + len(tag))
	return Token{Type: TOKEN_STRING, Literal: lit, Pos: pos, End: l.pos}
}

// readWord reads an unquoted identifier or keyword.
func (l *Lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.advance(size)
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.peek(0)) {
		l.advance(1)
	}
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.advance(1)
		for isDigit(l.peek(0)) {
			l.advance(1)
		}
	}
	if (l.peek(0) == 'e' || l.peek(0) == 'E') &&
		(isDigit(l.peek(1)) || ((l.peek(1) == '+' || l.peek(1) == '-') && isDigit(l.peek(2)))) {
		l.advance(2)
		for isDigit(l.peek(0)) {
			l.advance(1)
		}
	}
	return l.input[start:l.pos]
}

// readOperator reads a run of operator characters as one token.
func (l *Lexer) readOperator(pos core.Position) Token {
	for l.pos < len(l.input) && strings.IndexByte("+-/%=<>!|&^~:#@", l.input[l.pos]) >= 0 {
		// stop before a comment opener
		if (l.input[l.pos] == '-' && l.peek(1) == '-') || (l.input[l.pos] == '/' && l.peek(1) == '*') {
			if l.pos > pos.Offset {
				break
			}
		}
		l.advance(1)
	}
	return Token{Type: TOKEN_OPERATOR, Literal: l.input[pos.Offset:l.pos], Pos: pos, End: l.pos}
}

func (l *Lexer) runeAt(offset int) rune {
	if offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[offset:])
	return r
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with TOKEN_EOF.
// Unterminated literals and comments are reported as *core.SyntaxError.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	if err := l.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}
