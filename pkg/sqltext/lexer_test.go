package sqltext

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func TestTokenize_Basic(t *testing.T) {
	toks, err := Tokenize("SELECT a, b.c FROM t WHERE x >= 1.5")
	require.NoError(t, err)

	assert.Equal(t, []TokenType{
		TOKEN_SELECT, TOKEN_IDENT, TOKEN_COMMA, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT,
		TOKEN_FROM, TOKEN_IDENT, TOKEN_WHERE, TOKEN_IDENT, TOKEN_OPERATOR, TOKEN_NUMBER,
		TOKEN_EOF,
	}, tokenTypes(toks))
	assert.Equal(t, ">=", toks[10].Literal)
}

func TestTokenize_Offsets(t *testing.T) {
	input := "WITH a AS (SELECT 1)\nSELECT * FROM a"
	toks, err := Tokenize(input)
	require.NoError(t, err)

	for _, tok := range toks[:len(toks)-1] {
		if tok.Quoted || tok.Type == TOKEN_STRING {
			continue
		}
		assert.Equal(t, tok.Literal, input[tok.Pos.Offset:tok.End], "token %s", tok)
	}

	// second line starts at SELECT
	var second Token
	for _, tok := range toks {
		if tok.Pos.Line == 2 {
			second = tok
			break
		}
	}
	assert.Equal(t, TOKEN_SELECT, second.Type)
	assert.Equal(t, 1, second.Pos.Column)
}

func TestTokenize_Literals(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		typ     TokenType
		literal string
		quoted  bool
	}{
		{"string with escaped quote", "'it''s'", TOKEN_STRING, "it's", false},
		{"double quoted identifier", `"Order Items"`, TOKEN_IDENT, "Order Items", true},
		{"backtick identifier", "`select`", TOKEN_IDENT, "select", true},
		{"dollar quoted string", "$fn$ FROM x $fn$", TOKEN_STRING, " FROM x ", false},
		{"empty dollar tag", "$$a$$", TOKEN_STRING, "a", false},
		{"positional parameter", "$12", TOKEN_PARAM, "$12", false},
		{"named parameter", ":since", TOKEN_PARAM, ":since", false},
		{"question parameter", "?", TOKEN_PARAM, "?", false},
		{"scientific number", "1e-5", TOKEN_NUMBER, "1e-5", false},
		{"unicode identifier", "café", TOKEN_IDENT, "café", false},
		{"keyword any case", "SeLeCt", TOKEN_SELECT, "SeLeCt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize(tt.input)
			require.NoError(t, err)
			require.Len(t, toks, 2)
			assert.Equal(t, tt.typ, toks[0].Type)
			assert.Equal(t, tt.literal, toks[0].Literal)
			assert.Equal(t, tt.quoted, toks[0].Quoted)
		})
	}
}

func TestTokenize_SkipsComments(t *testing.T) {
	toks, err := Tokenize("-- from hidden\nSELECT /* FROM other */ 1")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TOKEN_SELECT, TOKEN_NUMBER, TOKEN_EOF}, tokenTypes(toks))
}

func TestTokenize_CastOperator(t *testing.T) {
	toks, err := Tokenize("x::int")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TOKEN_IDENT, TOKEN_OPERATOR, TOKEN_IDENT, TOKEN_EOF}, tokenTypes(toks))
	assert.Equal(t, "::", toks[1].Literal)
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"unterminated string", "SELECT 'abc", 1, 8},
		{"unterminated identifier", "SELECT \"abc", 1, 8},
		{"unterminated block comment", "SELECT 1\n/* open", 2, 1},
		{"unterminated dollar string", "SELECT $$abc", 1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			require.Error(t, err)

			var syntaxErr *core.SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, tt.line, syntaxErr.Pos.Line)
			assert.Equal(t, tt.col, syntaxErr.Pos.Column)
		})
	}
}

func TestCheckBalanced(t *testing.T) {
	ok, err := Tokenize("SELECT (1 + (2))")
	require.NoError(t, err)
	assert.NoError(t, CheckBalanced(ok))

	open, err := Tokenize("SELECT (1")
	require.NoError(t, err)
	assert.Error(t, CheckBalanced(open))

	closed, err := Tokenize("SELECT 1)")
	require.NoError(t, err)
	assert.Error(t, CheckBalanced(closed))
}

func TestCursor_SkipGroup(t *testing.T) {
	toks, err := Tokenize("(a (b) c) d")
	require.NoError(t, err)

	c := NewCursor(toks)
	closing, err := c.SkipGroup()
	require.NoError(t, err)
	assert.Equal(t, TOKEN_RPAREN, closing.Type)
	assert.Equal(t, "d", c.Tok().Literal)

	toks, err = Tokenize("(a (b)")
	require.NoError(t, err)
	_, err = NewCursor(toks).SkipGroup()
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "orders", QuoteIdent("orders", QuoteDouble))
	assert.Equal(t, `"Order Items"`, QuoteIdent("Order Items", QuoteDouble))
	assert.Equal(t, "`select`", QuoteIdent("select", QuoteBacktick))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`, QuoteDouble))
	assert.Equal(t, `"1st"`, QuoteIdent("1st", QuoteDouble))
	assert.Equal(t, `"orders"`, Quote("orders", QuoteDouble))
	assert.Equal(t, "`MyCte`", Quote("MyCte", QuoteBacktick))
}
