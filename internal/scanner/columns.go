package scanner

import (
	"strings"

	"github.com/leapstack-labs/ctesplit/pkg/sqltext"
)

// OutputColumns infers the column names produced by the outermost SELECT
// of body. Items without a derivable name (expressions without alias,
// star projections) are skipped. A body that is not a SELECT yields nil.
func OutputColumns(body string) ([]string, error) {
	toks, err := sqltext.Tokenize(body)
	if err != nil {
		return nil, err
	}
	cur := sqltext.NewCursor(toks)

	if cur.Check(sqltext.TOKEN_WITH) {
		// skip a leading WITH list
		cur.Next()
		cur.Match(sqltext.TOKEN_RECURSIVE)
		for !cur.AtEOF() && !cur.Check(sqltext.TOKEN_SELECT) {
			if cur.Check(sqltext.TOKEN_LPAREN) {
				if _, err := cur.SkipGroup(); err != nil {
					return nil, err
				}
				continue
			}
			cur.Next()
		}
	}
	for cur.Check(sqltext.TOKEN_LPAREN) {
		cur.Next()
	}
	if !cur.Match(sqltext.TOKEN_SELECT) {
		return nil, nil
	}
	if cur.Match(sqltext.TOKEN_DISTINCT) {
		if cur.Match(sqltext.TOKEN_ON) && cur.Check(sqltext.TOKEN_LPAREN) {
			if _, err := cur.SkipGroup(); err != nil {
				return nil, err
			}
		}
	} else {
		cur.Match(sqltext.TOKEN_ALL)
	}

	var cols []string
	for {
		item, err := selectItem(cur)
		if err != nil {
			return nil, err
		}
		if name := itemName(item); name != "" {
			cols = append(cols, name)
		}
		if !cur.Match(sqltext.TOKEN_COMMA) {
			break
		}
	}
	return cols, nil
}

// selectItem collects the tokens of one select-list item, leaving the
// cursor on the separating comma or the token that ends the list.
func selectItem(cur *sqltext.Cursor) ([]sqltext.Token, error) {
	var item []sqltext.Token
	for {
		tok := cur.Tok()
		switch tok.Type {
		case sqltext.TOKEN_EOF, sqltext.TOKEN_COMMA, sqltext.TOKEN_RPAREN, sqltext.TOKEN_FROM,
			sqltext.TOKEN_WHERE, sqltext.TOKEN_GROUP, sqltext.TOKEN_HAVING, sqltext.TOKEN_ORDER,
			sqltext.TOKEN_LIMIT, sqltext.TOKEN_UNION, sqltext.TOKEN_INTERSECT, sqltext.TOKEN_EXCEPT,
			sqltext.TOKEN_WINDOW, sqltext.TOKEN_QUALIFY, sqltext.TOKEN_SEMICOLON:
			return item, nil
		case sqltext.TOKEN_LPAREN:
			// collapse groups to a single marker token
			item = append(item, tok)
			if _, err := cur.SkipGroup(); err != nil {
				return nil, err
			}
			continue
		}
		item = append(item, tok)
		cur.Next()
	}
}

func itemName(item []sqltext.Token) string {
	n := len(item)
	if n == 0 {
		return ""
	}
	last := item[n-1]
	if last.Type != sqltext.TOKEN_IDENT {
		return ""
	}
	switch {
	case n == 1:
		return last.Literal
	case item[n-2].Type == sqltext.TOKEN_AS:
		return last.Literal
	case item[n-2].Type == sqltext.TOKEN_DOT:
		// qualified column: t.col
		for i := 0; i < n; i++ {
			if i%2 == 0 && item[i].Type != sqltext.TOKEN_IDENT {
				return ""
			}
			if i%2 == 1 && item[i].Type != sqltext.TOKEN_DOT {
				return ""
			}
		}
		return last.Literal
	case last.Quoted:
		return last.Literal
	case strings.EqualFold(last.Literal, "end"):
		// CASE ... END
		return ""
	case item[n-2].Is(sqltext.TOKEN_IDENT, sqltext.TOKEN_NUMBER, sqltext.TOKEN_STRING, sqltext.TOKEN_LPAREN, sqltext.TOKEN_RBRACKET):
		// implicit alias: expr name
		return last.Literal
	}
	return ""
}
