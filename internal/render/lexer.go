package render

import (
	"strings"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenExpr           // {{ ... }}
	tokenStmt           // {% ... %}
)

type token struct {
	kind tokenKind
	raw  string // for tokenExpr/tokenStmt, the content between the delimiters, untrimmed
}

// lex splits a template body into a flat stream of text/expr/stmt tokens. Expr and stmt bodies
// are not parsed here; lex only finds their boundaries.
func lex(body string) ([]token, error) {
	var tokens []token
	rest := body
	for {
		exprStart := strings.Index(rest, "{{")
		stmtStart := strings.Index(rest, "{%")

		start, closeDelim := -1, ""
		switch {
		case exprStart == -1 && stmtStart == -1:
			if rest != "" {
				tokens = append(tokens, token{kind: tokenText, raw: rest})
			}
			return tokens, nil
		case exprStart == -1:
			start, closeDelim = stmtStart, "%}"
		case stmtStart == -1:
			start, closeDelim = exprStart, "}}"
		case exprStart < stmtStart:
			start, closeDelim = exprStart, "}}"
		default:
			start, closeDelim = stmtStart, "%}"
		}

		if start > 0 {
			tokens = append(tokens, token{kind: tokenText, raw: rest[:start]})
		}

		openLen := 2
		end := strings.Index(rest[start+openLen:], closeDelim)
		if end == -1 {
			return nil, errors.Errorf("unterminated %q in template", rest[start:start+openLen])
		}
		end += start + openLen

		kind := tokenExpr
		if closeDelim == "%}" {
			kind = tokenStmt
		}
		tokens = append(tokens, token{kind: kind, raw: rest[start+openLen : end]})
		rest = rest[end+len(closeDelim):]
	}
}
