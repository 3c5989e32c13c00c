package render

import (
	"strings"

	"github.com/pkg/errors"
)

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeExpr
	nodeFor
)

// node is one element of a parsed template body: literal text, a `{{ expr }}` substitution, or a
// `{% for x in xs %} ... {% endfor %}` block.
type node struct {
	kind nodeKind

	text string // nodeText

	expr *expr // nodeExpr

	forVar  string // nodeFor: loop variable name
	forList *expr  // nodeFor: the list expression iterated over
	forBody []node // nodeFor: the nodes between "for" and "endfor"
}

// segment is one step of a dotted access chain; optional marks a step reached via "?." rather
// than ".", meaning an absent base yields an empty string instead of an error.
type segment struct {
	name     string
	optional bool
}

// expr is a variable reference with dotted access and a chain of filters, e.g. "hooks?.pre | nl".
type expr struct {
	segments []segment
	filters  []string
}

// parse builds a node tree from a template body.
func parse(body string) ([]node, error) {
	tokens, err := lex(body)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(tokens)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.New("unexpected {% endfor %} with no matching {% for %}")
	}
	return nodes, nil
}

// parseNodes consumes tokens until it either runs out or hits an "endfor" it doesn't own,
// returning the parsed nodes and whatever tokens remain (used by the recursive for-loop case).
func parseNodes(tokens []token) ([]node, []token, error) {
	var nodes []node
	for len(tokens) > 0 {
		tok := tokens[0]
		switch tok.kind {
		case tokenText:
			nodes = append(nodes, node{kind: nodeText, text: tok.raw})
			tokens = tokens[1:]
		case tokenExpr:
			e, err := parseExpr(tok.raw)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node{kind: nodeExpr, expr: e})
			tokens = tokens[1:]
		case tokenStmt:
			stmt := strings.TrimSpace(tok.raw)
			if stmt == "endfor" {
				return nodes, tokens, nil
			}
			forVar, listExpr, err := parseFor(stmt)
			if err != nil {
				return nil, nil, err
			}
			body, remaining, err := parseNodes(tokens[1:])
			if err != nil {
				return nil, nil, err
			}
			if len(remaining) == 0 || strings.TrimSpace(remaining[0].raw) != "endfor" {
				return nil, nil, errors.Errorf("missing {%% endfor %%} for {%% %s %%}", stmt)
			}
			nodes = append(nodes, node{kind: nodeFor, forVar: forVar, forList: listExpr, forBody: body})
			tokens = remaining[1:]
		}
	}
	return nodes, nil, nil
}

// parseFor parses a "for x in xs" statement body.
func parseFor(stmt string) (variable string, list *expr, err error) {
	fields := strings.Fields(stmt)
	if len(fields) != 4 || fields[0] != "for" || fields[2] != "in" {
		return "", nil, errors.Errorf(`malformed for-loop statement %q, want "for x in xs"`, stmt)
	}
	list, err = parseExpr(fields[3])
	if err != nil {
		return "", nil, err
	}
	return fields[1], list, nil
}

// parseExpr parses an expression body such as "foo?.bar.baz | nl".
func parseExpr(raw string) (*expr, error) {
	parts := strings.Split(raw, "|")
	pathPart := strings.TrimSpace(parts[0])
	if pathPart == "" {
		return nil, errors.New("empty expression")
	}

	var filters []string
	for _, f := range parts[1:] {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, errors.New("empty filter name")
		}
		filters = append(filters, f)
	}

	segments, err := parsePath(pathPart)
	if err != nil {
		return nil, err
	}
	return &expr{segments: segments, filters: filters}, nil
}

// parsePath splits a dotted access chain like "foo?.bar.baz" into segments, tracking which step
// (if any) was reached via the optional "?." operator.
func parsePath(path string) ([]segment, error) {
	var segments []segment
	rest := path
	optional := false
	for {
		var name string
		nextDot := strings.IndexAny(rest, ".")
		if nextDot == -1 {
			name = rest
			rest = ""
		} else {
			name = rest[:nextDot]
			rest = rest[nextDot+1:]
		}

		thisOptional := false
		if strings.HasSuffix(name, "?") {
			thisOptional = true
			name = strings.TrimSuffix(name, "?")
		}
		if name == "" {
			return nil, errors.Errorf("malformed path %q", path)
		}
		segments = append(segments, segment{name: name, optional: optional})
		optional = thisOptional

		if rest == "" {
			break
		}
	}
	return segments, nil
}
