package render

import (
	"strings"

	"github.com/pkg/errors"
)

// env is the variable scope a template body is evaluated against. Values are string, []string, or
// map[string]string — the narrow set sprocket's reserved context variables ("file", "name",
// "dir", "files", "hooks") and for-loop variables ever take.
type env map[string]any

func (e env) with(name string, value any) env {
	child := make(env, len(e)+1)
	for k, v := range e {
		child[k] = v
	}
	child[name] = value
	return child
}

// renderNodes evaluates a parsed node tree against scope, concatenating every node's output.
func renderNodes(nodes []node, scope env) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeExpr:
			value, err := evalExpr(n.expr, scope)
			if err != nil {
				return "", err
			}
			s, err := applyFilters(n.expr.filters, stringify(value))
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case nodeFor:
			value, err := evalExpr(n.forList, scope)
			if err != nil {
				return "", err
			}
			items, ok := value.([]string)
			if !ok {
				return "", errors.Errorf("for-loop expression %s is not a list", describeExpr(n.forList))
			}
			for _, item := range items {
				out, err := renderNodes(n.forBody, scope.with(n.forVar, item))
				if err != nil {
					return "", err
				}
				b.WriteString(out)
			}
		}
	}
	return b.String(), nil
}

// evalExpr resolves a dotted access chain against scope. It returns nil (not an error) the moment
// an optional segment's base is absent, per spec.md's "foo?.bar yields an empty string" rule.
func evalExpr(e *expr, scope env) (any, error) {
	var cur any
	for i, seg := range e.segments {
		if i == 0 {
			v, ok := scope[seg.name]
			if !ok {
				if seg.optional || (len(e.segments) > 1 && e.segments[1].optional) {
					return nil, nil
				}
				return nil, errors.Errorf("undefined variable %q", seg.name)
			}
			cur = v
			continue
		}

		if cur == nil {
			// a prior optional segment already came up empty; keep propagating that.
			return nil, nil
		}

		next, ok, err := field(cur, seg.name)
		if err != nil {
			return nil, err
		}
		if !ok {
			if seg.optional {
				return nil, nil
			}
			return nil, errors.Errorf("undefined field %q", seg.name)
		}
		cur = next
	}
	return cur, nil
}

// field looks up name on cur, which must be a map[string]string (sprocket's only compound
// context value, "hooks").
func field(cur any, name string) (value any, ok bool, err error) {
	m, isMap := cur.(map[string]string)
	if !isMap {
		return nil, false, errors.Errorf("cannot access field %q on a non-object value", name)
	}
	v, ok := m[name]
	return v, ok, nil
}

// stringify converts an evaluated value to its textual form for substitution. nil (an absent
// optional access) renders as the empty string.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	default:
		return ""
	}
}

func applyFilters(filters []string, s string) (string, error) {
	for _, f := range filters {
		switch f {
		case "nl":
			if s != "" {
				s += "\n"
			}
		default:
			return "", errors.Errorf("unknown filter %q", f)
		}
	}
	return s, nil
}

func describeExpr(e *expr) string {
	names := make([]string, len(e.segments))
	for i, s := range e.segments {
		names[i] = s.name
	}
	return strings.Join(names, ".")
}
