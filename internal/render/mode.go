package render

// Mode classifies a Template as each-file (iterated once per resolved file) or once (expanded a
// single time per plugin). Neither Config nor the Template struct stores this explicitly; it
// falls out of whether the template body references the reserved "file" variable anywhere in its
// expression tree (spec.md §4.4).
type Mode int

const (
	ModeOnce Mode = iota
	ModeEachFile
)

// modeOf inspects a parsed template body and returns ModeEachFile iff any expression in it (at
// any nesting depth, including inside for-loops) starts its access chain with "file".
func modeOf(nodes []node) Mode {
	if referencesFile(nodes) {
		return ModeEachFile
	}
	return ModeOnce
}

// IsEachFile reports whether a template body renders once per resolved file (as opposed to once
// per plugin), by the same static rule the Renderer uses: any reference to the reserved "file"
// variable makes it each-file. Exported so the Resolver can decide whether an empty file list is
// fatal for a given plugin's apply list without duplicating the parser.
func IsEachFile(body string) (bool, error) {
	nodes, err := parse(body)
	if err != nil {
		return false, err
	}
	return modeOf(nodes) == ModeEachFile, nil
}

func referencesFile(nodes []node) bool {
	for _, n := range nodes {
		switch n.kind {
		case nodeExpr:
			if len(n.expr.segments) > 0 && n.expr.segments[0].name == "file" {
				return true
			}
		case nodeFor:
			if len(n.forList.segments) > 0 && n.forList.segments[0].name == "file" {
				return true
			}
			if referencesFile(n.forBody) {
				return true
			}
		}
	}
	return false
}
