package plugin

import "github.com/sprocket-run/sprocket/pkg/structures"

// Shell is one of the small, fixed set of target shells sprocket renders scripts for.
type Shell string

const (
	ShellBash Shell = "bash"
	ShellZsh  Shell = "zsh"
)

// Plugin is either an External Plugin (drawing content from a Source) or an Inline Plugin
// (a literal shell snippet declared directly in the config). Exactly one of External/Inline is
// non-nil; Config normalization enforces this (rule 3, "inline exclusivity").
type Plugin struct {
	// Name is this plugin's stable, config-unique identifier.
	Name     string
	External *ExternalPlugin
	Inline   *InlinePlugin
}

// ExternalPlugin references a Source and the overrides governing how it is resolved and
// rendered.
type ExternalPlugin struct {
	Source Source
	// Dir is an optional subdirectory within the source tree that the plugin is rooted at.
	Dir string
	// Use is the ordered list of per-plugin glob patterns overriding the shell's default Match
	// patterns. A non-nil (even empty) Use fully replaces the defaults.
	Use []string
	// Apply is the ordered list of template names this plugin renders through. Empty means
	// "inherit the config's global default".
	Apply []string
	// Profiles is the set of profile names that enable this plugin. Empty means "always enabled".
	Profiles []string
	// Hooks maps hook name ("pre", "post", ...) to a literal shell snippet rendered around the
	// plugin's templated output.
	Hooks map[string]string
}

// InlinePlugin carries a literal shell snippet with no backing Source.
type InlinePlugin struct {
	Snippet  string
	Profiles []string
}

// Enabled reports whether this plugin is active given the set of currently active profile names:
// true iff its Profiles list is empty or intersects active.
func (p Plugin) Enabled(active structures.Set[string]) bool {
	profiles := p.Profiles()
	if len(profiles) == 0 {
		return true
	}
	return structures.NewSet(profiles...).Intersects(active)
}

// Profiles returns the plugin's profile list regardless of which variant it is.
func (p Plugin) Profiles() []string {
	switch {
	case p.External != nil:
		return p.External.Profiles
	case p.Inline != nil:
		return p.Inline.Profiles
	default:
		return nil
	}
}
