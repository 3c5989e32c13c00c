// Package plugin defines sprocket's declarative data model: sources, plugins, templates, and the
// config that ties them together in a semantically significant order.
package plugin

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config is the normalized, validated, in-memory form of a user's config file: an ordered plugin
// sequence, a templates map, optional global defaults, and a target shell.
type Config struct {
	Shell        Shell
	Plugins      []Plugin
	Templates    map[string]Template
	DefaultApply []string
	// DefaultMatch overrides the shell's built-in Match patterns for every plugin that declares
	// no Use patterns. Nil means "use the shell's built-in defaults".
	DefaultMatch []string
}

// configDecl is the raw TOML shape of a config file, mirroring forklift's *Decl structs
// (PalletDecl, RepoConfig) which hold the as-written document before normalization.
type configDecl struct {
	Shell     string                `toml:"shell"`
	Apply     []string              `toml:"apply,omitempty"`
	Match     []string              `toml:"match,omitempty"`
	Templates map[string]string     `toml:"templates,omitempty"`
	Plugins   map[string]pluginDecl `toml:"plugins,omitempty"`
}

type pluginDecl struct {
	Github     string            `toml:"github,omitempty"`
	Gist       string            `toml:"gist,omitempty"`
	Git        string            `toml:"git,omitempty"`
	Remote     string            `toml:"remote,omitempty"`
	Local      string            `toml:"local,omitempty"`
	Inline     string            `toml:"inline,omitempty"`
	Branch     string            `toml:"branch,omitempty"`
	Tag        string            `toml:"tag,omitempty"`
	Rev        string            `toml:"rev,omitempty"`
	Submodules *bool             `toml:"submodules,omitempty"`
	Dir        string            `toml:"dir,omitempty"`
	Use        []string          `toml:"use,omitempty"`
	Apply      []string          `toml:"apply,omitempty"`
	Profiles   []string          `toml:"profiles,omitempty"`
	Hooks      map[string]string `toml:"hooks,omitempty"`
}

// pluginHeader matches a top-level "[plugins.NAME]" table header (not a nested
// "[plugins.NAME.hooks]" one), so we can recover the declaration order that go-toml/v2's
// map[string]pluginDecl decoding otherwise discards. TOML tables aren't inherently ordered once
// they land in a Go map; forklift never needs this since its repo/pallet configs aren't
// order-sensitive, so this is sprocket-specific plumbing to satisfy the order-preservation
// invariant in spec.md §3/§8.
var pluginHeader = regexp.MustCompile(`^\[plugins\.("(?:[^"\\]|\\.)*"|[A-Za-z0-9_-]+)\]\s*$`)

// Load reads, parses, normalizes, and validates the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read config file %s", path)
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	var decl configDecl
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decl); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, &ConfigError{Tag: ErrUnknownField, Message: strictErr.Error()}
		}
		return nil, &ConfigError{Tag: ErrParse, Message: err.Error()}
	}

	order := pluginDeclOrder(raw, decl.Plugins)

	cfg := &Config{
		Shell:        Shell(decl.Shell),
		Templates:    map[string]Template{},
		DefaultApply: decl.Apply,
		DefaultMatch: decl.Match,
	}
	if cfg.Shell == "" {
		cfg.Shell = ShellZsh
	}
	if cfg.Shell != ShellBash && cfg.Shell != ShellZsh {
		return nil, &ConfigError{Tag: ErrParse, Field: "shell", Message: fmt.Sprintf(
			"unsupported shell %q: must be \"bash\" or \"zsh\"", decl.Shell,
		)}
	}

	// Rule 4: template defaults.
	for name, body := range decl.Templates {
		cfg.Templates[name] = Template{Name: name, Body: body}
	}
	for name, body := range BuiltinTemplates() {
		if _, ok := cfg.Templates[name]; !ok {
			cfg.Templates[name] = Template{Name: name, Body: body}
		}
	}

	// Rule 5: a plugin with no apply inherits the global default; the global default, if absent,
	// is ["source"].
	if len(cfg.DefaultApply) == 0 {
		cfg.DefaultApply = []string{"source"}
	}

	seen := map[string]bool{}
	for _, name := range order {
		decl, ok := decl.Plugins[name]
		if !ok {
			continue
		}
		if seen[name] {
			return nil, &ConfigError{Tag: ErrDuplicateName, Plugin: name, Message: "plugin name is declared more than once"}
		}
		seen[name] = true

		p, err := normalizePlugin(name, decl, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Plugins = append(cfg.Plugins, p)
	}
	return cfg, nil
}

// pluginDeclOrder recovers the order in which "[plugins.X]" tables appear in the source text,
// falling back to a stable lexicographic order for any declared plugin it fails to locate (e.g.
// if the plugin table was written as an inline table inside another construct).
func pluginDeclOrder(raw []byte, decls map[string]pluginDecl) []string {
	order := make([]string, 0, len(decls))
	found := map[string]bool{}
	for _, line := range strings.Split(string(raw), "\n") {
		m := pluginHeader.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := unquoteTOMLKey(m[1])
		if _, ok := decls[name]; !ok || found[name] {
			continue
		}
		found[name] = true
		order = append(order, name)
	}
	remaining := make([]string, 0, len(decls))
	for name := range decls {
		if !found[name] {
			remaining = append(remaining, name)
		}
	}
	sort.Strings(remaining)
	return append(order, remaining...)
}

func unquoteTOMLKey(key string) string {
	if len(key) >= 2 && key[0] == '"' && key[len(key)-1] == '"' {
		return strings.ReplaceAll(key[1:len(key)-1], `\"`, `"`)
	}
	return key
}

// normalizePlugin applies normalization rules 1-3 and 5 to a single plugin declaration. Rule 6
// (default match patterns) is applied at resolve time through Config.MatchPatterns.
func normalizePlugin(name string, d pluginDecl, cfg *Config) (Plugin, error) {
	if d.Inline != "" {
		return normalizeInline(name, d)
	}
	return normalizeExternal(name, d, cfg)
}

func normalizeInline(name string, d pluginDecl) (Plugin, error) {
	// Rule 3: inline exclusivity.
	conflicting := sourceFieldNames(d)
	if len(conflicting) > 0 || d.Branch != "" || d.Tag != "" || d.Rev != "" || d.Dir != "" ||
		len(d.Use) > 0 || d.Submodules != nil {
		conflicting = append(conflicting, refAndSourceOverrideFieldNames(d)...)
		return Plugin{}, &ConfigError{
			Tag: ErrConflictingFields, Plugin: name,
			Message: "inline plugin must not declare source-related fields: " + strings.Join(conflicting, ", "),
		}
	}
	return Plugin{
		Name: name,
		Inline: &InlinePlugin{
			Snippet:  d.Inline,
			Profiles: d.Profiles,
		},
	}, nil
}

func normalizeExternal(name string, d pluginDecl, cfg *Config) (Plugin, error) {
	source, err := normalizeSource(name, d)
	if err != nil {
		return Plugin{}, err
	}

	ref, err := normalizeRef(name, d)
	if err != nil {
		return Plugin{}, err
	}
	source.Ref = ref

	apply := d.Apply
	if len(apply) == 0 {
		apply = cfg.DefaultApply
	}

	return Plugin{
		Name: name,
		External: &ExternalPlugin{
			Source:   source,
			Dir:      d.Dir,
			Use:      d.Use,
			Apply:    apply,
			Profiles: d.Profiles,
			Hooks:    d.Hooks,
		},
	}, nil
}

// sourceFieldNames returns the names of source-selection fields (shorthand or explicit) that are
// set on d.
func sourceFieldNames(d pluginDecl) []string {
	var names []string
	if d.Github != "" {
		names = append(names, "github")
	}
	if d.Gist != "" {
		names = append(names, "gist")
	}
	if d.Git != "" {
		names = append(names, "git")
	}
	if d.Remote != "" {
		names = append(names, "remote")
	}
	if d.Local != "" {
		names = append(names, "local")
	}
	return names
}

func refAndSourceOverrideFieldNames(d pluginDecl) []string {
	var names []string
	if d.Branch != "" {
		names = append(names, "branch")
	}
	if d.Tag != "" {
		names = append(names, "tag")
	}
	if d.Rev != "" {
		names = append(names, "rev")
	}
	if d.Dir != "" {
		names = append(names, "dir")
	}
	if len(d.Use) > 0 {
		names = append(names, "use")
	}
	if d.Submodules != nil {
		names = append(names, "submodules")
	}
	return names
}

// normalizeSource applies rule 1 (source shorthand expansion) and enforces that exactly one
// source-selecting field is set.
func normalizeSource(name string, d pluginDecl) (Source, error) {
	names := sourceFieldNames(d)
	if len(names) == 0 {
		return Source{}, &ConfigError{
			Tag: ErrMissingSource, Plugin: name,
			Message: "plugin must set exactly one of github, gist, git, remote, or local",
		}
	}
	if len(names) > 1 {
		return Source{}, &ConfigError{
			Tag: ErrConflictingFields, Plugin: name,
			Message: "only one source field may be set, found: " + strings.Join(names, ", "),
		}
	}

	submodules := true
	if d.Submodules != nil {
		submodules = *d.Submodules
	}

	switch names[0] {
	case "github":
		return Source{Kind: SourceGit, URL: "https://github.com/" + d.Github, Submodules: submodules}, nil
	case "gist":
		return Source{Kind: SourceGit, URL: "https://gist.github.com/" + d.Gist, Submodules: submodules}, nil
	case "git":
		if err := validateURL(name, "git", d.Git); err != nil {
			return Source{}, err
		}
		return Source{Kind: SourceGit, URL: d.Git, Submodules: submodules}, nil
	case "remote":
		if err := validateURL(name, "remote", d.Remote); err != nil {
			return Source{}, err
		}
		return Source{Kind: SourceRemote, URL: d.Remote}, nil
	case "local":
		return Source{Kind: SourceLocal, Path: d.Local}, nil
	default:
		return Source{}, errors.Errorf("unreachable: unknown source field %s", names[0])
	}
}

func validateURL(plugin, field, raw string) error {
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return &ConfigError{
			Tag: ErrInvalidURL, Plugin: plugin, Field: field,
			Message: fmt.Sprintf("%q is not a valid url", raw),
		}
	}
	return nil
}

// normalizeRef applies rule 2: at most one of branch/tag/rev may be set.
func normalizeRef(name string, d pluginDecl) (Ref, error) {
	var set []string
	var ref Ref
	if d.Branch != "" {
		set = append(set, "branch")
		ref = Ref{Kind: RefBranch, Value: d.Branch}
	}
	if d.Tag != "" {
		set = append(set, "tag")
		ref = Ref{Kind: RefTag, Value: d.Tag}
	}
	if d.Rev != "" {
		set = append(set, "rev")
		ref = Ref{Kind: RefRev, Value: d.Rev}
	}
	if len(set) > 1 {
		return Ref{}, &ConfigError{
			Tag: ErrConflictingFields, Plugin: name,
			Message: "at most one of branch, tag, rev may be set, found: " + strings.Join(set, ", "),
		}
	}
	return ref, nil
}

// MatchPatterns returns the glob patterns to use for a plugin declaring no Use patterns of its
// own: the config's global override if set, otherwise the shell's built-in default (rule 6).
func (c *Config) MatchPatterns(pluginName string) []string {
	if len(c.DefaultMatch) > 0 {
		return c.DefaultMatch
	}
	return DefaultMatchPatterns(c.Shell, pluginName)
}
