package plugin

// Template is a named string in sprocket's small templating language (see package render for the
// engine that evaluates it). Whether a given Template is evaluated once per resolved file or once
// per plugin isn't declared separately — it falls out of whether the template body references the
// reserved each-file variable "file"; see render.Mode.
type Template struct {
	Name string
	Body string
}

// BuiltinTemplateNames lists the template names Config normalization rule 4 inserts defaults for
// when the user hasn't defined them.
var BuiltinTemplateNames = []string{"PATH", "path", "fpath", "source"}

// BuiltinTemplates returns the default template bodies. Both bash and zsh share the same default
// bodies here; shells differ in their default Match patterns, not their template bodies.
func BuiltinTemplates() map[string]string {
	return map[string]string{
		"source": `source "{{ file }}"`,
		"PATH":   `export PATH="{{ dir }}:$PATH"`,
		"path":   `path=("{{ dir }}" $path)`,
		"fpath":  `fpath=("{{ dir }}" $fpath)`,
	}
}

// DefaultMatchPatterns returns the shell-specific ordered list of default glob patterns
// consulted when a plugin declares no Use patterns (§4.1 rule 6 / §6).
func DefaultMatchPatterns(shell Shell, pluginName string) []string {
	switch shell {
	case ShellBash:
		return []string{
			pluginName + ".plugin.bash",
			"{*.plugin.bash,*.bash,*.sh}",
		}
	default: // zsh, and the fallback for any future shell
		return []string{
			pluginName + ".plugin.zsh",
			"{*.plugin.zsh,*.zsh,*.sh}",
			"{*.zsh-theme}",
		}
	}
}
