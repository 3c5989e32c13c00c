package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	raw := []byte(`
shell = "zsh"

[plugins.zebra]
github = "a/zebra"

[plugins.apple]
github = "a/apple"

[plugins."quoted-name"]
github = "a/quoted"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 3)
	assert.Equal(t, []string{"zebra", "apple", "quoted-name"}, []string{
		cfg.Plugins[0].Name, cfg.Plugins[1].Name, cfg.Plugins[2].Name,
	})
}

func TestLoadExpandsGithubShorthand(t *testing.T) {
	raw := []byte(`
[plugins.example]
github = "owner/repo"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	require.NotNil(t, cfg.Plugins[0].External)
	assert.Equal(t, SourceGit, cfg.Plugins[0].External.Source.Kind)
	assert.Equal(t, "https://github.com/owner/repo", cfg.Plugins[0].External.Source.URL)
	assert.True(t, cfg.Plugins[0].External.Source.Submodules)
}

func TestLoadExpandsGistShorthand(t *testing.T) {
	raw := []byte(`
[plugins.example]
gist = "abcdef123456"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/abcdef123456", cfg.Plugins[0].External.Source.URL)
}

func TestLoadRejectsConflictingSourceFields(t *testing.T) {
	raw := []byte(`
[plugins.example]
github = "owner/repo"
git = "https://example.com/other.git"
`)
	_, err := parse(raw)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrConflictingFields, cerr.Tag)
}

func TestLoadRejectsMissingSource(t *testing.T) {
	raw := []byte(`
[plugins.example]
branch = "main"
`)
	_, err := parse(raw)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMissingSource, cerr.Tag)
}

func TestLoadRejectsConflictingRefSelectors(t *testing.T) {
	raw := []byte(`
[plugins.example]
github = "owner/repo"
branch = "main"
tag = "v1.0.0"
`)
	_, err := parse(raw)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrConflictingFields, cerr.Tag)
}

func TestLoadRejectsInlineWithSourceFields(t *testing.T) {
	raw := []byte(`
[plugins.example]
inline = "echo hi"
github = "owner/repo"
`)
	_, err := parse(raw)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrConflictingFields, cerr.Tag)
}

func TestLoadAcceptsPlainInline(t *testing.T) {
	raw := []byte(`
[plugins.greeting]
inline = "echo hello"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	require.NotNil(t, cfg.Plugins[0].Inline)
	assert.Equal(t, "echo hello", cfg.Plugins[0].Inline.Snippet)
}

func TestLoadFillsBuiltinTemplateDefaults(t *testing.T) {
	cfg, err := parse([]byte(`shell = "bash"`))
	require.NoError(t, err)
	for _, name := range BuiltinTemplateNames {
		_, ok := cfg.Templates[name]
		assert.True(t, ok, "expected builtin template %q", name)
	}
}

func TestLoadUserTemplateOverridesBuiltin(t *testing.T) {
	raw := []byte(`
[templates]
source = "custom-source {{ file }}"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "custom-source {{ file }}", cfg.Templates["source"].Body)
}

func TestLoadDefaultApplyFallsBackToSource(t *testing.T) {
	raw := []byte(`
[plugins.example]
github = "owner/repo"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"source"}, cfg.Plugins[0].External.Apply)
}

func TestLoadPluginApplyOverridesGlobalDefault(t *testing.T) {
	raw := []byte(`
apply = ["source"]

[plugins.example]
github = "owner/repo"
apply = ["PATH", "source"]
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"PATH", "source"}, cfg.Plugins[0].External.Apply)
}

func TestMatchPatternsFallsBackToShellDefault(t *testing.T) {
	cfg, err := parse([]byte(`shell = "bash"`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMatchPatterns(ShellBash, "foo"), cfg.MatchPatterns("foo"))
}

func TestMatchPatternsUsesGlobalOverride(t *testing.T) {
	raw := []byte(`
shell = "zsh"
match = ["*.sh"]
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.sh"}, cfg.MatchPatterns("anything"))
}

func TestLoadRejectsUnknownShell(t *testing.T) {
	_, err := parse([]byte(`shell = "fish"`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	raw := []byte(`
[plugins.example]
github = "owner/repo"
verison = "1.0.0"
`)
	_, err := parse(raw)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrUnknownField, cerr.Tag)
}

func TestLoadLocalSourceNoURLValidation(t *testing.T) {
	raw := []byte(`
[plugins.example]
local = "~/my-plugins/thing"
`)
	cfg, err := parse(raw)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, cfg.Plugins[0].External.Source.Kind)
	assert.Equal(t, "~/my-plugins/thing", cfg.Plugins[0].External.Source.Path)
}
