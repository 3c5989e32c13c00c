package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprocket-run/sprocket/internal/toollock"
)

func builtinTemplates() map[string]string {
	return map[string]string{
		"source": `source "{{ file }}"`,
		"PATH":   `export PATH="{{ dir }}:$PATH"`,
	}
}

func TestRenderEachFileTemplate(t *testing.T) {
	artifact := &toollock.Artifact{
		Templates: builtinTemplates(),
		Plugins: []toollock.LockedPlugin{
			{
				Name:      "example",
				SourceDir: "/data/repos/example",
				Files:     []string{"/data/repos/example/a.zsh", "/data/repos/example/b.zsh"},
				Apply:     []string{"source"},
			},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "source \"/data/repos/example/a.zsh\"\nsource \"/data/repos/example/b.zsh\"\n", out)
}

func TestRenderOnceTemplate(t *testing.T) {
	artifact := &toollock.Artifact{
		Templates: builtinTemplates(),
		Plugins: []toollock.LockedPlugin{
			{
				Name:      "example",
				SourceDir: "/data/repos/example",
				Files:     []string{"/data/repos/example/a.zsh"},
				Apply:     []string{"PATH"},
			},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, `export PATH="/data/repos/example:$PATH"`+"\n", out)
}

func TestRenderHooksWrapOutput(t *testing.T) {
	artifact := &toollock.Artifact{
		Templates: builtinTemplates(),
		Plugins: []toollock.LockedPlugin{
			{
				Name:      "example",
				SourceDir: "/data/repos/example",
				Files:     []string{"/data/repos/example/a.zsh"},
				Apply:     []string{"source"},
				Hooks:     map[string]string{"pre": "echo a", "post": "echo b"},
			},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "echo a\nsource \"/data/repos/example/a.zsh\"\necho b\n", out)
}

func TestRenderInlinePlugin(t *testing.T) {
	artifact := &toollock.Artifact{
		Plugins: []toollock.LockedPlugin{{Name: "greeting", Inline: "echo hi"}},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", out)
}

func TestRenderPreservesDeclarationOrder(t *testing.T) {
	artifact := &toollock.Artifact{
		Plugins: []toollock.LockedPlugin{
			{Name: "b", Inline: "echo b"},
			{Name: "a", Inline: "echo a"},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "echo b\necho a\n", out)
}

func TestRenderOptionalAccessOnMissingHook(t *testing.T) {
	templates := map[string]string{"combined": `{{ hooks?.pre | nl }}source once`}
	artifact := &toollock.Artifact{
		Templates: templates,
		Plugins: []toollock.LockedPlugin{
			{Name: "example", SourceDir: "/x", Files: []string{"/x/a.zsh"}, Apply: []string{"combined"}},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "source once\n", out)
}

func TestRenderForLoopOverFiles(t *testing.T) {
	templates := map[string]string{
		"listing": `{% for f in files %}{{ f }}
{% endfor %}`,
	}
	artifact := &toollock.Artifact{
		Templates: templates,
		Plugins: []toollock.LockedPlugin{
			{
				Name:      "example",
				SourceDir: "/x",
				Files:     []string{"/x/a.zsh", "/x/b.zsh"},
				Apply:     []string{"listing"},
			},
		},
	}
	out, err := Render(artifact)
	require.NoError(t, err)
	assert.Equal(t, "/x/a.zsh\n/x/b.zsh\n", out)
}

func TestRenderUnknownTemplateErrors(t *testing.T) {
	artifact := &toollock.Artifact{
		Plugins: []toollock.LockedPlugin{
			{Name: "example", SourceDir: "/x", Files: []string{"/x/a.zsh"}, Apply: []string{"missing"}},
		},
	}
	_, err := Render(artifact)
	require.Error(t, err)
}

func TestModeOfDetectsEachFile(t *testing.T) {
	nodes, err := parse(`source "{{ file }}"`)
	require.NoError(t, err)
	assert.Equal(t, ModeEachFile, modeOf(nodes))

	nodes, err = parse(`export PATH="{{ dir }}:$PATH"`)
	require.NoError(t, err)
	assert.Equal(t, ModeOnce, modeOf(nodes))
}
