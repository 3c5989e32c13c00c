// Package render implements sprocket's template language and the Renderer stage: given a lock
// artifact, it produces the shell script sprocket writes to standard output. It is the fourth and
// final stage of the Config -> Acquirer -> Resolver -> Renderer pipeline, and the only stage the
// warm path needs to run.
package render

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/sprocket-run/sprocket/internal/toollock"
)

// Render produces the full shell script for artifact: every plugin's output concatenated in
// declaration order, hook-wrapped where hooks are set, deterministic and dependent only on the
// artifact's contents.
func Render(artifact *toollock.Artifact) (string, error) {
	compiled, err := compileTemplates(artifact.Templates)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, p := range artifact.Plugins {
		rendered, err := renderPlugin(p, compiled)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't render plugin %s", p.Name)
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

type compiledTemplate struct {
	nodes []node
	mode  Mode
}

func compileTemplates(templates map[string]string) (map[string]compiledTemplate, error) {
	compiled := make(map[string]compiledTemplate, len(templates))
	for name, body := range templates {
		nodes, err := parse(body)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't parse template %q", name)
		}
		compiled[name] = compiledTemplate{nodes: nodes, mode: modeOf(nodes)}
	}
	return compiled, nil
}

func renderPlugin(p toollock.LockedPlugin, templates map[string]compiledTemplate) (string, error) {
	if p.Inline != "" {
		return p.Inline + "\n", nil
	}

	var out strings.Builder
	// writeLine appends one template rendering, newline-terminating it unless it is empty or
	// already ends in a newline, so consecutive renderings land on separate lines.
	writeLine := func(s string) {
		out.WriteString(s)
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteString("\n")
		}
	}
	if pre, ok := p.Hooks["pre"]; ok && pre != "" {
		out.WriteString(pre)
		out.WriteString("\n")
	}

	dir := p.PluginDir
	if dir == "" {
		dir = p.SourceDir
	}

	for _, name := range p.Apply {
		tmpl, ok := templates[name]
		if !ok {
			return "", errors.Errorf("undefined template %q", name)
		}

		switch tmpl.mode {
		case ModeEachFile:
			if len(p.Files) == 0 {
				return "", errors.Errorf(
					"template %q is an each-file template, but plugin %s resolved no files", name, p.Name,
				)
			}
			for _, file := range p.Files {
				scope := env{"file": file, "name": p.Name, "dir": dir}
				rendered, err := renderNodes(tmpl.nodes, scope)
				if err != nil {
					return "", errors.Wrapf(err, "template %q", name)
				}
				writeLine(rendered)
			}
		case ModeOnce:
			scope := env{"dir": dir, "files": p.Files, "hooks": p.Hooks, "name": p.Name}
			rendered, err := renderNodes(tmpl.nodes, scope)
			if err != nil {
				return "", errors.Wrapf(err, "template %q", name)
			}
			writeLine(rendered)
		}
	}

	if post, ok := p.Hooks["post"]; ok && post != "" {
		out.WriteString(post)
		out.WriteString("\n")
	}
	return out.String(), nil
}
