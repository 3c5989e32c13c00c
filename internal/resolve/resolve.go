// Package resolve turns each plugin's materialized source filesystem into a concrete ordered list
// of files to render, by evaluating its Use (or the shell's default Match) glob patterns within
// its Dir root. It is the third stage of sprocket's Config -> Acquirer -> Resolver -> Renderer
// pipeline, and its output is exactly what gets persisted to the lock artifact.
package resolve

import (
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/sprocket-run/sprocket/internal/acquire"
	"github.com/sprocket-run/sprocket/internal/render"
	"github.com/sprocket-run/sprocket/pkg/fs"
	"github.com/sprocket-run/sprocket/pkg/plugin"
)

// Resolved is one plugin's fully resolved state, with every path already made absolute — exactly
// what the lock artifact persists.
type Resolved struct {
	Plugin plugin.Plugin
	// SourceDir is the absolute root of the acquired source. Empty for inline plugins.
	SourceDir string
	// PluginDir is the absolute subdirectory within SourceDir the plugin is rooted at, set only
	// when the plugin declares Dir.
	PluginDir string
	// Files holds absolute paths, in match order.
	Files        []string
	SourceCommit string
}

// Resolve resolves every acquired external plugin plus every inline plugin, in config order. cfg
// supplies the shell-specific default Match patterns for plugins that declare no Use of their own
// (rule 6).
func Resolve(cfg *plugin.Config, acquired []acquire.Result, plugins []plugin.Plugin) ([]Resolved, error) {
	byName := make(map[string]acquire.Result, len(acquired))
	for _, r := range acquired {
		byName[r.Plugin] = r
	}

	results := make([]Resolved, 0, len(plugins))
	var errs plugin.ErrorList
	for _, p := range plugins {
		if p.Inline != nil {
			results = append(results, Resolved{Plugin: p})
			continue
		}

		acquired, ok := byName[p.Name]
		if !ok || acquired.FS == nil {
			continue // failed to acquire; already reported by the Acquirer's error list
		}

		resolved, err := resolveExternal(cfg, p, acquired)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "couldn't resolve plugin %s", p.Name))
			continue
		}
		results = append(results, resolved)
	}
	if len(errs) > 0 {
		return results, errs
	}
	return results, nil
}

func resolveExternal(cfg *plugin.Config, p plugin.Plugin, acquired acquire.Result) (Resolved, error) {
	ext := p.External
	sourceDir := acquired.FS.Path()

	if ext.Source.Kind == plugin.SourceRemote {
		return Resolved{
			Plugin:       p,
			SourceDir:    sourceDir,
			Files:        []string{filepath.Join(sourceDir, acquired.DownloadedAs)},
			SourceCommit: acquired.SourceCommit,
		}, nil
	}

	root, pluginDir, err := pluginRoot(acquired.FS, ext.Dir)
	if err != nil {
		return Resolved{}, err
	}

	fsys, err := acquired.FS.Sub(root)
	if err != nil {
		return Resolved{}, errors.Wrapf(err, "couldn't open subdirectory %s", root)
	}

	var patterns []string
	var relFiles []string
	if ext.Use != nil {
		// An explicit use, even an empty one, fully overrides the shell's default match patterns
		// (spec.md §3 rule 6); an empty list deliberately resolves to zero files.
		patterns = ext.Use
		relFiles, err = matchAllPatterns(fsys, patterns)
	} else {
		patterns = cfg.MatchPatterns(p.Name)
		relFiles, err = matchFirstPattern(fsys, patterns)
	}
	if err != nil {
		return Resolved{}, err
	}
	if len(relFiles) == 0 {
		eachFile, err := appliesEachFileTemplate(cfg, ext.Apply)
		if err != nil {
			return Resolved{}, err
		}
		if eachFile {
			return Resolved{}, errors.Errorf(
				"no files in %s matched patterns %v", fsys.Path(), patterns,
			)
		}
	}

	files := make([]string, len(relFiles))
	for i, f := range relFiles {
		files[i] = filepath.Join(fsys.Path(), filepath.FromSlash(f))
	}

	return Resolved{
		Plugin:       p,
		SourceDir:    sourceDir,
		PluginDir:    pluginDir,
		Files:        files,
		SourceCommit: acquired.SourceCommit,
	}, nil
}

// appliesEachFileTemplate reports whether apply names at least one template that renders once per
// file, per spec.md's rule that an empty file list is only fatal when such a template is in play
// (a plugin whose apply is entirely once-mode templates, e.g. ["PATH"], has nothing to iterate and
// is fine with zero files).
func appliesEachFileTemplate(cfg *plugin.Config, apply []string) (bool, error) {
	for _, name := range apply {
		tmpl, ok := cfg.Templates[name]
		if !ok {
			continue // undefined templates are reported by the Renderer, not the Resolver
		}
		eachFile, err := render.IsEachFile(tmpl.Body)
		if err != nil {
			return false, errors.Wrapf(err, "couldn't parse template %q", name)
		}
		if eachFile {
			return true, nil
		}
	}
	return false, nil
}

// pluginRoot validates that Dir (if set) stays within the acquired filesystem and returns the
// slash-form root to pass to PathedFS.Sub alongside the absolute plugin directory (empty if Dir
// is unset).
func pluginRoot(fsys fs.PathedFS, dir string) (root, pluginDir string, err error) {
	if dir == "" {
		return "", "", nil
	}
	base := fsys.Path()
	candidate := filepath.Join(base, filepath.FromSlash(dir))
	if !fs.ContainsPath(base, candidate) {
		return "", "", errors.Errorf("dir %q escapes the plugin's source tree", dir)
	}
	return dir, candidate, nil
}

// matchAllPatterns evaluates explicit `use` patterns against fsys in declaration order. Each
// pattern's matches are taken in lexicographic order and unioned, suppressing duplicates across
// patterns while preserving first-seen position (spec.md §4.3 rule 2, first bullet).
func matchAllPatterns(fsys fs.PathedFS, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := globFiles(fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

// matchFirstPattern evaluates the shell's default Match patterns in order and returns the
// matches of the first pattern that yields any (spec.md §4.3 rule 2, second bullet).
func matchFirstPattern(fsys fs.PathedFS, patterns []string) ([]string, error) {
	for _, pattern := range patterns {
		matches, err := globFiles(fsys, pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}
	return nil, nil
}

// globFiles evaluates pattern against fsys and returns the matching regular files (directories
// excluded) in lexicographic order.
func globFiles(fsys fs.PathedFS, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid glob pattern %q", pattern)
	}
	sort.Strings(matches)

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := fsys.Open(m)
		if err != nil {
			continue
		}
		stat, err := info.Stat()
		_ = info.Close()
		if err != nil || stat.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}
