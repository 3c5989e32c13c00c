package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/sprocket-run/sprocket/internal/acquire"
	sprocketcontext "github.com/sprocket-run/sprocket/internal/context"
	"github.com/sprocket-run/sprocket/internal/locksmith"
	"github.com/sprocket-run/sprocket/internal/resolve"
	"github.com/sprocket-run/sprocket/internal/toollock"
	"github.com/sprocket-run/sprocket/pkg/fs"
	"github.com/sprocket-run/sprocket/pkg/plugin"
	"github.com/sprocket-run/sprocket/pkg/structures"
)

// runLock runs the full Config -> Acquirer -> Resolver pipeline under the cross-process global
// lock and persists the resulting lock artifact, returning it.
func runLock(c *cli.Context) (*toollock.Artifact, error) {
	ctx, err := discoverContext(c)
	if err != nil {
		return nil, err
	}
	log := logger(c)

	cfg, err := plugin.Load(ctx.ConfigFile)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't load config file %s", ctx.ConfigFile)
	}

	if err := fs.EnsureExists(ctx.DataDir); err != nil {
		return nil, err
	}
	globalLock := locksmith.New(filepath.Join(ctx.DataDir, "sprocket.lock"))
	if err := globalLock.Acquire(context.Background(), func() {
		log.Status("Waiting for another sprocket instance to finish...")
	}); err != nil {
		return nil, err
	}
	defer globalLock.Release()

	active := structures.NewSet(ctx.Profiles...)
	enabled := make([]plugin.Plugin, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		if p.Enabled(active) {
			enabled = append(enabled, p)
		}
	}

	cacheDir := filepath.Join(ctx.DataDir, "cache")
	acquirer := acquire.New(cacheDir, nil, log, c.Int("parallel"))
	acquired, acqErr := acquirer.AcquireAll(context.Background(), enabled)
	if acqErr != nil {
		log.Error("%s", acqErr)
	}

	resolved, resErr := resolve.Resolve(cfg, acquired, enabled)
	if resErr != nil {
		log.Error("%s", resErr)
	}
	if acqErr != nil || resErr != nil {
		return nil, errors.New("one or more plugins failed to acquire or resolve; see errors above")
	}

	artifact := buildArtifact(ctx, cfg, resolved)
	if err := toollock.Write(ctx.LockFile, artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// buildArtifact assembles the lock artifact from resolved plugin state. Paths are recorded
// absolute, as spec.md §3 and §4.3 require.
func buildArtifact(ctx *sprocketcontext.Context, cfg *plugin.Config, resolved []resolve.Resolved) toollock.Artifact {
	homeDir, _ := os.UserHomeDir()
	artifact := toollock.Artifact{
		HomeDir:    homeDir,
		ConfigDir:  ctx.ConfigDir,
		DataDir:    ctx.DataDir,
		ConfigFile: ctx.ConfigFile,
		Shell:      string(cfg.Shell),
		Templates:  make(map[string]string, len(cfg.Templates)),
	}
	for name, tmpl := range cfg.Templates {
		artifact.Templates[name] = tmpl.Body
	}

	for _, r := range resolved {
		if r.Plugin.Inline != nil {
			artifact.Plugins = append(artifact.Plugins, toollock.LockedPlugin{
				Name:   r.Plugin.Name,
				Inline: r.Plugin.Inline.Snippet,
			})
			continue
		}

		ext := r.Plugin.External
		artifact.Plugins = append(artifact.Plugins, toollock.LockedPlugin{
			Name:         r.Plugin.Name,
			SourceDir:    r.SourceDir,
			PluginDir:    r.PluginDir,
			Files:        r.Files,
			Apply:        ext.Apply,
			Hooks:        ext.Hooks,
			SourceCommit: r.SourceCommit,
		})
	}
	return artifact
}
