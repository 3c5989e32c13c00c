package main

import (
	"github.com/urfave/cli/v2"

	sprocketcontext "github.com/sprocket-run/sprocket/internal/context"
	"github.com/sprocket-run/sprocket/internal/sprocketlog"
)

// discoverContext builds a Context from the app's global flags, applying the
// flag > env > OS-default precedence internal/context implements.
func discoverContext(c *cli.Context) (*sprocketcontext.Context, error) {
	return sprocketcontext.Discover(sprocketcontext.Overrides{
		ConfigDir:  c.String("config-dir"),
		DataDir:    c.String("data-dir"),
		ConfigFile: c.String("config-file"),
		LockFile:   c.String("lock-file"),
		Profiles:   c.String("profile"),
	})
}

func logger(c *cli.Context) *sprocketlog.Logger {
	return sprocketlog.New(c.App.Writer, c.App.ErrWriter)
}
