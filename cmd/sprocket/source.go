package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sprocket-run/sprocket/internal/render"
	"github.com/sprocket-run/sprocket/internal/toollock"
)

var sourceCmd = &cli.Command{
	Name:  "source",
	Usage: "Print the rendered shell code sourced by .zshrc/.bashrc",
	Action: func(c *cli.Context) error {
		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}

		var artifact *toollock.Artifact
		if cached, readErr := toollock.Read(ctx.LockFile); readErr == nil &&
			toollock.Verify(ctx.ConfigFile, ctx.LockFile, cached) {
			artifact = cached
		} else {
			artifact, err = runLock(c)
			if err != nil {
				return err
			}
		}

		out, err := render.Render(artifact)
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, out)
		return nil
	},
}
