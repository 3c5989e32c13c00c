package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var lockCmd = &cli.Command{
	Name:  "lock",
	Usage: "Acquire and resolve every plugin source, writing a fresh lock artifact",
	Action: func(c *cli.Context) error {
		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}
		artifact, err := runLock(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Locked %d plugins to %s\n", len(artifact.Plugins), ctx.LockFile)
		return nil
	},
}
