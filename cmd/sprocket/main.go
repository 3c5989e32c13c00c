package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var app = &cli.App{
	Name:    "sprocket",
	Version: toolVersion,
	Usage:   "Fetches, resolves, and renders shell plugins from a declarative config",
	Commands: []*cli.Command{
		initCmd,
		addCmd,
		editCmd,
		removeCmd,
		lockCmd,
		sourceCmd,
		completionsCmd,
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config-dir",
			Usage: "Directory holding the config file",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory holding cached sources and the lock artifact",
		},
		&cli.StringFlag{
			Name:  "config-file",
			Usage: "Path to the config file, overriding --config-dir",
		},
		&cli.StringFlag{
			Name:  "lock-file",
			Usage: "Path to the lock artifact, overriding --data-dir",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "Comma-separated list of active profiles",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Worker pool width for source acquisition (0 means the number of CPUs)",
		},
	},
	Suggest: true,
}

const fallbackVersion = "v0.1.0-dev"

var toolVersion = determineVersion(buildSummary, fallbackVersion)

// buildSummary should be overridden by ldflags, such as with GoReleaser's "Summary".
var buildSummary = ""

// determineVersion returns either a semver, a pseudoversion, or a git hash based on information
// available from Go's debug.ReadBuildInfo(). Adapted from forklift's determineVersion
// (cmd/forklift/main.go).
func determineVersion(override, fallback string) string {
	if override != "" {
		return override
	}

	const dirtySuffix = "-dirty"
	if info, ok := debug.ReadBuildInfo(); ok &&
		info.Main.Version != "" && info.Main.Version != "(devel)" {
		v := info.Main.Version
		if versioninfo.DirtyBuild {
			v += dirtySuffix
		}
		return v
	}
	if v := versioninfo.Version; v != "unknown" && v != "(devel)" {
		if versioninfo.DirtyBuild {
			v += dirtySuffix
		}
		return v
	}
	if r := versioninfo.Revision; r != "unknown" && r != "" {
		if versioninfo.DirtyBuild {
			r += dirtySuffix
		}
		return r
	}
	return fallback
}
