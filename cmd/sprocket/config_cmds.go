package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/sprocket-run/sprocket/pkg/fs"
	"github.com/sprocket-run/sprocket/pkg/plugin"
)

const defaultConfigTemplate = `shell = "zsh"
apply = ["source"]
`

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "Creates a default config file if one doesn't already exist",
	Action: func(c *cli.Context) error {
		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}
		if _, err := os.Stat(ctx.ConfigFile); err == nil {
			return errors.Errorf("config file %s already exists", ctx.ConfigFile)
		}
		if err := fs.EnsureExists(filepath.Dir(ctx.ConfigFile)); err != nil {
			return err
		}
		if err := os.WriteFile(ctx.ConfigFile, []byte(defaultConfigTemplate), 0o644); err != nil {
			return errors.Wrapf(err, "couldn't write config file %s", ctx.ConfigFile)
		}
		fmt.Fprintf(c.App.Writer, "Wrote %s\n", ctx.ConfigFile)
		return nil
	},
}

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "Appends a plugin declaration to the config file",
	ArgsUsage: "name",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "github", Usage: `"user/repo" shorthand for a GitHub source`},
		&cli.StringFlag{Name: "gist", Usage: "gist hash shorthand for a GitHub Gist source"},
		&cli.StringFlag{Name: "git", Usage: "git remote URL"},
		&cli.StringFlag{Name: "remote", Usage: "URL of a single remote file"},
		&cli.StringFlag{Name: "local", Usage: "local directory path"},
		&cli.StringFlag{Name: "branch", Usage: "git branch to track"},
		&cli.StringFlag{Name: "tag", Usage: "git tag to pin to"},
		&cli.StringFlag{Name: "rev", Usage: "git revision to pin to"},
		&cli.StringFlag{Name: "dir", Usage: "subdirectory within the source to use"},
		&cli.StringSliceFlag{Name: "use", Usage: "glob pattern selecting files, repeatable"},
		&cli.StringSliceFlag{Name: "apply", Usage: "template name to render through, repeatable"},
	},
	Action: func(c *cli.Context) error {
		name := c.Args().First()
		if name == "" {
			return errors.New("add requires a plugin name argument")
		}

		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}

		block, err := renderPluginBlock(name, c)
		if err != nil {
			return err
		}

		f, err := os.OpenFile(ctx.ConfigFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "couldn't open config file %s", ctx.ConfigFile)
		}
		defer f.Close()
		if _, err := f.WriteString("\n" + block); err != nil {
			return errors.Wrapf(err, "couldn't append to config file %s", ctx.ConfigFile)
		}
		fmt.Fprintf(c.App.Writer, "Added plugin %q to %s\n", name, ctx.ConfigFile)
		return nil
	},
}

// renderPluginBlock builds a "[plugins.name]" TOML table from add's flags, matching the shorthand
// source fields Config normalization understands (pkg/plugin/config.go's pluginDecl).
func renderPluginBlock(name string, c *cli.Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[plugins.%s]\n", tomlKey(name))

	sources := map[string]string{
		"github": c.String("github"),
		"gist":   c.String("gist"),
		"git":    c.String("git"),
		"remote": c.String("remote"),
		"local":  c.String("local"),
	}
	var sourceField string
	for _, field := range []string{"github", "gist", "git", "remote", "local"} {
		if sources[field] != "" {
			sourceField = field
			break
		}
	}
	if sourceField == "" {
		return "", errors.New("add requires one of --github, --gist, --git, --remote, or --local")
	}
	fmt.Fprintf(&b, "%s = %q\n", sourceField, sources[sourceField])

	for _, field := range []string{"branch", "tag", "rev", "dir"} {
		if v := c.String(field); v != "" {
			fmt.Fprintf(&b, "%s = %q\n", field, v)
		}
	}
	if use := c.StringSlice("use"); len(use) > 0 {
		fmt.Fprintf(&b, "use = %s\n", tomlStringArray(use))
	}
	if apply := c.StringSlice("apply"); len(apply) > 0 {
		fmt.Fprintf(&b, "apply = %s\n", tomlStringArray(apply))
	}
	return b.String(), nil
}

func tomlStringArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

var unquotedTOMLKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func tomlKey(name string) string {
	if unquotedTOMLKey.MatchString(name) {
		return name
	}
	return fmt.Sprintf("%q", name)
}

var editCmd = &cli.Command{
	Name:  "edit",
	Usage: "Opens the config file in $VISUAL or $EDITOR",
	Action: func(c *cli.Context) error {
		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}
		editor := preferredEditor()
		cmd := exec.Command(editor, ctx.ConfigFile)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, c.App.Writer, c.App.ErrWriter
		if err := cmd.Run(); err != nil {
			return errors.Wrapf(err, "couldn't run %s on %s", editor, ctx.ConfigFile)
		}
		return nil
	},
}

func preferredEditor() string {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if editor := os.Getenv(name); editor != "" {
			return editor
		}
	}
	return "vi"
}

var removeCmd = &cli.Command{
	Name:      "remove",
	Aliases:   []string{"rm"},
	Usage:     "Removes a plugin's declaration from the config file",
	ArgsUsage: "name",
	Action: func(c *cli.Context) error {
		name := c.Args().First()
		if name == "" {
			return errors.New("remove requires a plugin name argument")
		}

		ctx, err := discoverContext(c)
		if err != nil {
			return err
		}

		cfg, err := plugin.Load(ctx.ConfigFile)
		if err != nil {
			return err
		}
		found := false
		for _, p := range cfg.Plugins {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("no plugin named %q in %s", name, ctx.ConfigFile)
		}

		raw, err := os.ReadFile(ctx.ConfigFile)
		if err != nil {
			return errors.Wrapf(err, "couldn't read config file %s", ctx.ConfigFile)
		}
		updated := removePluginTable(string(raw), name)
		if err := os.WriteFile(ctx.ConfigFile, []byte(updated), 0o644); err != nil {
			return errors.Wrapf(err, "couldn't write config file %s", ctx.ConfigFile)
		}
		fmt.Fprintf(c.App.Writer, "Removed plugin %q from %s\n", name, ctx.ConfigFile)
		return nil
	},
}

// removePluginTable strips the "[plugins.name]" table (and any nested "[plugins.name.*]" tables)
// from raw, up to (but not including) the next top-level table header.
func removePluginTable(raw, name string) string {
	lines := strings.Split(raw, "\n")
	target := fmt.Sprintf("[plugins.%s]", tomlKey(name))

	var out []string
	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if skipping {
			if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[plugins."+tomlKey(name)+".") {
				skipping = false
			} else {
				continue
			}
		}
		if trimmed == target {
			skipping = true
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
