package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const bashCompletionScript = `_sprocket_complete() {
  local cur prev opts
  COMPREPLY=()
  cur="${COMP_WORDS[COMP_CWORD]}"
  opts="init add edit remove lock source completions"
  COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
}
complete -F _sprocket_complete sprocket
`

const zshCompletionScript = `#compdef sprocket
_sprocket() {
  local -a commands
  commands=(
    'init:Creates a default config file'
    'add:Appends a plugin declaration to the config file'
    'edit:Opens the config file in $VISUAL or $EDITOR'
    'remove:Removes a plugin declaration from the config file'
    'lock:Acquires and resolves every plugin source'
    'source:Prints the rendered shell code'
    'completions:Prints a shell completion script'
  )
  _describe 'command' commands
}
_sprocket
`

var completionsCmd = &cli.Command{
	Name:      "completions",
	Usage:     "Prints a shell completion script",
	ArgsUsage: "bash|zsh",
	Action: func(c *cli.Context) error {
		switch shell := c.Args().First(); shell {
		case "bash":
			fmt.Fprint(c.App.Writer, bashCompletionScript)
		case "zsh":
			fmt.Fprint(c.App.Writer, zshCompletionScript)
		default:
			return errors.Errorf("unsupported shell %q: must be \"bash\" or \"zsh\"", shell)
		}
		return nil
	},
}
