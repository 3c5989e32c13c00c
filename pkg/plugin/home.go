package plugin

import "os"

// osUserHomeDir is a seam over os.UserHomeDir so tests can override it without touching $HOME.
var osUserHomeDir = os.UserHomeDir
