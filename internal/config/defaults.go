// Package config provides configuration loading and defaults for sessionwatch.
package config

import "time"

// DefaultClaudeHome is the default location of Claude Code's data directory.
const DefaultClaudeHome = "~/.claude"

// DefaultConfigDir is the default location for sessionwatch configuration.
const DefaultConfigDir = "~/.config/sessionwatch"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "sessionwatch.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultPollInterval is how often pull-mode tailing checks for new content.
const DefaultPollInterval = 250 * time.Millisecond

// DefaultDebounce is how long watch-mode tailing coalesces rapid writes
// before delivering them as one delta.
const DefaultDebounce = 25 * time.Millisecond

// DefaultSearchDepth bounds how deep transcript discovery descends below
// the Claude home directory.
const DefaultSearchDepth = 3

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
