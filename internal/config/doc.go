// Package config provides the configuration system for spriteforge.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← SPRITEFORGE_* (highest priority)
//	├─────────────────────────────┤
//	│  2. Config File             │  ← TOML or YAML, chosen by extension
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller on top of the loaded Config.
//
// # Basic Usage
//
//	cfg, err := config.Load("spriteforge.toml")
//	if err != nil {
//	    return err
//	}
//
// A missing file is not an error when the path is empty; Load then returns
// the defaults with environment overrides applied.
//
// # Environment Variables
//
// Every setting has a variable named after its dotted path, upper-cased with
// dots replaced by underscores: history.max_entries is read from
// SPRITEFORGE_HISTORY_MAX_ENTRIES. List values are comma separated.
//
// # File Format
//
//	[history]
//	max_entries = 500
//	coalesce_window = "750ms"
//
//	[import]
//	concurrency = 8
//
//	[logging]
//	level = "debug"
//	file = "/var/log/spriteforge.log"
package config
