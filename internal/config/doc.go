// Package config handles configuration loading for rezrxt.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion, then overridden by REZRXT_* environment variables, then by
// command line flags. There is no process-wide configuration state: the CLI
// builds one Config and hands the derived options to the store constructor.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from REZRXT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/rezrxt/config.yaml
//  3. ~/.config/rezrxt/config.yaml
//
// A missing file at the default location is not an error.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	store:
//	  root: "${STUDIO_ROOT}/rxt"
//
// # Configuration Sections
//
//	store:
//	  backend: "file"            # file, sqlite
//	  root: "/studio/rxt"        # file backend
//	  database_path: "rxt.db"    # sqlite backend
//	  extension: "rxt"
//
//	defaults:
//	  context: "model"
//
//	logging:
//	  level: "warn"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// The same layout is accepted as TOML when the file name ends in .toml.
//
// # Environment Overrides
//
//   - REZRXT_DB_BACKEND: store.backend
//   - REZRXT_DB_ROOT: store.root, or store.database_path for the sqlite backend
//   - REZRXT_CTX: defaults.context
package config
