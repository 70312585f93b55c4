// Package config loads, validates, and defaults the resolver's TOML
// configuration. Path fields accept ~ and are expanded to absolute paths
// during load.
package config
