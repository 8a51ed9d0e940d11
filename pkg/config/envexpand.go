package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's standard
// library. Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Missing variables expand to empty string; validation catches required
// fields left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
