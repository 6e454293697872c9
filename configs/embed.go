// Package configs embeds the example configuration written by
// `invsearch config init`.
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration. It is valid YAML
// that loads to the built-in defaults.
//
//go:embed invsearch.example.yaml
var ConfigTemplate string
