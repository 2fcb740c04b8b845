//go:generate go run ../build/gen-config-schema.go schema.json

// Package config embeds the JSON schema that audit.toml files are validated
// against.
package config

import (
	_ "embed"
)

//go:embed "schema.json"
var schema []byte

func Schema() []byte {
	return schema
}
