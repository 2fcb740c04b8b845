package config

import (
	"bytes"
	"encoding/json"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	schemareflector "github.com/swaggest/jsonschema-go"

	ext_config "github.com/rustsec/cargo-audit-go/config"
	"github.com/rustsec/cargo-audit-go/internal/advisorydb"
)

var rootSchema *jsonschema.Schema

func init() {
	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(ext_config.Schema()))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource("schema.json", js); err != nil {
		panic(err)
	}

	rootSchema, err = compiler.Compile("schema.json")
	if err != nil {
		panic(err)
	}
}

// Validate checks bs against the embedded audit.toml schema without
// unmarshaling it into Config. Violations name the offending config path.
func Validate(bs []byte) error {
	var config any
	if err := toml.Unmarshal(bs, &config); err != nil {
		return advisorydb.Wrap(advisorydb.KindParse, err, "invalid config")
	}
	if config == nil { // empty document
		return nil
	}

	// The schema library validates JSON documents, so the decoded TOML is
	// round-tripped through JSON before validation.
	encoded, err := json.Marshal(config)
	if err != nil {
		return advisorydb.Wrap(advisorydb.KindParse, err, "invalid config")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return advisorydb.Wrap(advisorydb.KindParse, err, "invalid config")
	}

	if err := rootSchema.Validate(doc); err != nil {
		return advisorydb.Wrap(advisorydb.KindParse, err, "invalid config")
	}

	return nil
}

func ReflectSchema() ([]byte, error) {
	reflector := schemareflector.Reflector{}

	s, err := reflector.Reflect(Config{})
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(s, "", "  ")
}
