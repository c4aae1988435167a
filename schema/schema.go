package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema" // Generate JSON schema from Go types
)

// Generate reflects the JSON schema of T so backend implementers can check
// their payloads against what the client decodes.
func Generate[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var v T

	return reflector.Reflect(v)
}

// JSON renders the schema of T indented for printing.
func JSON[T any]() ([]byte, error) {
	return json.MarshalIndent(Generate[T](), "", "  ")
}
