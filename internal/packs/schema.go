// ABOUTME: Input schema generation from typed Go input structs.
// ABOUTME: Uses google/jsonschema-go so descriptions live next to the fields.

package packs

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaFor infers the JSON schema of T. Fields without omitempty are
// required; `jsonschema:"..."` tags become descriptions. Objects accept
// properties T does not declare, as tool handlers ignore them. It panics when
// T cannot be described, which only happens for programming errors in static
// tool declarations.
func SchemaFor[T any]() json.RawMessage {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring schema: %v", err))
	}
	openObjects(schema)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("encoding schema: %v", err))
	}
	return data
}

// openObjects drops the "additionalProperties": false that inference puts on
// every struct.
func openObjects(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if s.Properties != nil {
		s.AdditionalProperties = nil
	}
	for _, p := range s.Properties {
		openObjects(p)
	}
	openObjects(s.Items)
}

// EmptySchema accepts an object with no properties.
var EmptySchema = json.RawMessage(`{"type":"object","properties":{}}`)
