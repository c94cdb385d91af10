package metadata

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaURL names the embedded document schema in validation messages.
const SchemaURL = "metadata.schema.json"

//go:embed metadata.schema.json
var schemaSource []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaSource))
	if err != nil {
		return nil, fmt.Errorf("parse metadata schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(SchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add metadata schema: %w", err)
	}
	return c.Compile(SchemaURL)
})

// Schema returns the JSON schema metadata documents are validated against.
func Schema() []byte { return bytes.Clone(schemaSource) }

// validateSchema checks a raw YAML or JSON document against the schema.
// The document is round-tripped through JSON so the validator sees plain
// JSON values.
func validateSchema(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	js, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("document is not representable as JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
