package actions

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

const schemaURL = "https://github.com/ormasoftchile/scaf/schemas/actions-v1.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// ActionsFile struct. Additional properties are allowed everywhere so that
// action files may carry fields for other tools.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.AllowAdditionalProperties = true
	r.RequiredFromJSONSchemaTags = true

	s := r.Reflect(&ActionsFile{})
	s.ID = schemaURL
	s.Title = "scaf action file"
	s.Description = "Schema for scaf action YAML documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
