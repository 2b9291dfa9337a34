package exam

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/document.json
var documentSchema []byte

const schemaURL = "document.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// SchemaJSON returns the JSON schema describing the document wire format.
// Callers get a copy and may modify it.
func SchemaJSON() json.RawMessage {
	out := make([]byte, len(documentSchema))
	copy(out, documentSchema)
	return out
}

// SchemaMap returns the schema decoded as a generic object, the form model
// APIs expect for structured output requests.
func SchemaMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(documentSchema, &m); err != nil {
		return nil, fmt.Errorf("invalid document schema: %w", err)
	}
	return m, nil
}

func documentValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString(schemaURL, string(documentSchema))
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile document schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Validate checks the canonical encoding of doc against the document schema.
// Extraction is schema-on-read, so a violation is advisory: it describes
// content the model left out, not a structural failure.
func Validate(doc *Document) error {
	schema, err := documentValidator()
	if err != nil {
		return err
	}

	data, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
