package providers

import (
	"encoding/json"
	"fmt"

	openai "github.com/openai/openai-go/v3"

	"github.com/jackzampolin/examscan/internal/exam"
)

// documentSchemaName is the json_schema name sent with exam-paper requests.
const documentSchemaName = "exam_document"

// DocumentResponseFormat asks the provider to constrain output to the exam
// document schema. Strict mode is off: the schema leaves optional fields
// out of required, which strict mode rejects.
func DocumentResponseFormat() *ResponseFormat {
	wrapper := map[string]any{
		"name":   documentSchemaName,
		"strict": false,
		"schema": json.RawMessage(exam.SchemaJSON()),
	}
	raw, err := json.Marshal(wrapper)
	if err != nil {
		// The embedded schema is static JSON.
		panic(fmt.Sprintf("providers: marshal document schema: %v", err))
	}
	return &ResponseFormat{Type: "json_schema", JSONSchema: raw}
}

// responseFormatParam converts a ResponseFormat into the SDK union.
func responseFormatParam(rf *ResponseFormat) (openai.ChatCompletionNewParamsResponseFormatUnion, bool, error) {
	var out openai.ChatCompletionNewParamsResponseFormatUnion
	if rf == nil {
		return out, false, nil
	}
	switch rf.Type {
	case "json_object":
		out.OfJSONObject = &openai.ResponseFormatJSONObjectParam{}
		return out, true, nil
	case "json_schema":
		name, strict, schema, err := unwrapSchema(rf.JSONSchema)
		if err != nil {
			return out, false, err
		}
		out.OfJSONSchema = &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema,
				Strict: openai.Bool(strict),
			},
		}
		return out, true, nil
	default:
		return out, false, fmt.Errorf("unsupported response format type %q", rf.Type)
	}
}

// unwrapSchema accepts either the OpenAI wrapper {"name","strict","schema"}
// or a bare schema document.
func unwrapSchema(raw json.RawMessage) (name string, strict bool, schema map[string]any, err error) {
	if len(raw) == 0 {
		return "", false, nil, fmt.Errorf("json_schema response format requires a schema")
	}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return "", false, nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}

	inner, ok := root["schema"].(map[string]any)
	if !ok {
		return documentSchemaName, false, root, nil
	}
	name, _ = root["name"].(string)
	if name == "" {
		name = documentSchemaName
	}
	strict, _ = root["strict"].(bool)
	return name, strict, inner, nil
}
