package gemini

import (
	"github.com/google/generative-ai-go/genai"
	"github.com/invopop/jsonschema"
)

// toGenaiSchema converts the reflected JSON schema of a tool or
// response format into the subset Gemini understands.
func toGenaiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genaiType(schema.Type),
		Description: schema.Description,
		Format:      schema.Format,
		Required:    schema.Required,
	}

	if len(schema.Enum) > 0 {
		out.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	if schema.Items != nil {
		out.Items = toGenaiSchema(schema.Items)
	}

	if schema.Properties != nil && schema.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = toGenaiSchema(pair.Value)
		}
	}

	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
