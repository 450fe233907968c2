package analysis

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/r3d91ll/innercritic/internal/llm"
)

var (
	schemaOnce sync.Once
	schemaMap  map[string]any
)

// Schema returns the JSON schema of Result in the strict form structured
// output requires: every object closed and every property required.
func Schema() map[string]any {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		schema := reflector.Reflect(&Result{})
		b, err := schema.MarshalJSON()
		if err != nil {
			panic(err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			panic(err)
		}
		delete(m, "$schema")
		delete(m, "$id")
		closeObjects(m)
		schemaMap = m
	})
	return schemaMap
}

// ResponseFormat is the response_format sent with analysis requests.
func ResponseFormat() *llm.ResponseFormat {
	return &llm.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &llm.JSONSchema{
			Name:   "critic_analysis",
			Strict: true,
			Schema: Schema(),
		},
	}
}

func closeObjects(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				closeObjects(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		closeObjects(items)
	}
}
