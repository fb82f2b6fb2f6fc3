package tools

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
)

type inputSchema struct {
	Type       string                    `json:"type"`
	Required   []string                  `json:"required"`
	Properties map[string]schemaProperty `json:"properties"`
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ValidateParams checks params against an object input schema: required
// keys must be present and non-null, and declared properties must match
// their primitive type. Unknown keys and unknown types pass. An empty schema
// accepts anything.
func ValidateParams(schema, params json.RawMessage) error {
	if len(schema) == 0 || string(schema) == "null" {
		return nil
	}
	var s inputSchema
	if err := json.Unmarshal(schema, &s); err != nil {
		return errors.Wrap(err, "decode input schema")
	}
	values := map[string]any{}
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &values); err != nil {
			return errors.New("params must be a JSON object")
		}
	}

	var missing []string
	for _, key := range s.Required {
		if v, ok := values[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}

	for key, val := range values {
		prop, declared := s.Properties[key]
		if !declared || val == nil {
			continue
		}
		if err := checkType(key, val, prop.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkType(key string, val any, expected string) error {
	ok := true
	switch expected {
	case "string":
		_, ok = val.(string)
	case "number":
		_, ok = val.(float64)
	case "integer":
		var f float64
		f, ok = val.(float64)
		ok = ok && f == float64(int64(f))
	case "boolean":
		_, ok = val.(bool)
	case "array":
		_, ok = val.([]any)
	case "object":
		_, ok = val.(map[string]any)
	}
	if !ok {
		return errors.Errorf("parameter %q: expected %s, got %T", key, expected, val)
	}
	return nil
}
