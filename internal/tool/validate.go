package tool

import (
	"encoding/json"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// compileSchema resolves a tool's parameter schema once, at registration.
func compileSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	s := &jsonschema.Schema{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, err
		}
	}
	return s.Resolve(nil)
}

// validateInput decodes input and validates it against rs. Top-level null
// properties are dropped first, so a null optional parameter counts as absent
// and a null required one as missing. An empty input is an empty object.
func validateInput(rs *jsonschema.Resolved, input json.RawMessage) (map[string]any, error) {
	var v any = map[string]any{}
	if len(input) > 0 && string(input) != "null" {
		if err := json.Unmarshal(input, &v); err != nil {
			return nil, errors.New("input must be a JSON object")
		}
	}

	args, ok := v.(map[string]any)
	if ok {
		for name, value := range args {
			if value == nil {
				delete(args, name)
			}
		}
	}
	if err := rs.Validate(v); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("input must be a JSON object")
	}
	return args, nil
}
