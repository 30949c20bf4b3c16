// Package careplan generates ADPIE nursing care plans from patient data. It
// holds the typed plan, the JSON Schema reflected from it, the five stage
// generation pipeline and the event vocabulary streamed to clients.
package careplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

var (
	schemaOnce sync.Once
	schemaMap  map[string]any
	compiled   *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		ExpandedStruct:             true,
	}
	s := r.Reflect(&CarePlan{})
	s.Title = "CarePlanJsonData"
	s.Description = "Schema for AI-Powered Comprehensive Plan of Care data"

	b, err := json.Marshal(s)
	if err != nil {
		schemaErr = fmt.Errorf("marshaling care plan schema: %w", err)
		return
	}
	if err := json.Unmarshal(b, &schemaMap); err != nil {
		schemaErr = fmt.Errorf("decoding care plan schema: %w", err)
		return
	}
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	compiled, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		schemaErr = fmt.Errorf("compiling care plan schema: %w", err)
	}
}

// Schema returns a copy of the full care plan JSON Schema.
func Schema() map[string]any {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		panic(schemaErr)
	}
	return deepCopy(schemaMap).(map[string]any)
}

// ValidationError lists every schema violation found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "care plan failed validation: " + strings.Join(e.Problems, "; ")
}

// Validate checks raw against the care plan schema. It returns a
// *ValidationError when raw is well formed JSON that does not conform.
func Validate(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding care plan: %w", err)
	}
	return validateDoc(doc)
}

func validateDoc(doc any) error {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return schemaErr
	}

	res, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating care plan: %w", err)
	}
	if res.Valid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Problems: problems}
}

// Decode applies defaults to raw, validates it and unmarshals the result.
// A missing next_steps defaults to an empty list.
func Decode(raw json.RawMessage) (*CarePlan, error) {
	doc, err := withDefaults(raw)
	if err != nil {
		return nil, err
	}
	if err := validateDoc(doc); err != nil {
		return nil, err
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding care plan: %w", err)
	}
	var plan CarePlan
	if err := json.Unmarshal(b, &plan); err != nil {
		return nil, fmt.Errorf("decoding care plan: %w", err)
	}
	if plan.NextSteps == nil {
		plan.NextSteps = []string{}
	}
	return &plan, nil
}

// Normalize applies defaults to raw and validates it, returning the
// normalized JSON.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	doc, err := withDefaults(raw)
	if err != nil {
		return nil, err
	}
	if err := validateDoc(doc); err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding care plan: %w", err)
	}
	return b, nil
}

func withDefaults(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding care plan: %w", err)
	}
	if obj, ok := doc.(map[string]any); ok {
		if _, ok := obj["next_steps"]; !ok {
			obj["next_steps"] = []any{}
		}
	}
	return doc, nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
