package onboarding

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

const schemaBaseURL = "https://bidready.schemas.local/onboarding/"

// skipPayload is what Skip submits on behalf of the user
var skipPayload = json.RawMessage(`{"skipped":true}`)

// Schemas validates step payloads against a compiled JSON Schema per step
type Schemas struct {
	compiled map[Step]*jsonschema.Schema
	defaults map[Step]json.RawMessage
}

// LoadSchemas compiles "<step>.json" files from fsys, one per step (lower
// case, e.g. company_profile.json). Steps without a file accept any object.
// A top-level "default" in a schema is used as the step's empty form.
func LoadSchemas(fsys fs.FS, dir string) (*Schemas, error) {
	s := &Schemas{
		compiled: make(map[Step]*jsonschema.Schema),
		defaults: make(map[Step]json.RawMessage),
	}

	for _, step := range canonicalOrder {
		if step == StepDone {
			continue
		}
		name := path.Join(dir, strings.ToLower(string(step))+".json")
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}

		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		url := schemaBaseURL + strings.ToLower(string(step)) + ".json"
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to load schema for %s: %w", step, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", step, err)
		}
		s.compiled[step] = compiled

		var doc struct {
			Default json.RawMessage `json:"default"`
		}
		if err := json.Unmarshal(data, &doc); err == nil && len(doc.Default) > 0 {
			s.defaults[step] = doc.Default
		}
	}
	return s, nil
}

// DefaultSchemas returns the schemas built into the binary
func DefaultSchemas() *Schemas {
	s, err := LoadSchemas(embeddedSchemas, "schemas")
	if err != nil {
		panic(fmt.Sprintf("onboarding: embedded schemas are invalid: %v", err))
	}
	return s
}

// Defaults returns the empty form for a step
func (s *Schemas) Defaults(step Step) json.RawMessage {
	if s == nil {
		return nil
	}
	return s.defaults[step]
}

// Validate checks payload against the step's schema. Failures are returned as
// *ValidationError with one entry per offending location.
func (s *Schemas) Validate(step Step, payload json.RawMessage) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return &ValidationError{Step: step, Fields: []FieldError{{Message: "payload is required"}}}
	}

	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &ValidationError{Step: step, Fields: []FieldError{{Message: "payload is not valid JSON"}}}
	}
	if _, ok := doc.(map[string]interface{}); !ok {
		return &ValidationError{Step: step, Fields: []FieldError{{Message: "payload must be a JSON object"}}}
	}

	if s == nil {
		return nil
	}
	schema, ok := s.compiled[step]
	if !ok {
		return nil
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Step: step, Fields: fieldErrors(verr)}
		}
		return fmt.Errorf("failed to validate %s payload: %w", step, err)
	}
	return nil
}

// fieldErrors flattens the schema error tree to its leaves
func fieldErrors(verr *jsonschema.ValidationError) []FieldError {
	if len(verr.Causes) == 0 {
		field := strings.ReplaceAll(strings.TrimPrefix(verr.InstanceLocation, "/"), "/", ".")
		return []FieldError{{Field: field, Message: verr.Message}}
	}
	var out []FieldError
	for _, cause := range verr.Causes {
		out = append(out, fieldErrors(cause)...)
	}
	return out
}

// isSkipPayload reports whether payload is exactly a skip marker
func isSkipPayload(payload json.RawMessage) bool {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return false
	}
	skipped, ok := body["skipped"].(bool)
	return ok && skipped && len(body) == 1
}
