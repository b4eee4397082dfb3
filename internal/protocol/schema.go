package protocol

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Validator checks inbound frames against the embedded JSON schemas.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range map[string]string{
		TypeHello:  "hello.schema.json",
		TypeSelect: "select.schema.json",
	} {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		s, err := jsonschema.CompileString(name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate checks raw against the schema of msgType. Types without a schema
// are rejected: clients only ever send HELLO and SELECT.
func (v *Validator) Validate(msgType string, raw []byte) error {
	s, ok := v.byType[msgType]
	if !ok {
		return fmt.Errorf("unexpected message type %q", msgType)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
