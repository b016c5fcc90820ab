package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const ResponseSchema = "response"

func schemaURL(name string) string { return "mem://schemas/" + name + ".schema.json" }

// Validator checks raw admin messages against the embedded schemas.
type Validator struct {
	byName map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	names := append(append([]string{}, RequestTypes...), ResponseSchema)
	for _, name := range names {
		b, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaURL(name), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	v := &Validator{byName: map[string]*jsonschema.Schema{}}
	for _, name := range names {
		s, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byName[name] = s
	}
	return v, nil
}

// DecodeRequest validates raw against the schema for its type and decodes it. The returned
// code is one of the protocol error codes when err is set.
func (v *Validator) DecodeRequest(raw []byte) (Request, string, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return Request{}, ErrProtoBadRequest, fmt.Errorf("bad json: %w", err)
	}
	req := Request{Type: base.Type, ID: base.ID}
	s, ok := v.byName[base.Type]
	if !ok || base.Type == ResponseSchema {
		return req, ErrProtoBadRequest, fmt.Errorf("unknown request type %q", base.Type)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, ErrProtoBadRequest, err
	}
	if err := s.Validate(doc); err != nil {
		return req, ErrBadRequest, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, ErrBadRequest, err
	}
	return req, "", nil
}

// ValidateResponse checks an outgoing response; used by tests and clients.
func (v *Validator) ValidateResponse(resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return v.byName[ResponseSchema].Validate(doc)
}
