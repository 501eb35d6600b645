// Package validation checks the structure of remote documents against
// embedded JSON Schemas before they are decoded, so a backend answering with
// an unexpected shape is reported as such instead of yielding an empty
// report.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentstation/procreport/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://procreport.schemas.local/"

// Document identifies the shape a remote document must have.
type Document string

// Known documents.
const (
	// Capabilities is the aggregator root document carrying the federation map.
	Capabilities Document = "capabilities"
	// ProcessEnvelope is a {"processes": [...]} listing (aggregator and backends).
	ProcessEnvelope Document = "envelope"
	// ProcessArray is the bare array served by the specification.
	ProcessArray Document = "spec"
)

var documents = []Document{Capabilities, ProcessEnvelope, ProcessArray}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Document]*jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, errors.WrapIO("read", "schemas", err)
	}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, errors.WrapIO("read", entry.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema load failed for %s: %w", entry.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[Document]*jsonschema.Schema, len(documents))}
	for _, doc := range documents {
		compiled, err := c.Compile(schemaBaseURL + string(doc) + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema compile failed for %s: %w", doc, err)
		}
		v.schemas[doc] = compiled
	}
	return v, nil
}

// Validate checks body against the schema of doc. Malformed JSON yields a
// *errors.ParseError, a shape mismatch a *errors.ValidationError.
func (v *Validator) Validate(doc Document, body []byte) error {
	schema, ok := v.schemas[doc]
	if !ok {
		return errors.NewNotFoundError("schema", string(doc))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return errors.WrapParse("json", string(doc), err)
	}

	if err := schema.Validate(instance); err != nil {
		return &errors.ValidationError{
			Field:   string(doc),
			Message: err.Error(),
		}
	}
	return nil
}
