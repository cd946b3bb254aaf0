package tool

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/silfenpath/adk/llm"
)

// toJSONSchemaDoc renders a Tool's Parameters as a JSON Schema object
// document, the form spec §4.4 calls "JSON-Schema-equivalent" and the form
// jsonschema/v6 compiles.
func toJSONSchemaDoc(params map[string]llm.Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		properties[name] = paramToSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func paramToSchema(p llm.Parameter) map[string]any {
	doc := map[string]any{"type": p.Type}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, e := range p.Enum {
			enum[i] = e
		}
		doc["enum"] = enum
	}
	if p.Default != nil {
		doc["default"] = p.Default
	}
	if p.Items != nil {
		doc["items"] = paramToSchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, child := range p.Properties {
			props[name] = paramToSchema(child)
		}
		doc["properties"] = props
	}
	return doc
}

// Validator compiles a Tool's parameter schema once and validates argument
// maps against it on every call.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles t's parameter schema.
func NewValidator(t Tool) (*Validator, error) {
	doc := toJSONSchemaDoc(t.Parameters())
	c := jsonschema.NewCompiler()
	resource := t.Name() + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", t.Name(), err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks args against the compiled schema, returning a
// human-readable error on failure.
func (v *Validator) Validate(args map[string]any) error {
	return v.schema.Validate(toAnyMap(args))
}

func toAnyMap(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
