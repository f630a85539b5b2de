package dsl

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema returns the JSON Schema for [Graph], derived from the Go types.
func Schema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Graph](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema: %w", err)
	}
	s.Title = "Graph"
	s.Description = "Security reference architecture: zones, trust boundaries, groups, nodes, flows and controls."

	if order := property(s, "zones", "order"); order != nil {
		zero := 0.0
		order.Minimum = &zero
	}
	if color := property(s, "zones", "color"); color != nil {
		color.Default = json.RawMessage(`"` + DefaultZoneColor + `"`)
	}
	if typ := property(s, "nodes", "type"); typ != nil {
		typ.Enum = enumValues(nodeTypes)
		typ.Default = json.RawMessage(`"` + string(NodeApp) + `"`)
	}
	if typ := property(s, "flows", "flow_type"); typ != nil {
		typ.Enum = enumValues(flowTypes)
		typ.Default = json.RawMessage(`"` + string(FlowGeneric) + `"`)
	}

	required := map[string][]string{
		"zones":            {"id", "name", "order"},
		"trust_boundaries": {"id"},
		"nodes":            {"id", "label", "zone"},
		"groups":           {"id", "label", "zone"},
		"flows":            {"id", "source", "target"},
		"controls":         {"id", "control_type"},
	}
	for coll, fields := range required {
		if item := items(s, coll); item != nil {
			item.Required = fields
		}
	}
	return s, nil
}

// SchemaJSON returns [Schema] encoded as indented JSON.
func SchemaJSON() ([]byte, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

func items(s *jsonschema.Schema, collection string) *jsonschema.Schema {
	p, ok := s.Properties[collection]
	if !ok || p == nil {
		return nil
	}
	return p.Items
}

func property(s *jsonschema.Schema, collection, field string) *jsonschema.Schema {
	item := items(s, collection)
	if item == nil {
		return nil
	}
	return item.Properties[field]
}

func enumValues[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
