package dsl

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/matzehuels/trustlane/pkg/errors"
)

var (
	graphFields    = []string{"title", "zones", "trust_boundaries", "groups", "nodes", "flows", "controls"}
	zoneFields     = []string{"id", "name", "order", "color"}
	boundaryFields = []string{"id", "label", "between_zones"}
	nodeFields     = []string{"id", "label", "zone", "type", "tags"}
	groupFields    = []string{"id", "label", "zone", "children"}
	flowFields     = []string{"id", "source", "target", "flow_type", "protocol", "auth", "data_class", "label"}
	controlFields  = []string{"id", "scope", "control_type"}
)

// Validate coerces raw into a typed Graph in strict mode.
// Unknown fields anywhere in the document are errors.
func Validate(raw map[string]any) (*Graph, error) {
	return decode(raw, true)
}

// Decode coerces raw into a typed Graph, ignoring unknown fields.
// Type errors, enum violations and missing required fields still fail.
func Decode(raw map[string]any) (*Graph, error) {
	return decode(raw, false)
}

// Parse decodes JSON bytes and validates the result.
func Parse(data []byte, strict bool) (*Graph, error) {
	raw, err := ParseRaw(data)
	if err != nil {
		return nil, err
	}
	return decode(raw, strict)
}

// ParseRaw decodes JSON bytes into a raw payload without validating it.
func ParseRaw(data []byte) (map[string]any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithDetails(errors.ErrCodeInvalidGraph,
			[]string{"$: invalid JSON: " + err.Error()}, "graph validation failed")
	}
	raw, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.WithDetails(errors.ErrCodeInvalidGraph,
			[]string{"$: must be a JSON object"}, "graph validation failed")
	}
	return raw, nil
}

func decode(raw map[string]any, strict bool) (*Graph, error) {
	d := &decoder{strict: strict}
	g := d.graph(raw)
	if len(d.errs) > 0 {
		return nil, errors.WithDetails(errors.ErrCodeInvalidGraph, d.errs,
			"graph validation failed (%d error(s))", len(d.errs))
	}
	return g, nil
}

// decoder walks an untyped payload, collecting every problem it finds.
type decoder struct {
	strict bool
	errs   []string
}

func (d *decoder) failf(path, format string, args ...any) {
	d.errs = append(d.errs, path+": "+fmt.Sprintf(format, args...))
}

func join(path string, key any) string {
	if path == "" {
		return fmt.Sprint(key)
	}
	return fmt.Sprintf("%s.%v", path, key)
}

func (d *decoder) graph(raw map[string]any) *Graph {
	g := &Graph{}
	if raw == nil {
		return g
	}
	d.unknown("", raw, graphFields)

	g.Title = d.optString(raw, "", "title")
	for i, obj := range d.objects(raw, "", "zones") {
		p := join("zones", i)
		d.unknown(p, obj, zoneFields)
		z := Zone{
			ID:    d.reqString(obj, p, "id"),
			Name:  d.reqString(obj, p, "name"),
			Order: d.order(obj, p),
			Color: d.str(obj, p, "color", DefaultZoneColor),
		}
		g.Zones = append(g.Zones, z)
	}
	for i, obj := range d.objects(raw, "", "trust_boundaries") {
		p := join("trust_boundaries", i)
		d.unknown(p, obj, boundaryFields)
		g.TrustBoundaries = append(g.TrustBoundaries, TrustBoundary{
			ID:           d.reqString(obj, p, "id"),
			Label:        d.str(obj, p, "label", ""),
			BetweenZones: d.strList(obj, p, "between_zones"),
		})
	}
	for i, obj := range d.objects(raw, "", "groups") {
		p := join("groups", i)
		d.unknown(p, obj, groupFields)
		g.Groups = append(g.Groups, Group{
			ID:       d.reqString(obj, p, "id"),
			Label:    d.reqString(obj, p, "label"),
			Zone:     d.reqString(obj, p, "zone"),
			Children: d.strList(obj, p, "children"),
		})
	}
	for i, obj := range d.objects(raw, "", "nodes") {
		p := join("nodes", i)
		d.unknown(p, obj, nodeFields)
		n := Node{
			ID:    d.reqString(obj, p, "id"),
			Label: d.reqString(obj, p, "label"),
			Zone:  d.reqString(obj, p, "zone"),
			Type:  NodeType(d.str(obj, p, "type", string(NodeApp))),
			Tags:  d.strList(obj, p, "tags"),
		}
		if _, present := obj["type"]; present && !n.Type.Valid() {
			d.failf(join(p, "type"), "must be one of: %s", enumList(nodeTypes))
		}
		g.Nodes = append(g.Nodes, n)
	}
	for i, obj := range d.objects(raw, "", "flows") {
		p := join("flows", i)
		d.unknown(p, obj, flowFields)
		f := Flow{
			ID:        d.reqString(obj, p, "id"),
			Source:    d.reqString(obj, p, "source"),
			Target:    d.reqString(obj, p, "target"),
			FlowType:  FlowType(d.str(obj, p, "flow_type", string(FlowGeneric))),
			Protocol:  d.str(obj, p, "protocol", ""),
			Auth:      d.str(obj, p, "auth", ""),
			DataClass: d.str(obj, p, "data_class", ""),
			Label:     d.optString(obj, p, "label"),
		}
		if _, present := obj["flow_type"]; present && !f.FlowType.Valid() {
			d.failf(join(p, "flow_type"), "must be one of: %s", enumList(flowTypes))
		}
		g.Flows = append(g.Flows, f)
	}
	for i, obj := range d.objects(raw, "", "controls") {
		p := join("controls", i)
		d.unknown(p, obj, controlFields)
		g.Controls = append(g.Controls, Control{
			ID:          d.reqString(obj, p, "id"),
			Scope:       d.strList(obj, p, "scope"),
			ControlType: d.reqString(obj, p, "control_type"),
		})
	}
	return g
}

func (d *decoder) unknown(path string, obj map[string]any, allowed []string) {
	if !d.strict {
		return
	}
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		if !slices.Contains(allowed, key) {
			d.failf(join(path, key), "unknown field")
		}
	}
}

// objects returns the entries of a list-of-objects field. Entries that are
// not objects are reported and skipped.
func (d *decoder) objects(obj map[string]any, path, key string) []map[string]any {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil
	}
	items, ok := asList(v)
	if !ok {
		d.failf(join(path, key), "must be a list")
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			d.failf(join(join(path, key), i), "must be an object")
			continue
		}
		out = append(out, m)
	}
	return out
}

func (d *decoder) reqString(obj map[string]any, path, key string) string {
	v, ok := obj[key]
	if !ok {
		d.failf(join(path, key), "field required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.failf(join(path, key), "must be a string")
	}
	return s
}

func (d *decoder) str(obj map[string]any, path, key, def string) string {
	v, ok := obj[key]
	if !ok || (v == nil && !d.strict) {
		return def
	}
	s, ok := v.(string)
	if !ok {
		d.failf(join(path, key), "must be a string")
		return def
	}
	return s
}

func (d *decoder) optString(obj map[string]any, path, key string) *string {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		d.failf(join(path, key), "must be a string or null")
		return nil
	}
	return &s
}

func (d *decoder) strList(obj map[string]any, path, key string) []string {
	v, ok := obj[key]
	if !ok || (v == nil && !d.strict) {
		return nil
	}
	items, ok := asList(v)
	if !ok {
		d.failf(join(path, key), "must be a list")
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			d.failf(join(join(path, key), i), "must be a string")
			continue
		}
		out = append(out, s)
	}
	return out
}

func (d *decoder) order(obj map[string]any, path string) int {
	p := join(path, "order")
	v, ok := obj["order"]
	if !ok {
		d.failf(p, "field required")
		return 0
	}
	n, ok := asInt(v)
	if !ok {
		d.failf(p, "must be an integer")
		return 0
	}
	if n < 0 {
		d.failf(p, "must be greater than or equal to 0")
		return 0
	}
	return n
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func enumList[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
