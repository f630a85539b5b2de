package dsl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// DefaultZoneColor is the background color used for zones without one.
const DefaultZoneColor = "#dae8fc"

// NodeType selects the shape family a node is drawn with.
type NodeType string

// Node types. The set is closed; [NodeType.Valid] reports membership.
const (
	NodeApp             NodeType = "app"
	NodeService         NodeType = "service"
	NodeAPI             NodeType = "api"
	NodeDataStore       NodeType = "data_store"
	NodeIdentity        NodeType = "identity"
	NodeSecurityControl NodeType = "security_control"
	NodeVendor          NodeType = "vendor"
	NodeExternal        NodeType = "external"
)

var nodeTypes = []NodeType{
	NodeApp, NodeService, NodeAPI, NodeDataStore,
	NodeIdentity, NodeSecurityControl, NodeVendor, NodeExternal,
}

// NodeTypes returns all node types in declaration order.
func NodeTypes() []NodeType { return slices.Clone(nodeTypes) }

// Valid reports whether t is a member of the closed node type set.
func (t NodeType) Valid() bool {
	switch t {
	case NodeApp, NodeService, NodeAPI, NodeDataStore,
		NodeIdentity, NodeSecurityControl, NodeVendor, NodeExternal:
		return true
	}
	return false
}

// FlowType selects the line style a flow is drawn with.
type FlowType string

// Flow types. The set is closed; [FlowType.Valid] reports membership.
const (
	FlowAPI       FlowType = "api"
	FlowAuth      FlowType = "auth"
	FlowData      FlowType = "data"
	FlowLog       FlowType = "log"
	FlowTelemetry FlowType = "telemetry"
	FlowGeneric   FlowType = "generic"
)

var flowTypes = []FlowType{FlowAPI, FlowAuth, FlowData, FlowLog, FlowTelemetry, FlowGeneric}

// FlowTypes returns all flow types in declaration order.
func FlowTypes() []FlowType { return slices.Clone(flowTypes) }

// Valid reports whether t is a member of the closed flow type set.
func (t FlowType) Valid() bool {
	switch t {
	case FlowAPI, FlowAuth, FlowData, FlowLog, FlowTelemetry, FlowGeneric:
		return true
	}
	return false
}

// Zone is a horizontal band of the diagram representing a trust domain.
type Zone struct {
	ID    string `json:"id" jsonschema:"Unique zone identifier"`
	Name  string `json:"name" jsonschema:"Display name of the zone"`
	Order int    `json:"order" jsonschema:"Vertical order, 0 is the topmost band"`
	Color string `json:"color,omitempty" jsonschema:"Background color (hex or name)"`
}

// TrustBoundary separates two zones. Only the first two zone ids are used.
type TrustBoundary struct {
	ID           string   `json:"id" jsonschema:"Unique trust boundary identifier"`
	Label        string   `json:"label,omitempty" jsonschema:"Optional label"`
	BetweenZones []string `json:"between_zones,omitempty" jsonschema:"Zone ids that this boundary separates (ordered)"`
}

// Node is a single architecture component placed in exactly one zone.
type Node struct {
	ID    string   `json:"id" jsonschema:"Unique node identifier"`
	Label string   `json:"label" jsonschema:"Display label"`
	Zone  string   `json:"zone" jsonschema:"Id of the zone this node belongs to"`
	Type  NodeType `json:"type,omitempty" jsonschema:"Node type for shape and styling"`
	Tags  []string `json:"tags,omitempty" jsonschema:"Optional tags"`
}

// Group is descriptive metadata naming a set of nodes or nested groups within a zone.
// Groups do not affect layout.
type Group struct {
	ID       string   `json:"id" jsonschema:"Unique group identifier"`
	Label    string   `json:"label" jsonschema:"Display label"`
	Zone     string   `json:"zone" jsonschema:"Id of the zone this group belongs to"`
	Children []string `json:"children,omitempty" jsonschema:"Ids of nodes or nested groups"`
}

// Flow is a directed connection between two nodes.
type Flow struct {
	ID        string   `json:"id" jsonschema:"Unique flow identifier"`
	Source    string   `json:"source" jsonschema:"Source node id"`
	Target    string   `json:"target" jsonschema:"Target node id"`
	FlowType  FlowType `json:"flow_type,omitempty" jsonschema:"Determines line style"`
	Protocol  string   `json:"protocol,omitempty" jsonschema:"Protocol such as HTTPS or gRPC"`
	Auth      string   `json:"auth,omitempty" jsonschema:"Authentication such as OAuth2 or mTLS"`
	DataClass string   `json:"data_class,omitempty" jsonschema:"Data classification such as PII or Public"`
	Label     *string  `json:"label,omitempty" jsonschema:"Override for the generated edge label"`
}

// Control is a security control applied to nodes, zones, flows or groups.
// Controls are metadata only and do not affect layout.
type Control struct {
	ID          string   `json:"id" jsonschema:"Unique control identifier"`
	Scope       []string `json:"scope,omitempty" jsonschema:"Ids of nodes, zones, flows or groups this control applies to"`
	ControlType string   `json:"control_type" jsonschema:"Control kind such as encryption, MFA or WAF"`
}

// Graph is the root architecture document.
type Graph struct {
	Title           *string         `json:"title,omitempty" jsonschema:"Diagram title"`
	Zones           []Zone          `json:"zones,omitempty" jsonschema:"Zones (swimlanes)"`
	TrustBoundaries []TrustBoundary `json:"trust_boundaries,omitempty" jsonschema:"Trust boundaries between zones"`
	Groups          []Group         `json:"groups,omitempty" jsonschema:"Nested group metadata"`
	Nodes           []Node          `json:"nodes,omitempty" jsonschema:"Components"`
	Flows           []Flow          `json:"flows,omitempty" jsonschema:"Data and control flows"`
	Controls        []Control       `json:"controls,omitempty" jsonschema:"Security controls"`
}

// TitleOr returns the graph title, or fallback if the title is unset or blank.
func (g *Graph) TitleOr(fallback string) string {
	if g.Title == nil || *g.Title == "" {
		return fallback
	}
	return *g.Title
}

// Clone returns a deep copy of the graph. Nil collections stay nil.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Zones: slices.Clone(g.Zones),
		TrustBoundaries: cloneEach(g.TrustBoundaries, func(tb TrustBoundary) TrustBoundary {
			tb.BetweenZones = slices.Clone(tb.BetweenZones)
			return tb
		}),
		Groups: cloneEach(g.Groups, func(gr Group) Group {
			gr.Children = slices.Clone(gr.Children)
			return gr
		}),
		Nodes: cloneEach(g.Nodes, func(n Node) Node {
			n.Tags = slices.Clone(n.Tags)
			return n
		}),
		Flows: cloneEach(g.Flows, func(f Flow) Flow {
			f.Label = clonePtr(f.Label)
			return f
		}),
		Controls: cloneEach(g.Controls, func(c Control) Control {
			c.Scope = slices.Clone(c.Scope)
			return c
		}),
	}
	out.Title = clonePtr(g.Title)
	return out
}

func cloneEach[T any](in []T, fn func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// NodeIndex returns a map from node id to its index in g.Nodes.
// For duplicate ids the first occurrence wins.
func (g *Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, ok := idx[n.ID]; !ok {
			idx[n.ID] = i
		}
	}
	return idx
}

// ZoneIDs returns the set of zone ids.
func (g *Graph) ZoneIDs() map[string]bool {
	ids := make(map[string]bool, len(g.Zones))
	for _, z := range g.Zones {
		ids[z.ID] = true
	}
	return ids
}

// SortedZones returns the zones sorted by ascending order.
// Zones with equal order keep their input order.
func (g *Graph) SortedZones() []Zone {
	zones := slices.Clone(g.Zones)
	slices.SortStableFunc(zones, func(a, b Zone) int { return a.Order - b.Order })
	return zones
}

// Marshal encodes the graph as indented JSON.
func Marshal(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw converts the graph back into an untyped payload, the shape [Validate] consumes.
func (g *Graph) Raw() (map[string]any, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return raw, nil
}
