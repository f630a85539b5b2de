package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/dsl"
)

// Options configures DOT output.
type Options struct {
	// Detailed appends the node type and tags to each node label.
	Detailed bool
}

// ToDOT converts g to a Graphviz digraph. Zones are emitted as clusters in
// ascending order, nodes in input order within their zone. Flows whose
// endpoints are unknown are skipped, as in the draw.io document.
func ToDOT(g *dsl.Graph, opts Options) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", g.TitleOr(drawio.DefaultDiagramName))
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=10];\n")

	byZone := make(map[string][]dsl.Node)
	for _, n := range g.Nodes {
		byZone[n.Zone] = append(byZone[n.Zone], n)
	}

	known := make(map[string]bool, len(g.Nodes))
	for i, z := range g.SortedZones() {
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "  subgraph \"cluster_%d\" {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", zoneName(z))
		fmt.Fprintf(&buf, "    style=filled;\n    color=%q;\n", zoneColor(z))
		for _, n := range byZone[z.ID] {
			if known[n.ID] {
				continue
			}
			known[n.ID] = true
			fmt.Fprintf(&buf, "    %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts.Detailed), ", "))
		}
		buf.WriteString("  }\n")
	}

	if len(g.Flows) > 0 {
		buf.WriteString("\n")
	}
	for _, f := range g.Flows {
		if !known[f.Source] || !known[f.Target] {
			continue
		}
		attrs := []string{fmt.Sprintf("label=%q", strings.TrimSpace(drawio.EdgeLabel(f)))}
		if f.FlowType == dsl.FlowLog || f.FlowType == dsl.FlowTelemetry {
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", f.Source, f.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func zoneName(z dsl.Zone) string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}

func zoneColor(z dsl.Zone) string {
	if z.Color != "" {
		return z.Color
	}
	return dsl.DefaultZoneColor
}

func nodeAttrs(n dsl.Node, detailed bool) []string {
	label := n.Label
	if label == "" {
		label = n.ID
	}
	if detailed {
		label += "\n" + string(n.Type)
		if len(n.Tags) > 0 {
			label += "\n" + strings.Join(n.Tags, ", ")
		}
	}
	return append([]string{fmt.Sprintf("label=%q", label)}, shape(n.Type)...)
}

func shape(t dsl.NodeType) []string {
	switch t {
	case dsl.NodeAPI:
		return []string{"shape=hexagon"}
	case dsl.NodeDataStore:
		return []string{"shape=cylinder"}
	case dsl.NodeIdentity:
		return []string{"shape=ellipse"}
	case dsl.NodeSecurityControl:
		return []string{"shape=octagon"}
	case dsl.NodeVendor, dsl.NodeExternal:
		return []string{"style=\"rounded,filled,dashed\"", "fillcolor=\"#f5f5f5\""}
	case dsl.NodeApp, dsl.NodeService:
		return nil
	default:
		return nil
	}
}
