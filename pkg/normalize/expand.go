package normalize

import (
	"fmt"

	"github.com/matzehuels/trustlane/pkg/dsl"
)

const (
	expandedZoneColor    = "#e1d5e7"
	expandedFlowProtocol = "HTTPS"
)

// expand pads g in place until the minimums in opts hold and reports whether
// anything was added. g.Zones must already be sorted by order.
//
// Flows need two distinct endpoints and nodes need a zone, so the node and
// zone targets are raised when a later stage could not otherwise be met.
func expand(g *dsl.Graph, opts Options) bool {
	nodeTarget := opts.MinNodes
	if len(g.Flows) < opts.MinFlows {
		nodeTarget = max(nodeTarget, 2)
	}
	zoneTarget := opts.MinZones
	if len(g.Nodes) < nodeTarget {
		zoneTarget = max(zoneTarget, 1)
	}

	e := &expander{g: g}
	added := e.zones(zoneTarget)
	added = e.nodes(nodeTarget) || added
	added = e.flows(opts.MinFlows) || added
	return added
}

type expander struct {
	g *dsl.Graph
}

func (e *expander) zones(target int) bool {
	if len(e.g.Zones) >= target {
		return false
	}
	zoneIDs := e.g.ZoneIDs()
	tbIDs := make(map[string]bool, len(e.g.TrustBoundaries))
	for _, tb := range e.g.TrustBoundaries {
		tbIDs[tb.ID] = true
	}
	order := -1
	for _, z := range e.g.Zones {
		order = max(order, z.Order)
	}

	next := len(e.g.Zones)
	for len(e.g.Zones) < target {
		n := nextFree(zoneIDs, "zone_", &next)
		order++
		z := dsl.Zone{
			ID:    fmt.Sprintf("zone_%d", n),
			Name:  fmt.Sprintf("Zone %d", n+1),
			Order: order,
			Color: expandedZoneColor,
		}
		e.g.Zones = append(e.g.Zones, z)
		zoneIDs[z.ID] = true

		if len(e.g.Zones) >= 2 {
			prev := e.g.Zones[len(e.g.Zones)-2].ID
			tbNext := n
			k := nextFree(tbIDs, "tb_", &tbNext)
			tb := dsl.TrustBoundary{
				ID:           fmt.Sprintf("tb_%d", k),
				Label:        fmt.Sprintf("TB%d", len(e.g.TrustBoundaries)+1),
				BetweenZones: []string{prev, z.ID},
			}
			e.g.TrustBoundaries = append(e.g.TrustBoundaries, tb)
			tbIDs[tb.ID] = true
		}
	}
	return true
}

// nodes adds service placeholders, assigned round-robin across zones in order.
func (e *expander) nodes(target int) bool {
	if len(e.g.Nodes) >= target || len(e.g.Zones) == 0 {
		return false
	}
	nodeIDs := make(map[string]bool, len(e.g.Nodes))
	for _, n := range e.g.Nodes {
		nodeIDs[n.ID] = true
	}

	next := len(e.g.Nodes)
	for len(e.g.Nodes) < target {
		n := nextFree(nodeIDs, "node_", &next)
		node := dsl.Node{
			ID:    fmt.Sprintf("node_%d", n),
			Label: fmt.Sprintf("Component %d", n+1),
			Zone:  e.g.Zones[n%len(e.g.Zones)].ID,
			Type:  dsl.NodeService,
		}
		e.g.Nodes = append(e.g.Nodes, node)
		nodeIDs[node.ID] = true
	}
	return true
}

// flows chains api flows between consecutive nodes in insertion order,
// wrapping modulo len(nodes)-1.
func (e *expander) flows(target int) bool {
	if len(e.g.Flows) >= target || len(e.g.Nodes) < 2 {
		return false
	}
	flowIDs := make(map[string]bool, len(e.g.Flows))
	for _, f := range e.g.Flows {
		flowIDs[f.ID] = true
	}
	ids := make([]string, len(e.g.Nodes))
	for i, n := range e.g.Nodes {
		ids[i] = n.ID
	}

	next := len(e.g.Flows)
	for len(e.g.Flows) < target {
		n := nextFree(flowIDs, "flow_", &next)
		i := n % (len(ids) - 1)
		f := dsl.Flow{
			ID:       fmt.Sprintf("flow_%d", n),
			Source:   ids[i],
			Target:   ids[i+1],
			FlowType: dsl.FlowAPI,
			Protocol: expandedFlowProtocol,
		}
		e.g.Flows = append(e.g.Flows, f)
		flowIDs[f.ID] = true
	}
	return true
}

// nextFree returns the first n >= *counter such that prefix+n is not taken,
// and advances *counter past it.
func nextFree(taken map[string]bool, prefix string, counter *int) int {
	n := *counter
	for taken[fmt.Sprintf("%s%d", prefix, n)] {
		n++
	}
	*counter = n + 1
	return n
}
