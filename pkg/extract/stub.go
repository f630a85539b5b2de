package extract

import (
	"fmt"
	"strings"

	"github.com/matzehuels/trustlane/pkg/dsl"
)

// DefaultTitle is the title of every stub graph.
const DefaultTitle = "Security Reference Architecture"

type zoneKeyword struct {
	keyword string
	name    string
	color   string
}

// zoneKeywords are tried in order; a zone's id is its index here.
var zoneKeywords = []zoneKeyword{
	{"internet", "Internet", "#fff2cc"},
	{"dmz", "DMZ", "#ffe6cc"},
	{"cloud", "Cloud", "#dae8fc"},
	{"tenant", "Tenant", "#e1d5e7"},
	{"on-prem", "On-Premises", "#d5e8d4"},
	{"internal", "Internal", "#d5e8d4"},
	{"data", "Data Layer", "#f8cecc"},
	{"identity", "Identity", "#e1d5e7"},
	{"vendor", "Vendor / External", "#f5f5f5"},
}

var fallbackZones = []dsl.Zone{
	{ID: "z0", Name: "External", Order: 0, Color: "#fff2cc"},
	{ID: "z1", Name: "Perimeter", Order: 1, Color: "#ffe6cc"},
	{ID: "z2", Name: "Internal", Order: 2, Color: "#d5e8d4"},
}

// placement picks a zone id from the ordered zone ids.
type placement func(ids []string) string

func first(ids []string) string  { return ids[0] }
func second(ids []string) string { return ids[min(1, len(ids)-1)] }
func last(ids []string) string   { return ids[len(ids)-1] }

type nodeKeyword struct {
	keywords []string
	label    string
	typ      dsl.NodeType
	zone     placement
}

var nodeKeywords = []nodeKeyword{
	{[]string{"api", "gateway"}, "API Gateway", dsl.NodeAPI, second},
	{[]string{"waf", "firewall"}, "WAF / Firewall", dsl.NodeSecurityControl, first},
	{[]string{"app", "application", "service"}, "Application Service", dsl.NodeService, last},
	{[]string{"database", "db", "store"}, "Database", dsl.NodeDataStore, last},
	{[]string{"identity", "idp", "oauth"}, "Identity Provider", dsl.NodeIdentity, second},
	{[]string{"user", "client"}, "User / Client", dsl.NodeExternal, first},
}

// Stub builds a small valid graph from keywords in text. The same text
// always yields the same graph.
func Stub(text string) *dsl.Graph {
	t := strings.ToLower(text)
	title := DefaultTitle
	g := &dsl.Graph{
		Title:           &title,
		Zones:           []dsl.Zone{},
		TrustBoundaries: []dsl.TrustBoundary{},
		Groups:          []dsl.Group{},
		Nodes:           []dsl.Node{},
		Flows:           []dsl.Flow{},
		Controls:        []dsl.Control{},
	}

	for i, kw := range zoneKeywords {
		if strings.Contains(t, kw.keyword) || strings.Contains(t, strings.ToLower(kw.name)) {
			g.Zones = append(g.Zones, dsl.Zone{ID: fmt.Sprintf("z%d", i), Name: kw.name, Order: i, Color: kw.color})
		}
	}
	if len(g.Zones) == 0 {
		g.Zones = append(g.Zones, fallbackZones...)
	}

	ids := make([]string, len(g.Zones))
	for i, z := range g.Zones {
		ids[i] = z.ID
	}
	for i := 0; i+1 < len(ids); i++ {
		g.TrustBoundaries = append(g.TrustBoundaries, dsl.TrustBoundary{
			ID:           fmt.Sprintf("tb%d", i+1),
			Label:        fmt.Sprintf("TB%d", i+1),
			BetweenZones: []string{ids[i], ids[i+1]},
		})
	}

	for _, kw := range nodeKeywords {
		if !containsAny(t, kw.keywords) {
			continue
		}
		g.Nodes = append(g.Nodes, dsl.Node{
			ID:    fmt.Sprintf("n%d", len(g.Nodes)),
			Label: kw.label,
			Zone:  kw.zone(ids),
			Type:  kw.typ,
			Tags:  []string{},
		})
	}
	if len(g.Nodes) == 0 {
		g.Nodes = []dsl.Node{
			{ID: "n0", Label: "Client", Zone: first(ids), Type: dsl.NodeExternal, Tags: []string{}},
			{ID: "n1", Label: "Web App", Zone: last(ids), Type: dsl.NodeService, Tags: []string{}},
			{ID: "n2", Label: "Database", Zone: last(ids), Type: dsl.NodeDataStore, Tags: []string{}},
		}
	}

	if len(g.Nodes) >= 2 {
		g.Flows = append(g.Flows, dsl.Flow{
			ID: "f0", Source: g.Nodes[0].ID, Target: g.Nodes[1].ID,
			FlowType: dsl.FlowAPI, Protocol: "HTTPS", Auth: "OAuth2", DataClass: "PII",
		})
	}
	if len(g.Nodes) >= 3 {
		g.Flows = append(g.Flows, dsl.Flow{
			ID: "f1", Source: g.Nodes[1].ID, Target: g.Nodes[2].ID,
			FlowType: dsl.FlowData, Protocol: "TLS", Auth: "mTLS", DataClass: "Confidential",
		})
	}

	if strings.Contains(t, "encrypt") || strings.Contains(t, "tls") {
		scope := make([]string, 0, 2)
		for _, n := range g.Nodes[:min(2, len(g.Nodes))] {
			scope = append(scope, n.ID)
		}
		g.Controls = append(g.Controls, dsl.Control{ID: "c0", Scope: scope, ControlType: "Encryption (TLS)"})
	}
	return g
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
