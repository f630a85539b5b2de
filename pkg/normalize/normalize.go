package normalize

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
)

// Density defaults.
const (
	DefaultMinZones     = 5
	DefaultMinNodes     = 25
	DefaultMinFlows     = 20
	DefaultMinNodesHard = 1
)

// Options configures normalization.
type Options struct {
	MinZones     int // zones required after expansion
	MinNodes     int // nodes required after expansion
	MinFlows     int // flows required after expansion
	MinNodesHard int // nodes required before expansion; fewer is fatal
	Expand       bool
	Logger       *log.Logger
}

// DefaultOptions returns the enterprise density defaults with expansion on.
func DefaultOptions() Options {
	return Options{
		MinZones:     DefaultMinZones,
		MinNodes:     DefaultMinNodes,
		MinFlows:     DefaultMinFlows,
		MinNodesHard: DefaultMinNodesHard,
		Expand:       true,
	}
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.MinZones = max(o.MinZones, 0)
	o.MinNodes = max(o.MinNodes, 0)
	o.MinFlows = max(o.MinFlows, 0)
	o.MinNodesHard = max(o.MinNodesHard, 0)
}

// WarningKind classifies an advisory problem.
type WarningKind string

const (
	WarnDanglingSource WarningKind = "dangling_source"
	WarnDanglingTarget WarningKind = "dangling_target"
	WarnEmptyZone      WarningKind = "empty_zone"
)

// Warning is a non-fatal problem found during normalization.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	ID      string      `json:"id"` // flow or zone id
	Message string      `json:"message"`
}

func (w Warning) String() string { return w.Message }

// Result is the outcome of a successful normalization.
type Result struct {
	Graph    *dsl.Graph
	Warnings []Warning
	// Expanded is true if placeholder entities were added.
	Expanded bool
	// ZoneRenames maps each raw zone id to its final id. For duplicate raw
	// ids the first occurrence wins.
	ZoneRenames map[string]string
}

// Normalize canonicalizes, checks and optionally expands g. The input is not
// modified. Fatal problems are returned as an INVALID_GRAPH error whose
// details list every offending field.
func Normalize(g *dsl.Graph, opts Options) (*Result, error) {
	opts.setDefaults()
	if g == nil {
		g = &dsl.Graph{}
	}

	if len(g.Zones) == 0 {
		if !opts.Expand {
			return nil, fatal([]string{"zones: at least one zone is required"})
		}
		out := &dsl.Graph{}
		src := g.Clone()
		out.Title, out.Groups, out.Controls = src.Title, src.Groups, src.Controls
		expanded := expand(out, opts)
		if expanded {
			logExpansion(opts.Logger, out)
		}
		return &Result{Graph: out, Expanded: expanded, ZoneRenames: map[string]string{}}, nil
	}

	out := g.Clone()
	out.Zones = out.SortedZones()
	renames := canonicalizeZones(out.Zones)
	zoneIDs := out.ZoneIDs()

	var errs []string
	seen := make(map[string]bool, len(out.Nodes))
	for i := range out.Nodes {
		n := &out.Nodes[i]
		if seen[n.ID] {
			errs = append(errs, fmt.Sprintf("nodes.%d.id: duplicate node id %q", i, n.ID))
		}
		seen[n.ID] = true
		if r, ok := renames[n.Zone]; ok {
			n.Zone = r
		}
		if !zoneIDs[n.Zone] {
			errs = append(errs, fmt.Sprintf("nodes.%d.zone: node %q references unknown zone %q", i, n.ID, n.Zone))
		}
	}
	if len(errs) > 0 {
		return nil, fatal(errs)
	}
	if len(out.Nodes) < opts.MinNodesHard {
		return nil, fatal([]string{fmt.Sprintf("nodes: at least %d node(s) are required (found %d)",
			opts.MinNodesHard, len(out.Nodes))})
	}

	for i := range out.TrustBoundaries {
		between := out.TrustBoundaries[i].BetweenZones
		for j, z := range between {
			if r, ok := renames[z]; ok {
				between[j] = r
			}
		}
	}
	for i := range out.Groups {
		if r, ok := renames[out.Groups[i].Zone]; ok {
			out.Groups[i].Zone = r
		}
	}

	warnings := check(out)
	for _, w := range warnings {
		opts.Logger.Warn(w.Message, "kind", w.Kind, "id", w.ID)
	}

	res := &Result{Graph: out, Warnings: warnings, ZoneRenames: renames}
	if opts.Expand && below(out, opts) {
		res.Expanded = expand(out, opts)
		if res.Expanded {
			logExpansion(opts.Logger, out)
		}
	}
	return res, nil
}

func fatal(details []string) error {
	return errors.WithDetails(errors.ErrCodeInvalidGraph, details, "graph normalization failed")
}

// canonicalizeZones rewrites zone ids in place and returns the rename map.
// Colliding canonical ids are suffixed _1, _2, ... skipping suffixes in use.
func canonicalizeZones(zones []dsl.Zone) map[string]string {
	renames := make(map[string]string, len(zones))
	taken := make(map[string]bool, len(zones))
	suffix := make(map[string]int)
	for i := range zones {
		canon := CanonicalZoneID(zones[i].ID)
		id := canon
		for taken[id] {
			suffix[canon]++
			id = fmt.Sprintf("%s_%d", canon, suffix[canon])
		}
		taken[id] = true
		if _, ok := renames[zones[i].ID]; !ok {
			renames[zones[i].ID] = id
		}
		zones[i].ID = id
	}
	return renames
}

// check collects dangling flow endpoints and zones without nodes.
func check(g *dsl.Graph) []Warning {
	var warnings []Warning
	nodes := g.NodeIndex()
	for _, f := range g.Flows {
		if _, ok := nodes[f.Source]; !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnDanglingSource,
				ID:      f.ID,
				Message: fmt.Sprintf("flow %q references unknown source node %q", f.ID, f.Source),
			})
		}
		if _, ok := nodes[f.Target]; !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnDanglingTarget,
				ID:      f.ID,
				Message: fmt.Sprintf("flow %q references unknown target node %q", f.ID, f.Target),
			})
		}
	}

	perZone := make(map[string]int, len(g.Zones))
	for _, n := range g.Nodes {
		perZone[n.Zone]++
	}
	for _, z := range g.Zones {
		if perZone[z.ID] == 0 {
			warnings = append(warnings, Warning{
				Kind:    WarnEmptyZone,
				ID:      z.ID,
				Message: fmt.Sprintf("zone %q has no nodes", z.ID),
			})
		}
	}
	return warnings
}

func below(g *dsl.Graph, opts Options) bool {
	return len(g.Zones) < opts.MinZones || len(g.Nodes) < opts.MinNodes || len(g.Flows) < opts.MinFlows
}

func logExpansion(logger *log.Logger, g *dsl.Graph) {
	logger.Info("graph expanded to meet density",
		"zones", len(g.Zones), "nodes", len(g.Nodes), "flows", len(g.Flows))
}
