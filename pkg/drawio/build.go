package drawio

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/layout"
)

const (
	// DefaultDiagramName is used when the graph has no title.
	DefaultDiagramName = "Security Reference Architecture"

	defaultHost     = "app.diagrams.net"
	defaultModified = "2025-01-01T00:00:00.000Z"

	rootCellID  = "0"
	layerCellID = "1"
)

// Cell id prefixes.
const (
	PrefixZone          = "zone-"
	PrefixNode          = "node-"
	PrefixBoundary      = "tb-"
	PrefixBoundaryLabel = "tblbl-"
	PrefixEdge          = "edge-"
	PrefixLegend        = "legend-"
)

var diagramNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/matzehuels/trustlane/diagram"))

// Warning reports a flow that could not be drawn.
type Warning struct {
	FlowID  string `json:"flow_id"`
	Message string `json:"message"`
}

func (w Warning) String() string { return w.Message }

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger dropped flows are reported to.
func WithLogger(l *log.Logger) Option { return func(b *builder) { b.logger = l } }

// WithModified overrides the envelope's modified timestamp.
func WithModified(ts string) Option { return func(b *builder) { b.modified = ts } }

// WithHost overrides the envelope's host attribute.
func WithHost(host string) Option { return func(b *builder) { b.host = host } }

// idAllocator mints cell ids from a single counter shared by all prefixes.
type idAllocator struct {
	next int
}

func newIDAllocator() *idAllocator { return &idAllocator{next: 1} }

func (a *idAllocator) id(prefix string) string {
	id := fmt.Sprintf("%s%d", prefix, a.next)
	a.next++
	return id
}

type builder struct {
	logger   *log.Logger
	host     string
	modified string
	ids      *idAllocator
	cells    []Cell
	warnings []Warning
}

// Build converts a graph and its geometry into a Document. Flows whose
// endpoints were not placed are omitted and returned as warnings.
func Build(g *dsl.Graph, geo *layout.Geometry, opts ...Option) (*Document, []Warning) {
	b := &builder{
		host:     defaultHost,
		modified: defaultModified,
		ids:      newIDAllocator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	b.cells = append(b.cells, Cell{ID: rootCellID}, Cell{ID: layerCellID, Parent: rootCellID})
	nodeCells := b.zones(geo)
	b.boundaries(geo)
	b.edges(g.Flows, nodeCells)
	b.legend(geo.Legend)

	name := g.TitleOr(DefaultDiagramName)
	doc := &Document{File: File{
		Host:     b.host,
		Modified: b.modified,
		Diagram: Diagram{
			ID:    uuid.NewSHA1(diagramNamespace, []byte(name)).String(),
			Name:  name,
			Model: defaultModel(b.cells),
		},
	}}
	return doc, b.warnings
}

// Render builds and serializes in one step.
func Render(g *dsl.Graph, geo *layout.Geometry, opts ...Option) ([]byte, []Warning, error) {
	doc, warnings := Build(g, geo, opts...)
	data, err := doc.Marshal()
	if err != nil {
		return nil, warnings, err
	}
	return data, warnings, nil
}

// zones emits every zone container followed by the nodes of all zones, and
// returns node id -> cell id.
func (b *builder) zones(geo *layout.Geometry) map[string]string {
	zoneCells := make([]string, len(geo.Zones))
	for i, z := range geo.Zones {
		id := b.ids.id(PrefixZone)
		zoneCells[i] = id
		b.cells = append(b.cells, vertex(id, layerCellID, z.Name, ZoneStyle(z.Color), z.Rect, "0"))
	}

	nodeCells := make(map[string]string, geo.NodeCount())
	for i, z := range geo.Zones {
		for _, n := range z.Nodes {
			id := b.ids.id(PrefixNode)
			nodeCells[n.ID] = id
			b.cells = append(b.cells, vertex(id, zoneCells[i], n.Label, NodeStyle(n.Type), n.Rect, "1"))
		}
	}
	return nodeCells
}

func (b *builder) boundaries(geo *layout.Geometry) {
	for _, tb := range geo.Boundaries {
		b.cells = append(b.cells,
			vertex(b.ids.id(PrefixBoundary), layerCellID, tb.Label, styleBoundary, tb.Line, "0"))
		b.cells = append(b.cells,
			vertex(b.ids.id(PrefixBoundaryLabel), layerCellID, tb.Label, styleBoundaryLabel, tb.LabelBox, "0"))
	}
}

func (b *builder) edges(flows []dsl.Flow, nodeCells map[string]string) {
	for _, f := range flows {
		src, okSrc := nodeCells[f.Source]
		dst, okDst := nodeCells[f.Target]
		if !okSrc || !okDst {
			w := Warning{
				FlowID:  f.ID,
				Message: fmt.Sprintf("flow %q skipped: source or target node missing (source=%q, target=%q)", f.ID, f.Source, f.Target),
			}
			b.warnings = append(b.warnings, w)
			b.logger.Warn("flow skipped", "flow", f.ID, "source", f.Source, "target", f.Target)
			continue
		}
		b.cells = append(b.cells, Cell{
			ID:       b.ids.id(PrefixEdge),
			Parent:   layerCellID,
			Value:    EdgeLabel(f),
			Style:    FlowStyle(f.FlowType),
			Edge:     "1",
			Source:   src,
			Target:   dst,
			Geometry: &Geometry{Relative: "1", As: "geometry"},
		})
	}
}

func (b *builder) legend(r layout.Rect) {
	b.cells = append(b.cells, vertex(b.ids.id(PrefixLegend), layerCellID, legendText, styleLegend, r, "0"))
}

// EdgeLabel returns the label drawn on a flow: the override label, else the
// non-empty protocol, auth and data class joined with " | ", else a single
// space so the edge never renders unlabeled.
func EdgeLabel(f dsl.Flow) string {
	if f.Label != nil && *f.Label != "" {
		return *f.Label
	}
	var parts []string
	for _, p := range []string{f.Protocol, f.Auth, f.DataClass} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if label := strings.TrimSpace(strings.Join(parts, " | ")); label != "" {
		return label
	}
	return " "
}

func vertex(id, parent, value, style string, r layout.Rect, relative string) Cell {
	return Cell{
		ID:     id,
		Parent: parent,
		Value:  value,
		Style:  style,
		Vertex: "1",
		Geometry: &Geometry{
			X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
			Relative: relative,
			As:       "geometry",
		},
	}
}

func defaultModel(cells []Cell) Model {
	return Model{
		Dx: "1422", Dy: "794",
		Grid: "1", GridSize: "10",
		Guides: "1", Tooltips: "1", Connect: "1", Arrows: "1", Fold: "1",
		Page: "1", PageScale: "1", PageWidth: "1600", PageHeight: "3200",
		Math: "0", Shadow: "0",
		Root: Root{Cells: cells},
	}
}
