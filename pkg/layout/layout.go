package layout

import (
	"fmt"
	"strings"

	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
)

// Engine constants.
const (
	CanvasWidth     = 1400
	ZoneHeader      = 32
	NodeWidth       = 160
	NodeHeight      = 60
	GapX            = 40
	GapY            = 40
	Padding         = 40
	BoundaryBand    = 24
	BoundaryHeight  = 3
	BoundaryLabelW  = 80
	BoundaryLabelH  = 16
	LegendWidth     = 400
	LegendHeight    = 160
	LegendMargin    = 20
	boundaryLabelDY = 16
)

// Rect is an axis-aligned box.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ZoneBox is a zone band in absolute canvas coordinates.
type ZoneBox struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
	Rect  Rect      `json:"rect"`
	Nodes []NodeBox `json:"nodes"`
}

// NodeBox is a node placed relative to its zone's container.
type NodeBox struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Type  dsl.NodeType `json:"type"`
	Rect  Rect         `json:"rect"`
}

// Boundary is a trust boundary rule with its label box, both absolute.
type Boundary struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Line     Rect   `json:"line"`
	LabelBox Rect   `json:"label_box"`
}

// SkippedBoundary records a trust boundary that could not be drawn.
type SkippedBoundary struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Geometry is the complete placement of a graph on the canvas.
type Geometry struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Columns    int               `json:"columns"`
	Zones      []ZoneBox         `json:"zones"`
	Boundaries []Boundary        `json:"boundaries"`
	Skipped    []SkippedBoundary `json:"skipped,omitempty"`
	Legend     Rect              `json:"legend"`

	// node id -> zone index; first placement wins
	nodeZone map[string]int
}

// ZoneOf returns the zone box containing the node with the given id.
func (g *Geometry) ZoneOf(nodeID string) (*ZoneBox, bool) {
	i, ok := g.nodeZone[nodeID]
	if !ok {
		return nil, false
	}
	return &g.Zones[i], true
}

// NodeCount returns the number of placed nodes.
func (g *Geometry) NodeCount() int {
	n := 0
	for _, z := range g.Zones {
		n += len(z.Nodes)
	}
	return n
}

// Columns returns the grid column count shared by all zones.
func Columns() int {
	return max(1, (CanvasWidth-2*Padding+GapX)/(NodeWidth+GapX))
}

// ZoneHeight returns the height of a zone holding n nodes.
func ZoneHeight(n int) int {
	rows := max(1, (n+Columns()-1)/Columns())
	return ZoneHeader + Padding + rows*(NodeHeight+GapY)
}

// Compute lays out g. The graph should already be normalized: nodes whose zone
// is unknown are not placed. An error is returned only for internal invariant
// violations.
func Compute(g *dsl.Graph) (*Geometry, error) {
	cols := Columns()
	geo := &Geometry{
		Width:    CanvasWidth,
		Columns:  cols,
		nodeZone: make(map[string]int, len(g.Nodes)),
	}

	zones := g.SortedZones()
	index := make(map[string]int, len(zones))
	members := make([][]dsl.Node, len(zones))
	for i, z := range zones {
		if _, dup := index[z.ID]; !dup {
			index[z.ID] = i
		}
	}
	for _, n := range g.Nodes {
		if i, ok := index[n.Zone]; ok {
			members[i] = append(members[i], n)
		}
	}

	y := 0
	for i, z := range zones {
		h := ZoneHeight(len(members[i]))
		box := ZoneBox{
			ID:    z.ID,
			Name:  z.Name,
			Color: strings.TrimSpace(z.Color),
			Rect:  Rect{X: 0, Y: y, Width: CanvasWidth, Height: h},
			Nodes: make([]NodeBox, 0, len(members[i])),
		}
		if box.Name == "" {
			box.Name = z.ID
		}
		if box.Color == "" {
			box.Color = dsl.DefaultZoneColor
		}
		for j, n := range members[i] {
			r := Rect{
				X:      Padding + (j%cols)*(NodeWidth+GapX),
				Y:      Padding + (j/cols)*(NodeHeight+GapY),
				Width:  NodeWidth,
				Height: NodeHeight,
			}
			if err := checkContained(n.ID, z.ID, r, box.Rect); err != nil {
				return nil, err
			}
			label := n.Label
			if label == "" {
				label = n.ID
			}
			box.Nodes = append(box.Nodes, NodeBox{ID: n.ID, Label: label, Type: n.Type, Rect: r})
			if _, ok := geo.nodeZone[n.ID]; !ok {
				geo.nodeZone[n.ID] = i
			}
		}
		geo.Zones = append(geo.Zones, box)
		y += h
	}

	for i, tb := range g.TrustBoundaries {
		b, reason := boundary(i, tb, geo, index)
		if reason != "" {
			geo.Skipped = append(geo.Skipped, SkippedBoundary{ID: tb.ID, Reason: reason})
			continue
		}
		geo.Boundaries = append(geo.Boundaries, b)
	}

	y += len(g.TrustBoundaries) * BoundaryBand
	geo.Legend = Rect{
		X:      CanvasWidth - LegendWidth - LegendMargin,
		Y:      y + LegendMargin,
		Width:  LegendWidth,
		Height: LegendHeight,
	}
	geo.Height = geo.Legend.Y + geo.Legend.Height
	return geo, nil
}

func boundary(i int, tb dsl.TrustBoundary, geo *Geometry, index map[string]int) (Boundary, string) {
	if len(tb.BetweenZones) < 2 {
		return Boundary{}, "fewer than two zones referenced"
	}
	first, ok := index[tb.BetweenZones[0]]
	if !ok {
		return Boundary{}, fmt.Sprintf("unknown zone %q", tb.BetweenZones[0])
	}
	if _, ok := index[tb.BetweenZones[1]]; !ok {
		return Boundary{}, fmt.Sprintf("unknown zone %q", tb.BetweenZones[1])
	}

	zone := geo.Zones[first].Rect
	lineY := zone.Y + zone.Height
	label := strings.TrimSpace(tb.Label)
	if label == "" {
		label = fmt.Sprintf("TB%d", i+1)
	}
	return Boundary{
		ID:       tb.ID,
		Label:    label,
		Line:     Rect{X: 0, Y: lineY, Width: CanvasWidth, Height: BoundaryHeight},
		LabelBox: Rect{X: CanvasWidth/2 - BoundaryLabelW/2, Y: lineY - boundaryLabelDY, Width: BoundaryLabelW, Height: BoundaryLabelH},
	}, ""
}

func checkContained(nodeID, zoneID string, r, zone Rect) error {
	if r.X < 0 || r.Y < 0 || r.X+r.Width > zone.Width || r.Y+r.Height > zone.Height-ZoneHeader {
		return errors.New(errors.ErrCodeInvariant,
			"node %q at (%d,%d) lies outside zone %q (%dx%d)", nodeID, r.X, r.Y, zoneID, zone.Width, zone.Height)
	}
	return nil
}
