package drawio

import (
	"fmt"

	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/layout"
)

const (
	styleApp       = "rounded=1;whiteSpace=wrap;html=1;fillColor=#d5e8d4;strokeColor=#82b366;strokeWidth=1;"
	styleAPI       = "shape=hexagon;perimeter=hexagonPerimeter2;whiteSpace=wrap;html=1;fillColor=#dae8fc;strokeColor=#6c8ebf;strokeWidth=1;"
	styleDataStore = "shape=cylinder3;whiteSpace=wrap;html=1;boundedLbl=1;backgroundOutline=1;size=15;fillColor=#fff2cc;strokeColor=#d6b656;strokeWidth=1;"
	styleIdentity  = "shape=ellipse;whiteSpace=wrap;html=1;fillColor=#e1d5e7;strokeColor=#9673a6;strokeWidth=1;"
	styleSecurity  = "shape=shield;whiteSpace=wrap;html=1;fillColor=#f8cecc;strokeColor=#b85450;strokeWidth=2;"
	styleExternal  = "rounded=1;whiteSpace=wrap;html=1;fillColor=#f5f5f5;strokeColor=#666666;dashed=1;strokeWidth=1;"

	styleEdgeSolid  = "endArrow=block;html=1;rounded=0;curved=0;orthogonalLoop=1;exitX=1;exitY=0.5;exitDx=0;exitDy=0;entryX=0;entryY=0.5;entryDx=0;entryDy=0;strokeColor=#6c8ebf;strokeWidth=2;"
	styleEdgeDashed = "endArrow=block;html=1;rounded=0;dashed=1;curved=0;orthogonalLoop=1;exitX=1;exitY=0.5;exitDx=0;exitDy=0;entryX=0;entryY=0.5;entryDx=0;entryDy=0;strokeColor=#999999;strokeWidth=1;"

	styleBoundary      = "shape=rect;fillColor=none;strokeColor=#b85450;strokeWidth=2;dashed=1;html=1;"
	styleBoundaryLabel = "text;html=1;strokeColor=none;fillColor=none;align=center;verticalAlign=middle;fontSize=10;fontColor=#b85450;"
	styleLegend        = "rounded=0;whiteSpace=wrap;html=1;fillColor=#f5f5f5;strokeColor=#666666;align=left;verticalAlign=top;spacingLeft=8;spacingTop=6;fontSize=11;"
)

const legendText = "Legend\n" +
	"• Solid line: API / Auth / Data flow\n" +
	"• Dashed line: Log / Telemetry\n" +
	"• Red dashed: Trust boundary\n" +
	"• Rounded rect: App/Service | Hexagon: API | Cylinder: Data store\n" +
	"• Ellipse: Identity | Shield: Control | Dashed border: External/Vendor"

// NodeStyle returns the mxGraph style for a node type.
// Unknown and empty types use the app style.
func NodeStyle(t dsl.NodeType) string {
	switch t {
	case dsl.NodeApp, dsl.NodeService:
		return styleApp
	case dsl.NodeAPI:
		return styleAPI
	case dsl.NodeDataStore:
		return styleDataStore
	case dsl.NodeIdentity:
		return styleIdentity
	case dsl.NodeSecurityControl:
		return styleSecurity
	case dsl.NodeVendor, dsl.NodeExternal:
		return styleExternal
	default:
		return styleApp
	}
}

// FlowStyle returns the mxGraph edge style for a flow type.
// Log and telemetry flows are dashed and thin, everything else solid and bold.
func FlowStyle(t dsl.FlowType) string {
	switch t {
	case dsl.FlowLog, dsl.FlowTelemetry:
		return styleEdgeDashed
	case dsl.FlowAPI, dsl.FlowAuth, dsl.FlowData, dsl.FlowGeneric:
		return styleEdgeSolid
	default:
		return styleEdgeSolid
	}
}

// ZoneStyle returns the swimlane style for a zone with the given fill color.
func ZoneStyle(fill string) string {
	return fmt.Sprintf("swimlane;horizontal=1;startSize=%d;fillColor=%s;strokeColor=#6c8ebf;fontStyle=1;fontSize=12;whiteSpace=wrap;html=1;",
		layout.ZoneHeader, fill)
}
