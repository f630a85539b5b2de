// Package layout computes the deterministic swimlane grid for a normalized graph.
//
// Zones are stacked top to bottom in ascending order, each spanning the full
// canvas width. Nodes are placed row-major on a fixed grid inside their zone,
// with coordinates relative to the zone container. Trust boundaries become
// horizontal rules at the bottom edge of the first zone they reference, and a
// legend panel is reserved below everything else.
//
// All dimensions are engine constants; nothing is derived from labels or
// content, so identical graphs always produce identical geometry.
package layout
