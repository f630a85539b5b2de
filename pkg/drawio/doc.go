// Package drawio serializes a laid-out graph as a diagrams.net (mxGraph) document.
//
// The cell tree has two structural layers. Cell "0" is the root and cell "1"
// the canvas layer. Every zone becomes a swimlane container on the layer with
// absolute geometry, and every node is parented to its zone's container with
// geometry relative to it; consumers read zone membership from that
// parent/child relationship. Flows become edges on the layer that reference
// their endpoint cells by id. Trust boundary rules and labels are siblings on
// the layer, and the legend is always the last cell.
//
// Output is byte-identical for identical input: ids come from a counter owned
// by the builder and the envelope's id and timestamp are derived, not sampled.
package drawio
