// Package preview renders a quick topology view of an architecture graph
// through Graphviz.
//
// The draw.io document is the primary artifact; the preview exists for
// terminals, CI logs, and review comments where opening diagrams.net is
// inconvenient. Zones become DOT clusters in ascending order, nodes keep
// their shape family, and flows become directed edges labelled like the
// draw.io edges.
//
// [ToDOT] is pure and needs no native support. [RenderSVG] uses
// [github.com/goccy/go-graphviz], which runs Graphviz in-process through
// WebAssembly, so no system binaries are required.
package preview
