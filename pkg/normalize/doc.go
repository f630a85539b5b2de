// Package normalize prepares a validated graph for layout.
//
// [Normalize] canonicalizes zone ids (lowercase snake_case plus a fixed alias
// table, so "DMZ Zone", "perimeter" and "dmz" all become "dmz"), remaps every
// zone reference through the resulting rename map, rejects graphs that cannot
// be laid out, and reports advisory problems as [Warning] values.
//
// When [Options.Expand] is set, sparse graphs are padded with placeholder
// zones, nodes and flows until the configured minimums hold. Expansion is what
// lets a one-line description still produce a readable reference diagram.
//
// Normalization never mutates its input and is idempotent: a normalized graph
// passes through a second call with the same ids and counts.
package normalize
