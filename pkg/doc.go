// Package pkg provides the core libraries for trustlane security architecture
// diagrams.
//
// # Overview
//
// Trustlane turns a zone/node/flow description of a system into an editable
// draw.io document: zones become swimlanes stacked by order, nodes sit on a
// grid inside their zone, flows become labelled edges, and trust boundaries are
// drawn as dashed lines between adjacent zones. The pkg directory is organized
// into these areas:
//
//  1. [dsl] - Graph payload types, validation and JSON Schema
//  2. [normalize] - Canonical zone ids, warnings and density expansion
//  3. [layout] - Deterministic grid geometry
//  4. [drawio] - mxGraph document serialization
//  5. [preview] - Graphviz DOT and SVG topology previews
//  6. [pipeline] - Orchestration (validate → normalize → layout → render)
//  7. [extract] - Text to graph extraction (LLM with keyword-stub fallback)
//  8. [cache], [config], [errors], [observability], [buildinfo] - Infrastructure
//
// # Architecture
//
// The typical data flow:
//
//	Description text ──[extract]──┐
//	                              ↓
//	                    Graph JSON payload
//	                              ↓
//	    [dsl] package (validate + coerce; field-level errors)
//	                              ↓
//	    [normalize] package (canonical zones, expansion, warnings)
//	                              ↓
//	    [layout] package (zone bands, node grid, boundary lines)
//	                              ↓
//	    [drawio] / [preview] packages
//	                              ↓
//	    .drawio / .svg / .dot / .layout.json
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/trustlane/pkg/cache"
//	    "github.com/matzehuels/trustlane/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(cache.NewMemoryCache(0), nil, nil)
//	res, err := runner.ExecuteJSON(context.Background(), data, pipeline.Options{})
//	if err != nil {
//	    for _, msg := range errors.Messages(err) {
//	        fmt.Println(msg)
//	    }
//	    return
//	}
//	os.WriteFile("diagram.drawio", res.Artifacts[pipeline.FormatDrawio], 0o644)
//
// The individual stages are also usable on their own; see [pipeline.Validate],
// [pipeline.Normalize], [pipeline.Layout] and [pipeline.Render].
package pkg
