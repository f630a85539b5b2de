// Package pipeline provides the validate → normalize → layout → render
// pipeline shared by the CLI, the HTTP server and the Lambda handler.
//
// Centralizing the stages here keeps defaults, cache keys and error codes
// identical across every entry point.
//
// # Stages
//
//  1. Validate: coerce the raw payload into a [dsl.Graph] (strict or lenient)
//  2. Normalize: canonicalize zone ids, check references, expand to density
//  3. Layout: compute swimlane geometry
//  4. Render: produce the requested artifacts (drawio, svg, dot, layout)
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, raw, pipeline.Options{})
//	if err != nil {
//	    for _, msg := range errors.Details(err) {
//	        fmt.Println(msg)
//	    }
//	    return err
//	}
//	xml := result.Artifacts[pipeline.FormatDrawio]
//
// Individual stages are exported for callers that need them separately:
//
//	g, err := pipeline.Validate(raw, opts)
//	res, err := pipeline.Normalize(g, opts)
//	geo, err := pipeline.Layout(res.Graph)
//	artifacts, warnings, err := pipeline.Render(ctx, res.Graph, geo, opts)
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/layout"
	"github.com/matzehuels/trustlane/pkg/normalize"
)

// =============================================================================
// Formats
// =============================================================================

const (
	FormatDrawio = "drawio"
	FormatSVG    = "svg"
	FormatDOT    = "dot"
	FormatLayout = "layout"
)

// DefaultFormat is rendered when no format is requested.
const DefaultFormat = FormatDrawio

// Formats lists the supported output formats.
var Formats = []string{FormatDrawio, FormatSVG, FormatDOT, FormatLayout}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case FormatLayout:
		return ".layout.json"
	default:
		return "." + format
	}
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if !slices.Contains(Formats, f) {
			return errors.New(errors.ErrCodeInvalidFormat,
				"invalid format: %q (must be one of: %s)", f, strings.Join(Formats, ", "))
		}
	}
	return nil
}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. Zero density values select the
// normalize package defaults. This struct supports JSON serialization for
// API requests.
type Options struct {
	// Validate options
	Strict bool `json:"strict,omitempty"`

	// Normalize options
	NoExpand     bool `json:"no_expand,omitempty"`
	MinZones     int  `json:"min_zones,omitempty"`
	MinNodes     int  `json:"min_nodes,omitempty"`
	MinFlows     int  `json:"min_flows,omitempty"`
	MinNodesHard int  `json:"min_nodes_hard,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // node type and tags in previews
	Refresh  bool     `json:"refresh,omitempty"`  // bypass cached results

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults applies defaults and checks the requested formats.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.MinZones <= 0 {
		o.MinZones = normalize.DefaultMinZones
	}
	if o.MinNodes <= 0 {
		o.MinNodes = normalize.DefaultMinNodes
	}
	if o.MinFlows <= 0 {
		o.MinFlows = normalize.DefaultMinFlows
	}
	if o.MinNodesHard <= 0 {
		o.MinNodesHard = normalize.DefaultMinNodesHard
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	o.Formats = dedupe(o.Formats)
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// WithFormats returns a copy of o that renders formats. The copy is
// validated again on use.
func (o Options) WithFormats(formats ...string) Options {
	o.Formats = formats
	o.validated = false
	return o
}

// NormalizeOptions converts o to normalize options.
func (o *Options) NormalizeOptions() normalize.Options {
	return normalize.Options{
		MinZones:     o.MinZones,
		MinNodes:     o.MinNodes,
		MinFlows:     o.MinFlows,
		MinNodesHard: o.MinNodesHard,
		Expand:       !o.NoExpand,
		Logger:       o.Logger,
	}
}

// DocumentKeyOpts returns cache key options for one artifact format.
func (o *Options) DocumentKeyOpts(format string) cache.DocumentKeyOpts {
	return cache.DocumentKeyOpts{
		Format:       format,
		Detailed:     o.Detailed,
		Strict:       o.Strict,
		Expand:       !o.NoExpand,
		MinZones:     o.MinZones,
		MinNodes:     o.MinNodes,
		MinFlows:     o.MinFlows,
		MinNodesHard: o.MinNodesHard,
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Results
// =============================================================================

// Warning is an advisory problem from any stage.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Stage, w.Message) }

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the normalized graph.
	Graph *dsl.Graph

	// GraphHash is the content hash of the raw input.
	GraphHash string

	Geometry  *layout.Geometry
	Artifacts map[string][]byte
	Warnings  []Warning

	// Expanded is true if placeholder entities were synthesized.
	Expanded bool

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Zones         int
	Nodes         int
	Flows         int
	ValidateTime  time.Duration
	NormalizeTime time.Duration
	LayoutTime    time.Duration
	RenderTime    time.Duration
}

// CacheInfo tracks cache hits for each cached stage.
type CacheInfo struct {
	PrepareHit bool // validated and normalized graph came from cache
	RenderHit  bool // all artifacts came from cache
}
