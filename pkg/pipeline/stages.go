package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/layout"
	"github.com/matzehuels/trustlane/pkg/normalize"
	"github.com/matzehuels/trustlane/pkg/preview"
)

// Validate coerces raw into a graph. Strict mode rejects unknown fields.
func Validate(raw map[string]any, opts Options) (*dsl.Graph, error) {
	if opts.Strict {
		return dsl.Validate(raw)
	}
	return dsl.Decode(raw)
}

// Normalize runs the density normalizer with the options' thresholds.
func Normalize(g *dsl.Graph, opts Options) (*normalize.Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return normalize.Normalize(g, opts.NormalizeOptions())
}

// Layout computes the swimlane geometry of a normalized graph.
func Layout(g *dsl.Graph) (*layout.Geometry, error) {
	return layout.Compute(g)
}

// Render produces every requested format. The returned warnings come from
// the draw.io serializer.
func Render(ctx context.Context, g *dsl.Graph, geo *layout.Geometry, opts Options) (map[string][]byte, []Warning, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	var warnings []Warning
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatDrawio:
			var dw []drawio.Warning
			data, dw, err = drawio.Render(g, geo, drawio.WithLogger(opts.Logger))
			for _, w := range dw {
				warnings = append(warnings, Warning{Stage: "render", Message: w.Message})
			}
		case FormatSVG:
			data, err = preview.SVG(ctx, g, preview.Options{Detailed: opts.Detailed})
		case FormatDOT:
			data = []byte(preview.ToDOT(g, preview.Options{Detailed: opts.Detailed}))
		case FormatLayout:
			data, err = json.MarshalIndent(geo, "", "  ")
		default:
			return nil, nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, warnings, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, warnings, nil
}
