package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/layout"
	"github.com/matzehuels/trustlane/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner holds only a cache, a keyer and a logger, so multiple
// goroutines can share one Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer selects the DefaultKeyer and a nil
// cache disables caching.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// prepared is the cached output of the validate and normalize stages.
type prepared struct {
	Graph    *dsl.Graph `json:"graph"`
	Warnings []Warning  `json:"warnings,omitempty"`
	Expanded bool       `json:"expanded,omitempty"`
}

// ExecuteJSON decodes data and runs the full pipeline.
func (r *Runner) ExecuteJSON(ctx context.Context, data []byte, opts Options) (*Result, error) {
	raw, err := dsl.ParseRaw(data)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return r.Execute(ctx, raw, opts)
}

// Execute runs validate → normalize → layout → render on a raw payload.
func (r *Runner) Execute(ctx context.Context, raw map[string]any, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}
	hash, err := cache.HashJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("hash input: %w", err)
	}
	result.GraphHash = hash

	p, hit, err := r.prepare(ctx, raw, hash, opts, &result.Stats)
	if err != nil {
		return nil, err
	}
	result.Graph = p.Graph
	result.Warnings = append(result.Warnings, p.Warnings...)
	result.Expanded = p.Expanded
	result.CacheInfo.PrepareHit = hit
	result.Stats.Zones = len(p.Graph.Zones)
	result.Stats.Nodes = len(p.Graph.Nodes)
	result.Stats.Flows = len(p.Graph.Flows)

	layoutStart := time.Now()
	geo, err := Layout(p.Graph)
	result.Stats.LayoutTime = time.Since(layoutStart)
	observability.Pipeline().OnStageComplete(ctx, observability.StageLayout, result.Stats.LayoutTime, err)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Geometry = geo
	r.Logger.Debug("computed layout",
		"width", geo.Width,
		"height", geo.Height,
		"boundaries", len(geo.Boundaries),
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, warnings, renderHit, err := r.renderWithCacheInfo(ctx, p, geo, hash, opts)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnStageComplete(ctx, observability.StageRender, result.Stats.RenderTime, err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if len(warnings) > 0 {
		observability.Pipeline().OnWarnings(ctx, observability.StageRender, len(warnings))
	}
	result.Artifacts = artifacts
	result.Warnings = append(result.Warnings, warnings...)
	result.CacheInfo.RenderHit = renderHit
	for format, data := range artifacts {
		observability.Pipeline().OnDocument(ctx, format, len(data))
	}

	r.Logger.Info("rendered diagram",
		"zones", result.Stats.Zones,
		"nodes", result.Stats.Nodes,
		"flows", result.Stats.Flows,
		"formats", opts.Formats,
		"cached", renderHit)

	return result, nil
}

// prepare validates and normalizes raw, consulting the cache under the
// input hash. Stage timings are recorded into stats.
func (r *Runner) prepare(ctx context.Context, raw map[string]any, hash string, opts Options, stats *Stats) (*prepared, bool, error) {
	key := r.Keyer.DocumentKey(hash, opts.DocumentKeyOpts("normalized"))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var p prepared
			if err := json.Unmarshal(data, &p); err == nil && p.Graph != nil {
				observability.Cache().OnCacheHit(ctx, "document")
				return &p, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "document")
	}

	start := time.Now()
	g, err := Validate(raw, opts)
	stats.ValidateTime = time.Since(start)
	observability.Pipeline().OnStageComplete(ctx, observability.StageValidate, stats.ValidateTime, err)
	if err != nil {
		return nil, false, fmt.Errorf("validate: %w", err)
	}

	start = time.Now()
	res, err := Normalize(g, opts)
	stats.NormalizeTime = time.Since(start)
	observability.Pipeline().OnStageComplete(ctx, observability.StageNormalize, stats.NormalizeTime, err)
	if err != nil {
		return nil, false, fmt.Errorf("normalize: %w", err)
	}

	p := &prepared{Graph: res.Graph, Expanded: res.Expanded}
	for _, w := range res.Warnings {
		p.Warnings = append(p.Warnings, Warning{Stage: "normalize", Message: w.Message})
	}
	if len(p.Warnings) > 0 {
		observability.Pipeline().OnWarnings(ctx, observability.StageNormalize, len(p.Warnings))
	}
	if res.Expanded {
		observability.Pipeline().OnExpanded(ctx, len(res.Graph.Zones), len(res.Graph.Nodes), len(res.Graph.Flows))
	}

	if data, err := json.Marshal(p); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLDocument); err == nil {
			observability.Cache().OnCacheSet(ctx, "document", len(data))
		}
	}
	return p, false, nil
}

// renderWithCacheInfo returns cached artifacts when every format is cached
// and renders all of them otherwise.
func (r *Runner) renderWithCacheInfo(ctx context.Context, p *prepared, geo *layout.Geometry, hash string, opts Options) (map[string][]byte, []Warning, bool, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	if !opts.Refresh {
		for _, format := range opts.Formats {
			key := r.Keyer.DocumentKey(hash, opts.DocumentKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, key)
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			observability.Cache().OnCacheHit(ctx, "document")
			return artifacts, nil, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "document")
	}

	rendered, warnings, err := Render(ctx, p.Graph, geo, opts)
	if err != nil {
		return nil, warnings, false, err
	}
	for format, data := range rendered {
		key := r.Keyer.DocumentKey(hash, opts.DocumentKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLDocument); err == nil {
			observability.Cache().OnCacheSet(ctx, "document", len(data))
		}
	}
	return rendered, warnings, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
