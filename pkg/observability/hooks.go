// Package observability lets binaries attach metrics to the render pipeline
// without the library packages importing a metrics backend.
//
// Library code reports events through the registered hooks; the defaults
// are no-ops. A binary registers real implementations once at startup:
//
//	func main() {
//	    observability.SetPipelineHooks(metrics.NewPipelineHooks(reg))
//	    observability.SetCacheHooks(metrics.NewCacheHooks(reg))
//	    // ...
//	}
//
// and library code emits:
//
//	start := time.Now()
//	geo, err := layout.Compute(g)
//	observability.Pipeline().OnStageComplete(ctx, observability.StageLayout, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageNormalize Stage = "normalize"
	StageLayout    Stage = "layout"
	StageRender    Stage = "render"
)

// =============================================================================
// Hook interfaces
// =============================================================================

// PipelineHooks receives events from the render pipeline.
type PipelineHooks interface {
	OnStageComplete(ctx context.Context, stage Stage, duration time.Duration, err error)
	// OnWarnings records advisory problems found while rendering.
	OnWarnings(ctx context.Context, stage Stage, count int)
	// OnExpanded records that placeholder entities were synthesized.
	OnExpanded(ctx context.Context, zones, nodes, flows int)
	OnDocument(ctx context.Context, format string, size int)
}

// CacheHooks receives cache events. keyType is "document" or "extract".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// ExtractHooks receives events from text extraction.
type ExtractHooks interface {
	// OnExtract records one extraction. source is "stub", "llm" or
	// "fallback"; attempts counts model calls including repairs.
	OnExtract(ctx context.Context, source string, attempts int, duration time.Duration)
}

// =============================================================================
// No-op implementations
// =============================================================================

type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageComplete(context.Context, Stage, time.Duration, error) {}
func (NoopPipelineHooks) OnWarnings(context.Context, Stage, int)                       {}
func (NoopPipelineHooks) OnExpanded(context.Context, int, int, int)                    {}
func (NoopPipelineHooks) OnDocument(context.Context, string, int)                      {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopExtractHooks struct{}

func (NoopExtractHooks) OnExtract(context.Context, string, int, time.Duration) {}

// =============================================================================
// Registry
// =============================================================================

var (
	hooksMu       sync.RWMutex
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	extractHooks  ExtractHooks  = NoopExtractHooks{}
)

// SetPipelineHooks registers pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetExtractHooks registers extraction hooks. Nil is ignored.
func SetExtractHooks(h ExtractHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		extractHooks = h
	}
}

func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

func Extract() ExtractHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return extractHooks
}

// Reset restores the no-op hooks.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	extractHooks = NoopExtractHooks{}
}
