package extract

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/observability"
)

// MaxRepairAttempts caps how often an invalid model answer is sent back.
const MaxRepairAttempts = 2

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "Generic Security Reference"

// Sampling temperatures for the two prompt kinds.
const (
	generateTemperature = 0.2
	repairTemperature   = 0.1
)

// Source reports which generator produced a graph.
type Source string

const (
	SourceStub     Source = "stub"     // the keyword stub was requested
	SourceLLM      Source = "llm"      // the model produced a valid graph
	SourceFallback Source = "fallback" // the model failed and the stub was used
)

// Request is one extraction.
type Request struct {
	Text        string `json:"text"`
	Profile     string `json:"profile,omitempty"`
	DetailLevel string `json:"detail_level,omitempty"`
	// UseLLM forces the model on or off. Nil means "when a model is configured".
	UseLLM *bool `json:"use_llm,omitempty"`
}

// Response is the outcome of an extraction. Graph is always valid.
type Response struct {
	Graph  *dsl.Graph `json:"graph"`
	Source Source     `json:"source"`
	// Attempts counts model calls, including repairs.
	Attempts int `json:"attempts"`
	// Errors lists what went wrong on the model path before falling back.
	Errors []string `json:"errors,omitempty"`
	Cached bool     `json:"-"`
}

// Extractor converts text to graphs. The zero value uses the stub only.
type Extractor struct {
	model      llms.Model
	modelName  string
	cache      cache.Cache
	keyer      cache.Keyer
	logger     *log.Logger
	maxRepairs int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel enables model-backed extraction. name is recorded in cache keys.
func WithModel(m llms.Model, name string) Option {
	return func(e *Extractor) { e.model, e.modelName = m, name }
}

// WithCache caches responses. A nil keyer selects the default scheme.
func WithCache(c cache.Cache, k cache.Keyer) Option {
	return func(e *Extractor) { e.cache, e.keyer = c, k }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option { return func(e *Extractor) { e.logger = l } }

// WithMaxRepairs overrides MaxRepairAttempts.
func WithMaxRepairs(n int) Option { return func(e *Extractor) { e.maxRepairs = max(n, 0) } }

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{maxRepairs: MaxRepairAttempts}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if e.cache == nil {
		e.cache = cache.NewNullCache()
	}
	if e.keyer == nil {
		e.keyer = cache.NewDefaultKeyer()
	}
	return e
}

// NewOpenAI returns an OpenAI-compatible chat model. baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string) (llms.Model, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "create model client")
	}
	return m, nil
}

// HasModel reports whether a model is configured.
func (e *Extractor) HasModel() bool { return e.model != nil }

// Extract converts req.Text into a graph. It fails only for invalid request
// fields; model problems end in the stub fallback.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	useLLM := e.model != nil
	if req.UseLLM != nil {
		useLLM = *req.UseLLM
	}

	key := e.keyer.ExtractKey(cache.Hash([]byte(req.Text)), cache.ExtractKeyOpts{
		Profile:     req.Profile,
		DetailLevel: req.DetailLevel,
		UseLLM:      useLLM,
		Model:       e.modelName,
	})
	if data, hit, err := e.cache.Get(ctx, key); err == nil && hit {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil && resp.Graph != nil {
			observability.Cache().OnCacheHit(ctx, "extract")
			resp.Cached = true
			return &resp, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "extract")

	start := time.Now()
	var resp *Response
	if useLLM {
		resp = e.run(ctx, req)
	} else {
		resp = &Response{Graph: Stub(req.Text), Source: SourceStub}
	}
	observability.Extract().OnExtract(ctx, string(resp.Source), resp.Attempts, time.Since(start))
	e.logger.Info("extracted graph",
		"source", resp.Source,
		"attempts", resp.Attempts,
		"zones", len(resp.Graph.Zones),
		"nodes", len(resp.Graph.Nodes))

	if resp.Source != SourceFallback {
		if data, err := json.Marshal(resp); err == nil {
			if err := e.cache.Set(ctx, key, data, cache.TTLExtract); err == nil {
				observability.Cache().OnCacheSet(ctx, "extract", len(data))
			}
		}
	}
	return resp, nil
}

func validateRequest(req *Request) error {
	if err := errors.ValidateText(req.Text); err != nil {
		return err
	}
	if err := errors.ValidateProfile(req.Profile); err != nil {
		return err
	}
	if err := errors.ValidateDetailLevel(req.DetailLevel); err != nil {
		return err
	}
	if req.Profile == "" {
		req.Profile = DefaultProfile
	}
	if req.DetailLevel == "" {
		req.DetailLevel = errors.DetailStandard
	}
	return nil
}

// =============================================================================
// Model path
// =============================================================================

type state int

const (
	stateGenerate state = iota
	stateValidate
	stateRepair
	stateFallback
	stateDone
)

// attempt carries the model path's working data between states.
type attempt struct {
	raw      map[string]any
	graph    *dsl.Graph
	errs     []string // validation messages for the next repair
	calls    int
	repairs  int
	failures []string
}

// run drives generate → validate → (repair → validate)* → done | fallback.
func (e *Extractor) run(ctx context.Context, req Request) *Response {
	if e.model == nil {
		return e.fallback(req, &attempt{failures: []string{"no language model is configured"}})
	}
	schema, err := dsl.SchemaJSON()
	if err != nil {
		return e.fallback(req, &attempt{failures: []string{err.Error()}})
	}

	a := &attempt{}
	s := stateGenerate
	for {
		switch s {
		case stateGenerate:
			prompt := generatePrompt(req.Text, req.Profile, req.DetailLevel, string(schema),
				enumStrings(dsl.NodeTypes()), enumStrings(dsl.FlowTypes()))
			raw, err := e.ask(ctx, a, prompt, generateTemperature)
			if err != nil {
				a.failures = append(a.failures, errors.UserMessage(err))
				s = stateFallback
				continue
			}
			a.raw = raw
			s = stateValidate
		case stateValidate:
			g, err := dsl.Validate(a.raw)
			if err == nil {
				a.graph = g
				s = stateDone
				continue
			}
			a.errs = errors.Details(err)
			e.logger.Debug("model answer failed validation", "errors", len(a.errs), "repairs", a.repairs)
			s = e.next(a)
		case stateRepair:
			a.repairs++
			current, _ := json.MarshalIndent(a.raw, "", "  ")
			raw, err := e.ask(ctx, a, repairPrompt(string(current), a.errs, string(schema)), repairTemperature)
			switch {
			case errors.Is(err, errors.ErrCodeInvalidGraph):
				a.errs = []string{"repair produced invalid JSON"}
				s = e.next(a)
			case err != nil:
				a.failures = append(a.failures, errors.UserMessage(err))
				s = stateFallback
			default:
				a.raw = raw
				s = stateValidate
			}
		case stateFallback:
			return e.fallback(req, a)
		case stateDone:
			return &Response{Graph: a.graph, Source: SourceLLM, Attempts: a.calls}
		}
	}
}

// next picks repair while attempts remain and fallback after the last one.
func (e *Extractor) next(a *attempt) state {
	if a.repairs < e.maxRepairs {
		return stateRepair
	}
	a.failures = append(a.failures, a.errs...)
	return stateFallback
}

// ask sends one prompt and decodes the answer. A non-JSON answer yields an
// INVALID_GRAPH error.
func (e *Extractor) ask(ctx context.Context, a *attempt, prompt string, temperature float64) (map[string]any, error) {
	a.calls++
	content, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt, llms.WithTemperature(temperature))
	if err != nil {
		e.logger.Warn("model call failed", "err", err)
		return nil, errors.New(errors.ErrCodeNetwork, "model call failed: %v", err)
	}
	raw, err := dsl.ParseRaw([]byte(stripFence(content)))
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidGraph, "model returned invalid JSON: %s", firstDetail(err))
	}
	return raw, nil
}

func (e *Extractor) fallback(req Request, a *attempt) *Response {
	e.logger.Warn("model extraction failed, using stub generator", "attempts", a.calls)
	return &Response{
		Graph:    Stub(req.Text),
		Source:   SourceFallback,
		Attempts: a.calls,
		Errors:   append(a.failures, "LLM unavailable or returned invalid response; used stub generator."),
	}
}

func firstDetail(err error) string {
	if d := errors.Details(err); len(d) > 0 {
		return d[0]
	}
	return err.Error()
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
