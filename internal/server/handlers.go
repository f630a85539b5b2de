package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/matzehuels/trustlane/pkg/buildinfo"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/extract"
	"github.com/matzehuels/trustlane/pkg/normalize"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

// Response headers carrying pipeline metadata.
const (
	HeaderSource   = "X-Trustlane-Source"
	HeaderWarnings = "X-Trustlane-Warnings"
	HeaderCache    = "X-Trustlane-Cache"
)

type generateRequest struct {
	Text        string `json:"text"`
	Profile     string `json:"profile"`
	DetailLevel string `json:"detail_level"`
	UseLLM      *bool  `json:"use_llm"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

type validateResponse struct {
	Valid       bool                `json:"valid"`
	Zones       int                 `json:"zones"`
	Nodes       int                 `json:"nodes"`
	Flows       int                 `json:"flows"`
	Expanded    bool                `json:"expanded"`
	Warnings    []normalize.Warning `json:"warnings"`
	ZoneRenames map[string]string   `json:"zone_renames"`
}

var contentTypes = map[string]string{
	pipeline.FormatDrawio: "application/xml",
	pipeline.FormatSVG:    "image/svg+xml",
	pipeline.FormatDOT:    "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatLayout: "application/json",
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	body, err := s.readBody(w, r)
	if err == nil {
		if jerr := json.Unmarshal(body, &req); jerr != nil {
			err = errors.New(errors.ErrCodeInvalidInput, "invalid request body: %v", jerr)
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	resp, err := s.extractor.Extract(ctx, extract.Request{
		Text:        req.Text,
		Profile:     req.Profile,
		DetailLevel: req.DetailLevel,
		UseLLM:      req.UseLLM,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, msg := range resp.Errors {
		s.logger.Warn("extraction", "err", msg, "request_id", requestIDFrom(ctx))
	}

	raw, err := resp.Graph.Raw()
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "encode extracted graph"))
		return
	}
	res, err := s.runner.Execute(ctx, raw, s.defaults.WithFormats(pipeline.FormatDrawio))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set(HeaderSource, string(resp.Source))
	s.writeArtifact(w, res, pipeline.FormatDrawio)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = pipeline.FormatDrawio
	}
	opts = opts.WithFormats(format)

	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.runner.ExecuteJSON(r.Context(), body, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeArtifact(w, res, format)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	raw, err := dsl.ParseRaw(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := pipeline.Validate(raw, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := pipeline.Normalize(g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []normalize.Warning{}
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:       true,
		Zones:       len(res.Graph.Zones),
		Nodes:       len(res.Graph.Nodes),
		Flows:       len(res.Graph.Flows),
		Expanded:    res.Expanded,
		Warnings:    warnings,
		ZoneRenames: res.ZoneRenames,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	data, err := dsl.SchemaJSON()
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "build schema"))
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(data)
}

func (s *Server) handleSample(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": sampleText})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
		"llm":    s.extractor.HasModel(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

// requestOptions applies ?strict= and ?expand= over the server defaults.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.defaults.WithFormats()
	q := r.URL.Query()
	if v := q.Get("strict"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "strict: must be a boolean")
		}
		opts.Strict = b
	}
	if v := q.Get("expand"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "expand: must be a boolean")
		}
		opts.NoExpand = !b
	}
	return opts, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Server) writeArtifact(w http.ResponseWriter, res *pipeline.Result, format string) {
	h := w.Header()
	h.Set("Content-Type", contentTypes[format])
	h.Set(HeaderWarnings, strconv.Itoa(len(res.Warnings)))
	h.Set(HeaderCache, strconv.FormatBool(res.CacheInfo.RenderHit))
	if format == pipeline.FormatDrawio {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadFilename))
	}
	_, _ = w.Write(res.Artifacts[format])
}

// writeError maps user-input errors to 422 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Errors: []string{fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)},
		})
	case errors.Is(err, errors.ErrCodeInvalidGraph),
		errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidFormat):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: errors.Messages(err)})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Errors: []string{errors.UserMessage(err)}})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
