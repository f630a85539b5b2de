package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/internal/metrics"
	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

const twoZones = `{
  "zones": [
    {"id": "z0", "name": "Internet", "order": 0},
    {"id": "z1", "name": "Internal", "order": 1}
  ],
  "trust_boundaries": [{"id": "tb1", "between_zones": ["z0", "z1"]}],
  "nodes": [
    {"id": "user", "label": "User", "zone": "z0", "type": "external"},
    {"id": "app", "label": "App", "zone": "z1"}
  ],
  "flows": [{"id": "f1", "source": "user", "target": "app", "protocol": "HTTPS"}]
}`

func newTestServer(t *testing.T, m *metrics.Metrics) *httptest.Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	s := New(Config{
		Runner:  pipeline.NewRunner(cache.NewMemoryCache(32), nil, logger),
		Logger:  logger,
		Metrics: m,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeErrors(t *testing.T, data []byte) []string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, data)
	}
	return body.Errors
}

func containsPrefix(msgs []string, prefix string) bool {
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func TestGenerate(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, data := do(t, http.MethodPost, ts.URL+"/api/generate", `{"text": "users reach an api gateway in the dmz", "use_llm": false}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="security_architecture.drawio"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := resp.Header.Get(HeaderSource); got != "stub" {
		t.Errorf("%s = %q, want stub", HeaderSource, got)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("missing request id")
	}
	if err := drawio.Verify(data); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
	doc, err := drawio.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	nodes := 0
	for _, c := range doc.Cells() {
		if strings.HasPrefix(c.ID, "node-") {
			nodes++
		}
	}
	if nodes < 25 {
		t.Errorf("nodes = %d, want >= 25 after density expansion", nodes)
	}
}

func TestGenerateInvalid(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{"text": `, "invalid request body"},
		{"detail level", `{"text": "x", "detail_level": "max"}`, "invalid detail level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, http.MethodPost, ts.URL+"/api/generate", tt.body)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", resp.StatusCode)
			}
			errs := decodeErrors(t, data)
			if len(errs) != 1 || !strings.HasPrefix(errs[0], tt.want) {
				t.Errorf("errors = %v, want prefix %q", errs, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := do(t, http.MethodPost, ts.URL+"/api/render?expand=false", twoZones)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/xml" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(string(data), `value="User"`) {
		t.Error("document missing node label")
	}
	if resp.Header.Get(HeaderCache) != "false" {
		t.Error("first render should miss the cache")
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/render?expand=false", twoZones)
	if resp.Header.Get(HeaderCache) != "true" {
		t.Error("second render should hit the cache")
	}

	resp, data = do(t, http.MethodPost, ts.URL+"/api/render?format=dot&expand=false", twoZones)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(data), "digraph") {
		t.Errorf("dot render = %d %q", resp.StatusCode, data)
	}
	if resp.Header.Get("Content-Disposition") != "" {
		t.Error("only drawio is an attachment")
	}
}

func TestRenderFormatCase(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := do(t, http.MethodPost, ts.URL+"/api/render?format=DRAWIO&expand=false", twoZones)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/xml" {
		t.Errorf("Content-Type = %q", got)
	}
	if err := drawio.Verify(data); err != nil {
		t.Errorf("Verify() error: %v", err)
	}

	resp, data = do(t, http.MethodPost, ts.URL+"/api/render?format=%20Dot%20&expand=false", twoZones)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(data), "digraph") {
		t.Errorf("dot render = %d %q", resp.StatusCode, data)
	}
}

func TestRenderErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name   string
		query  string
		body   string
		status int
		want   string
	}{
		{"unknown zone", "", `{"zones": [{"id": "a", "name": "A", "order": 0}], "nodes": [{"id": "n", "label": "N", "zone": "b"}]}`,
			422, `nodes.0.zone: node "n" references unknown zone "b"`},
		{"strict", "?strict=true", `{"zones": [], "bogus": 1}`, 422, "bogus: unknown field"},
		{"not object", "", `[]`, 422, "$: must be a JSON object"},
		{"format", "?format=pdf", twoZones, 422, `invalid format: "pdf"`},
		{"flag", "?expand=maybe", twoZones, 422, "expand: must be a boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, http.MethodPost, ts.URL+"/api/render"+tt.query, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
			errs := decodeErrors(t, data)
			if !containsPrefix(errs, tt.want) {
				t.Errorf("errors = %v, want one with prefix %q", errs, tt.want)
			}
		})
	}
}

func TestRenderBodyLimit(t *testing.T) {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	ts := httptest.NewServer(New(Config{Logger: logger, MaxBodyBytes: 16}).Handler())
	t.Cleanup(ts.Close)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/render", twoZones)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestValidate(t *testing.T) {
	ts := newTestServer(t, nil)
	doc := `{
	  "zones": [{"id": "DMZ Zone", "name": "DMZ", "order": 0}, {"id": "empty", "name": "E", "order": 1}],
	  "nodes": [{"id": "waf", "label": "WAF", "zone": "DMZ Zone"}]
	}`
	resp, data := do(t, http.MethodPost, ts.URL+"/api/validate?expand=false", doc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var got validateResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Valid || got.Zones != 2 || got.Nodes != 1 || got.Expanded {
		t.Errorf("response = %+v", got)
	}
	if got.ZoneRenames["DMZ Zone"] != "dmz" {
		t.Errorf("zone renames = %v", got.ZoneRenames)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].ID != "empty" {
		t.Errorf("warnings = %+v", got.Warnings)
	}

	resp, data = do(t, http.MethodPost, ts.URL+"/api/validate", `{"zones": [{"id": "a", "order": "x"}]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if errs := decodeErrors(t, data); len(errs) != 2 {
		t.Errorf("errors = %v, want 2 (missing name, bad order)", errs)
	}
}

func TestStaticRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"status":"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, data)
	}

	resp, data = do(t, http.MethodGet, ts.URL+"/api/sample", "")
	var sample map[string]string
	if err := json.Unmarshal(data, &sample); err != nil || !strings.Contains(sample["text"], "API gateway") {
		t.Errorf("sample = %d %s", resp.StatusCode, data)
	}

	resp, data = do(t, http.MethodGet, ts.URL+"/api/schema", "")
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if resp.Header.Get("Content-Type") != "application/schema+json" {
		t.Errorf("schema Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	resp, _ = do(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics without a registry = %d, want 404", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/render", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/render = %d, want 405", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, metrics.New())
	do(t, http.MethodGet, ts.URL+"/api/health", "")

	resp, data := do(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `route="/api/health"`) {
		t.Error("metrics missing request series")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}
