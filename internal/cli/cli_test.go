package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/errors"
)

const sampleGraph = `{
  "title": "Shop",
  "zones": [
    {"id": "Internet", "name": "Internet", "order": 0},
    {"id": "app", "name": "Application", "order": 1}
  ],
  "nodes": [
    {"id": "user", "label": "User", "zone": "Internet", "type": "external"},
    {"id": "web", "label": "Web", "zone": "app", "type": "service"}
  ],
  "flows": [{"id": "f1", "source": "user", "target": "web", "protocol": "HTTPS"}]
}`

// testEnv isolates config and cache directories and captures status output.
type testEnv struct {
	dir    string
	status *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	var status bytes.Buffer
	prev := stdout
	stdout = &status
	t.Cleanup(func() { stdout = prev })
	return &testEnv{dir: dir, status: &status}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the CLI with args and returns what commands wrote to stdout.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	c := New(io.Discard, log.InfoLevel)
	c.getenv = func(string) string { return "" }

	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "shop.json", sampleGraph)

	if _, err := env.run("", "render", input, "--no-expand", "-f", "drawio,dot"); err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(env.dir, "shop.drawio"))
	if err != nil {
		t.Fatal(err)
	}
	if err := drawio.Verify(data); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
	dot, err := os.ReadFile(filepath.Join(env.dir, "shop.dot"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(dot), `digraph "Shop"`) {
		t.Errorf("dot = %q", dot)
	}
	if !strings.Contains(env.status.String(), "Rendered Shop") {
		t.Errorf("status = %q", env.status.String())
	}
}

func TestRenderStdout(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(sampleGraph, "render", "-", "-o", "-", "--no-cache")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc, err := drawio.Unmarshal([]byte(out))
	if err != nil {
		t.Fatalf("stdout is not a document: %v", err)
	}
	nodes := 0
	for _, c := range doc.Cells() {
		if strings.HasPrefix(c.ID, drawio.PrefixNode) {
			nodes++
		}
	}
	if nodes != 25 {
		t.Errorf("nodes = %d, want 25 after expansion", nodes)
	}

	if _, err := env.run(sampleGraph, "render", "-", "-o", "-", "-f", "drawio,svg"); err == nil {
		t.Error("stdout output with two formats should fail")
	}
}

func TestRenderInvalid(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "bad.json", `{"zones": [{"id": "a", "name": "A", "order": 0}], "nodes": [{"id": "n", "label": "N", "zone": "nope"}]}`)

	_, err := env.run("", "render", input)
	if !errors.Is(err, errors.ErrCodeInvalidGraph) {
		t.Fatalf("err = %v, want INVALID_GRAPH", err)
	}
	if !strings.Contains(env.status.String(), `references unknown zone "nope"`) {
		t.Errorf("status should list the problem: %q", env.status.String())
	}
	if _, statErr := os.Stat(filepath.Join(env.dir, "bad.drawio")); !os.IsNotExist(statErr) {
		t.Error("no document should be written for an invalid graph")
	}
}

func TestRenderMissingFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("", "render", filepath.Join(env.dir, "missing.json"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestRenderBadFormat(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "shop.json", sampleGraph)
	_, err := env.run("", "render", input, "-f", "pdf")
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestValidateCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "shop.json", sampleGraph)

	if _, err := env.run("", "validate", input, "--no-expand"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	status := env.status.String()
	if !strings.Contains(status, "is valid") || !strings.Contains(status, "2 zones") {
		t.Errorf("status = %q", status)
	}
	if !strings.Contains(status, "Internet") {
		t.Errorf("zone rename should be reported: %q", status)
	}

	env.status.Reset()
	bad := env.write(t, "bad.json", `{"zones": [{"id": "a", "order": -1}]}`)
	if _, err := env.run("", "validate", bad); err == nil {
		t.Fatal("validate should fail")
	}
	status = env.status.String()
	for _, want := range []string{"zones.0.name: field required", "zones.0.order: must be greater than or equal to 0"} {
		if !strings.Contains(status, want) {
			t.Errorf("status missing %q: %q", want, status)
		}
	}
}

func TestNormalizeCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "shop.json", sampleGraph)

	out, err := env.run("", "normalize", input)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var g struct {
		Zones []struct{ ID string } `json:"zones"`
		Nodes []json.RawMessage     `json:"nodes"`
	}
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(g.Zones) != 5 || len(g.Nodes) != 25 {
		t.Errorf("zones = %d, nodes = %d, want 5 and 25", len(g.Zones), len(g.Nodes))
	}
	if g.Zones[0].ID != "internet" {
		t.Errorf("first zone = %q, want canonical id internet", g.Zones[0].ID)
	}
}

func TestConfigFile(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "shop.json", sampleGraph)
	cfg := env.write(t, "trustlane.toml", "[density]\nexpand = false\n\n[cache]\nbackend = \"none\"\n")

	out, err := env.run("", "normalize", input, "--config", cfg)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if n := strings.Count(out, `"label"`); n != 2 {
		t.Errorf("labels = %d, want 2 without expansion", n)
	}

	if _, err := env.run("", "normalize", input, "--config", filepath.Join(env.dir, "nope.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing config err = %v, want FILE_NOT_FOUND", err)
	}

	broken := env.write(t, "broken.toml", "[cache]\nbackend = \"tape\"\n")
	if _, err := env.run("", "normalize", input, "--config", broken); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("bad backend err = %v, want INVALID_CONFIG", err)
	}
}

func TestGenerateCommand(t *testing.T) {
	env := newTestEnv(t)
	output := filepath.Join(env.dir, "out", "arch.drawio")

	_, err := env.run("Users on the internet reach an API gateway in the DMZ backed by a database.",
		"generate", "-", "--llm=false", "-o", output)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if err := drawio.Verify(data); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
	if !strings.Contains(env.status.String(), "stub") {
		t.Errorf("status should name the stub source: %q", env.status.String())
	}

	if _, err := env.run("text", "generate", "-", "--detail", "max"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad detail err = %v, want INVALID_INPUT", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run("", "schema")
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if _, ok := schema["properties"]; !ok {
		t.Error("schema has no properties")
	}
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(env.dir, "cache", appName)
	if strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), want)
	}

	input := env.write(t, "shop.json", sampleGraph)
	if _, err := env.run("", "render", input); err != nil {
		t.Fatal(err)
	}
	env.status.Reset()
	if _, err := env.run("", "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(env.status.String(), "Cleared 0") || !strings.Contains(env.status.String(), "Cleared") {
		t.Errorf("clear should remove the render entries: %q", env.status.String())
	}
}

func TestCompletionCommand(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run("", "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, appName) {
		t.Error("completion script should mention the command name")
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "drawio"},
		{"svg", "svg"},
		{" DrawIO , dot,", "drawio,dot"},
	}
	for _, tt := range tests {
		if got := strings.Join(parseFormats(tt.in), ","); got != tt.want {
			t.Errorf("parseFormats(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputPaths(t *testing.T) {
	tests := []struct {
		name    string
		formats []string
		output  string
		input   string
		want    map[string]string
	}{
		{"derived", []string{"drawio"}, "", "in/shop.json", map[string]string{"drawio": "in/shop.drawio"}},
		{"explicit single", []string{"svg"}, "x/pic.png", "shop.json", map[string]string{"svg": "x/pic.png"}},
		{"base with extension", []string{"drawio", "layout"}, "out/a.drawio", "shop.json",
			map[string]string{"drawio": "out/a.drawio", "layout": "out/a.layout.json"}},
		{"stdin", []string{"drawio", "dot"}, "", "-", map[string]string{"drawio": "diagram.drawio", "dot": "diagram.dot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputPaths(tt.formats, tt.output, tt.input)
			for f, want := range tt.want {
				if got[f] != want {
					t.Errorf("%s: got %q, want %q", f, got[f], want)
				}
			}
		})
	}
}
