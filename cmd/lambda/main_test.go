package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/drawio"
)

const graph = `{
  "zones": [{"id": "a", "name": "A", "order": 0}, {"id": "b", "name": "B", "order": 1}],
  "nodes": [{"id": "x", "label": "X", "zone": "a"}, {"id": "y", "label": "Y", "zone": "b"}],
  "flows": [{"id": "f", "source": "x", "target": "y"}]
}`

func testHandler() *handler {
	return newHandler(log.NewWithOptions(io.Discard, log.Options{}))
}

func errorsOf(t *testing.T, resp events.APIGatewayProxyResponse) []string {
	t.Helper()
	var body struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, resp.Body)
	}
	return body.Errors
}

func TestHandleRender(t *testing.T) {
	h := testHandler()
	ctx := context.Background()

	tests := []struct {
		name string
		req  events.APIGatewayProxyRequest
	}{
		{"plain", events.APIGatewayProxyRequest{Body: graph}},
		{"base64", events.APIGatewayProxyRequest{Body: base64.StdEncoding.EncodeToString([]byte(graph)), IsBase64Encoded: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.handle(ctx, tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, resp.Body)
			}
			if err := drawio.Verify([]byte(resp.Body)); err != nil {
				t.Errorf("Verify() error: %v", err)
			}
			if !strings.Contains(resp.Headers["Content-Disposition"], downloadFilename) {
				t.Errorf("headers = %v", resp.Headers)
			}
		})
	}
}

func TestHandleQuery(t *testing.T) {
	h := testHandler()
	resp, _ := h.handle(context.Background(), events.APIGatewayProxyRequest{
		Body:                  graph,
		QueryStringParameters: map[string]string{"format": "dot", "expand": "false"},
	})
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Body, "digraph") {
		t.Fatalf("dot response = %d %q", resp.StatusCode, resp.Body)
	}
	if n := strings.Count(resp.Body, "subgraph"); n != 2 {
		t.Errorf("clusters = %d, want 2 without expansion", n)
	}

	resp, _ = h.handle(context.Background(), events.APIGatewayProxyRequest{
		Body:                  graph,
		QueryStringParameters: map[string]string{"format": "DrawIO"},
	})
	if resp.StatusCode != http.StatusOK || resp.Headers["Content-Type"] == "" {
		t.Fatalf("mixed-case format = %d %v", resp.StatusCode, resp.Headers)
	}
	if err := drawio.Verify([]byte(resp.Body)); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
}

func TestHandleErrors(t *testing.T) {
	h := testHandler()
	tests := []struct {
		name   string
		req    events.APIGatewayProxyRequest
		status int
		want   string
	}{
		{"base64", events.APIGatewayProxyRequest{Body: "%%%", IsBase64Encoded: true}, 400, "invalid base64 body"},
		{"json", events.APIGatewayProxyRequest{Body: "{"}, 422, "$: invalid JSON"},
		{"graph", events.APIGatewayProxyRequest{Body: `{"zones": [{"id": "a", "name": "A", "order": 0}], "flows": [{"id": "f"}]}`},
			422, "flows.0.source: field required"},
		{"format", events.APIGatewayProxyRequest{Body: graph, QueryStringParameters: map[string]string{"format": "png"}},
			422, `invalid format: "png"`},
		{"flag", events.APIGatewayProxyRequest{Body: graph, QueryStringParameters: map[string]string{"strict": "yes please"}},
			422, "strict: must be a boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.handle(context.Background(), tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, resp.Body)
			}
			found := false
			for _, e := range errorsOf(t, resp) {
				if strings.HasPrefix(e, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %s, want one starting with %q", resp.Body, tt.want)
			}
		})
	}
}
