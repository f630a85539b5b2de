// Command lambda renders graph JSON to draw.io behind an API Gateway proxy
// integration.
//
// The request body is the graph payload (base64 when IsBase64Encoded). The
// query parameters format, strict and expand behave as on POST /api/render.
// Successful responses carry the document; failures carry {"errors": [...]}.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

const downloadFilename = "security_architecture.drawio"

var contentTypes = map[string]string{
	pipeline.FormatDrawio: "application/xml",
	pipeline.FormatSVG:    "image/svg+xml",
	pipeline.FormatDOT:    "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatLayout: "application/json",
}

// handler keeps one runner per container so warm invocations share its
// in-memory cache.
type handler struct {
	runner *pipeline.Runner
}

func newHandler(logger *log.Logger) *handler {
	return &handler{
		runner: pipeline.NewRunner(cache.NewMemoryCache(cache.DefaultMemoryEntries), nil, logger),
	}
}

func (h *handler) handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "invalid base64 body: "+err.Error()), nil
		}
		body = dec
	}

	opts, format, err := requestOptions(req.QueryStringParameters)
	if err != nil {
		return failure(err), nil
	}

	res, err := h.runner.ExecuteJSON(ctx, body, opts)
	if err != nil {
		return failure(err), nil
	}

	headers := map[string]string{
		"Content-Type":         contentTypes[format],
		"X-Trustlane-Warnings": strconv.Itoa(len(res.Warnings)),
		"X-Trustlane-Cache":    strconv.FormatBool(res.CacheInfo.RenderHit),
	}
	if format == pipeline.FormatDrawio {
		headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", downloadFilename)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(res.Artifacts[format]),
	}, nil
}

func requestOptions(q map[string]string) (pipeline.Options, string, error) {
	format := strings.ToLower(strings.TrimSpace(q["format"]))
	if format == "" {
		format = pipeline.FormatDrawio
	}
	opts := pipeline.Options{Formats: []string{format}}
	for name, dst := range map[string]*bool{"strict": &opts.Strict, "expand": &opts.NoExpand} {
		v, ok := q[name]
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, format, errors.New(errors.ErrCodeInvalidInput, "%s: must be a boolean", name)
		}
		if name == "expand" {
			b = !b
		}
		*dst = b
	}
	return opts, format, nil
}

// failure maps user-input errors to 422 and everything else to 500.
func failure(err error) events.APIGatewayProxyResponse {
	switch {
	case errors.Is(err, errors.ErrCodeInvalidGraph),
		errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidFormat):
		return errorResponse(http.StatusUnprocessableEntity, errors.Messages(err)...)
	default:
		return errorResponse(http.StatusInternalServerError, errors.UserMessage(err))
	}
}

func errorResponse(status int, msgs ...string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string][]string{"errors": msgs})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Formatter:       log.JSONFormatter,
	})
	lambda.Start(newHandler(logger).handle)
}
