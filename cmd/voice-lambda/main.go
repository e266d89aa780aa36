// Command voice-lambda fronts the voice webhook with API Gateway and relays
// each event to the API server, so the phone line keeps a stable public URL
// while the API runs privately.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

const webhookPath = "/webhooks/vapi"

// forwardedHeaders reach the API unchanged; the secret lets it trust the caller.
var forwardedHeaders = []string{"x-vapi-secret", "x-vapi-signature", "x-request-id"}

type config struct {
	upstreamBaseURL string
	upstreamTimeout time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("UPSTREAM_BASE_URL is required")
	}

	// Tool calls wait on the LLM and the calendar, so the default is generous.
	timeout := 20 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		upstreamTimeout: timeout,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	p := &proxy{cfg: cfg, client: &http.Client{Timeout: cfg.upstreamTimeout}, logger: logger}
	lambda.Start(p.handle)
}

type proxy struct {
	cfg    config
	client *http.Client
	logger *logging.Logger
}

func (p *proxy) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	path = strings.TrimRight(path, "/")

	if path == "/health" {
		return jsonResponse(http.StatusOK, `{"status":"ok"}`), nil
	}
	if path != webhookPath {
		return jsonResponse(http.StatusNotFound, `{"error":"not found"}`), nil
	}
	if method != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, `{"error":"method not allowed"}`), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, `{"error":"Invalid body"}`), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.cfg.upstreamBaseURL+webhookPath, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range forwardedHeaders {
		if value := strings.TrimSpace(headerValue(evt.Headers, h)); value != "" {
			req.Header.Set(h, value)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("voice webhook relay failed", "error", err, "request_id", evt.RequestContext.RequestID)
		return jsonResponse(http.StatusBadGateway, `{"error":"upstream unavailable"}`), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Warn("voice webhook upstream error", "status", resp.StatusCode, "request_id", evt.RequestContext.RequestID)
	}
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{"content-type": "application/json"},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

func jsonResponse(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
