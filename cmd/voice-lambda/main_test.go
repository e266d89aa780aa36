package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

func newProxy(baseURL string, client *http.Client) *proxy {
	return &proxy{
		cfg:    config{upstreamBaseURL: baseURL, upstreamTimeout: time.Second},
		client: client,
		logger: logging.New("error"),
	}
}

func request(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	p := newProxy("http://example.com", http.DefaultClient)
	resp, err := p.handle(context.Background(), request(http.MethodGet, "/health", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"status":"ok"}` {
		t.Fatalf("unexpected health response: %d %q", resp.StatusCode, resp.Body)
	}
}

func TestHandleRejectsOtherRoutes(t *testing.T) {
	p := newProxy("http://example.com", http.DefaultClient)

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown path", http.MethodPost, "/webhooks/other", http.StatusNotFound},
		{"get webhook", http.MethodGet, webhookPath, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := p.handle(context.Background(), request(tc.method, tc.path, ""))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestHandleInvalidBase64Body(t *testing.T) {
	p := newProxy("http://example.com", http.DefaultClient)
	evt := request(http.MethodPost, webhookPath, "not-base64!")
	evt.IsBase64Encoded = true

	resp, _ := p.handle(context.Background(), evt)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleRelaysWebhook(t *testing.T) {
	var gotPath, gotSecret, gotBody, gotType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotPath, gotBody = r.URL.Path, string(raw)
		gotSecret = r.Header.Get("X-Vapi-Secret")
		gotType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer upstream.Close()

	p := newProxy(upstream.URL, upstream.Client())
	payload := `{"message":{"type":"status-update","status":"ended"}}`
	evt := request(http.MethodPost, webhookPath+"/", base64.StdEncoding.EncodeToString([]byte(payload)))
	evt.IsBase64Encoded = true
	evt.Headers = map[string]string{"X-Vapi-Secret": "s3cret"}

	resp, err := p.handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"result":"ok"}` {
		t.Fatalf("unexpected relay response: %d %q", resp.StatusCode, resp.Body)
	}
	if gotPath != webhookPath {
		t.Fatalf("expected upstream path %s, got %s", webhookPath, gotPath)
	}
	if gotBody != payload {
		t.Fatalf("expected decoded payload, got %q", gotBody)
	}
	if gotSecret != "s3cret" {
		t.Fatalf("expected secret header to be forwarded, got %q", gotSecret)
	}
	if gotType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotType)
	}
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	p := newProxy(url, &http.Client{Timeout: time.Second})
	resp, _ := p.handle(context.Background(), request(http.MethodPost, webhookPath, `{}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without base url")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.upstreamBaseURL != "https://api.example.com" || cfg.upstreamTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error for bad timeout")
	}
}
