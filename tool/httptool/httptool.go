// Package httptool implements the "http.request" tool: an HTTP client with
// auth headers, query parameters, JSON handling, and status classification.
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/dwasnwk/oktyv/errors"
	"github.com/dwasnwk/oktyv/tool"
)

// Name is the registry name of this tool.
const Name = "http.request"

// Config configures the HTTP tool.
type Config struct {
	// Timeout is the hard client timeout in seconds. Default 60.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`
	// MaxResponseBytes caps response body size. Default 10MB.
	MaxResponseBytes int64 `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// HTTPTool performs HTTP requests on behalf of tasks.
type HTTPTool struct {
	client *http.Client
	cfg    Config
}

// New creates the HTTP tool.
func New(cfg Config) *HTTPTool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 10 << 20
	}
	return &HTTPTool{
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		cfg:    cfg,
	}
}

func (t *HTTPTool) Name() string { return Name }
func (t *HTTPTool) IsAvailable(_ context.Context) bool { return true }

// Invoke performs one HTTP request. Parameters:
//
//	url (required), method (default GET), headers (object),
//	query (object), body (any; objects are sent as JSON),
//	bearer_token, basic_auth {username, password}.
//
// The result is {status, headers, body}; JSON response bodies are decoded.
func (t *HTTPTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	rawURL, err := tool.StringParam(params, "url")
	if err != nil {
		return nil, err
	}
	method, err := tool.OptStringParam(params, "method", http.MethodGet)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)

	req, err := t.buildRequest(ctx, method, rawURL, params)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Timeout("http.request").WithCause(err)
		}
		return nil, apperrors.New(apperrors.ErrCodeConnectionFailed,
			fmt.Sprintf("request to %s failed", rawURL), 502).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.cfg.MaxResponseBytes))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeConnectionFailed, "reading response body failed", 502).WithCause(err)
	}

	result := map[string]any{
		"status":  resp.StatusCode,
		"headers": flattenHeaders(resp.Header),
		"body":    decodeBody(resp.Header.Get("Content-Type"), body),
	}

	if resp.StatusCode >= 400 {
		return result, classifyStatus(resp.StatusCode, rawURL)
	}
	return result, nil
}

func (t *HTTPTool) buildRequest(ctx context.Context, method, rawURL string, params map[string]any) (*http.Request, error) {
	query, err := tool.OptMapParam(params, "query")
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, apperrors.InvalidInput("url", err.Error())
		}
		values := parsed.Query()
		for key, value := range query {
			values.Set(key, fmt.Sprintf("%v", value))
		}
		parsed.RawQuery = values.Encode()
		rawURL = parsed.String()
	}

	var bodyReader io.Reader
	contentType := ""
	if raw, ok := params["body"]; ok && raw != nil {
		switch b := raw.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, apperrors.InvalidInput("body", err.Error())
			}
			bodyReader = bytes.NewReader(encoded)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, apperrors.InvalidInput("url", err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	headers, err := tool.OptMapParam(params, "headers")
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, fmt.Sprintf("%v", value))
	}

	if token, err := tool.OptStringParam(params, "bearer_token", ""); err != nil {
		return nil, err
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if basic, err := tool.OptMapParam(params, "basic_auth"); err != nil {
		return nil, err
	} else if basic != nil {
		username, _ := basic["username"].(string)
		password, _ := basic["password"].(string)
		req.SetBasicAuth(username, password)
	}

	return req, nil
}

// decodeBody parses JSON responses into structured values so downstream
// tasks can reference fields; everything else stays a string.
func decodeBody(contentType string, body []byte) any {
	if strings.Contains(contentType, "application/json") && len(body) > 0 {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return decoded
		}
	}
	return string(body)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func classifyStatus(status int, rawURL string) error {
	msg := fmt.Sprintf("request to %s returned status %d", rawURL, status)
	switch {
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, msg, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.New(apperrors.ErrCodeUnauthorized, msg, status)
	case status >= 500:
		return apperrors.New(apperrors.ErrCodeServiceUnavailable, msg, status)
	default:
		return apperrors.New(apperrors.ErrCodeInvalidInput, msg, status)
	}
}
