package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"requestbin/internal/bin"
)

type Result struct {
	Status     int         `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Body       []byte      `json:"body,omitempty"`
	Headers    http.Header `json:"headers"`
}

// Replay sends a captured request to target. The captured path and query
// are appended to target's path.
func Replay(ctx context.Context, client *http.Client, r *bin.Request, target string) (*Result, error) {
	dest, err := destination(r, target)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, dest, bytes.NewReader([]byte(r.Body)))
	if err != nil {
		return nil, err
	}
	for _, kv := range r.Headers {
		switch strings.ToLower(kv.Key) {
		case "host", "content-length":
			continue
		}
		req.Header.Add(kv.Key, kv.Value)
	}

	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", r.ID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read replay response: %w", err)
	}
	return &Result{
		Status:     resp.StatusCode,
		DurationMs: time.Since(start).Milliseconds(),
		Body:       body,
		Headers:    resp.Header.Clone(),
	}, nil
}

func destination(r *bin.Request, target string) (string, error) {
	base, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("invalid target %q: scheme must be http or https", target)
	}
	captured, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid captured url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + captured.Path
	base.RawPath = ""
	base.RawQuery = captured.RawQuery
	return base.String(), nil
}
