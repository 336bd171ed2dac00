package bin

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"requestbin/internal/gen"
	"requestbin/internal/types"
)

// Request is a snapshot of one captured HTTP request. It is not modified
// after construction.
type Request struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Time          float64           `json:"time"`
	RemoteAddr    string            `json:"remote_addr"`
	Method        string            `json:"method"`
	Headers       types.Headers     `json:"headers"`
	QueryString   map[string]string `json:"query_string"`
	Raw           string            `json:"raw"`
	FormData      types.Pairs       `json:"form_data"`
	Body          string            `json:"body"`
	Path          string            `json:"path"`
	ContentLength int               `json:"content_length"`
	ContentType   string            `json:"content_type"`
}

func NewRequest(in Input, p Policy) *Request {
	r := &Request{
		ID:   gen.TinyID(6),
		URL:  in.URL(),
		Time: unixNow(),
	}

	headers := in.Headers().Clone()
	if fwd, ok := headers.Get("X-Forwarded-For"); ok {
		r.RemoteAddr = fwd
	} else {
		r.RemoteAddr = in.RemoteAddr()
	}

	r.Method = in.Method()
	for _, name := range p.IgnoreHeaders {
		headers.Del(name)
	}
	if headers == nil {
		headers = types.Headers{}
	}
	r.Headers = headers

	r.QueryString = make(map[string]string)
	for _, kv := range in.Args() {
		r.QueryString[kv.Key] = kv.Value
	}

	r.FormData = types.Pairs{}
	for _, k := range in.FormKeys() {
		r.FormData = append(r.FormData, types.KV{Key: k, Value: in.Value(k)})
	}

	r.Body = AsString(in.Data())
	r.Path = in.Path()
	r.ContentType, _ = r.Headers.Get("Content-Type")

	r.Raw = truncate(AsString(in.Raw()), p.MaxRawSize)
	r.ContentLength = utf8.RuneCountInString(r.Raw)
	return r
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Created converts Time to local wall-clock time.
func (r *Request) Created() time.Time {
	sec, frac := math.Modf(r.Time)
	return time.Unix(int64(sec), int64(frac*1e9)).Local()
}

func (r *Request) ToDict() map[string]any {
	return map[string]any{
		"id":             r.ID,
		"url":            r.URL,
		"time":           r.Time,
		"remote_addr":    r.RemoteAddr,
		"method":         r.Method,
		"headers":        r.Headers,
		"query_string":   r.QueryString,
		"raw":            r.Raw,
		"form_data":      r.FormData,
		"body":           r.Body,
		"path":           r.Path,
		"content_length": r.ContentLength,
		"content_type":   r.ContentType,
	}
}

// ToCurl renders a curl command line that reproduces the request.
// Host and Content-Length are left for curl to compute.
func (r *Request) ToCurl() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "curl -X %s '%s'", r.Method, r.URL)
	for _, kv := range r.Headers {
		switch strings.ToLower(kv.Key) {
		case "host", "content-length":
			continue
		}
		fmt.Fprintf(&sb, "\\\n  -H '%s: %s'", kv.Key, kv.Value)
	}
	if r.Body != "" {
		fmt.Fprintf(&sb, "\\\n  -d '%s'", r.Body)
	}
	return sb.String()
}
