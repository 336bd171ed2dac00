package bin

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"requestbin/internal/types"
)

// Input is the transport-side view of one inbound request.
type Input interface {
	URL() string
	Headers() types.Headers
	RemoteAddr() string
	Method() string
	// Args returns query parameters in order, duplicates included.
	Args() []types.KV
	// FormKeys returns submitted form field names in first-appearance order.
	FormKeys() []string
	// Value resolves name against query args first, then form fields.
	Value(name string) string
	Data() []byte
	Path() string
	// Raw is the captured request as it arrived, or nil.
	Raw() []byte
}

type httpInput struct {
	url        string
	headers    types.Headers
	remoteAddr string
	method     string
	args       []types.KV
	form       []types.KV
	data       []byte
	path       string
	raw        []byte
}

func (in *httpInput) URL() string            { return in.url }
func (in *httpInput) Headers() types.Headers { return in.headers.Clone() }
func (in *httpInput) RemoteAddr() string     { return in.remoteAddr }
func (in *httpInput) Method() string         { return in.method }
func (in *httpInput) Args() []types.KV       { return in.args }
func (in *httpInput) Data() []byte           { return in.data }
func (in *httpInput) Path() string           { return in.path }
func (in *httpInput) Raw() []byte            { return in.raw }

func (in *httpInput) FormKeys() []string {
	seen := make(map[string]bool, len(in.form))
	keys := make([]string, 0, len(in.form))
	for _, kv := range in.form {
		if !seen[kv.Key] {
			seen[kv.Key] = true
			keys = append(keys, kv.Key)
		}
	}
	return keys
}

func (in *httpInput) Value(name string) string {
	for _, src := range [][]types.KV{in.args, in.form} {
		for _, kv := range src {
			if kv.Key == name {
				return kv.Value
			}
		}
	}
	return ""
}

// FromHTTP snapshots r into an Input. The body is read in full and put
// back so r stays usable by the caller.
func FromHTTP(r *http.Request) (Input, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		_ = r.Body.Close()
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	raw, err := httputil.DumpRequest(r, true)
	if err != nil {
		raw = nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	in := &httpInput{
		url:        requestURL(r),
		headers:    headersOf(r),
		remoteAddr: hostOnly(r.RemoteAddr),
		method:     r.Method,
		args:       parsePairs(r.URL.RawQuery),
		form:       parseForm(r.Header.Get("Content-Type"), body),
		data:       body,
		path:       r.URL.Path,
		raw:        raw,
	}
	return in, nil
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func headersOf(r *http.Request) types.Headers {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	h := make(types.Headers, 0, len(names)+1)
	if r.Host != "" {
		h = append(h, types.KV{Key: "Host", Value: r.Host})
	}
	for _, name := range names {
		if name == "Host" {
			continue
		}
		h = append(h, types.KV{Key: name, Value: strings.Join(r.Header[name], ", ")})
	}
	return h
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// parsePairs splits an urlencoded string keeping order and duplicates.
// Undecodable pairs are skipped.
func parsePairs(s string) []types.KV {
	var out []types.KV
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out = append(out, types.KV{Key: key, Value: value})
	}
	return out
}

func parseForm(contentType string, body []byte) []types.KV {
	if contentType == "" || len(body) == 0 {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		return parsePairs(string(body))
	case "multipart/form-data":
		return parseMultipart(body, params["boundary"])
	}
	return nil
}

// parseMultipart collects non-file parts. Files are not form fields.
func parseMultipart(body []byte, boundary string) []types.KV {
	if boundary == "" {
		return nil
	}
	var out []types.KV
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return out
		}
		name := part.FormName()
		if name == "" || part.FileName() != "" {
			_ = part.Close()
			continue
		}
		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return out
		}
		out = append(out, types.KV{Key: name, Value: AsString(value)})
	}
}
