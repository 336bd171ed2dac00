package har

import (
	"net/url"
	"strings"
	"time"

	"requestbin/internal/bin"
)

type Document struct {
	Log Log `json:"log"`
}

type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Entry struct {
	Pageref         string    `json:"pageref,omitempty"`
	StartedDateTime time.Time `json:"startedDateTime"`
	Time            int64     `json:"time"` // ms
	Request         Req       `json:"request"`
	Response        Resp      `json:"response"`
	Cache           struct{}  `json:"cache"`
	Timings         Timings   `json:"timings"`
	Comment         string    `json:"comment,omitempty"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PostData struct {
	MimeType string      `json:"mimeType"`
	Text     string      `json:"text"`
	Params   []NameValue `json:"params,omitempty"`
}

type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
}

type Timings struct {
	Send    int64 `json:"send"`
	Wait    int64 `json:"wait"`
	Receive int64 `json:"receive"`
}

type Req struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

type Resp struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

// FromRequests exports captured requests as a HAR 1.2 log. Captures have no
// response, so each entry carries an empty one with status 0.
func FromRequests(binName string, in []*bin.Request) Document {
	out := Document{
		Log: Log{
			Version: "1.2",
			Creator: Creator{Name: "requestbin", Version: "1.0"},
			Entries: make([]Entry, 0, len(in)),
		},
	}
	for _, r := range in {
		out.Log.Entries = append(out.Log.Entries, Entry{
			Pageref:         binName,
			StartedDateTime: r.Created(),
			Request: Req{
				Method:      r.Method,
				URL:         r.URL,
				HTTPVersion: httpVersion(r.Raw),
				Cookies:     []NameValue{},
				Headers:     headers(r),
				QueryString: queryString(r.URL),
				PostData:    postData(r),
				HeadersSize: -1,
				BodySize:    len(r.Body),
			},
			Response: Resp{
				Cookies:     []NameValue{},
				Headers:     []NameValue{},
				HeadersSize: -1,
				BodySize:    -1,
			},
			Comment: r.ID,
		})
	}
	return out
}

func headers(r *bin.Request) []NameValue {
	out := make([]NameValue, 0, len(r.Headers))
	for _, kv := range r.Headers {
		out = append(out, NameValue{Name: kv.Key, Value: kv.Value})
	}
	return out
}

// queryString reads the URL rather than the flattened map so repeated
// parameters survive.
func queryString(raw string) []NameValue {
	out := []NameValue{}
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		name, err1 := url.QueryUnescape(k)
		value, err2 := url.QueryUnescape(v)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, NameValue{Name: name, Value: value})
	}
	return out
}

func postData(r *bin.Request) *PostData {
	if r.Body == "" && len(r.FormData) == 0 {
		return nil
	}
	pd := &PostData{MimeType: r.ContentType, Text: r.Body}
	for _, kv := range r.FormData {
		pd.Params = append(pd.Params, NameValue{Name: kv.Key, Value: kv.Value})
	}
	return pd
}

// httpVersion reads the protocol from the raw request line.
func httpVersion(raw string) string {
	line, _, _ := strings.Cut(raw, "\n")
	fields := strings.Fields(line)
	if len(fields) == 3 && strings.HasPrefix(fields[2], "HTTP/") {
		return fields[2]
	}
	return "HTTP/1.1"
}
