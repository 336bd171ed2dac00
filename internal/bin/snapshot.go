package bin

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"requestbin/internal/gen"
	"requestbin/internal/types"
)

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

type binRecord struct {
	Created    float64
	Private    bool
	Color      gen.Color
	Name       string
	FaviconURI string
	SecretKey  []byte
	Requests   [][]byte
}

type requestRecord struct {
	ID            string
	URL           string
	Time          float64
	RemoteAddr    string
	Method        string
	Headers       []types.KV
	QueryString   map[string]string
	Raw           string
	FormData      []types.KV
	Body          string
	Path          string
	ContentLength int
	ContentType   string
}

// Dump encodes the bin and every request it holds.
func (b *Bin) Dump() ([]byte, error) {
	rec := binRecord{
		Created:    b.Created,
		Private:    b.Private,
		Color:      b.Color,
		Name:       b.Name,
		FaviconURI: b.FaviconURI,
		SecretKey:  b.SecretKey,
		Requests:   make([][]byte, 0, len(b.requests)),
	}
	for _, r := range b.requests {
		data, err := r.Dump()
		if err != nil {
			return nil, fmt.Errorf("dump request %s: %w", r.ID, err)
		}
		rec.Requests = append(rec.Requests, data)
	}
	return encode(rec)
}

// Load decodes a bin written by Dump. The policy is applied to later Adds.
func Load(data []byte, p Policy) (*Bin, error) {
	var rec binRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("%w: bin name missing", ErrCorruptSnapshot)
	}
	if rec.Private && len(rec.SecretKey) == 0 {
		return nil, fmt.Errorf("%w: private bin %s has no secret key", ErrCorruptSnapshot, rec.Name)
	}

	b := &Bin{
		Created:    rec.Created,
		Private:    rec.Private,
		Color:      rec.Color,
		Name:       rec.Name,
		FaviconURI: rec.FaviconURI,
		SecretKey:  rec.SecretKey,
		requests:   make([]*Request, 0, len(rec.Requests)),
		policy:     p,
	}
	for i, raw := range rec.Requests {
		r, err := LoadRequest(raw)
		if err != nil {
			return nil, fmt.Errorf("bin %s request %d: %w", rec.Name, i, err)
		}
		b.requests = append(b.requests, r)
	}
	return b, nil
}

func (r *Request) Dump() ([]byte, error) {
	return encode(requestRecord{
		ID:            r.ID,
		URL:           r.URL,
		Time:          r.Time,
		RemoteAddr:    r.RemoteAddr,
		Method:        r.Method,
		Headers:       r.Headers,
		QueryString:   r.QueryString,
		Raw:           r.Raw,
		FormData:      r.FormData,
		Body:          r.Body,
		Path:          r.Path,
		ContentLength: r.ContentLength,
		ContentType:   r.ContentType,
	})
}

func LoadRequest(data []byte) (*Request, error) {
	var rec requestRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: request id missing", ErrCorruptSnapshot)
	}

	r := &Request{
		ID:            rec.ID,
		URL:           rec.URL,
		Time:          rec.Time,
		RemoteAddr:    rec.RemoteAddr,
		Method:        rec.Method,
		Headers:       types.Headers(rec.Headers),
		QueryString:   rec.QueryString,
		Raw:           rec.Raw,
		FormData:      types.Pairs(rec.FormData),
		Body:          rec.Body,
		Path:          rec.Path,
		ContentLength: rec.ContentLength,
		ContentType:   rec.ContentType,
	}
	// gob drops empty collections; restore them so views match the original.
	if r.Headers == nil {
		r.Headers = types.Headers{}
	}
	if r.QueryString == nil {
		r.QueryString = map[string]string{}
	}
	if r.FormData == nil {
		r.FormData = types.Pairs{}
	}
	return r, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return nil
}
