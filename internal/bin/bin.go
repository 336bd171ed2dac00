// Package bin holds the request bin: a bounded, newest-first collection of
// captured HTTP requests with a binary snapshot format.
//
// A Bin is not safe for concurrent mutation. Callers that share one
// serialize Add themselves; storage backends do this per bin name.
package bin

import (
	"encoding/json"
	"fmt"
	"time"

	"requestbin/internal/gen"
)

const (
	nameLength      = 8
	secretKeyLength = 24
)

type Bin struct {
	Created    float64
	Private    bool
	Color      gen.Color
	Name       string
	FaviconURI string
	SecretKey  []byte

	requests []*Request
	policy   Policy
}

// New creates an empty bin. An empty customName gets a generated one.
func New(p Policy, private bool, customName string) (*Bin, error) {
	b := &Bin{
		Created:  float64(time.Now().UnixNano()) / 1e9,
		Private:  private,
		Color:    gen.RandomColor(),
		Name:     customName,
		requests: []*Request{},
		policy:   p,
	}
	if b.Name == "" {
		b.Name = gen.TinyID(nameLength)
	}
	b.FaviconURI = gen.SolidGIFDataURI(b.Color)
	if private {
		key, err := gen.SecretKey(secretKeyLength)
		if err != nil {
			return nil, fmt.Errorf("generate secret key: %w", err)
		}
		b.SecretKey = key
	}
	return b, nil
}

// Add captures in at the front of the bin and evicts the oldest requests
// beyond the capacity.
func (b *Bin) Add(in Input) *Request {
	r := NewRequest(in, b.policy)
	b.requests = append(b.requests, nil)
	copy(b.requests[1:], b.requests)
	b.requests[0] = r

	if limit := b.policy.MaxRequests; limit > 0 && len(b.requests) > limit {
		for i := limit; i < len(b.requests); i++ {
			b.requests[i] = nil
		}
		b.requests = b.requests[:limit]
	}
	return r
}

func (b *Bin) RequestCount() int { return len(b.requests) }

// Requests returns the captured requests, newest first.
func (b *Bin) Requests() []*Request {
	out := make([]*Request, len(b.requests))
	copy(out, b.requests)
	return out
}

func (b *Bin) Request(id string) (*Request, bool) {
	for _, r := range b.requests {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

func (b *Bin) Policy() Policy { return b.policy }

// ToDict is the public summary. It leaves out the requests and the secret.
func (b *Bin) ToDict() map[string]any {
	return map[string]any{
		"private":       b.Private,
		"color":         b.Color,
		"name":          b.Name,
		"request_count": b.RequestCount(),
	}
}

func (b *Bin) JSON() ([]byte, error) {
	return json.Marshal(b.ToDict())
}

// Clone returns a bin sharing the same immutable requests. Adding to the
// clone does not affect b.
func (b *Bin) Clone() *Bin {
	c := *b
	c.requests = b.Requests()
	if b.SecretKey != nil {
		c.SecretKey = append([]byte(nil), b.SecretKey...)
	}
	return &c
}
