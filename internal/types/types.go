package types

import (
	"bytes"
	"encoding/json"
)

type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Headers is an ordered header mapping. Names are unique and kept in
// insertion order.
type Headers []KV

func (h Headers) Get(name string) (string, bool) {
	for _, kv := range h {
		if kv.Key == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value of name in place, or appends it.
func (h *Headers) Set(name, value string) {
	for i, kv := range *h {
		if kv.Key == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, KV{Key: name, Value: value})
}

// Del removes name. Matching is exact and case-sensitive.
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, kv := range *h {
		if kv.Key != name {
			out = append(out, kv)
		}
	}
	*h = out
}

func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// MarshalJSON renders the headers as a JSON object in stored order.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object. Key order follows the document.
func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	out := Headers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out.Set(key, value)
	}
	*h = out
	return nil
}

// Pairs is an ordered list of name/value pairs that may repeat names.
type Pairs []KV

// MarshalJSON renders pairs as [[name, value], ...].
func (p Pairs) MarshalJSON() ([]byte, error) {
	out := make([][2]string, len(p))
	for i, kv := range p {
		out[i] = [2]string{kv.Key, kv.Value}
	}
	return json.Marshal(out)
}

func (p *Pairs) UnmarshalJSON(data []byte) error {
	var in [][2]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Pairs, len(in))
	for i, kv := range in {
		out[i] = KV{Key: kv[0], Value: kv[1]}
	}
	*p = out
	return nil
}
