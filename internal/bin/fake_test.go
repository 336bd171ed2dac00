package bin

import "requestbin/internal/types"

type fakeInput struct {
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

func (f *fakeInput) URL() string            { return f.url }
func (f *fakeInput) Headers() types.Headers { return f.headers.Clone() }
func (f *fakeInput) RemoteAddr() string     { return f.remoteAddr }
func (f *fakeInput) Method() string         { return f.method }
func (f *fakeInput) Args() []types.KV       { return f.args }
func (f *fakeInput) Data() []byte           { return f.data }
func (f *fakeInput) Path() string           { return f.path }
func (f *fakeInput) Raw() []byte            { return f.raw }

func (f *fakeInput) FormKeys() []string {
	keys := make([]string, 0, len(f.form))
	for _, kv := range f.form {
		keys = append(keys, kv.Key)
	}
	return keys
}

func (f *fakeInput) Value(name string) string {
	for _, src := range [][]types.KV{f.args, f.form} {
		for _, kv := range src {
			if kv.Key == name {
				return kv.Value
			}
		}
	}
	return ""
}

func getInput(path string) *fakeInput {
	return &fakeInput{
		url:        "http://bin.local" + path,
		headers:    types.Headers{{Key: "Host", Value: "bin.local"}},
		remoteAddr: "10.0.0.1",
		method:     "GET",
		path:       path,
		raw:        []byte("GET " + path + " HTTP/1.1\r\nHost: bin.local\r\n\r\n"),
	}
}
