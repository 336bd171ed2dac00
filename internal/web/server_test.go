package web

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requestbin/internal/bin"
	"requestbin/internal/events"
	"requestbin/internal/logging"
	"requestbin/internal/storage"
)

type testEnv struct {
	srv    *httptest.Server
	store  storage.Storage
	broker *events.Broker
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	return startTestEnv(t, 0, opts...)
}

// startTestEnv runs the server with the given http.Server WriteTimeout.
func startTestEnv(t *testing.T, writeTimeout time.Duration, opts ...Option) *testEnv {
	t.Helper()
	p := bin.DefaultPolicy()
	p.MaxRequests = 3
	p.IgnoreHeaders = []string{"Cookie"}
	store := storage.NewMemory(storage.Options{Policy: p})
	broker := events.NewBroker()
	srv := httptest.NewUnstartedServer(NewServer(store, broker, logging.Nop(), opts...))
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, broker: broker}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) createBin(t *testing.T, body string) map[string]any {
	t.Helper()
	resp, data := e.do(t, "POST", "/api/v1/bins", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestServer_CaptureFlow(t *testing.T) {
	env := newTestEnv(t)
	created := env.createBin(t, `{"name":"hooks"}`)
	assert.Equal(t, "hooks", created["name"])
	assert.NotContains(t, created, "secret_key")

	resp, data := env.do(t, "POST", "/hooks?x=1&x=2", "a=1&b=2", http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
		"Cookie":       {"session=hidden"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(data))

	_, data = env.do(t, "GET", "/api/v1/bins/hooks", "", nil)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, float64(1), summary["request_count"])

	_, data = env.do(t, "GET", "/api/v1/bins/hooks/requests", "", nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "POST", got["method"])
	assert.Equal(t, "/hooks", got["path"])
	assert.Equal(t, "a=1&b=2", got["body"])
	assert.Equal(t, map[string]any{"x": "2"}, got["query_string"])
	assert.Equal(t, []any{[]any{"a", "1"}, []any{"b", "2"}}, got["form_data"])
	assert.NotContains(t, got["headers"], "Cookie")

	id := got["id"].(string)
	resp, data = env.do(t, "GET", "/api/v1/bins/hooks/requests/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"id":"`+id+`"`)

	resp, data = env.do(t, "GET", "/api/v1/bins/hooks/requests/"+id+"/curl", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(data), "curl -X POST '"+env.srv.URL+"/hooks?x=1&x=2'"), string(data))
	assert.Contains(t, string(data), "-d 'a=1&b=2'")
	assert.NotContains(t, string(data), "Host:")

	resp, _ = env.do(t, "GET", "/api/v1/bins/hooks/requests/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = env.do(t, "GET", "/api/v1/bins/hooks/har", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"pageref": "hooks"`)

	_, data = env.do(t, "GET", "/api/v1/stats", "", nil)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 1, stats["bin_count"])
	assert.Equal(t, 1, stats["request_count"])
	assert.Greater(t, stats["avg_req_size"], 0)
}

func TestServer_CaptureSubpathAndCapacity(t *testing.T) {
	env := newTestEnv(t)
	env.createBin(t, `{"name":"cap"}`)

	for i := 0; i < 5; i++ {
		resp, _ := env.do(t, "PUT", "/cap/deep/path", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	b, err := env.store.LookupBin("cap")
	require.NoError(t, err)
	assert.Equal(t, 3, b.RequestCount())
	assert.Equal(t, "/cap/deep/path", b.Requests()[0].Path)
}

func TestServer_CreateBinErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/api/v1/bins", `{"name":"not valid!"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "alphanumeric")

	resp, _ = env.do(t, "POST", "/api/v1/bins", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.createBin(t, `{"name":"dup"}`)
	resp, _ = env.do(t, "POST", "/api/v1/bins", `{"name":"dup"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	generated := env.createBin(t, "")
	assert.Len(t, generated["name"], 8)
}

func TestServer_UnknownBin(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, "POST", "/missing", "x", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, "GET", "/api/v1/bins/missing/requests", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PrivateBin(t *testing.T) {
	env := newTestEnv(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(env.srv.URL+"/api/v1/bins", "application/json", strings.NewReader(`{"private":true,"name":"priv"}`))
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	secret := created["secret_key"].(string)
	key, err := hex.DecodeString(secret)
	require.NoError(t, err)
	assert.Len(t, key, 24)

	r, _ := env.do(t, "POST", "/priv", "anyone can send", nil)
	assert.Equal(t, http.StatusOK, r.StatusCode)

	r, _ = env.do(t, "GET", "/api/v1/bins/priv/requests", "", nil)
	assert.Equal(t, http.StatusForbidden, r.StatusCode)

	r, _ = env.do(t, "GET", "/api/v1/bins/priv/requests", "", http.Header{secretHeader: {strings.Repeat("00", 24)}})
	assert.Equal(t, http.StatusForbidden, r.StatusCode)

	r, _ = env.do(t, "GET", "/api/v1/bins/priv/requests", "", http.Header{secretHeader: {secret}})
	assert.Equal(t, http.StatusOK, r.StatusCode)

	resp, err = client.Get(env.srv.URL + "/api/v1/bins/priv/requests")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "cookie from creation grants access")

	r, _ = env.do(t, "GET", "/api/v1/bins/priv", "", nil)
	assert.Equal(t, http.StatusOK, r.StatusCode, "summary is public")
}

func TestServer_Replay(t *testing.T) {
	var hits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	env := newTestEnv(t)
	env.createBin(t, `{"name":"rep"}`)
	env.do(t, "POST", "/rep/x", "body", nil)
	b, err := env.store.LookupBin("rep")
	require.NoError(t, err)
	id := b.Requests()[0].ID

	resp, _ := env.do(t, "POST", "/api/v1/bins/rep/requests/"+id+"/replay", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data := env.do(t, "POST", "/api/v1/bins/rep/requests/"+id+"/replay?target="+upstream.URL, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res map[string]any
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, float64(http.StatusTeapot), res["status"])
	assert.Equal(t, 1, hits)
}

func TestServer_ReservedBinNames(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"healthz", "api", "API"} {
		resp, data := env.do(t, "POST", "/api/v1/bins", `{"name":"`+name+`"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.Contains(t, string(data), "reserved")
	}
	assert.Error(t, ValidateCreateBin(CreateBinRequest{Name: "healthz"}))
	assert.NoError(t, ValidateCreateBin(CreateBinRequest{Name: "hooks"}))
}

func TestServer_BodyLimit(t *testing.T) {
	env := newTestEnv(t, WithMaxBodySize(16))
	env.createBin(t, `{"name":"small"}`)

	resp, _ := env.do(t, "POST", "/small", strings.Repeat("x", 17), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/small", strings.Repeat("x", 16), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := env.store.LookupBin("small")
	require.NoError(t, err)
	assert.Equal(t, 1, b.RequestCount())
}

func TestServer_PreflightIsCaptured(t *testing.T) {
	env := newTestEnv(t)
	env.createBin(t, `{"name":"cors"}`)
	preflight := http.Header{
		"Origin":                        {"http://example.com"},
		"Access-Control-Request-Method": {"POST"},
	}

	resp, data := env.do(t, "OPTIONS", "/cors", "", preflight)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(data))
	b, err := env.store.LookupBin("cors")
	require.NoError(t, err)
	require.Equal(t, 1, b.RequestCount())
	assert.Equal(t, "OPTIONS", b.Requests()[0].Method)

	resp, _ = env.do(t, "OPTIONS", "/api/v1/bins", "", preflight)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RequestIDHeader(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func waitSubscribers(t *testing.T, b *events.Broker, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SSE(t *testing.T) {
	env := newTestEnv(t)
	env.createBin(t, `{"name":"live"}`)

	resp, err := http.Get(env.srv.URL + "/api/v1/bins/live/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	waitSubscribers(t, env.broker, 1)
	env.do(t, "POST", "/live", "streamed", nil)

	var data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
			break
		}
	}
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "streamed", ev["body"])
}

func TestServer_SSEOutlivesWriteTimeout(t *testing.T) {
	env := startTestEnv(t, 500*time.Millisecond)
	env.createBin(t, `{"name":"slow"}`)

	resp, err := http.Get(env.srv.URL + "/api/v1/bins/slow/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	waitSubscribers(t, env.broker, 1)
	time.Sleep(800 * time.Millisecond)
	env.do(t, "POST", "/slow", "late", nil)

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err, "stream closed after write timeout")
		if strings.HasPrefix(line, "data: {") {
			assert.Contains(t, line, `"body":"late"`)
			return
		}
	}
}

func TestServer_Websocket(t *testing.T) {
	env := newTestEnv(t)
	env.createBin(t, `{"name":"sock"}`)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/bins/sock/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitSubscribers(t, env.broker, 1)
	env.do(t, "DELETE", "/sock/item/1", "", nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "request", msg.Type)
	assert.Equal(t, "DELETE", msg.Data["method"])
	assert.Equal(t, "/sock/item/1", msg.Data["path"])
}
