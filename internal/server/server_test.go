package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/devlaunch/internal/resolver"
	"github.com/fastertools/devlaunch/internal/storage"
)

func newTestServer(objects map[string]string) (*Server, *storage.MemoryStore) {
	store := storage.NewMemoryStore(objects)
	return New(resolver.New(store)), store
}

func fixture() map[string]string {
	return map[string]string{
		"tags.yaml": "- docker\n- postgres",
		"index.yaml": `- tags:
  - docker
  - postgres
  url: "nginx/docker-compose.yaml"
`,
		"nginx/docker-compose.yaml": "services: {}",
		"somefile.txt":              "fake content",
	}
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestResolveValidPrompt(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodPost, "/resolve", strings.NewReader(`{"prompt":"Use docker and postgres"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)
	require.NotNil(t, data["matched"])
	assert.Equal(t, "nginx/docker-compose.yaml", data["matched"].(map[string]any)["url"])
	assert.Equal(t, []any{"nginx/docker-compose.yaml"}, data["files"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestResolveEmptyPrompt(t *testing.T) {
	srv, store := newTestServer(fixture())

	for _, body := range []string{`{}`, `{"prompt":""}`, ``} {
		rec := do(t, srv.Handler(), http.MethodPost, "/resolve", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "No prompt provided", decode(t, rec)["error"])
	}
	assert.Zero(t, store.Calls)
}

func TestResolveInvalidJSON(t *testing.T) {
	srv, store := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodPost, "/resolve", strings.NewReader(`{"prompt":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.Calls)
}

func TestResolveNoMatch(t *testing.T) {
	objects := fixture()
	objects["index.yaml"] = "- tags: [nginx, mysql]\n  url: something.yaml\n"
	srv, _ := newTestServer(objects)

	rec := do(t, srv.Handler(), http.MethodPost, "/resolve", strings.NewReader(`{"prompt":"unknown technology"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)
	assert.Contains(t, data, "matched")
	assert.Nil(t, data["matched"])
}

func TestResolveMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(fixture())
	rec := do(t, srv.Handler(), http.MethodGet, "/resolve", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDownloadValidKey(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodGet, "/download?key=somefile.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fake content", rec.Body.String())
	assert.Equal(t, "attachment; filename=somefile.txt", rec.Header().Get("Content-Disposition"))
}

// embeddedCatalog aliases resolver.Catalog so the embedded field is not named
// Catalog, which would shadow the interface's Catalog method.
type embeddedCatalog = resolver.Catalog

// streamOnly serves downloads only through Open.
type streamOnly struct {
	embeddedCatalog
	opened []string
}

func (c *streamOnly) Get(ctx context.Context, key string) ([]byte, error) {
	panic("download must stream through Open")
}

func (c *streamOnly) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	c.opened = append(c.opened, key)
	return io.NopCloser(strings.NewReader(strings.Repeat("x", 1<<20))), nil
}

func TestDownloadStreamsObject(t *testing.T) {
	cat := &streamOnly{}
	srv := New(cat)

	rec := do(t, srv.Handler(), http.MethodGet, "/download?key=big/blob.bin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1<<20, rec.Body.Len())
	assert.Equal(t, []string{"big/blob.bin"}, cat.opened)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestDownloadNestedKeyUsesBaseName(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodGet, "/download?key=nginx/docker-compose.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=docker-compose.yaml", rec.Header().Get("Content-Disposition"))
}

func TestDownloadNoKey(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodGet, "/download", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No key provided", decode(t, rec)["error"])
}

func TestDownloadKeyNotFound(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodGet, "/download?key=missing.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["kind"])
}

func TestTemplates(t *testing.T) {
	srv, _ := newTestServer(fixture())

	rec := do(t, srv.Handler(), http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var idx []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idx))
	require.Len(t, idx, 1)
	assert.Equal(t, []any{"docker", "postgres"}, idx[0]["tags"])
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newTestServer(fixture())
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	do(t, h, http.MethodPost, "/resolve", strings.NewReader(`{"prompt":"docker postgres"}`))

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `devlaunch_http_requests_total{code="200",route="resolve"} 1`)
	assert.Contains(t, body, `devlaunch_resolutions_total{result="matched"} 1`)
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(fixture())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(fixture())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/resolve", "application/json", bytes.NewBufferString(`{"prompt":"docker postgres"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
