package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaticFixture(t *testing.T) *StaticHandler {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"index.html": "<html>home</html>",
		"app.js":     "console.log('hi')",
		"style.css":  "body {}",
		"data.json":  `{"ok":true}`,
		"notes.txt":  "plain notes",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	return NewStaticHandler(dir)
}

func TestStaticHandler_ServesIndexAtRoot(t *testing.T) {
	h := newStaticFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html>home</html>", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticHandler_ContentTypes(t *testing.T) {
	h := newStaticFixture(t)

	cases := map[string]string{
		"/app.js":    "application/javascript",
		"/style.css": "text/css",
		"/data.json": "application/json",
		"/notes.txt": "text/plain",
	}

	for path, want := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, want, rec.Header().Get("Content-Type"), path)
	}
}

func TestStaticHandler_MissingFile(t *testing.T) {
	h := newStaticFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope.html", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", rec.Body.String())
}

func TestStaticHandler_TraversalBlocked(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "public")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("secret"), 0o644))

	h := NewStaticHandler(sub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/%2e%2e/secret.txt", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/etc/passwd", nil)
	req.URL.Path = "/../secret.txt"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
