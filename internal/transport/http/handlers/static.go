package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "application/javascript",
	".css":  "text/css",
	".json": "application/json",
}

// StaticHandler serves files from a root directory. The bare path "/"
// serves index.html, unknown extensions are sent as text/plain, and
// anything missing or escaping the root gets a plain 404.
type StaticHandler struct {
	root string
}

func NewStaticHandler(root string) *StaticHandler {
	return &StaticHandler{root: root}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	name := r.URL.Path
	if name == "/" {
		name = "/index.html"
	}

	clean := filepath.Clean(strings.TrimPrefix(name, "/"))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		h.notFound(w)
		return
	}

	path := filepath.Join(h.root, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		h.notFound(w)
		return
	}

	ct, ok := contentTypes[filepath.Ext(path)]
	if !ok {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	w.Write(data)
}

func (h *StaticHandler) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("File not found"))
}
