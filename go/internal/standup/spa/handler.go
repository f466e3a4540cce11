package spa

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

const indexFile = "index.html"

// Handler serves a built single page app. Paths that do not name a file are
// answered with index.html so client routing works on reload.
type Handler struct {
	files      fs.FS
	fileServer http.Handler
}

// NewHandler serves the bundle in dir
func NewHandler(dir string) *Handler {
	return NewHandlerFS(os.DirFS(dir))
}

// NewHandlerFS serves the bundle in files
func NewHandlerFS(files fs.FS) *Handler {
	return &Handler{
		files:      files,
		fileServer: http.FileServer(http.FS(files)),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == indexFile || !h.isFile(name) {
		h.serveIndex(w, r)
		return
	}
	h.fileServer.ServeHTTP(w, r)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.files, indexFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to read app index")
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

func (h *Handler) isFile(name string) bool {
	info, err := fs.Stat(h.files, name)
	return err == nil && !info.IsDir()
}
