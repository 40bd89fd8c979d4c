package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
)

// HandleImages serves the source images the catalog lists.
func (h *Handler) HandleImages(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.layout.ImagesDir(), "/images/")
}

// HandleAnnotations serves annotation documents and their raster files. The
// viewer reloads these after every edit, so they must never be cached.
func (h *Handler) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	setNoCache(w)
	h.serveFrom(w, r, h.layout.AnnotationsDir(), "/annotations/")
}

// HandleStatic serves the built viewer.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		http.NotFound(w, r)
		return
	}

	if r.URL.Path == "/" {
		http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
		return
	}
	h.serveFrom(w, r, h.staticDir, "/")
}

func (h *Handler) serveFrom(w http.ResponseWriter, r *http.Request, root, prefix string) {
	if r.Method != "GET" && r.Method != "HEAD" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, prefix)

	// Prevent directory traversal attacks
	if storage.HasParentSegment(rel) || strings.Contains(rel, `\`) {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, fullPath)
}
