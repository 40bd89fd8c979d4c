package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/aidalocal/internal/annotations"
	"github.com/lehigh-university-libraries/aidalocal/internal/models"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
)

// CatalogRefresher rebuilds the image catalog snapshot.
type CatalogRefresher interface {
	Refresh(path string) ([]models.CatalogNode, error)
}

// AnnotationSaver persists one annotation document.
type AnnotationSaver interface {
	Save(ctx context.Context, doc *models.AnnotationDocument) (*annotations.Result, error)
}

type Handler struct {
	layout       *storage.Layout
	catalog      CatalogRefresher
	saver        AnnotationSaver
	maxBodyBytes int64
	staticDir    string
}

// Options carries the wiring for New.
type Options struct {
	Layout       *storage.Layout
	Catalog      CatalogRefresher
	Saver        AnnotationSaver
	MaxBodyBytes int64
	// StaticDir holds the built viewer served at "/". Empty disables it.
	StaticDir string
}

func New(opts Options) *Handler {
	return &Handler{
		layout:       opts.Layout,
		catalog:      opts.Catalog,
		saver:        opts.Saver,
		maxBodyBytes: opts.MaxBodyBytes,
		staticDir:    opts.StaticDir,
	}
}

// Routes registers every endpoint on a new mux wrapped in the CORS and
// request logging middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/save", h.HandleSave)
	mux.HandleFunc("/checkForImages", h.HandleCheckForImages)
	mux.HandleFunc("/images/", h.HandleImages)
	mux.HandleFunc("/images.json", h.HandleCatalogSnapshot)
	mux.HandleFunc("/annotations/", h.HandleAnnotations)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.HandleFunc("/", h.HandleStatic)

	return withRequestLog(withCORS(mux))
}

// Response helpers

// writeResult sends the coarse plain-text status the viewer expects.
func (h *Handler) writeResult(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(message)); err != nil {
		slog.Error("Unable to write response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
}
