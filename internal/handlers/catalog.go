package handlers

import (
	"log/slog"
	"net/http"
)

// HandleCheckForImages rebuilds the catalog snapshot from the images directory.
func (h *Handler) HandleCheckForImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := h.catalog.Refresh(h.layout.CatalogPath()); err != nil {
		slog.Error("Could not check for images", "err", err)
		h.writeResult(w, "Failed, could not find images", http.StatusInternalServerError)
		return
	}

	h.writeResult(w, "Success, found images", http.StatusOK)
}

// HandleCatalogSnapshot serves the last catalog snapshot.
func (h *Handler) HandleCatalogSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	setNoCache(w)
	http.ServeFile(w, r, h.layout.CatalogPath())
}
