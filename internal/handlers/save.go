package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
)

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Raster items arrive base64-inlined, so bodies of tens of megabytes are normal.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var doc models.AnnotationDocument
	if err := decodeDocument(r.Body, &doc); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Error("Annotation data could not be saved", "err", err, "limit", tooLarge.Limit)
			h.writeResult(w, "Failed, annotation data too large", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Error("Annotation data could not be saved", "err", err)
		h.writeResult(w, "Failed, annotation data could not be saved", http.StatusBadRequest)
		return
	}

	result, err := h.saver.Save(r.Context(), &doc)
	if err != nil {
		slog.Error("Annotation data could not be saved", "image", doc.ProjectImageName, "err", err)
		h.writeResult(w, "Failed, annotation data could not be saved", http.StatusInternalServerError)
		return
	}

	slog.Info("Annotation data saved", "image", doc.ProjectImageName, "rasters", len(result.RasterPaths))
	h.writeResult(w, "Success, annotation data saved", http.StatusOK)
}

// decodeDocument reads exactly one JSON value from body. Anything but
// whitespace after it is an error.
func decodeDocument(body io.Reader, doc *models.AnnotationDocument) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(doc); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errors.New("unexpected data after annotation document")
	}
	return nil
}
