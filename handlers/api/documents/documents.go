package documents

import (
	"errors"
	"net/http"

	"studyhall/core"
	"studyhall/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandleGet exposes a collaborative document's current payload over HTTP,
// for export and read-only embedding. Writes go through the relay only.
func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		doc, err := store.FindID(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrDocumentNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Document not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"document_id": id,
			}).Error("Failed to get document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get document"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(doc.Data)
	}
}
