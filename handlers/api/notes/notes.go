package notes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studyhall/core"
	"studyhall/handlers/auth"
	"studyhall/middleware"
	"studyhall/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// notePayload is the write body; title and notebook are optional metadata,
// data is the note body kept verbatim.
type notePayload struct {
	Title    string          `json:"title"`
	Notebook string          `json:"notebook"`
	Data     json.RawMessage `json:"data"`
}

func HandleList(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		notes, err := store.ListNotes(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list notes")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list notes"})
			return
		}

		// Return an empty slice instead of null when the user has no notes.
		if notes == nil {
			notes = []*core.Note{}
		}
		render.JSON(w, r, notes)
	}
}

func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Note id is required"})
			return
		}

		note, err := store.GetNote(r.Context(), claims.Subject, id)
		if err != nil {
			if !errors.Is(err, core.ErrNoteNotFound) {
				logrus.WithFields(logrus.Fields{
					"error":  err,
					"userID": claims.Subject,
					"id":     id,
				}).Error("Failed to get note")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to get note"})
				return
			}
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Note not found"})
			return
		}

		render.JSON(w, r, note)
	}
}

// HandleCreate makes a brand new note with a generated id.
func HandleCreate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		note, ok := readNote(w, r, claims.Subject, ulid.Make().String())
		if !ok {
			return
		}

		if err := store.SaveNote(r.Context(), note); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to create note")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create note"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"id": note.ID})
	}
}

// HandleSave updates an existing note id (or creates it under that id).
func HandleSave(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Note id is required"})
			return
		}

		note, ok := readNote(w, r, claims.Subject, id)
		if !ok {
			return
		}

		if err := store.SaveNote(r.Context(), note); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to save note")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save note"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"id": note.ID})
	}
}

func HandleDelete(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Note id is required"})
			return
		}

		if err := store.DeleteNote(r.Context(), claims.Subject, id); err != nil {
			if errors.Is(err, core.ErrNoteNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Note not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to delete note")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete note"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"id": id})
	}
}

func readNote(w http.ResponseWriter, r *http.Request, userID, id string) (*core.Note, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
		return nil, false
	}
	defer r.Body.Close()

	var payload notePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
		return nil, false
	}

	title := payload.Title
	if title == "" {
		title = id // Untitled notes fall back to their id.
	}

	return &core.Note{
		ID:       id,
		UserID:   userID,
		Title:    title,
		Notebook: payload.Notebook,
		Data:     payload.Data,
	}, true
}
