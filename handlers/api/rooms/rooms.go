package rooms

import (
	"net/http"

	"studyhall/relay"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type roomStatus struct {
	RoomID    string `json:"roomId"`
	Kind      string `json:"kind"`
	UserCount int    `json:"userCount"`
}

// HandleGetStatus reports the live presence of a room from the session
// registry. Rooms exist only while they have members.
func HandleGetStatus(registry *relay.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		if roomID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Room id is required"})
			return
		}

		kind, ok := registry.Kind(roomID)
		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Room not found"})
			return
		}

		render.JSON(w, r, roomStatus{
			RoomID:    roomID,
			Kind:      kind.String(),
			UserCount: registry.Count(roomID),
		})
	}
}
