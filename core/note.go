package core

import (
	"context"
	"errors"
	"time"
)

// ErrNoteNotFound is returned by NoteStore lookups when no note exists for
// the given user/id pair.
var ErrNoteNotFound = errors.New("note not found")

type (
	// Note is a user-owned study note. Data holds the full note body and is
	// omitted from list views to keep those responses light.
	Note struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // Not exposed in JSON responses, used internally.
		Title     string    `json:"title"`
		Notebook  string    `json:"notebook,omitempty"`
		Data      []byte    `json:"data,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// NoteStore defines the persistence layer for user-owned notes.
	// All operations are scoped to a specific user.
	NoteStore interface {
		// ListNotes returns metadata for all notes owned by a user,
		// without the Data field.
		ListNotes(ctx context.Context, userID string) ([]*Note, error)

		// GetNote returns a single note by its ID, ensuring it belongs to
		// the user. Returns an error wrapping ErrNoteNotFound when absent.
		GetNote(ctx context.Context, userID, id string) (*Note, error)

		// SaveNote creates or updates a note for a user.
		SaveNote(ctx context.Context, note *Note) error

		// DeleteNote removes a note, ensuring it belongs to the user.
		DeleteNote(ctx context.Context, userID, id string) error
	}
)
