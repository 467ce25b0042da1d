package core

import (
	"context"
	"errors"
	"time"
)

// ErrDocumentNotFound is returned by DocumentStore.FindID when no document
// exists for the given id.
var ErrDocumentNotFound = errors.New("document not found")

type (
	// Document is the persisted payload of one collaborative session. The
	// relay never interprets Data; it forwards and stores it verbatim
	// (editor deltas, whiteboard items or any other client-defined blob).
	Document struct {
		ID        string    `json:"id"`
		Data      []byte    `json:"data"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// DocumentStore defines the persistence layer consumed by the relay.
	// Ids are assigned by the caller (they double as room ids), not by the
	// store.
	DocumentStore interface {
		// FindID returns the document with the given id, or an error
		// wrapping ErrDocumentNotFound when it does not exist.
		FindID(ctx context.Context, id string) (*Document, error)

		// Create stores a brand new document under document.ID.
		Create(ctx context.Context, document *Document) error

		// Save replaces the payload of the document with the given id,
		// creating it if necessary.
		Save(ctx context.Context, id string, data []byte) error
	}
)
