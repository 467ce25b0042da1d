package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studyhall/core"

	"github.com/sirupsen/logrus"
)

// memStore implements both DocumentStore and NoteStore for in-memory
// storage. State is lost on restart; intended for development and tests.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	// notes is keyed by userID, then by note id.
	notes map[string]map[string]*core.Note
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents: make(map[string]*core.Document),
		notes:     make(map[string]map[string]*core.Note),
	}
}

// FindID retrieves a document by its ID. Part of the DocumentStore interface.
func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("document_id", id)
	doc, ok := s.documents[id]
	if !ok {
		log.Debug("Document with specified ID not found")
		return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentNotFound)
	}

	copied := *doc
	copied.Data = append([]byte(nil), doc.Data...)
	log.Debug("Document retrieved successfully")
	return &copied, nil
}

// Create stores a new document under document.ID. Part of the DocumentStore interface.
func (s *memStore) Create(ctx context.Context, document *core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *document
	stored.Data = append([]byte(nil), document.Data...)
	stored.UpdatedAt = time.Now()
	s.documents[document.ID] = &stored

	logrus.WithFields(logrus.Fields{
		"document_id": document.ID,
		"data_length": len(document.Data),
	}).Info("Document created successfully")
	return nil
}

// Save replaces a document's payload, creating it if necessary. Part of the
// DocumentStore interface.
func (s *memStore) Save(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[id] = &core.Document{
		ID:        id,
		Data:      append([]byte(nil), data...),
		UpdatedAt: time.Now(),
	}
	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(data),
	}).Debug("Document saved successfully")
	return nil
}

// ListNotes returns metadata for all notes owned by a user. Part of the
// NoteStore interface.
func (s *memStore) ListNotes(ctx context.Context, userID string) ([]*core.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userNotes, ok := s.notes[userID]
	if !ok {
		return []*core.Note{}, nil // No notes for this user, return empty slice
	}

	notes := make([]*core.Note, 0, len(userNotes))
	for _, note := range userNotes {
		// List views carry metadata only, not the note body.
		listNote := &core.Note{
			ID:        note.ID,
			UserID:    note.UserID,
			Title:     note.Title,
			Notebook:  note.Notebook,
			CreatedAt: note.CreatedAt,
			UpdatedAt: note.UpdatedAt,
		}
		notes = append(notes, listNote)
	}

	logrus.WithField("user_id", userID).Debugf("Listed %d notes", len(notes))
	return notes, nil
}

// GetNote returns a single note by its ID, ensuring it belongs to the user.
// Part of the NoteStore interface.
func (s *memStore) GetNote(ctx context.Context, userID, id string) (*core.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "note_id": id})

	userNotes, ok := s.notes[userID]
	if !ok {
		log.Warn("User has no notes")
		return nil, fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
	}

	note, ok := userNotes[id]
	if !ok {
		log.Warn("Note not found for user")
		return nil, fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
	}

	copied := *note
	copied.Data = append([]byte(nil), note.Data...)
	return &copied, nil
}

// SaveNote creates or updates a note for a user. Part of the NoteStore interface.
func (s *memStore) SaveNote(ctx context.Context, note *core.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": note.UserID, "note_id": note.ID})

	if note.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if note.ID == "" {
		return fmt.Errorf("note ID cannot be empty for save operation")
	}

	userNotes, ok := s.notes[note.UserID]
	if !ok {
		userNotes = make(map[string]*core.Note)
		s.notes[note.UserID] = userNotes
	}

	now := time.Now()
	if existing, exists := userNotes[note.ID]; exists {
		note.CreatedAt = existing.CreatedAt
	} else {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	stored := *note
	stored.Data = append([]byte(nil), note.Data...)
	userNotes[note.ID] = &stored
	log.Info("Note saved successfully")
	return nil
}

// DeleteNote removes a note, ensuring it belongs to the user. Part of the
// NoteStore interface.
func (s *memStore) DeleteNote(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "note_id": id})

	userNotes, ok := s.notes[userID]
	if !ok {
		log.Warn("User has no notes to delete from")
		return fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
	}

	if _, ok := userNotes[id]; !ok {
		log.Warn("Note not found for deletion")
		return fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
	}

	delete(userNotes, id)
	log.Info("Note deleted successfully")
	return nil
}
