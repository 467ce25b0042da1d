package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"studyhall/core"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Documents live under
// <base>/documents, notes under <base>/notes/<userID>.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{basePath, filepath.Join(basePath, "documents"), filepath.Join(basePath, "notes")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// safeName rejects ids that would escape the storage directory.
func safeName(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return fmt.Errorf("invalid id %q: must be a plain name", id)
	}
	return nil
}

func (s *fsStore) documentPath(id string) string {
	return filepath.Join(s.basePath, "documents", id)
}

// DocumentStore implementation
func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	if err := safeName(id); err != nil {
		return nil, err
	}
	filePath := s.documentPath(id)
	log := logrus.WithField("document_id", id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Document with specified ID not found")
			return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		log.WithError(err).Error("Failed to stat document file")
		return nil, err
	}

	return &core.Document{ID: id, Data: data, UpdatedAt: info.ModTime()}, nil
}

func (s *fsStore) Create(ctx context.Context, document *core.Document) error {
	if err := safeName(document.ID); err != nil {
		return err
	}
	filePath := s.documentPath(document.ID)
	log := logrus.WithFields(logrus.Fields{
		"document_id": document.ID,
		"file_path":   filePath,
	})

	if err := os.WriteFile(filePath, document.Data, 0644); err != nil {
		log.WithError(err).Error("Failed to create document")
		return err
	}

	log.Info("Document created successfully")
	return nil
}

func (s *fsStore) Save(ctx context.Context, id string, data []byte) error {
	if err := safeName(id); err != nil {
		return err
	}
	if err := os.WriteFile(s.documentPath(id), data, 0644); err != nil {
		logrus.WithField("document_id", id).WithError(err).Error("Failed to save document")
		return err
	}
	return nil
}

// NoteStore implementation
func (s *fsStore) userNotesPath(userID string) string {
	return filepath.Join(s.basePath, "notes", userID)
}

func (s *fsStore) ListNotes(ctx context.Context, userID string) ([]*core.Note, error) {
	if err := safeName(userID); err != nil {
		return nil, err
	}
	userPath := s.userNotesPath(userID)
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("User directory does not exist, returning empty list.")
			return []*core.Note{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	notes := make([]*core.Note, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read note file %s, skipping", file.Name())
			continue
		}

		var note core.Note
		if err := json.Unmarshal(data, &note); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal note file %s, skipping", file.Name())
			continue
		}

		// List views carry metadata only.
		note.UserID = userID
		note.Data = nil
		notes = append(notes, &note)
	}

	log.Debugf("Listed %d notes", len(notes))
	return notes, nil
}

func (s *fsStore) GetNote(ctx context.Context, userID, id string) (*core.Note, error) {
	if err := safeName(userID); err != nil {
		return nil, err
	}
	if err := safeName(id); err != nil {
		return nil, err
	}
	filePath := filepath.Join(s.userNotesPath(userID), id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "note_id": id})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Note file not found")
			return nil, fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
		}
		log.WithError(err).Error("Failed to read note file")
		return nil, err
	}

	var note core.Note
	if err := json.Unmarshal(data, &note); err != nil {
		log.WithError(err).Error("Failed to unmarshal note data")
		return nil, err
	}
	// UserID is excluded from the JSON encoding; restore it from the path.
	note.UserID = userID
	return &note, nil
}

func (s *fsStore) SaveNote(ctx context.Context, note *core.Note) error {
	if err := safeName(note.UserID); err != nil {
		return err
	}
	if err := safeName(note.ID); err != nil {
		return err
	}
	userPath := s.userNotesPath(note.UserID)
	filePath := filepath.Join(userPath, note.ID)
	log := logrus.WithFields(logrus.Fields{"user_id": note.UserID, "note_id": note.ID})

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	if note.CreatedAt.IsZero() {
		if existing, err := s.GetNote(ctx, note.UserID, note.ID); err == nil {
			note.CreatedAt = existing.CreatedAt
		} else {
			note.CreatedAt = time.Now()
		}
	}
	note.UpdatedAt = time.Now()

	data, err := json.Marshal(note)
	if err != nil {
		log.WithError(err).Error("Failed to marshal note for saving")
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write note file")
		return err
	}
	return nil
}

func (s *fsStore) DeleteNote(ctx context.Context, userID, id string) error {
	if err := safeName(userID); err != nil {
		return err
	}
	if err := safeName(id); err != nil {
		return err
	}
	filePath := filepath.Join(s.userNotesPath(userID), id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "note_id": id})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Note file not found for deletion, considered successful.")
			return nil // If it doesn't exist, the goal is achieved.
		}
		log.WithError(err).Error("Failed to delete note file")
		return err
	}

	log.Info("Note deleted successfully")
	return nil
}
