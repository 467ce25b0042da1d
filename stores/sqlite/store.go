package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"studyhall/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	// Table for collaborative documents, keyed by the external room id.
	docTableStmt := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		data BLOB,
		updated_at DATETIME
	);`
	if _, err = db.Exec(docTableStmt); err != nil {
		log.Fatalf("failed to create documents table: %v", err)
	}

	// Table for user-owned study notes
	noteTableStmt := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT,
		notebook TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(noteTableStmt); err != nil {
		log.Fatalf("failed to create notes table: %v", err)
	}

	return &sqliteStore{db}
}

// DocumentStore implementation
func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")

	document := core.Document{ID: id}
	err := s.db.QueryRowContext(ctx, "SELECT data, updated_at FROM documents WHERE id = ?", id).
		Scan(&document.Data, &document.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("Document with specified ID not found")
			return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentNotFound)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	return &document, nil
}

func (s *sqliteStore) Create(ctx context.Context, document *core.Document) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id": document.ID,
		"data_length": len(document.Data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, data, updated_at) VALUES (?, ?, ?)",
		document.ID, document.Data, time.Now())
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return err
	}
	log.Info("Document created successfully")
	return nil
}

func (s *sqliteStore) Save(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now())
	if err != nil {
		logrus.WithField("document_id", id).WithError(err).Error("Failed to save document")
		return err
	}
	return nil
}

// NoteStore implementation
func (s *sqliteStore) ListNotes(ctx context.Context, userID string) ([]*core.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, notebook, created_at, updated_at FROM notes WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []*core.Note{}
	for rows.Next() {
		var note core.Note
		note.UserID = userID
		if err := rows.Scan(&note.ID, &note.Title, &note.Notebook, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}

func (s *sqliteStore) GetNote(ctx context.Context, userID, id string) (*core.Note, error) {
	var note core.Note
	note.UserID = userID
	note.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT title, notebook, data, created_at, updated_at FROM notes WHERE user_id = ? AND id = ?",
		userID, id).
		Scan(&note.Title, &note.Notebook, &note.Data, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
		}
		return nil, err
	}
	return &note, nil
}

func (s *sqliteStore) SaveNote(ctx context.Context, note *core.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM notes WHERE user_id = ? AND id = ?", note.UserID, note.ID).Scan(&exists)

	now := time.Now()
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	if exists {
		// Update
		_, err = tx.ExecContext(ctx,
			"UPDATE notes SET title = ?, notebook = ?, data = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			note.Title, note.Notebook, note.Data, now, note.UserID, note.ID)
	} else {
		// Insert
		_, err = tx.ExecContext(ctx,
			"INSERT INTO notes (id, user_id, title, notebook, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			note.ID, note.UserID, note.Title, note.Notebook, note.Data, now, now)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) DeleteNote(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
	}
	return nil
}
