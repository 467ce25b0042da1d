package filesystem

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"studyhall/core"
)

func TestDocument_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	if err := s.Save(ctx, "doc1", []byte(`"state"`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	doc, err := s.FindID(ctx, "doc1")
	if err != nil {
		t.Fatalf("FindID failed: %v", err)
	}
	if !bytes.Equal(doc.Data, []byte(`"state"`)) {
		t.Errorf("Data = %q, want %q", doc.Data, `"state"`)
	}
	if doc.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not derived from file mtime")
	}
}

func TestFindID_NotFound(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.FindID(context.Background(), "missing")
	if !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestFindID_RejectsPathEscapes(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, id := range []string{"", ".", "..", "../doc", "a/b"} {
		if _, err := s.FindID(context.Background(), id); err == nil {
			t.Errorf("id %q accepted, want rejection", id)
		}
	}
}

func TestSave_RejectsPathEscapes(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Save(context.Background(), "../escape", []byte(`{}`)); err == nil {
		t.Error("path-escaping id accepted on save")
	}
}

func TestNote_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	note := &core.Note{ID: "n1", UserID: "alice", Title: "Algebra", Notebook: "math", Data: []byte(`{"body":"x"}`)}
	if err := s.SaveNote(ctx, note); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}

	got, err := s.GetNote(ctx, "alice", "n1")
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Title != "Algebra" || got.Notebook != "math" {
		t.Errorf("got %+v, want title Algebra in notebook math", got)
	}
	if !bytes.Equal(got.Data, note.Data) {
		t.Errorf("Data = %q, want %q", got.Data, note.Data)
	}
}

func TestListNotes_OmitsBodyAndSkipsGarbage(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	if err := s.SaveNote(ctx, &core.Note{ID: "n1", UserID: "alice", Title: "t", Data: []byte(`{"big":"body"}`)}); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}

	notes, err := s.ListNotes(ctx, "alice")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Data != nil {
		t.Errorf("list entries must not carry the note body, got %q", notes[0].Data)
	}
}

func TestListNotes_EmptyForUnknownUser(t *testing.T) {
	s := NewStore(t.TempDir())

	notes, err := s.ListNotes(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("expected no notes, got %d", len(notes))
	}
}

func TestSaveNote_UpdateKeepsCreatedAt(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	if err := s.SaveNote(ctx, &core.Note{ID: "n1", UserID: "alice", Title: "v1", Data: []byte(`{}`)}); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}
	first, err := s.GetNote(ctx, "alice", "n1")
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}

	if err := s.SaveNote(ctx, &core.Note{ID: "n1", UserID: "alice", Title: "v2", Data: []byte(`{}`)}); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}
	second, err := s.GetNote(ctx, "alice", "n1")
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}

	if second.Title != "v2" {
		t.Errorf("Title = %q, want v2", second.Title)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestDeleteNote_MissingIsSuccess(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	if err := s.SaveNote(ctx, &core.Note{ID: "n1", UserID: "alice", Data: []byte(`{}`)}); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}
	if err := s.DeleteNote(ctx, "alice", "n1"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	// Deleting a note that is already gone is not an error here; the file
	// being absent is the desired end state.
	if err := s.DeleteNote(ctx, "alice", "n1"); err != nil {
		t.Errorf("second delete returned %v, want nil", err)
	}
	if _, err := s.GetNote(ctx, "alice", "n1"); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound after delete, got %v", err)
	}
}
