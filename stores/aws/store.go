package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"studyhall/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	s3Client := s3.NewFromConfig(cfg)

	return &s3Store{
		s3Client: s3Client,
		bucket:   bucketName,
	}
}

// safeKey rejects ids that are not plain names, preventing key traversal.
func safeKey(id string) error {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return fmt.Errorf("invalid id %q: must be a plain name", id)
	}
	return nil
}

func documentKey(id string) string { return path.Join("documents", id) }

func noteKey(userID, id string) string { return path.Join("notes", userID, id) }

// DocumentStore implementation
func (s *s3Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	if err := safeKey(id); err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(documentKey(id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to get document with id %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %v", err)
	}

	document := core.Document{ID: id, Data: data}
	if resp.LastModified != nil {
		document.UpdatedAt = *resp.LastModified
	}
	return &document, nil
}

func (s *s3Store) Create(ctx context.Context, document *core.Document) error {
	return s.Save(ctx, document.ID, document.Data)
}

func (s *s3Store) Save(ctx context.Context, id string, data []byte) error {
	if err := safeKey(id); err != nil {
		return err
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(documentKey(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %v", id, err)
	}
	return nil
}

// NoteStore implementation
func (s *s3Store) ListNotes(ctx context.Context, userID string) ([]*core.Note, error) {
	if err := safeKey(userID); err != nil {
		return nil, err
	}
	prefix := path.Join("notes", userID) + "/"
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for user %s: %v", userID, err)
	}

	notes := make([]*core.Note, 0, len(output.Contents))
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var note core.Note
		if err := json.Unmarshal(data, &note); err != nil {
			log.Printf("warn: failed to unmarshal note %s: %v", *object.Key, err)
			continue
		}

		// List views carry metadata only.
		note.Data = nil
		notes = append(notes, &note)
	}

	return notes, nil
}

func (s *s3Store) GetNote(ctx context.Context, userID, id string) (*core.Note, error) {
	if err := safeKey(userID); err != nil {
		return nil, err
	}
	if err := safeKey(id); err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(noteKey(userID, id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("note %s for user %s: %w", id, userID, core.ErrNoteNotFound)
		}
		return nil, fmt.Errorf("failed to get note %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read note data: %v", err)
	}

	var note core.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, fmt.Errorf("failed to unmarshal note data: %v", err)
	}
	return &note, nil
}

func (s *s3Store) SaveNote(ctx context.Context, note *core.Note) error {
	if err := safeKey(note.UserID); err != nil {
		return err
	}
	if err := safeKey(note.ID); err != nil {
		return err
	}

	// Preserve CreatedAt on update
	if note.CreatedAt.IsZero() {
		existing, err := s.GetNote(ctx, note.UserID, note.ID)
		if err == nil && existing != nil {
			note.CreatedAt = existing.CreatedAt
		} else {
			note.CreatedAt = time.Now()
		}
	}
	note.UpdatedAt = time.Now()

	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal note: %v", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(noteKey(note.UserID, note.ID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save note %s: %v", note.ID, err)
	}
	return nil
}

func (s *s3Store) DeleteNote(ctx context.Context, userID, id string) error {
	if err := safeKey(userID); err != nil {
		return err
	}
	if err := safeKey(id); err != nil {
		return err
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(noteKey(userID, id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %v", id, err)
	}
	return nil
}
