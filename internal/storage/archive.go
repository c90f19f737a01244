package storage

import (
	"context"
	"path"
	"strings"
)

const transcriptPrefix = "transcripts"

// ObjectStore is the slice of S3Client the archive needs
type ObjectStore interface {
	PutObject(ctx context.Context, key string, contentType string, body []byte) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TranscriptArchive keeps the original raw capture in object storage under a
// per-fragment prefix, so the source file survives edits and deletions on the
// machine it was captured from.
type TranscriptArchive struct {
	store ObjectStore
}

// NewTranscriptArchive creates a TranscriptArchive backed by the given store
func NewTranscriptArchive(store ObjectStore) *TranscriptArchive {
	return &TranscriptArchive{store: store}
}

// Store writes the capture under transcripts/{fragmentID}/{filename} and
// returns the object key.
func (a *TranscriptArchive) Store(ctx context.Context, fragmentID string, filename string, content []byte) (string, error) {
	key := path.Join(transcriptPrefix, fragmentID, filename)
	if err := a.store.PutObject(ctx, key, contentTypeFor(filename), content); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes every archived object for the fragment
func (a *TranscriptArchive) Remove(ctx context.Context, fragmentID string) error {
	return a.store.DeletePrefix(ctx, transcriptPrefix+"/"+fragmentID+"/")
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".vtt":
		return "text/vtt"
	case ".md":
		return "text/markdown"
	default:
		return "text/plain; charset=utf-8"
	}
}
