package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Tracker remembers which files have been ingested so watched folders can
// be swept repeatedly without duplicating fragments. Entries are keyed by
// file name plus a content hash, so an edited file counts as new while a
// renamed-back or re-delivered copy does not.
type Tracker struct {
	path      string
	processed map[string]struct{}
}

type trackerState struct {
	Processed []string `json:"processed"`
}

// NewTracker loads the tracker state at path. A missing or unreadable
// state file starts the tracker empty.
func NewTracker(path string) *Tracker {
	t := &Tracker{
		path:      path,
		processed: make(map[string]struct{}),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var state trackerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return t
	}
	for _, entry := range state.Processed {
		t.processed[entry] = struct{}{}
	}
	return t
}

// IsProcessed reports whether the file's current content has already been
// ingested.
func (t *Tracker) IsProcessed(path string) (bool, error) {
	entry, err := t.entry(path)
	if err != nil {
		return false, err
	}
	_, ok := t.processed[entry]
	return ok, nil
}

// MarkProcessed records the file's current content as ingested and
// persists the tracker state.
func (t *Tracker) MarkProcessed(path string) error {
	entry, err := t.entry(path)
	if err != nil {
		return err
	}
	t.processed[entry] = struct{}{}
	return t.save()
}

// Clear forgets all processed files.
func (t *Tracker) Clear() error {
	t.processed = make(map[string]struct{})
	return t.save()
}

func (t *Tracker) entry(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	return filepath.Base(path) + ":" + hex.EncodeToString(sum[:])[:16], nil
}

func (t *Tracker) save() error {
	entries := make([]string, 0, len(t.processed))
	for entry := range t.processed {
		entries = append(entries, entry)
	}
	sort.Strings(entries)

	raw, err := json.MarshalIndent(trackerState{Processed: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracker state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create tracker directory: %w", err)
	}
	if err := os.WriteFile(t.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write tracker state: %w", err)
	}
	return nil
}
