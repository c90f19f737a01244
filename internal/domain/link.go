package domain

import (
	"fmt"
	"time"
)

// LinkKind represents the relationship between two fragments
type LinkKind string

const (
	LinkKindRelatesTo   LinkKind = "relates_to"
	LinkKindReferences  LinkKind = "references"
	LinkKindFollows     LinkKind = "follows"
	LinkKindContradicts LinkKind = "contradicts"
	LinkKindInvalidates LinkKind = "invalidates"
)

// FragmentLink represents a directed, weighted edge between two fragments.
// At most one link exists per (source, target, kind) triple; re-linking the
// same triple replaces the strength and keeps the original row.
type FragmentLink struct {
	ID        string
	SourceID  string
	TargetID  string
	Kind      LinkKind
	Strength  float64
	CreatedAt time.Time
}

// NewFragmentLink creates a new FragmentLink instance
func NewFragmentLink(
	id, sourceID, targetID string,
	kind LinkKind,
	strength float64,
	createdAt time.Time,
) *FragmentLink {
	return &FragmentLink{
		ID:        id,
		SourceID:  sourceID,
		TargetID:  targetID,
		Kind:      kind,
		Strength:  strength,
		CreatedAt: createdAt,
	}
}

// ValidateFragmentLink validates a FragmentLink instance
func ValidateFragmentLink(l *FragmentLink) error {
	if l == nil {
		return fmt.Errorf("fragment link cannot be nil")
	}

	if l.ID == "" {
		return fmt.Errorf("fragment link ID is required")
	}

	if l.SourceID == "" {
		return fmt.Errorf("fragment link SourceID is required")
	}

	if l.TargetID == "" {
		return fmt.Errorf("fragment link TargetID is required")
	}

	if l.SourceID == l.TargetID {
		return fmt.Errorf("fragment link cannot point at its own source")
	}

	if !isValidLinkKind(l.Kind) {
		return fmt.Errorf("fragment link Kind is invalid: %s", l.Kind)
	}

	if l.Strength < 0 || l.Strength > 1 {
		return fmt.Errorf("fragment link Strength must be between 0 and 1, got %f", l.Strength)
	}

	return nil
}

// isValidLinkKind checks if a LinkKind is valid
func isValidLinkKind(k LinkKind) bool {
	switch k {
	case LinkKindRelatesTo, LinkKindReferences, LinkKindFollows,
		LinkKindContradicts, LinkKindInvalidates:
		return true
	}
	return false
}
