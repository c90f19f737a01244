package domain

import (
	"fmt"
	"time"
)

// Decision represents a decision extracted from a fragment. Decisions are
// immutable once stored; there is no update operation.
type Decision struct {
	ID         string
	FragmentID string
	What       string
	Why        string
	Confidence float64
	CreatedAt  time.Time
}

// NewDecision creates a new Decision instance
func NewDecision(
	id, fragmentID, what, why string,
	confidence float64,
	createdAt time.Time,
) *Decision {
	return &Decision{
		ID:         id,
		FragmentID: fragmentID,
		What:       what,
		Why:        why,
		Confidence: confidence,
		CreatedAt:  createdAt,
	}
}

// ValidateDecision validates a Decision instance
func ValidateDecision(d *Decision) error {
	if d == nil {
		return fmt.Errorf("decision cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("decision ID is required")
	}

	if d.FragmentID == "" {
		return fmt.Errorf("decision FragmentID is required")
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision Confidence must be between 0 and 1, got %f", d.Confidence)
	}

	return nil
}
