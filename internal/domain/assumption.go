package domain

import (
	"fmt"
	"strings"
	"time"
)

// Validity represents the lifecycle state of an assumption. Unknown is the
// only non-terminal state; once an assumption is valid or invalid it stays
// that way.
type Validity string

const (
	ValidityUnknown Validity = "unknown"
	ValidityValid   Validity = "valid"
	ValidityInvalid Validity = "invalid"
)

// Assumption represents an assumption extracted from a fragment
type Assumption struct {
	ID            string
	FragmentID    string
	Statement     string
	Explicit      bool // Stated outright vs inferred from context
	Validity      Validity
	InvalidatedBy string // Fragment ID, set only while Validity is invalid
	CreatedAt     time.Time
}

// NewAssumption creates a new Assumption instance
func NewAssumption(
	id, fragmentID, statement string,
	explicit bool,
	createdAt time.Time,
) *Assumption {
	return &Assumption{
		ID:            id,
		FragmentID:    fragmentID,
		Statement:     statement,
		Explicit:      explicit,
		Validity:      ValidityUnknown,
		InvalidatedBy: "",
		CreatedAt:     createdAt,
	}
}

// ValidateAssumption validates an Assumption instance
func ValidateAssumption(a *Assumption) error {
	if a == nil {
		return fmt.Errorf("assumption cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("assumption ID is required")
	}

	if a.FragmentID == "" {
		return fmt.Errorf("assumption FragmentID is required")
	}

	if strings.TrimSpace(a.Statement) == "" {
		return fmt.Errorf("assumption Statement is required")
	}

	if !isValidValidity(a.Validity) {
		return fmt.Errorf("assumption Validity is invalid: %s", a.Validity)
	}

	if a.InvalidatedBy != "" && a.Validity != ValidityInvalid {
		return fmt.Errorf("assumption InvalidatedBy is only allowed when invalid")
	}

	return nil
}

// CanTransitionValidity reports whether an assumption may move between
// validity states. Only unknown -> valid and unknown -> invalid are allowed.
func CanTransitionValidity(from, to Validity) bool {
	if from != ValidityUnknown {
		return false
	}
	return to == ValidityValid || to == ValidityInvalid
}

// isValidValidity checks if a Validity is valid
func isValidValidity(v Validity) bool {
	switch v {
	case ValidityUnknown, ValidityValid, ValidityInvalid:
		return true
	}
	return false
}
