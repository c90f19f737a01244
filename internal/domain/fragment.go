package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceType represents where a fragment was captured from
type SourceType string

const (
	SourceTypeQuickCapture SourceType = "quick_capture"
	SourceTypeZoom         SourceType = "zoom"
	SourceTypeTeams        SourceType = "teams"
	SourceTypeNotes        SourceType = "notes"
)

// Fragment represents a captured piece of working context
type Fragment struct {
	ID           string
	RawContent   string
	Summary      string // Filled in by background enrichment
	SourceType   SourceType
	SourceRef    string // Optional locator (URL, file path, channel ref)
	CapturedAt   time.Time
	Participants []string
	Topics       []string
	Project      string
}

// NewFragment creates a new Fragment instance
func NewFragment(
	id, rawContent string,
	sourceType SourceType,
	sourceRef, project string,
	participants, topics []string,
	capturedAt time.Time,
) *Fragment {
	// Nil slices would become SQL NULLs and JSON nulls downstream.
	if participants == nil {
		participants = []string{}
	}
	if topics == nil {
		topics = []string{}
	}
	return &Fragment{
		ID:           id,
		RawContent:   rawContent,
		Summary:      "",
		SourceType:   sourceType,
		SourceRef:    sourceRef,
		CapturedAt:   capturedAt,
		Participants: participants,
		Topics:       topics,
		Project:      project,
	}
}

// ValidateFragment validates a Fragment instance
func ValidateFragment(f *Fragment) error {
	if f == nil {
		return fmt.Errorf("fragment cannot be nil")
	}

	if f.ID == "" {
		return fmt.Errorf("fragment ID is required")
	}

	if strings.TrimSpace(f.RawContent) == "" {
		return fmt.Errorf("fragment RawContent is required")
	}

	if !isValidSourceType(f.SourceType) {
		return fmt.Errorf("fragment SourceType is invalid: %s", f.SourceType)
	}

	return nil
}

// isValidSourceType checks if a SourceType is valid
func isValidSourceType(s SourceType) bool {
	switch s {
	case SourceTypeQuickCapture, SourceTypeZoom, SourceTypeTeams, SourceTypeNotes:
		return true
	}
	return false
}
