package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkKindConstants(t *testing.T) {
	tests := []struct {
		name     string
		kind     LinkKind
		expected string
	}{
		{"RelatesTo", LinkKindRelatesTo, "relates_to"},
		{"References", LinkKindReferences, "references"},
		{"Follows", LinkKindFollows, "follows"},
		{"Contradicts", LinkKindContradicts, "contradicts"},
		{"Invalidates", LinkKindInvalidates, "invalidates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.kind))
		})
	}
}

func TestValidateFragmentLink(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		link    *FragmentLink
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid link",
			link: &FragmentLink{
				ID:        "l1",
				SourceID:  "f1",
				TargetID:  "f2",
				Kind:      LinkKindRelatesTo,
				Strength:  0.8,
				CreatedAt: now,
			},
			wantErr: false,
		},
		{
			name: "self link",
			link: &FragmentLink{
				ID:        "l1",
				SourceID:  "f1",
				TargetID:  "f1",
				Kind:      LinkKindRelatesTo,
				Strength:  1.0,
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "own source",
		},
		{
			name: "invalid kind",
			link: &FragmentLink{
				ID:        "l1",
				SourceID:  "f1",
				TargetID:  "f2",
				Kind:      LinkKind("reminds_of"),
				Strength:  0.8,
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "Kind",
		},
		{
			name: "strength above range",
			link: &FragmentLink{
				ID:        "l1",
				SourceID:  "f1",
				TargetID:  "f2",
				Kind:      LinkKindRelatesTo,
				Strength:  1.5,
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "Strength",
		},
		{
			name: "strength below range",
			link: &FragmentLink{
				ID:        "l1",
				SourceID:  "f1",
				TargetID:  "f2",
				Kind:      LinkKindFollows,
				Strength:  -0.2,
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "Strength",
		},
		{
			name: "missing SourceID",
			link: &FragmentLink{
				ID:        "l1",
				TargetID:  "f2",
				Kind:      LinkKindRelatesTo,
				Strength:  0.8,
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "SourceID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFragmentLink(tt.link)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
