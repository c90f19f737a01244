package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecision(t *testing.T) {
	now := time.Now()
	decision := NewDecision(
		"d1",
		"f1",
		"Use Postgres for the job queue",
		"Already operated in prod, no new moving parts",
		0.9,
		now,
	)

	assert.Equal(t, "d1", decision.ID)
	assert.Equal(t, "f1", decision.FragmentID)
	assert.Equal(t, "Use Postgres for the job queue", decision.What)
	assert.Equal(t, "Already operated in prod, no new moving parts", decision.Why)
	assert.Equal(t, 0.9, decision.Confidence)
	assert.Equal(t, now, decision.CreatedAt)
}

func TestValidateDecision(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		decision *Decision
		wantErr  bool
		errMsg   string
	}{
		{
			name: "valid decision",
			decision: &Decision{
				ID:         "d1",
				FragmentID: "f1",
				What:       "Use Postgres",
				Why:        "fewer moving parts",
				Confidence: 0.85,
				CreatedAt:  now,
			},
			wantErr: false,
		},
		{
			name: "empty what survives validation",
			decision: &Decision{
				ID:         "d1",
				FragmentID: "f1",
				What:       "",
				Why:        "model omitted the summary",
				Confidence: 0.9,
				CreatedAt:  now,
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			decision: &Decision{
				FragmentID: "f1",
				What:       "Use Postgres",
				Confidence: 0.85,
				CreatedAt:  now,
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing FragmentID",
			decision: &Decision{
				ID:         "d1",
				What:       "Use Postgres",
				Confidence: 0.85,
				CreatedAt:  now,
			},
			wantErr: true,
			errMsg:  "FragmentID",
		},
		{
			name: "confidence above range",
			decision: &Decision{
				ID:         "d1",
				FragmentID: "f1",
				What:       "Use Postgres",
				Confidence: 1.2,
				CreatedAt:  now,
			},
			wantErr: true,
			errMsg:  "Confidence",
		},
		{
			name: "confidence below range",
			decision: &Decision{
				ID:         "d1",
				FragmentID: "f1",
				What:       "Use Postgres",
				Confidence: -0.1,
				CreatedAt:  now,
			},
			wantErr: true,
			errMsg:  "Confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecision(tt.decision)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
