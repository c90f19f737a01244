package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Cursor marks a position in a result set ordered by (captured_at, id)
// descending. Listing resumes strictly after this position.
type Cursor struct {
	LastID     string    `json:"last_id"`
	CapturedAt time.Time `json:"captured_at"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates an opaque base64 cursor from the last item of a page.
func EncodeCursor(lastID string, capturedAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw, err := json.Marshal(Cursor{LastID: lastID, CapturedAt: capturedAt.UTC()})
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor produced by EncodeCursor.
// An empty cursor decodes to nil, meaning "start from the beginning".
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.LastID == "" || c.CapturedAt.IsZero() {
		return nil, ErrInvalidCursor
	}

	return &c, nil
}
