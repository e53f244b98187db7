package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// document is the stored JSON shape. Older documents kept a single item's
// fields at the top level instead of an entries array.
type document struct {
	Timestamp string          `json:"timestamp"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
	Entries   []Item          `json:"entries"`

	Transcription *string         `json:"transcription,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	AudioLength   *int            `json:"audioLength,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	AudioKey      string          `json:"audioKey,omitempty"`
}

// flat reports whether the document carries a top-level item. A document
// without entries is read as flat so every record keeps at least one item.
func (d *document) flat() bool {
	return d.Transcription != nil || d.AudioLength != nil ||
		d.Summary != "" || len(d.Metadata) > 0 || d.AudioKey != "" ||
		len(d.Entries) == 0
}

// EncodeDocument renders the stored body of a record. id and createdAt
// live outside the body.
func EncodeDocument(timestamp string, entries []Item) ([]byte, error) {
	normalized := make([]Item, len(entries))
	for i, it := range entries {
		normalized[i] = cloneItem(it)
	}
	return json.Marshal(document{Timestamp: timestamp, Entries: normalized})
}

// DecodeDocument turns a stored body into a Record. Flat documents become
// a record whose first entry carries the flat fields, followed by any
// entries appended later. A zero createdAt falls back to the document's
// own createdAt field when present.
func DecodeDocument(id string, createdAt time.Time, raw []byte) (*Record, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode journal %s: %w", id, err)
	}

	if createdAt.IsZero() && len(doc.CreatedAt) > 0 {
		var t time.Time
		if err := json.Unmarshal(doc.CreatedAt, &t); err == nil {
			createdAt = t
		}
	}

	entries := make([]Item, 0, len(doc.Entries)+1)
	if doc.flat() {
		item := Item{
			Timestamp: doc.Timestamp,
			Summary:   doc.Summary,
			Metadata:  NormalizeMetadata(doc.Metadata),
			AudioKey:  doc.AudioKey,
		}
		if doc.Transcription != nil {
			item.Transcription = *doc.Transcription
		}
		if doc.AudioLength != nil {
			item.AudioLength = *doc.AudioLength
		}
		entries = append(entries, item)
	}
	for _, it := range doc.Entries {
		entries = append(entries, cloneItem(it))
	}

	return &Record{
		ID:        id,
		CreatedAt: createdAt,
		Timestamp: doc.Timestamp,
		Entries:   entries,
	}, nil
}
