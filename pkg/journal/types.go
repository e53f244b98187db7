// Package journal holds the journal record model, the Store contract and
// the Service that turns audio submissions into journal items.
package journal

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimeLayout is the ISO-8601 layout used for record and item timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ListLimit is the page size used by Service.List.
const ListLimit = 50

// Record is one journal document. Entries only ever grows.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Timestamp string    `json:"timestamp"`
	Entries   []Item    `json:"entries"`
}

// Item is a single transcribed submission inside a Record.
type Item struct {
	Timestamp     string          `json:"timestamp"`
	Transcription string          `json:"transcription"`
	Summary       string          `json:"summary,omitempty"`
	AudioLength   int             `json:"audioLength"`
	Metadata      json.RawMessage `json:"metadata"`
	AudioKey      string          `json:"audioKey,omitempty"`
}

// FormatTime renders t in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

var emptyObject = json.RawMessage(`{}`)

// NormalizeMetadata returns raw unchanged unless it is absent or JSON
// null, in which case it returns an empty object.
func NormalizeMetadata(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return append(json.RawMessage(nil), emptyObject...)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneItem(it Item) Item {
	it.Metadata = NormalizeMetadata(it.Metadata)
	return it
}

func cloneRecord(r *Record) *Record {
	out := *r
	out.Entries = make([]Item, len(r.Entries))
	for i, it := range r.Entries {
		out.Entries[i] = cloneItem(it)
	}
	return &out
}
