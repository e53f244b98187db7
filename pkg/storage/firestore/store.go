// Package firestore keeps journal documents in a Cloud Firestore collection.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	fs "cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/soypete/voicejournal/pkg/journal"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "journalEntries"

const datastoreScope = "https://www.googleapis.com/auth/datastore"

type Config struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Collection      string `json:"collection" yaml:"collection"`
}

// Store implements journal.Store on Firestore. createdAt is assigned by
// the server and appends use an atomic array union.
type Store struct {
	client     *fs.Client
	collection string
}

var _ journal.Store = (*Store)(nil)

// New connects to Firestore. With no credentials file the client falls
// back to application default credentials, or to the emulator when
// FIRESTORE_EMULATOR_HOST is set.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	client, err := fs.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return NewFromClient(client, cfg.Collection), nil
}

func NewFromClient(client *fs.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Create(ctx context.Context, item journal.Item) (string, error) {
	entry, err := itemToMap(item)
	if err != nil {
		return "", err
	}

	ref := s.client.Collection(s.collection).NewDoc()
	_, err = ref.Create(ctx, map[string]any{
		"timestamp": journal.FormatTime(time.Now()),
		"createdAt": fs.ServerTimestamp,
		"entries":   []any{entry},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create journal: %w", err)
	}

	return ref.ID, nil
}

func (s *Store) Append(ctx context.Context, id string, item journal.Item) error {
	entry, err := itemToMap(item)
	if err != nil {
		return err
	}

	_, err = s.client.Collection(s.collection).Doc(id).Update(ctx, []fs.Update{
		{Path: "entries", Value: fs.ArrayUnion(entry)},
	})
	if status.Code(err) == codes.NotFound {
		return journal.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to append to journal %s: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*journal.Record, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal %s: %w", id, err)
	}
	return decodeSnapshot(snap)
}

func (s *Store) Latest(ctx context.Context) (*journal.Record, error) {
	recs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, journal.ErrNotFound
	}
	return &recs[0], nil
}

func (s *Store) List(ctx context.Context, limit int) ([]journal.Record, error) {
	iter := s.client.Collection(s.collection).
		OrderBy("createdAt", fs.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	records := []journal.Record{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list journals: %w", err)
		}
		rec, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func decodeSnapshot(snap *fs.DocumentSnapshot) (*journal.Record, error) {
	return decodeData(snap.Ref.ID, snap.Data(), snap.CreateTime)
}

// decodeData runs a document's fields through the shared legacy-aware
// decoder. fallback is used when the document carries no usable createdAt.
func decodeData(id string, data map[string]any, fallback time.Time) (*journal.Record, error) {
	var createdAt time.Time
	if t, ok := data["createdAt"].(time.Time); ok {
		createdAt = t.UTC()
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode journal %s: %w", id, err)
	}

	rec, err := journal.DecodeDocument(id, createdAt, raw)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = fallback.UTC()
	}
	return rec, nil
}

// itemToMap converts an item to Firestore fields. Metadata is stored as a
// native map rather than bytes so it stays queryable.
func itemToMap(item journal.Item) (map[string]any, error) {
	var metadata any
	if err := json.Unmarshal(journal.NormalizeMetadata(item.Metadata), &metadata); err != nil {
		return nil, fmt.Errorf("invalid item metadata: %w", err)
	}

	m := map[string]any{
		"timestamp":     item.Timestamp,
		"transcription": item.Transcription,
		"audioLength":   item.AudioLength,
		"metadata":      metadata,
	}
	if item.Summary != "" {
		m["summary"] = item.Summary
	}
	if item.AudioKey != "" {
		m["audioKey"] = item.AudioKey
	}
	return m, nil
}
