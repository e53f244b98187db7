// Package storage provides the SQL-backed journal store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soypete/voicejournal/pkg/database"
	"github.com/soypete/voicejournal/pkg/journal"
)

// sqliteTimeLayout is fixed width so created_at text sorts chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	appendSQL string
	bindTime  func(time.Time) any
}

var dialects = map[string]dialect{
	database.DriverPostgres: {
		appendSQL: `
			UPDATE journals
			SET document = jsonb_set(document, '{entries}', COALESCE(document->'entries', '[]'::jsonb) || jsonb_build_array($2::jsonb))
			WHERE id = $1
		`,
		bindTime: func(t time.Time) any { return t },
	},
	// SQLite numbers $name parameters by first appearance, so this statement uses ?N.
	database.DriverSQLite: {
		appendSQL: `
			UPDATE journals
			SET document = json_set(document, '$.entries', json_insert(COALESCE(json_extract(document, '$.entries'), '[]'), '$[#]', json(?2)))
			WHERE id = ?1
		`,
		bindTime: func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	},
}

const selectJournal = `SELECT id, created_at, document FROM journals`

// JournalStore keeps journal documents in the journals table.
type JournalStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ journal.Store = (*JournalStore)(nil)

// NewJournalStore creates a journal store. driver is a database/sql driver
// name, see database.DriverPostgres and database.DriverSQLite.
func NewJournalStore(db *sql.DB, driver string) (*JournalStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported journal store driver: %s", driver)
	}
	return &JournalStore{db: db, dialect: d, now: time.Now}, nil
}

// Create inserts a new journal seeded with item.
func (s *JournalStore) Create(ctx context.Context, item journal.Item) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()

	doc, err := journal.EncodeDocument(journal.FormatTime(now), []journal.Item{item})
	if err != nil {
		return "", fmt.Errorf("failed to encode journal: %w", err)
	}

	query := `INSERT INTO journals (id, created_at, document) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, id, s.dialect.bindTime(now), string(doc)); err != nil {
		return "", fmt.Errorf("failed to insert journal: %w", err)
	}

	return id, nil
}

// Append adds item to the journal's entries in a single statement.
func (s *JournalStore) Append(ctx context.Context, id string, item journal.Item) error {
	item.Metadata = journal.NormalizeMetadata(item.Metadata)
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode journal item: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.dialect.appendSQL, id, string(raw))
	if err != nil {
		return fmt.Errorf("failed to append journal item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return journal.ErrNotFound
	}

	return nil
}

// Get retrieves a journal by ID.
func (s *JournalStore) Get(ctx context.Context, id string) (*journal.Record, error) {
	row := s.db.QueryRowContext(ctx, selectJournal+` WHERE id = $1`, id)
	rec, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	return rec, nil
}

// Latest retrieves the most recently created journal.
func (s *JournalStore) Latest(ctx context.Context) (*journal.Record, error) {
	row := s.db.QueryRowContext(ctx, selectJournal+` ORDER BY created_at DESC, seq DESC LIMIT 1`)
	rec, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest journal: %w", err)
	}
	return rec, nil
}

// List retrieves up to limit journals, newest first.
func (s *JournalStore) List(ctx context.Context, limit int) ([]journal.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectJournal+` ORDER BY created_at DESC, seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	records := []journal.Record{}
	for rows.Next() {
		rec, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJournal(row rowScanner) (*journal.Record, error) {
	var (
		id        string
		createdAt scanTime
		doc       []byte
	)
	if err := row.Scan(&id, &createdAt, &doc); err != nil {
		return nil, err
	}
	return journal.DecodeDocument(id, createdAt.Time, doc)
}

// scanTime accepts created_at as a native timestamp (Postgres) or as the
// text form written by the SQLite dialect.
type scanTime struct {
	time.Time
}

func (t *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
}

func (t *scanTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse created_at %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}
