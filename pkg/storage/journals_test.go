package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypete/voicejournal/pkg/database"
	"github.com/soypete/voicejournal/pkg/journal"
)

func newSQLiteStore(t *testing.T) (*JournalStore, *database.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, &database.Config{Driver: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	store, err := NewJournalStore(db.DB, db.Driver())
	require.NoError(t, err)
	return store, db
}

func steppedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func item(text string, length int) journal.Item {
	return journal.Item{
		Timestamp:     "2024-01-01T00:00:00.000Z",
		Transcription: text,
		AudioLength:   length,
		Metadata:      json.RawMessage(`{"type":"test"}`),
	}
}

func TestNewJournalStoreUnknownDriver(t *testing.T) {
	_, err := NewJournalStore(nil, "mysql")
	assert.Error(t, err)
}

func TestSQLiteCreateGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	in := item("hello", 6)
	in.Summary = "- hello"
	id, err := store.Create(ctx, in)
	require.NoError(t, err)

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	require.Len(t, rec.Entries, 1)
	assert.Equal(t, "hello", rec.Entries[0].Transcription)
	assert.Equal(t, "- hello", rec.Entries[0].Summary)
	assert.Equal(t, 6, rec.Entries[0].AudioLength)
	assert.JSONEq(t, `{"type":"test"}`, string(rec.Entries[0].Metadata))
}

func TestSQLiteGetMissing(t *testing.T) {
	store, _ := newSQLiteStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestSQLiteAppend(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	id, err := store.Create(ctx, item("one", 1))
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, id, item("two", 2)))

	noMeta := item("three", 3)
	noMeta.Metadata = nil
	require.NoError(t, store.Append(ctx, id, noMeta))

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, rec.Entries, 3)
	assert.Equal(t, "one", rec.Entries[0].Transcription)
	assert.Equal(t, "two", rec.Entries[1].Transcription)
	assert.Equal(t, "three", rec.Entries[2].Transcription)
	assert.Equal(t, `{}`, string(rec.Entries[2].Metadata))
}

func TestSQLiteAppendMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	err := store.Append(ctx, "ghost", item("x", 1))
	assert.ErrorIs(t, err, journal.ErrNotFound)

	recs, err := store.List(ctx, journal.ListLimit)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteLatestAndList(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)
	store.now = steppedClock()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, journal.ErrNotFound)

	var ids []string
	for i := 0; i < 55; i++ {
		id, err := store.Create(ctx, item(fmt.Sprintf("n%d", i), i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[54], latest.ID)

	recs, err := store.List(ctx, journal.ListLimit)
	require.NoError(t, err)
	require.Len(t, recs, journal.ListLimit)
	assert.Equal(t, ids[54], recs[0].ID)
	assert.Equal(t, ids[5], recs[49].ID)
}

func TestSQLiteLatestSameInstant(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	_, err := store.Create(ctx, item("a", 1))
	require.NoError(t, err)
	second, err := store.Create(ctx, item("b", 1))
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
}

func TestSQLiteLegacyDocument(t *testing.T) {
	ctx := context.Background()
	store, db := newSQLiteStore(t)

	_, err := db.ExecContext(ctx,
		`INSERT INTO journals (id, created_at, document) VALUES ($1, $2, $3)`,
		"legacy-1", "2023-01-01T00:00:00.000000000Z",
		`{"timestamp":"2023-01-01T00:00:00.000Z","transcription":"old","audioLength":9,"metadata":{"type":"journal"}}`,
	)
	require.NoError(t, err)

	rec, err := store.Get(ctx, "legacy-1")
	require.NoError(t, err)
	require.Len(t, rec.Entries, 1)
	assert.Equal(t, "old", rec.Entries[0].Transcription)
	assert.Equal(t, 9, rec.Entries[0].AudioLength)

	require.NoError(t, store.Append(ctx, "legacy-1", item("new", 2)))

	rec, err = store.Get(ctx, "legacy-1")
	require.NoError(t, err)
	require.Len(t, rec.Entries, 2)
	assert.Equal(t, "old", rec.Entries[0].Transcription)
	assert.Equal(t, "new", rec.Entries[1].Transcription)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestSQLiteConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	id, err := store.Create(ctx, item("seed", 0))
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- store.Append(ctx, id, item(fmt.Sprintf("w%d", n), n))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, rec.Entries, writers+1)
}
