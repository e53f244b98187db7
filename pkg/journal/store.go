package journal

import "context"

// Store persists journal records. Implementations must make Append safe
// against concurrent appends to the same record.
type Store interface {
	// Create writes a new record whose entries hold only item and returns
	// its id.
	Create(ctx context.Context, item Item) (string, error)

	// Append adds item to the end of the record's entries. Returns
	// ErrNotFound when id does not exist.
	Append(ctx context.Context, id string, item Item) error

	// Get returns ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (*Record, error)

	// Latest returns the most recently created record, or ErrNotFound
	// when there are none.
	Latest(ctx context.Context) (*Record, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
}
