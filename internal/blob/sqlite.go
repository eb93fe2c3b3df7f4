package blob

import (
	"context"
	"database/sql"

	"github.com/erazemk/remarket/internal/store"
)

// SQLiteStore keeps blobs in the blobs table of the main database.
type SQLiteStore struct {
	db      *sql.DB
	baseURL string
}

// NewSQLiteStore creates a store whose URLs are rooted at baseURL (may be
// empty for relative URLs).
func NewSQLiteStore(db *sql.DB, baseURL string) *SQLiteStore {
	return &SQLiteStore{db: db, baseURL: baseURL}
}

// Put writes data in a single statement, so progress jumps from zero to
// complete once the row is stored.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte, mime string, progress ProgressFunc) (string, error) {
	total := int64(len(data))
	report(progress, 0, total)

	if err := store.PutBlob(ctx, s.db, key, data, mime); err != nil {
		return "", err
	}

	report(progress, total, total)
	return URL(s.baseURL, key), nil
}

// Get returns the data and MIME type of key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, mime, err := store.GetBlob(ctx, s.db, key)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", ErrNotFound
	}
	return data, mime, nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return store.DeleteBlob(ctx, s.db, key)
}
