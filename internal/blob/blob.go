// Package blob stores item photos and hands out their public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("blob not found")

// PathPrefix is where blobs are served.
const PathPrefix = "/blobs/"

// ProgressFunc receives the number of bytes written so far and the total.
type ProgressFunc func(done, total int64)

// Store is a key/value store for binary objects.
type Store interface {
	// Put writes data under key, reporting progress while bytes are written,
	// and returns the public URL of the object.
	Put(ctx context.Context, key string, data []byte, mime string, progress ProgressFunc) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a key that cannot collide across uploads: a millisecond
// timestamp, the file's position in its batch and a random suffix. The
// user's file name is never part of it.
func NewKey(prefix string, at time.Time, index int) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "items"
	}
	return fmt.Sprintf("%s/%d_%d_%s.jpg", prefix, at.UnixMilli(), index, uuid.NewString())
}

// URL returns the public URL of key under baseURL.
func URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + PathPrefix + key
}

// KeyFromURL extracts the key from a URL produced by URL. It reports false
// for URLs that do not point at a blob.
func KeyFromURL(u string) (string, bool) {
	i := strings.Index(u, PathPrefix)
	if i < 0 {
		return "", false
	}
	key := u[i+len(PathPrefix):]
	return key, key != ""
}

func report(progress ProgressFunc, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}
