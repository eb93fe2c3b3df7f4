package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamStore keeps blobs in a NATS JetStream object store bucket.
type JetStreamStore struct {
	conn    *nats.Conn
	store   jetstream.ObjectStore
	baseURL string
}

// NewJetStreamStore connects to natsURL and opens bucket, creating it if it
// does not exist.
func NewJetStreamStore(ctx context.Context, natsURL, bucket, baseURL string) (*JetStreamStore, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	obj, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		obj, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Item photos",
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening object store %s: %w", bucket, err)
	}

	return &JetStreamStore{conn: conn, store: obj, baseURL: baseURL}, nil
}

// countingReader reports progress as the object store consumes it.
type countingReader struct {
	r        io.Reader
	done     int64
	total    int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.done += int64(n)
		// The last chunk is reported after the put is acknowledged.
		if c.done < c.total {
			report(c.progress, c.done, c.total)
		}
	}
	return n, err
}

// Put streams data into the bucket.
func (s *JetStreamStore) Put(ctx context.Context, key string, data []byte, mime string, progress ProgressFunc) (string, error) {
	total := int64(len(data))
	report(progress, 0, total)

	meta := jetstream.ObjectMeta{
		Name: key,
		Headers: nats.Header{
			"Content-Type": []string{mime},
		},
	}
	r := &countingReader{r: bytes.NewReader(data), total: total, progress: progress}
	if _, err := s.store.Put(ctx, meta, r); err != nil {
		return "", fmt.Errorf("storing object: %w", err)
	}

	report(progress, total, total)
	return URL(s.baseURL, key), nil
}

// Get returns the object data and its Content-Type.
func (s *JetStreamStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	result, err := s.store.Get(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting object: %w", err)
	}
	defer result.Close()

	data, err := io.ReadAll(result)
	if err != nil {
		return nil, "", fmt.Errorf("reading object data: %w", err)
	}

	info, err := result.Info()
	if err != nil {
		return nil, "", fmt.Errorf("getting object info: %w", err)
	}
	return data, contentType(info.Headers), nil
}

// Delete removes an object. Missing objects are not an error.
func (s *JetStreamStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *JetStreamStore) Close() {
	s.conn.Close()
}

func contentType(h nats.Header) string {
	if h != nil {
		if ct := h.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
