package blob

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/remarket/internal/db"
)

func TestNewKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	a := NewKey("items", at, 0)
	b := NewKey("items", at, 0)

	assert.True(t, strings.HasPrefix(a, "items/1700000000123_0_"), a)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotEqual(t, a, b)

	assert.True(t, strings.HasPrefix(NewKey("/", at, 2), "items/1700000000123_2_"))
}

func TestURLRoundTrip(t *testing.T) {
	u := URL("https://loja.example.com/", "items/1_0_x.jpg")
	assert.Equal(t, "https://loja.example.com/blobs/items/1_0_x.jpg", u)

	key, ok := KeyFromURL(u)
	assert.True(t, ok)
	assert.Equal(t, "items/1_0_x.jpg", key)

	_, ok = KeyFromURL("https://elsewhere.example.com/photo.jpg")
	assert.False(t, ok)
}

type progressLog struct {
	mu    sync.Mutex
	calls [][2]int64
}

func (p *progressLog) fn(done, total int64) {
	p.mu.Lock()
	p.calls = append(p.calls, [2]int64{done, total})
	p.mu.Unlock()
}

func (p *progressLog) assertComplete(t *testing.T, total int64) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.calls)
	var last int64 = -1
	for _, c := range p.calls {
		assert.GreaterOrEqual(t, c[0], last)
		assert.Equal(t, total, c[1])
		last = c[0]
	}
	assert.Equal(t, total, last)
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	data := bytes.Repeat([]byte{0xff, 0xd8, 0x01}, 2000)

	var progress progressLog
	u, err := s.Put(ctx, "items/test.jpg", data, "image/jpeg", progress.fn)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/blobs/items/test.jpg"), u)
	progress.assertComplete(t, int64(len(data)))

	got, mime, err := s.Get(ctx, "items/test.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/jpeg", mime)

	require.NoError(t, s.Delete(ctx, "items/test.jpg"))
	_, _, err = s.Get(ctx, "items/test.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, NewSQLiteStore(db.NewTestDB(t), ""))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("")
	m.ChunkSize = 512
	exerciseStore(t, m)
	assert.Zero(t, m.Len())
}

// Needs a JetStream-enabled NATS server; set REMARKET_TEST_NATS to enable.
func TestJetStreamStore(t *testing.T) {
	url := os.Getenv("REMARKET_TEST_NATS")
	if url == "" {
		t.Skip("REMARKET_TEST_NATS not set")
	}
	s, err := NewJetStreamStore(context.Background(), url, "remarket-test", "")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}
