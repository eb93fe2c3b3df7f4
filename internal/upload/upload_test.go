package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/remarket/internal/blob"
)

func photo(t *testing.T, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return File{Name: "photo.jpg", Data: buf.Bytes()}
}

type percentLog struct {
	mu     sync.Mutex
	values []int
}

func (p *percentLog) add(v int) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func TestUploadKeepsOrder(t *testing.T) {
	store := blob.NewMemoryStore("")
	store.ChunkSize = 256
	o := New(store, Config{MaxImages: 3})

	var log percentLog
	urls, err := o.Upload(context.Background(), []string{"/blobs/items/old.jpg"},
		[]File{photo(t, 64, 64), photo(t, 80, 40)}, log.add)
	require.NoError(t, err)

	require.Len(t, urls, 3)
	assert.Equal(t, "/blobs/items/old.jpg", urls[0])
	assert.Contains(t, urls[1], "_0_")
	assert.Contains(t, urls[2], "_1_")
	assert.Equal(t, 2, store.Len())

	require.NotEmpty(t, log.values)
	assert.Equal(t, 0, log.values[0], "progress starts at 0")
	for i := 1; i < len(log.values); i++ {
		assert.Greater(t, log.values[i], log.values[i-1])
	}
	assert.Equal(t, 100, log.values[len(log.values)-1])
}

func TestUploadRejectsTooManyFiles(t *testing.T) {
	store := blob.NewMemoryStore("")
	o := New(store, Config{MaxImages: 3})

	_, err := o.Upload(context.Background(), []string{"a", "b"},
		[]File{photo(t, 8, 8), photo(t, 8, 8)}, nil)

	var slotErr *SlotError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, 1, slotErr.Accepted)
	assert.Equal(t, 2, slotErr.Requested)
	assert.Zero(t, store.Len(), "nothing is uploaded")
}

func TestUploadNoFiles(t *testing.T) {
	o := New(blob.NewMemoryStore(""), Config{})
	urls, err := o.Upload(context.Background(), []string{"a"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, urls)
}

func TestUploadFailureFailsEverything(t *testing.T) {
	store := blob.NewMemoryStore("")
	boom := errors.New("network down")
	store.FailWith = func(key string) error {
		if strings.Contains(key, "_1_") {
			return boom
		}
		return nil
	}
	o := New(store, Config{Concurrency: 1})

	urls, err := o.Upload(context.Background(), nil, []File{photo(t, 16, 16), photo(t, 16, 16)}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, urls)
	assert.Zero(t, store.Len(), "photos of a failed batch are removed")
}

func TestUploadRejectsNonImages(t *testing.T) {
	store := blob.NewMemoryStore("")
	o := New(store, Config{})

	_, err := o.Upload(context.Background(), nil, []File{{Name: "notes.txt", Data: []byte("hello")}}, nil)
	assert.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestProgressAggregation(t *testing.T) {
	var log percentLog
	p := NewProgress(2, log.add)

	p.Update(0, 50, 100)  // 50 + 0 -> 25
	p.Update(1, 100, 100) // 50 + 100 -> 75
	p.Update(0, 40, 100)  // goes backwards, ignored
	p.Update(0, 99, 100)  // 99 + 100 -> 99
	p.Update(0, 100, 100) // 100

	assert.Equal(t, []int{0, 25, 75, 99, 100}, log.values)
	assert.Equal(t, 100, p.Percent())
}

func TestProgressEmptyFileCountsAsDone(t *testing.T) {
	var log percentLog
	p := NewProgress(1, log.add)
	p.Update(0, 0, 0)
	assert.Equal(t, []int{0, 100}, log.values)
}

func TestProgressStartsAtZero(t *testing.T) {
	var log percentLog
	p := NewProgress(2, log.add)
	assert.Equal(t, []int{0}, log.values)
	assert.Zero(t, p.Percent())

	p.Update(0, 0, 100)
	assert.Equal(t, []int{0}, log.values, "no repeated 0")
}
