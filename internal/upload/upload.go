// Package upload compresses and uploads the photos of an item.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/remarket/internal/blob"
	"github.com/erazemk/remarket/internal/imaging"
	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
)

// DefaultConcurrency bounds parallel uploads when Config leaves it at zero.
const DefaultConcurrency = 3

// File is one photo selected by the user.
type File struct {
	Name string
	Data []byte
}

// SlotError is returned when more photos are selected than the item has
// room for. Nothing is uploaded.
type SlotError struct {
	Accepted  int
	Requested int
}

func (e *SlotError) Error() string {
	if e.Accepted == 0 {
		return fmt.Sprintf("no more photos allowed, %d selected", e.Requested)
	}
	return fmt.Sprintf("only %d more photos allowed, %d selected", e.Accepted, e.Requested)
}

// Config controls the orchestrator.
type Config struct {
	MaxImages   int
	Concurrency int
	Imaging     imaging.Options
	KeyPrefix   string
}

// Orchestrator turns selected files into stored photo URLs.
type Orchestrator struct {
	store blob.Store
	cfg   Config
	now   func() time.Time
}

// New creates an orchestrator that writes to store.
func New(store blob.Store, cfg Config) *Orchestrator {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = model.DefaultMaxImages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "items"
	}
	return &Orchestrator{store: store, cfg: cfg, now: time.Now}
}

// Upload compresses and uploads files and returns retained followed by the
// new URLs in selection order. onProgress receives the overall percentage.
// If anything fails the whole upload fails and the photos already written
// are removed.
func (o *Orchestrator) Upload(ctx context.Context, retained []string, files []File, onProgress func(percent int)) ([]string, error) {
	if free := o.cfg.MaxImages - len(retained); len(files) > free {
		return nil, &SlotError{Accepted: max(free, 0), Requested: len(files)}
	}

	urls := append([]string{}, retained...)
	if len(files) == 0 {
		return urls, nil
	}

	start := time.Now()
	compressed := make([]*imaging.Result, len(files))
	for i, f := range files {
		res, err := imaging.Process(bytes.NewReader(f.Data), o.cfg.Imaging)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("compressing %s: %w", f.Name, err)
		}
		compressed[i] = res
	}

	progress := NewProgress(len(files), onProgress)
	at := o.now()
	keys := make([]string, len(files))
	uploaded := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, res := range compressed {
		keys[i] = blob.NewKey(o.cfg.KeyPrefix, at, i)
		g.Go(func() error {
			u, err := o.store.Put(gctx, keys[i], res.Data, res.MIME, func(done, total int64) {
				progress.Update(i, done, total)
			})
			if err != nil {
				return fmt.Errorf("uploading %s: %w", files[i].Name, err)
			}
			uploaded[i] = u
			metrics.UploadBytesTotal.Add(float64(len(res.Data)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		o.discard(keys, uploaded)
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.UploadLatency.Observe(time.Since(start).Seconds())
	slog.Info("photos uploaded", "count", len(files), "duration", time.Since(start).Round(time.Millisecond))
	return append(urls, uploaded...), nil
}

// discard removes photos of a failed batch.
func (o *Orchestrator) discard(keys, uploaded []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i, u := range uploaded {
		if u == "" {
			continue
		}
		if err := o.store.Delete(ctx, keys[i]); err != nil {
			slog.Warn("failed to remove photo of failed upload", "key", keys[i], "error", err)
		}
	}
}
