// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package photo persists captured stills. The capture core hands photos over
// without blocking; the Writer names, writes and catalogs them on its own
// goroutine and then reports the identifier.
package photo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/camera/model"
	xglog "github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/metrics"
)

const nameLayout = "2006-01-02-15-04-05"

// Options configure a Writer.
type Options struct {
	Dir       string
	Prefix    string
	QueueSize int
	// Now stamps file names. Defaults to time.Now.
	Now func() time.Time
}

// Writer implements dispatch.PhotoSink.
type Writer struct {
	opts      Options
	catalog   *Catalog
	onWritten func(identifier string)
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan model.Photo
	done   chan struct{}
}

// NewWriter creates the target directory. catalog and onWritten may be nil.
func NewWriter(opts Options, catalog *Catalog, onWritten func(identifier string)) (*Writer, error) {
	if opts.Dir == "" {
		return nil, errors.New("photo: empty directory")
	}
	if opts.Prefix == "" {
		opts.Prefix = "IMG"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("photo: create dir: %w", err)
	}
	return &Writer{
		opts:      opts,
		catalog:   catalog,
		onWritten: onWritten,
		logger:    xglog.WithComponent("photo"),
		queue:     make(chan model.Photo, opts.QueueSize),
		done:      make(chan struct{}),
	}, nil
}

// HandlePhoto enqueues p. It never blocks; a full queue drops the photo.
func (w *Writer) HandlePhoto(p model.Photo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		metrics.IncPhotoWrite("dropped")
		return
	}
	select {
	case w.queue <- p:
	default:
		metrics.IncPhotoWrite("dropped")
		w.logger.Warn().
			Str(xglog.FieldEvent, "photo.dropped").
			Int(xglog.FieldSequenceID, p.SequenceID).
			Msg("photo queue full, still dropped")
	}
}

// Run writes queued photos until Close drains the queue or ctx is done.
func (w *Writer) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-w.queue:
			if !ok {
				return nil
			}
			if _, err := w.Write(ctx, p); err != nil {
				w.logger.Error().Err(err).
					Str(xglog.FieldEvent, "photo.write_failed").
					Int(xglog.FieldSequenceID, p.SequenceID).
					Msg("photo write failed")
			}
		}
	}
}

// Close stops accepting photos and lets Run finish the queue. Pass wait only
// when Run has been started.
func (w *Writer) Close(wait bool) {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	if wait {
		<-w.done
	}
}

// Write persists one photo synchronously and returns its record.
func (w *Writer) Write(ctx context.Context, p model.Photo) (Record, error) {
	if len(p.Data) == 0 {
		metrics.IncPhotoWrite("failure")
		return Record{}, errors.New("photo: empty image")
	}

	stamp := p.CapturedAt
	if stamp.IsZero() {
		stamp = w.opts.Now()
	}
	path, err := w.uniquePath(stamp)
	if err != nil {
		metrics.IncPhotoWrite("failure")
		return Record{}, err
	}
	if err := renameio.WriteFile(path, p.Data, 0o640); err != nil {
		metrics.IncPhotoWrite("failure")
		return Record{}, fmt.Errorf("photo: write %s: %w", path, err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		Name:        filepath.Base(path),
		Path:        path,
		DeviceID:    p.DeviceID,
		SessionID:   p.SessionID,
		SequenceID:  p.SequenceID,
		Width:       p.Width,
		Height:      p.Height,
		Orientation: p.Orientation,
		Bytes:       int64(len(p.Data)),
		CapturedAt:  p.CapturedAt.UTC(),
		WrittenAt:   w.opts.Now().UTC(),
	}
	if w.catalog != nil {
		if err := w.catalog.Add(ctx, rec); err != nil {
			metrics.IncPhotoWrite("failure")
			return rec, err
		}
	}

	metrics.IncPhotoWrite("success")
	w.logger.Info().
		Str(xglog.FieldEvent, "photo.written").
		Str(xglog.FieldPhotoID, rec.ID).
		Str(xglog.FieldPath, path).
		Str(xglog.FieldDeviceID, p.DeviceID).
		Int(xglog.FieldSequenceID, p.SequenceID).
		Int64("bytes", rec.Bytes).
		Msg("photo written")
	if w.onWritten != nil {
		w.onWritten(rec.Name)
	}
	return rec, nil
}

// uniquePath returns <dir>/<prefix>-<stamp>[-n].jpg for the first free n.
// Writes are serialized by Run.
func (w *Writer) uniquePath(stamp time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s", w.opts.Prefix, stamp.Format(nameLayout))
	for n := 0; n < 1000; n++ {
		name := base + ".jpg"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.jpg", base, n)
		}
		path := filepath.Join(w.opts.Dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("photo: stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("photo: no free name for %s", base)
}
