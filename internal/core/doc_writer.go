package core

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// docWriter serialises writes of one document. Snapshots submitted while a
// write is in flight are coalesced so only the most recent one is written.
type docWriter struct {
	name   string
	docs   DocumentStore
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending []byte
	hasNext bool
	running bool
	lastErr error
	written []byte        // last data written successfully
	idle    chan struct{} // closed when no write is pending or running
}

func newDocWriter(name string, docs DocumentStore, delay time.Duration, logger *zap.Logger) *docWriter {
	idle := make(chan struct{})
	close(idle)
	return &docWriter{name: name, docs: docs, delay: delay, logger: logger, idle: idle}
}

// submit queues data as the next version of the document.
func (w *docWriter) submit(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = data
	w.hasNext = true
	if w.running {
		return
	}
	w.running = true
	w.idle = make(chan struct{})
	go w.run(w.idle)
}

func (w *docWriter) run(idle chan struct{}) {
	for {
		if w.delay > 0 {
			time.Sleep(w.delay)
		}
		w.mu.Lock()
		if !w.hasNext {
			w.running = false
			w.mu.Unlock()
			close(idle)
			return
		}
		data := w.pending
		w.pending, w.hasNext = nil, false
		w.mu.Unlock()

		err := w.docs.Write(context.Background(), w.name, data)
		if err != nil {
			w.logger.Error("failed to save document", zap.String("document", w.name), zap.Error(err))
		}
		w.mu.Lock()
		w.lastErr = err
		if err == nil {
			w.written = data
		}
		w.mu.Unlock()
	}
}

// flush waits until every submitted snapshot is written and returns the
// result of the last write.
func (w *docWriter) flush(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *docWriter) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// wrote reports whether data is exactly the last snapshot this writer saved.
func (w *docWriter) wrote(data []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written != nil && bytes.Equal(w.written, data)
}
