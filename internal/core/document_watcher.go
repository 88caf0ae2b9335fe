package core

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DocumentWatcher reloads the order store when its documents are changed on
// disk by another process (a sync client or a manual restore).
type DocumentWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	reload   func(ctx context.Context) error
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDocumentWatcher watches dir for changes to the order documents and
// calls reload once per burst of events.
func NewDocumentWatcher(dir string, reload func(ctx context.Context) error, logger *zap.Logger) (*DocumentWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentWatcher{
		watcher:  w,
		dir:      dir,
		reload:   reload,
		debounce: 500 * time.Millisecond,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// WithDebounce sets how long the watcher waits for a burst of events to
// settle. Call it before Start.
func (dw *DocumentWatcher) WithDebounce(d time.Duration) *DocumentWatcher {
	dw.debounce = d
	return dw
}

// Start is non-blocking; events are handled on a background goroutine.
func (dw *DocumentWatcher) Start(ctx context.Context) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.running {
		return nil
	}
	if err := dw.watcher.Add(dw.dir); err != nil {
		return err
	}
	dw.running = true
	go dw.run(ctx)
	dw.logger.Info("watching order documents", zap.String("dir", dw.dir))
	return nil
}

// Stop ends the event loop and releases the underlying watcher.
func (dw *DocumentWatcher) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		dw.watcher.Close()
		return
	}
	dw.running = false
	dw.mu.Unlock()

	close(dw.stopCh)
	<-dw.doneCh
	if err := dw.watcher.Close(); err != nil {
		dw.logger.Error("failed to close document watcher", zap.Error(err))
	}
}

func (dw *DocumentWatcher) run(ctx context.Context) {
	defer close(dw.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stopCh:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !isOrderDocument(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(dw.debounce)
			} else {
				timer.Reset(dw.debounce)
			}
			fire = timer.C
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("document watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := dw.reload(ctx); err != nil {
				dw.logger.Warn("failed to reload orders", zap.Error(err))
			}
		}
	}
}

func isOrderDocument(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return name == OrdersDocument || name == DeletedDocument
}
