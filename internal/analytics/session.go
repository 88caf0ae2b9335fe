package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-ledger/internal/core"
)

// DefaultDebounce coalesces bursts of configuration changes.
const DefaultDebounce = 100 * time.Millisecond

// Source returns the current order snapshot.
type Source func() []core.Order

// Session holds the selected Config and the most recent Result. Changes to
// the configuration or the underlying orders schedule a recompute after the
// debounce delay; a burst of changes produces a single recompute for the
// latest configuration.
type Session struct {
	engine *Engine
	source Source
	delay  time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	cfg      Config
	home     time.Time // anchor that tracks the current day until navigated away
	result   Result
	version  uint64 // bumped by every change
	computed uint64 // version the current result reflects
	timer    *time.Timer
	done     chan struct{} // closed and replaced after each recompute
	closed   bool
}

// NewSession computes the initial result synchronously.
func NewSession(engine *Engine, source Source, cfg Config, delay time.Duration, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		engine: engine,
		source: source,
		delay:  delay,
		logger: logger,
		cfg:    cfg,
		home:   cfg.Anchor,
		done:   make(chan struct{}),
	}
	s.result = engine.Compute(source(), cfg)
	return s
}

func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Result returns the latest computed result, which may lag a pending change.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Update applies fn to the configuration and schedules a recompute.
func (s *Session) Update(fn func(Config) Config) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = fn(s.cfg)
	s.scheduleLocked()
	return s.cfg
}

// Follow moves an anchor still sitting on its start-up value to now once the
// calendar day has turned. Navigated or custom selections are left alone.
func (s *Session) Follow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Custom != nil || !s.cfg.Anchor.Equal(s.home) {
		return
	}
	loc := s.engine.Location()
	if startOfDay(s.home.In(loc)).Equal(startOfDay(now.In(loc))) {
		return
	}
	s.cfg.Anchor, s.home = now, now
	s.scheduleLocked()
}

// Refresh schedules a recompute because the orders changed.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked()
}

func (s *Session) scheduleLocked() {
	if s.closed {
		return
	}
	s.version++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.recompute)
}

func (s *Session) recompute() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	cfg, version := s.cfg, s.version
	s.mu.Unlock()

	start := time.Now()
	result := s.engine.Compute(s.source(), cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if version < s.computed {
		return
	}
	s.result, s.computed = result, version
	close(s.done)
	s.done = make(chan struct{})
	s.logger.Debug("analytics recomputed", zap.Uint64("version", version), zap.Duration("took", time.Since(start)))
}

// Wait blocks until every change made before the call is reflected in the
// result, then returns it.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	s.mu.Lock()
	target := s.version
	s.mu.Unlock()
	for {
		s.mu.Lock()
		if s.computed >= target || s.closed {
			res := s.result
			s.mu.Unlock()
			return res, nil
		}
		done := s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// Close stops any pending recompute.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	s.done = make(chan struct{})
}
