package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// OrderNumberFor formats the order number for the dailyIndex-th order
// (zero based) of date's calendar day: YYYYMMDD-NNN.
func OrderNumberFor(date time.Time, dailyIndex int) string {
	return fmt.Sprintf("%s-%03d", date.Format("20060102"), dailyIndex+1)
}

// OrderNumberGenerator hands out per-day sequential order numbers. The
// counter resets to 1 on the first order of a new calendar day.
type OrderNumberGenerator struct {
	settings SettingsStore
	loc      *time.Location
	logger   *zap.Logger

	mu       sync.Mutex
	lastDate string
	counter  int
	loaded   bool
}

func NewOrderNumberGenerator(settings SettingsStore, loc *time.Location, logger *zap.Logger) *OrderNumberGenerator {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderNumberGenerator{settings: settings, loc: loc, logger: logger}
}

// Next returns the number for a new order placed on date. It never fails:
// when the sequence state cannot be persisted the error is logged and the
// in-memory counter still advances.
func (g *OrderNumberGenerator) Next(ctx context.Context, date time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := date.In(g.loc)
	key := day.Format(dayLayout)

	if g.settings == nil {
		g.advance(key)
		return OrderNumberFor(day, g.counter-1)
	}

	var counter int
	_, err := g.settings.Update(ctx, func(s *Settings) {
		if g.loaded && (g.lastDate > s.LastOrderDate || (g.lastDate == s.LastOrderDate && g.counter > s.DailyCounter)) {
			// The store lost a previous update; trust memory.
			s.LastOrderDate, s.DailyCounter = g.lastDate, g.counter
		}
		if s.LastOrderDate == key {
			s.DailyCounter++
		} else {
			s.LastOrderDate = key
			s.DailyCounter = 1
		}
		counter = s.DailyCounter
	})
	if err != nil {
		g.logger.Warn("failed to persist order number sequence", zap.Error(err))
		if !g.loaded {
			if s, loadErr := g.settings.Load(ctx); loadErr == nil {
				g.lastDate, g.counter = s.LastOrderDate, s.DailyCounter
			}
		}
		g.advance(key)
		counter = g.counter
	} else {
		g.lastDate, g.counter = key, counter
	}
	g.loaded = true
	return OrderNumberFor(day, counter-1)
}

func (g *OrderNumberGenerator) advance(key string) {
	if g.lastDate == key {
		g.counter++
		return
	}
	g.lastDate, g.counter = key, 1
}
