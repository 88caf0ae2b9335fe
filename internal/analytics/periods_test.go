package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/analytics"
)

var shanghai = time.FixedZone("CST", 8*3600)

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, shanghai)
}

func TestResolveRanges(t *testing.T) {
	tests := []struct {
		name      string
		cfg       analytics.Config
		wantStart time.Time
		wantEnd   time.Time
		prevStart *time.Time
	}{
		{
			name:      "day",
			cfg:       analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 3, 5, 15)},
			wantStart: at(2024, 3, 5, 0),
			wantEnd:   at(2024, 3, 6, 0),
		},
		{
			name:      "iso week starts monday",
			cfg:       analytics.Config{Granularity: analytics.Week, Anchor: at(2024, 3, 10, 9), Comparison: analytics.ComparePeriodOverPeriod},
			wantStart: at(2024, 3, 4, 0),
			wantEnd:   at(2024, 3, 11, 0),
			prevStart: ptr(at(2024, 2, 26, 0)),
		},
		{
			name:      "quarter compared with previous quarter",
			cfg:       analytics.Config{Granularity: analytics.Quarter, Anchor: at(2024, 5, 31, 9), Comparison: analytics.ComparePeriodOverPeriod},
			wantStart: at(2024, 4, 1, 0),
			wantEnd:   at(2024, 7, 1, 0),
			prevStart: ptr(at(2024, 1, 1, 0)),
		},
		{
			name:      "leap day year over year clamps",
			cfg:       analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 2, 29, 9), Comparison: analytics.CompareYearOverYear},
			wantStart: at(2024, 2, 29, 0),
			wantEnd:   at(2024, 3, 1, 0),
			prevStart: ptr(at(2023, 2, 28, 0)),
		},
		{
			name:      "year",
			cfg:       analytics.Config{Granularity: analytics.Year, Anchor: at(2024, 7, 1, 0), Comparison: analytics.CompareYearOverYear},
			wantStart: at(2024, 1, 1, 0),
			wantEnd:   at(2025, 1, 1, 0),
			prevStart: ptr(at(2023, 1, 1, 0)),
		},
		{
			name: "custom range covers whole days and has no comparison",
			cfg: analytics.Config{
				Granularity: analytics.Month,
				Comparison:  analytics.ComparePeriodOverPeriod,
				Custom:      &analytics.CustomRange{From: at(2024, 1, 10, 15), To: at(2024, 1, 12, 8)},
			},
			wantStart: at(2024, 1, 10, 0),
			wantEnd:   at(2024, 1, 13, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, prev := analytics.ResolveRanges(tt.cfg, shanghai)
			assert.True(t, tt.wantStart.Equal(cur.Start), "start = %s", cur.Start)
			assert.True(t, tt.wantEnd.Equal(cur.End), "end = %s", cur.End)
			if tt.prevStart == nil {
				assert.Nil(t, prev)
				return
			}
			require.NotNil(t, prev)
			assert.True(t, tt.prevStart.Equal(prev.Start), "previous start = %s", prev.Start)
		})
	}
}

func TestRangeIsHalfOpen(t *testing.T) {
	cur, _ := analytics.ResolveRanges(analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 1, 1, 12)}, shanghai)
	assert.True(t, cur.Contains(at(2024, 1, 1, 0)))
	assert.True(t, cur.Contains(at(2024, 1, 1, 23).Add(59*time.Minute)))
	assert.False(t, cur.Contains(at(2024, 1, 2, 0)))
}

func TestNavigation(t *testing.T) {
	cfg := analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 1, 31, 10)}
	next := cfg.Next()
	assert.Equal(t, at(2024, 2, 29, 10), next.Anchor, "month end clamps")

	q := analytics.Config{Granularity: analytics.Quarter, Anchor: at(2024, 5, 15, 0)}
	assert.Equal(t, at(2024, 2, 15, 0), q.Previous().Anchor)

	w := analytics.Config{Granularity: analytics.Week, Anchor: at(2024, 1, 3, 0)}
	assert.Equal(t, at(2024, 1, 10, 0), w.Next().Anchor)

	custom := analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 1, 3, 0), Custom: &analytics.CustomRange{From: at(2024, 1, 1, 0), To: at(2024, 1, 2, 0)}}
	assert.Equal(t, custom, custom.Next(), "custom ranges do not navigate")
}

func TestPeriodLabel(t *testing.T) {
	now := at(2024, 3, 13, 10) // a Wednesday
	tests := []struct {
		cfg  analytics.Config
		want string
	}{
		{analytics.Config{Granularity: analytics.Day, Anchor: now}, "今天"},
		{analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 3, 12, 22)}, "昨天"},
		{analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 3, 1, 9)}, "2024年3月1日"},
		{analytics.Config{Granularity: analytics.Week, Anchor: at(2024, 3, 11, 9)}, "本周"},
		{analytics.Config{Granularity: analytics.Week, Anchor: at(2024, 3, 6, 9)}, "上周"},
		{analytics.Config{Granularity: analytics.Week, Anchor: at(2024, 2, 20, 9)}, "2月19日 - 2月25日"},
		{analytics.Config{Granularity: analytics.Month, Anchor: now}, "2024年3月 (本月)"},
		{analytics.Config{Granularity: analytics.Quarter, Anchor: now}, "2024 Q1"},
		{analytics.Config{Granularity: analytics.Year, Anchor: at(2023, 6, 1, 0)}, "2023年"},
		{analytics.Config{Custom: &analytics.CustomRange{From: at(2024, 1, 1, 0), To: at(2024, 1, 31, 0)}}, "2024.01.01 - 2024.01.31"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, analytics.PeriodLabel(tt.cfg, now, shanghai))
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := analytics.ParseGranularity("按季度")
	require.NoError(t, err)
	assert.Equal(t, analytics.Quarter, g)
	_, err = analytics.ParseGranularity("fortnight")
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
