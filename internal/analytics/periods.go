package analytics

import (
	"fmt"
	"time"

	"order-ledger/internal/core"
)

// Granularity is the calendar unit a report period spans.
type Granularity string

const (
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// ParseGranularity accepts the canonical names and the Chinese labels.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "day", "按日":
		return Day, nil
	case "week", "按周":
		return Week, nil
	case "month", "按月":
		return Month, nil
	case "quarter", "按季度":
		return Quarter, nil
	case "year", "按年":
		return Year, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Comparison selects the period the KPI summary is compared against.
type Comparison string

const (
	CompareNone             Comparison = "none"
	ComparePeriodOverPeriod Comparison = "periodOverPeriod"
	CompareYearOverYear     Comparison = "yearOverYear"
)

func ParseComparison(s string) (Comparison, error) {
	switch s {
	case "", "none", "当前数据":
		return CompareNone, nil
	case "periodOverPeriod", "pop", "环比":
		return ComparePeriodOverPeriod, nil
	case "yearOverYear", "yoy", "同比":
		return CompareYearOverYear, nil
	}
	return "", fmt.Errorf("unknown comparison %q", s)
}

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// CustomRange is an inclusive span of calendar days.
type CustomRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Config is the full set of inputs to one aggregation.
type Config struct {
	Granularity      Granularity        `json:"granularity"`
	Anchor           time.Time          `json:"anchor"`
	Custom           *CustomRange       `json:"custom,omitempty"`
	CustomerType     *core.CustomerType `json:"customerType,omitempty"`
	Comparison       Comparison         `json:"comparison"`
	SelectedCustomer string             `json:"selectedCustomer,omitempty"`
}

// DefaultConfig shows today with no comparison.
func DefaultConfig(now time.Time) Config {
	return Config{Granularity: Day, Anchor: now, Comparison: CompareNone}
}

// Next moves the anchor forward one period. A custom range disables navigation.
func (c Config) Next() Config { return c.step(1) }

// Previous moves the anchor back one period.
func (c Config) Previous() Config { return c.step(-1) }

// Shift moves the anchor n periods in one step.
func (c Config) Shift(n int) Config { return c.step(n) }

func (c Config) step(n int) Config {
	if c.Custom != nil {
		return c
	}
	c.Anchor = shift(c.Granularity, c.Anchor, n)
	return c
}

// shift moves t by n units of g. Month based shifts clamp to the end of the
// target month, so Jan 31 + 1 month is Feb 28 (or 29).
func shift(g Granularity, t time.Time, n int) time.Time {
	switch g {
	case Day:
		return t.AddDate(0, 0, n)
	case Week:
		return t.AddDate(0, 0, 7*n)
	case Month:
		return addMonths(t, n)
	case Quarter:
		return addMonths(t, 3*n)
	default:
		return addMonths(t, 12*n)
	}
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// periodStart returns the start of the g-period containing t, in t's location.
// Weeks are ISO weeks starting on Monday.
func periodStart(g Granularity, t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Quarter:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
}

// periodContaining returns the calendar-aligned g-period around t.
func periodContaining(g Granularity, t time.Time) Range {
	start := periodStart(g, t)
	var end time.Time
	switch g {
	case Day:
		end = start.AddDate(0, 0, 1)
	case Week:
		end = start.AddDate(0, 0, 7)
	case Month:
		end = start.AddDate(0, 1, 0)
	case Quarter:
		end = start.AddDate(0, 3, 0)
	default:
		end = start.AddDate(1, 0, 0)
	}
	return Range{Start: start, End: end}
}

// ResolveRanges returns the KPI range for cfg and, when a comparison is
// selected, the range it is compared against. All calendar arithmetic happens
// in loc.
func ResolveRanges(cfg Config, loc *time.Location) (Range, *Range) {
	if cfg.Custom != nil {
		from, to := cfg.Custom.From.In(loc), cfg.Custom.To.In(loc)
		if to.Before(from) {
			from, to = to, from
		}
		return Range{Start: startOfDay(from), End: startOfDay(to).AddDate(0, 0, 1)}, nil
	}

	anchor := cfg.Anchor.In(loc)
	current := periodContaining(cfg.Granularity, anchor)

	var prevAnchor time.Time
	switch cfg.Comparison {
	case ComparePeriodOverPeriod:
		prevAnchor = shift(cfg.Granularity, anchor, -1)
	case CompareYearOverYear:
		prevAnchor = addMonths(anchor, -12)
	default:
		return current, nil
	}
	previous := periodContaining(cfg.Granularity, prevAnchor)
	return current, &previous
}

// PeriodLabel names the selected period relative to now, e.g. 今天, 本周 or 2024 Q1.
func PeriodLabel(cfg Config, now time.Time, loc *time.Location) string {
	if cfg.Custom != nil {
		r, _ := ResolveRanges(cfg, loc)
		return fmt.Sprintf("%s - %s", r.Start.Format("2006.01.02"), r.End.AddDate(0, 0, -1).Format("2006.01.02"))
	}
	anchor, now := cfg.Anchor.In(loc), now.In(loc)
	same := func(g Granularity, a, b time.Time) bool { return periodStart(g, a).Equal(periodStart(g, b)) }

	switch cfg.Granularity {
	case Day:
		if same(Day, anchor, now) {
			return "今天"
		}
		if same(Day, anchor, now.AddDate(0, 0, -1)) {
			return "昨天"
		}
		return anchor.Format("2006年1月2日")
	case Week:
		if same(Week, anchor, now) {
			return "本周"
		}
		if same(Week, anchor, now.AddDate(0, 0, -7)) {
			return "上周"
		}
		r := periodContaining(Week, anchor)
		return fmt.Sprintf("%s - %s", r.Start.Format("1月2日"), r.End.AddDate(0, 0, -1).Format("1月2日"))
	case Month:
		if same(Month, anchor, now) {
			return anchor.Format("2006年1月") + " (本月)"
		}
		return anchor.Format("2006年1月")
	case Quarter:
		return fmt.Sprintf("%d Q%d", anchor.Year(), (int(anchor.Month())-1)/3+1)
	default:
		if same(Year, anchor, now) {
			return anchor.Format("2006年") + " (本年)"
		}
		return anchor.Format("2006年")
	}
}
