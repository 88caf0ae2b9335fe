package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"order-ledger/internal/core"
)

// ── Result types ──────────────────────────────────────────────────────────────

// Metrics are the headline numbers for a set of orders.
type Metrics struct {
	Revenue       decimal.Decimal `json:"revenue"`
	OrderCount    int             `json:"orderCount"`
	UnitsSold     int             `json:"unitsSold"`
	CustomerCount int             `json:"customerCount"`
}

// Summary pairs current metrics with an optional comparison period. A change
// is nil when there is no comparison or the previous value is zero.
type Summary struct {
	Current             Metrics  `json:"current"`
	Previous            *Metrics `json:"previous,omitempty"`
	RevenueChange       *float64 `json:"revenueChange"`
	OrderCountChange    *float64 `json:"orderCountChange"`
	UnitsSoldChange     *float64 `json:"unitsSoldChange"`
	CustomerCountChange *float64 `json:"customerCountChange"`
}

// ChartPoint aggregates the orders of one calendar bucket.
type ChartPoint struct {
	Bucket              time.Time       `json:"bucket"`
	Total               decimal.Decimal `json:"total"`
	Retail              decimal.Decimal `json:"retail"`
	Wholesale           decimal.Decimal `json:"wholesale"`
	OrderCount          int             `json:"orderCount"`
	UnitCount           int             `json:"unitCount"`
	RetailOrderCount    int             `json:"retailOrderCount"`
	WholesaleOrderCount int             `json:"wholesaleOrderCount"`
}

type ProductStat struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Rank is a name with a pair count, used for color and size rankings.
type Rank struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type MonthlyCustomer struct {
	Month       string          `json:"month"` // YYYY-MM
	OrderCount  int             `json:"orderCount"`
	UnitsSold   int             `json:"unitsSold"`
	Revenue     decimal.Decimal `json:"revenue"`
	TopProducts []string        `json:"topProducts"`
}

type CustomerHistory struct {
	Customer string            `json:"customer"`
	Months   []MonthlyCustomer `json:"months"`
}

// Result is everything derived from one (orders, Config) pair.
type Result struct {
	Config             Config            `json:"config"`
	Label              string            `json:"label"`
	Current            Range             `json:"current"`
	Previous           *Range            `json:"previous,omitempty"`
	Summary            Summary           `json:"summary"`
	Chart              []ChartPoint      `json:"chart"`
	ProductsByRevenue  []ProductStat     `json:"productsByRevenue"`
	ProductsByQuantity []ProductStat     `json:"productsByQuantity"`
	Colors             []Rank            `json:"colors"`
	Sizes              []Rank            `json:"sizes"`
	Customers          []CustomerHistory `json:"customers"`
	CustomerSummary    Metrics           `json:"customerSummary"`
	WholesaleCustomers []string          `json:"wholesaleCustomers"`
}

// ── Engine ────────────────────────────────────────────────────────────────────

// Engine is a pure function of an order snapshot and a Config. It never
// mutates the orders it is given.
type Engine struct {
	loc *time.Location
	now func() time.Time
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc, now: time.Now}
}

// WithClock returns a copy of e that reads the current time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

func (e *Engine) Location() *time.Location { return e.loc }

// Now reads the engine's clock.
func (e *Engine) Now() time.Time { return e.now() }

// Compute derives every analytics view. Refunded orders are ignored.
func (e *Engine) Compute(orders []core.Order, cfg Config) Result {
	if cfg.Granularity == "" {
		cfg.Granularity = Day
	}
	if cfg.Comparison == "" {
		cfg.Comparison = CompareNone
	}
	if cfg.Anchor.IsZero() {
		cfg.Anchor = e.now()
	}

	active := make([]core.Order, 0, len(orders))
	for _, o := range orders {
		if o.IsActive() {
			active = append(active, o)
		}
	}

	current, previous := ResolveRanges(cfg, e.loc)
	kpiOrders := filterOrders(active, current, cfg.CustomerType)
	col := collate.New(language.Chinese)

	res := Result{
		Config:   cfg,
		Label:    PeriodLabel(cfg, e.now(), e.loc),
		Current:  current,
		Previous: previous,
		Summary:  Summary{Current: metricsOf(kpiOrders)},
		Chart:    e.chart(active, cfg.Granularity),
	}
	if previous != nil {
		prev := metricsOf(filterOrders(active, *previous, cfg.CustomerType))
		res.Summary.Previous = &prev
		res.Summary.RevenueChange = decimalChange(res.Summary.Current.Revenue, prev.Revenue)
		res.Summary.OrderCountChange = intChange(res.Summary.Current.OrderCount, prev.OrderCount)
		res.Summary.UnitsSoldChange = intChange(res.Summary.Current.UnitsSold, prev.UnitsSold)
		res.Summary.CustomerCountChange = intChange(res.Summary.Current.CustomerCount, prev.CustomerCount)
	}

	res.ProductsByRevenue, res.ProductsByQuantity, res.Colors, res.Sizes = rankings(kpiOrders, col)
	res.Customers, res.CustomerSummary, res.WholesaleCustomers = e.customers(active, cfg.SelectedCustomer, col)
	return res
}

func filterOrders(orders []core.Order, r Range, customerType *core.CustomerType) []core.Order {
	var out []core.Order
	for _, o := range orders {
		if !r.Contains(o.Date) {
			continue
		}
		if customerType != nil && o.CustomerType != *customerType {
			continue
		}
		out = append(out, o)
	}
	return out
}

func metricsOf(orders []core.Order) Metrics {
	m := Metrics{Revenue: decimal.Zero}
	customers := map[string]struct{}{}
	for _, o := range orders {
		m.Revenue = m.Revenue.Add(o.TotalPrice())
		m.OrderCount++
		m.UnitsSold += o.TotalQuantity()
		customers[o.CustomerName] = struct{}{}
	}
	m.CustomerCount = len(customers)
	return m
}

func decimalChange(cur, prev decimal.Decimal) *float64 {
	if prev.IsZero() {
		return nil
	}
	v := cur.Sub(prev).Div(prev).InexactFloat64()
	return &v
}

func intChange(cur, prev int) *float64 {
	if prev == 0 {
		return nil
	}
	v := float64(cur-prev) / float64(prev)
	return &v
}

// chart buckets every order by its calendar period; only non-empty buckets
// are returned, oldest first.
func (e *Engine) chart(orders []core.Order, g Granularity) []ChartPoint {
	buckets := map[int64]*ChartPoint{}
	for _, o := range orders {
		start := periodStart(g, o.Date.In(e.loc))
		p, ok := buckets[start.Unix()]
		if !ok {
			p = &ChartPoint{Bucket: start, Total: decimal.Zero, Retail: decimal.Zero, Wholesale: decimal.Zero}
			buckets[start.Unix()] = p
		}
		price := o.TotalPrice()
		p.Total = p.Total.Add(price)
		p.OrderCount++
		p.UnitCount += o.TotalQuantity()
		switch o.CustomerType {
		case core.CustomerRetail:
			p.Retail = p.Retail.Add(price)
			p.RetailOrderCount++
		case core.CustomerWholesale:
			p.Wholesale = p.Wholesale.Add(price)
			p.WholesaleOrderCount++
		}
	}
	points := make([]ChartPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket.Before(points[j].Bucket) })
	return points
}

func rankings(orders []core.Order, col *collate.Collator) (byRevenue, byQuantity []ProductStat, colors, sizes []Rank) {
	products := map[string]*ProductStat{}
	colorQty := map[string]int{}
	sizeQty := map[string]int{}
	for _, o := range orders {
		for _, item := range o.Items {
			p, ok := products[item.ProductName]
			if !ok {
				p = &ProductStat{Name: item.ProductName, Revenue: decimal.Zero}
				products[item.ProductName] = p
			}
			qty := item.TotalQuantity()
			p.Quantity += qty
			p.Revenue = p.Revenue.Add(item.TotalPrice())
			colorQty[item.Color] += qty
			for size, q := range item.SizeQuantities {
				if q > 0 {
					sizeQty[size] += q
				}
			}
		}
	}

	byRevenue = make([]ProductStat, 0, len(products))
	for _, p := range products {
		byRevenue = append(byRevenue, *p)
	}
	byQuantity = append([]ProductStat(nil), byRevenue...)
	sort.Slice(byRevenue, func(i, j int) bool {
		if c := byRevenue[i].Revenue.Cmp(byRevenue[j].Revenue); c != 0 {
			return c > 0
		}
		return col.CompareString(byRevenue[i].Name, byRevenue[j].Name) < 0
	})
	sort.Slice(byQuantity, func(i, j int) bool {
		if byQuantity[i].Quantity != byQuantity[j].Quantity {
			return byQuantity[i].Quantity > byQuantity[j].Quantity
		}
		return col.CompareString(byQuantity[i].Name, byQuantity[j].Name) < 0
	})
	return byRevenue, byQuantity, rankOf(colorQty, col), rankOf(sizeQty, col)
}

func rankOf(counts map[string]int, col *collate.Collator) []Rank {
	ranks := make([]Rank, 0, len(counts))
	for name, q := range counts {
		ranks = append(ranks, Rank{Name: name, Quantity: q})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Quantity != ranks[j].Quantity {
			return ranks[i].Quantity > ranks[j].Quantity
		}
		return col.CompareString(ranks[i].Name, ranks[j].Name) < 0
	})
	return ranks
}

// customers builds the wholesale drill-down over the whole order history.
func (e *Engine) customers(orders []core.Order, selected string, col *collate.Collator) ([]CustomerHistory, Metrics, []string) {
	byCustomer := map[string]map[string][]core.Order{}
	var selectedOrders []core.Order
	for _, o := range orders {
		if o.CustomerType != core.CustomerWholesale {
			continue
		}
		month := o.Date.In(e.loc).Format("2006-01")
		if byCustomer[o.CustomerName] == nil {
			byCustomer[o.CustomerName] = map[string][]core.Order{}
		}
		byCustomer[o.CustomerName][month] = append(byCustomer[o.CustomerName][month], o)
		if selected == "" || o.CustomerName == selected {
			selectedOrders = append(selectedOrders, o)
		}
	}

	names := make([]string, 0, len(byCustomer))
	for name := range byCustomer {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return col.CompareString(names[i], names[j]) < 0 })

	var histories []CustomerHistory
	for _, name := range names {
		if selected != "" && name != selected {
			continue
		}
		months := byCustomer[name]
		h := CustomerHistory{Customer: name, Months: make([]MonthlyCustomer, 0, len(months))}
		for month, monthOrders := range months {
			m := metricsOf(monthOrders)
			h.Months = append(h.Months, MonthlyCustomer{
				Month:       month,
				OrderCount:  m.OrderCount,
				UnitsSold:   m.UnitsSold,
				Revenue:     m.Revenue,
				TopProducts: topProducts(monthOrders, 3, col),
			})
		}
		sort.Slice(h.Months, func(i, j int) bool { return h.Months[i].Month > h.Months[j].Month })
		histories = append(histories, h)
	}
	return histories, metricsOf(selectedOrders), names
}

func topProducts(orders []core.Order, n int, col *collate.Collator) []string {
	qty := map[string]int{}
	for _, o := range orders {
		for _, item := range o.Items {
			qty[item.ProductName] += item.TotalQuantity()
		}
	}
	ranked := rankOf(qty, col)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Name
	}
	return out
}
