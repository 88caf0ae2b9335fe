package analytics_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/analytics"
	"order-ledger/internal/core"
)

func order(customer string, ct core.CustomerType, date time.Time, items ...core.OrderItem) core.Order {
	return core.Order{
		ID:           uuid.New(),
		CustomerName: customer,
		CustomerType: ct,
		Date:         date,
		Items:        items,
		Status:       core.OrderStatusActive,
	}
}

func line(product, color string, price int64, sizes map[string]int) core.OrderItem {
	return core.OrderItem{
		ID:             uuid.New(),
		ProductName:    product,
		Color:          color,
		SizeQuantities: sizes,
		UnitPrice:      decimal.NewFromInt(price),
	}
}

func engineAt(now time.Time) *analytics.Engine {
	return analytics.NewEngine(shanghai).WithClock(func() time.Time { return now })
}

func TestMonthWithEmptyPreviousPeriod(t *testing.T) {
	orders := []core.Order{
		order("张三", core.CustomerRetail, at(2024, 1, 5, 10), line("乐福鞋", "黑色", 100, map[string]int{"38码": 1})),
		order("李四", core.CustomerWholesale, at(2024, 1, 20, 10), line("切尔西靴", "棕色", 50, map[string]int{"39码": 1})),
	}
	cfg := analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 1, 15, 0), Comparison: analytics.ComparePeriodOverPeriod}

	res := engineAt(at(2024, 2, 1, 0)).Compute(orders, cfg)

	assert.True(t, decimal.NewFromInt(150).Equal(res.Summary.Current.Revenue))
	assert.Equal(t, 2, res.Summary.Current.OrderCount)
	assert.Equal(t, 2, res.Summary.Current.UnitsSold)
	assert.Equal(t, 2, res.Summary.Current.CustomerCount)
	require.NotNil(t, res.Summary.Previous)
	assert.True(t, res.Summary.Previous.Revenue.IsZero())
	assert.Nil(t, res.Summary.RevenueChange)
	assert.Nil(t, res.Summary.OrderCountChange)
}

func TestChangeAgainstPreviousPeriod(t *testing.T) {
	orders := []core.Order{
		order("张三", core.CustomerRetail, at(2024, 1, 5, 10), line("A", "黑", 100, map[string]int{"38码": 1})),
		order("张三", core.CustomerRetail, at(2024, 2, 5, 10), line("A", "黑", 150, map[string]int{"38码": 1})),
	}
	cfg := analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 2, 10, 0), Comparison: analytics.ComparePeriodOverPeriod}
	res := engineAt(at(2024, 2, 10, 0)).Compute(orders, cfg)

	require.NotNil(t, res.Summary.RevenueChange)
	assert.InDelta(t, 0.5, *res.Summary.RevenueChange, 1e-9)
	require.NotNil(t, res.Summary.OrderCountChange)
	assert.InDelta(t, 0.0, *res.Summary.OrderCountChange, 1e-9)
}

func TestNoComparisonHasNoPrevious(t *testing.T) {
	res := engineAt(at(2024, 1, 1, 0)).Compute(nil, analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 1, 1, 0)})
	assert.Nil(t, res.Summary.Previous)
	assert.Nil(t, res.Summary.RevenueChange)
	assert.Empty(t, res.Chart)
}

func TestRefundedOrdersAreExcluded(t *testing.T) {
	refunded := order("王五", core.CustomerWholesale, at(2024, 1, 6, 10), line("A", "黑", 999, map[string]int{"40码": 3}))
	refunded.Status = core.OrderStatusRefunded
	orders := []core.Order{
		order("张三", core.CustomerRetail, at(2024, 1, 5, 10), line("A", "黑", 100, map[string]int{"38码": 1})),
		refunded,
	}
	res := engineAt(at(2024, 1, 10, 0)).Compute(orders, analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 1, 10, 0)})

	assert.True(t, decimal.NewFromInt(100).Equal(res.Summary.Current.Revenue))
	require.Len(t, res.Chart, 1)
	assert.Equal(t, 1, res.Chart[0].OrderCount)
	assert.Empty(t, res.Customers)
	assert.Empty(t, res.WholesaleCustomers)
}

func TestChartCoversAllOrdersAndSumsToTotals(t *testing.T) {
	orders := []core.Order{
		order("A", core.CustomerRetail, at(2023, 12, 31, 23), line("P", "黑", 10, map[string]int{"38码": 1})),
		order("B", core.CustomerWholesale, at(2024, 1, 1, 1), line("P", "黑", 20, map[string]int{"38码": 2})),
		order("C", core.CustomerRetail, at(2024, 1, 1, 20), line("Q", "白", 5, map[string]int{"39码": 3})),
		order("D", core.CustomerWholesale, at(2024, 3, 9, 8), line("Q", "白", 7, map[string]int{"40码": 1})),
	}
	total := decimal.Zero
	units := 0
	for _, o := range orders {
		total = total.Add(o.TotalPrice())
		units += o.TotalQuantity()
	}

	for _, g := range []analytics.Granularity{analytics.Day, analytics.Week, analytics.Month, analytics.Quarter, analytics.Year} {
		t.Run(string(g), func(t *testing.T) {
			res := engineAt(at(2024, 3, 10, 0)).Compute(orders, analytics.Config{
				Granularity:  g,
				Anchor:       at(2020, 1, 1, 0),
				CustomerType: ptrType(core.CustomerRetail),
			})
			sum, sumUnits, count := decimal.Zero, 0, 0
			for i, p := range res.Chart {
				assert.True(t, p.Retail.Add(p.Wholesale).Equal(p.Total))
				assert.Equal(t, p.OrderCount, p.RetailOrderCount+p.WholesaleOrderCount)
				if i > 0 {
					assert.True(t, res.Chart[i-1].Bucket.Before(p.Bucket), "ascending buckets")
				}
				sum = sum.Add(p.Total)
				sumUnits += p.UnitCount
				count += p.OrderCount
			}
			assert.True(t, total.Equal(sum), "chart ignores range and customer filters")
			assert.Equal(t, units, sumUnits)
			assert.Equal(t, len(orders), count)
		})
	}
}

func TestWeekBucketsCrossYearBoundary(t *testing.T) {
	orders := []core.Order{
		order("A", core.CustomerRetail, at(2024, 12, 30, 9), line("P", "黑", 10, map[string]int{"38码": 1})),
		order("B", core.CustomerRetail, at(2025, 1, 2, 9), line("P", "黑", 10, map[string]int{"38码": 1})),
	}
	res := engineAt(at(2025, 1, 2, 0)).Compute(orders, analytics.Config{Granularity: analytics.Week, Anchor: at(2025, 1, 2, 0)})
	require.Len(t, res.Chart, 1, "both days are in ISO week 2025-W01")
	assert.True(t, at(2024, 12, 30, 0).Equal(res.Chart[0].Bucket))
}

func TestRankings(t *testing.T) {
	orders := []core.Order{
		order("A", core.CustomerRetail, at(2024, 1, 2, 9),
			line("乐福鞋", "黑色", 100, map[string]int{"38码": 2, "39码": 1}),
			line("切尔西靴", "棕色", 400, map[string]int{"40码": 1}),
		),
		order("B", core.CustomerRetail, at(2024, 1, 3, 9),
			line("德比鞋", "黑色", 50, map[string]int{"38码": 1}),
		),
	}
	res := engineAt(at(2024, 1, 3, 0)).Compute(orders, analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 1, 3, 0)})

	require.Len(t, res.ProductsByRevenue, 3)
	assert.Equal(t, "切尔西靴", res.ProductsByRevenue[0].Name)
	assert.Equal(t, "乐福鞋", res.ProductsByRevenue[1].Name)
	assert.Equal(t, "乐福鞋", res.ProductsByQuantity[0].Name)
	assert.Equal(t, 3, res.ProductsByQuantity[0].Quantity)

	assert.Equal(t, analytics.Rank{Name: "黑色", Quantity: 4}, res.Colors[0])
	assert.Equal(t, analytics.Rank{Name: "38码", Quantity: 3}, res.Sizes[0])

	// 39码 and 40码 tie on one pair; ties are ordered by name.
	require.Len(t, res.Sizes, 3)
	assert.Equal(t, "39码", res.Sizes[1].Name)
	assert.Equal(t, "40码", res.Sizes[2].Name)
}

func TestCustomerDrillDown(t *testing.T) {
	orders := []core.Order{
		order("王五", core.CustomerWholesale, at(2024, 1, 5, 9),
			line("A", "黑", 10, map[string]int{"38码": 5}),
			line("B", "黑", 10, map[string]int{"38码": 3}),
		),
		order("王五", core.CustomerWholesale, at(2024, 1, 25, 9),
			line("C", "黑", 10, map[string]int{"38码": 4}),
			line("D", "黑", 10, map[string]int{"38码": 1}),
		),
		order("王五", core.CustomerWholesale, at(2024, 3, 1, 9), line("A", "黑", 10, map[string]int{"38码": 1})),
		order("李四", core.CustomerWholesale, at(2023, 11, 1, 9), line("A", "黑", 20, map[string]int{"38码": 1})),
		order("零售", core.CustomerRetail, at(2024, 1, 5, 9), line("A", "黑", 10, map[string]int{"38码": 1})),
	}
	e := engineAt(at(2024, 3, 1, 0))
	cfg := analytics.Config{Granularity: analytics.Day, Anchor: at(2024, 3, 1, 0)}

	res := e.Compute(orders, cfg)
	require.Len(t, res.Customers, 2)
	assert.ElementsMatch(t, []string{"王五", "李四"}, res.WholesaleCustomers)
	assert.Equal(t, 4, res.CustomerSummary.OrderCount, "all wholesale orders")

	var wang analytics.CustomerHistory
	for _, c := range res.Customers {
		if c.Customer == "王五" {
			wang = c
		}
	}
	require.Len(t, wang.Months, 2)
	assert.Equal(t, "2024-03", wang.Months[0].Month, "newest month first")
	jan := wang.Months[1]
	assert.Equal(t, "2024-01", jan.Month)
	assert.Equal(t, 2, jan.OrderCount)
	assert.Equal(t, 13, jan.UnitsSold)
	assert.Equal(t, []string{"A", "C", "B"}, jan.TopProducts)

	cfg.SelectedCustomer = "李四"
	res = e.Compute(orders, cfg)
	require.Len(t, res.Customers, 1)
	assert.Equal(t, "李四", res.Customers[0].Customer)
	assert.Equal(t, 1, res.CustomerSummary.OrderCount)
	assert.True(t, decimal.NewFromInt(20).Equal(res.CustomerSummary.Revenue))
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	orders := []core.Order{order("A", core.CustomerRetail, at(2024, 1, 2, 9), line("P", "黑", 10, map[string]int{"38码": 1}))}
	before := orders[0].Clone()
	engineAt(at(2024, 1, 2, 0)).Compute(orders, analytics.Config{Granularity: analytics.Month, Anchor: at(2024, 1, 2, 0)})
	assert.Equal(t, before, orders[0])
}

func ptrType(c core.CustomerType) *core.CustomerType { return &c }
