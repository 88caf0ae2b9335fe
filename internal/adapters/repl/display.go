package repl

import (
	"fmt"
	"strings"

	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

func (s *shell) printOrders(result *app.OrderListResult) {
	if len(result.Orders) == 0 {
		s.println("  No orders found.")
		return
	}
	for _, g := range result.Groups {
		s.println()
		s.println(strings.Repeat("=", 72))
		s.printf("  %s (%d)\n", g.Title, len(g.Orders))
		s.println(strings.Repeat("=", 72))
		s.printf("  %-14s %-14s %-6s %6s %12s  %s\n", "NUMBER", "CUSTOMER", "TYPE", "PAIRS", "TOTAL", "STATUS")
		s.println(strings.Repeat("-", 72))
		for _, o := range g.Orders {
			s.printf("  %-14s %-14s %-6s %6d %12s  %s\n",
				o.OrderNumber, o.CustomerName, o.CustomerType.Label(), o.TotalQuantity(),
				o.TotalPrice().StringFixed(2), o.PaymentStatus().Label())
		}
	}
	s.println(strings.Repeat("=", 72))
}

func (s *shell) printOrderDetail(result *app.OrderResult) {
	o := result.Order
	s.printf("  Number   : %s\n", o.OrderNumber)
	s.printf("  Customer : %s (%s)\n", o.CustomerName, o.CustomerType.Label())
	s.printf("  Date     : %s   %s   %s\n", o.Date.Format("2006-01-02"), o.Urgency.Label(), o.ShipmentStatus.Label())
	s.printf("  Payment  : %s, due %s\n", result.PaymentStatus.Label(), result.BalanceDue)
	s.printf("  %-4s %-16s %-8s %-24s %12s\n", "#", "PRODUCT", "COLOR", "SIZES", "UNIT PRICE")
	for i, item := range o.Items {
		var sizes []string
		for _, size := range item.SortedSizes() {
			sizes = append(sizes, fmt.Sprintf("%sx%d", size, item.SizeQuantities[size]))
		}
		price := item.UnitPrice.StringFixed(2)
		if item.UnitPrice.IsZero() {
			price = core.PaymentStatusPendingPrice.Label()
		}
		s.printf("  %-4d %-16s %-8s %-24s %12s\n", i+1, item.ProductName, item.Color, strings.Join(sizes, " "), price)
	}
	s.printf("  Total    : %s\n", o.TotalPrice().StringFixed(2))
}

func (s *shell) printTotals(t core.Totals) {
	s.println(strings.Repeat("=", 40))
	s.printf("  %-12s %20s\n", "总金额", t.Revenue.StringFixed(2))
	s.printf("  %-12s %20s\n", "已收款", t.Paid.StringFixed(2))
	s.printf("  %-12s %20s\n", "未收款", t.Unconfirmed.StringFixed(2))
	s.println(strings.Repeat("=", 40))
}

func (s *shell) printAnalytics(res *app.AnalyticsResult) {
	cur := res.Summary.Current
	s.println(strings.Repeat("=", 60))
	s.printf("  %s\n", res.Label)
	s.println(strings.Repeat("=", 60))
	s.printf("  %-10s %15s%s\n", "销售额", cur.Revenue.StringFixed(2), pct(res.Summary.RevenueChange))
	s.printf("  %-10s %15d%s\n", "订单数", cur.OrderCount, pct(res.Summary.OrderCountChange))
	s.printf("  %-10s %15d%s\n", "销售双数", cur.UnitsSold, pct(res.Summary.UnitsSoldChange))
	s.printf("  %-10s %15d%s\n", "客户数", cur.CustomerCount, pct(res.Summary.CustomerCountChange))
	if len(res.ProductsByQuantity) > 0 {
		s.println(strings.Repeat("-", 60))
		for i, p := range res.ProductsByQuantity {
			if i == 5 {
				break
			}
			s.printf("  %d. %-20s %4d双\n", i+1, p.Name, p.Quantity)
		}
	}
	s.println(strings.Repeat("=", 60))
}

func (s *shell) printHelp() {
	s.println("Commands:")
	s.println("  /orders [filter]          active orders (filter: rework, pendingPrice, unpaid, partial, paid)")
	s.println("  /show <ref>               one order by number or id")
	s.println("  /new                      create an order interactively")
	s.println("  /pay <ref> <amount> [m]   record a payment")
	s.println("  /ship <ref>               mark shipped")
	s.println("  /refund <ref>             mark refunded")
	s.println("  /trash <ref>...           move to trash")
	s.println("  /shipments                pending shipment report")
	s.println("  /totals                   revenue and outstanding totals")
	s.println("  /stats [day|week|month|quarter|year] [prev|next] [compare none|pop|yoy] [retail|wholesale|all]")
	s.println("  /exit                     quit")
	s.println("Anything else searches by customer, order number or product.")
}

func pct(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf(" (%+.1f%%)", *p*100)
}
