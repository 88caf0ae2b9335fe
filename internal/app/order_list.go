package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"order-ledger/internal/core"
)

var fold = cases.Fold()

func containsFold(s, substr string) bool {
	return strings.Contains(fold.String(s), substr)
}

// filterOrders keeps active orders matching every criterion of req.
func filterOrders(orders []core.Order, req ListOrdersRequest) []core.Order {
	needle := fold.String(strings.TrimSpace(req.Search))
	out := []core.Order{}
	for _, o := range orders {
		if !o.IsActive() || !matchesPayment(o, req.Filter) {
			continue
		}
		if req.CustomerType != nil && o.CustomerType != *req.CustomerType {
			continue
		}
		if req.Shipment != nil && o.ShipmentStatus != *req.Shipment {
			continue
		}
		if needle != "" && !matchesSearch(o, needle) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func matchesPayment(o core.Order, f PaymentFilter) bool {
	switch f {
	case FilterRework:
		return len(o.ReworkItems) > 0
	case FilterPendingPrice:
		return o.HasPendingPrice()
	case FilterUnpaid:
		return !o.HasPendingPrice() && o.PaymentStatus() == core.PaymentStatusUnpaid
	case FilterPartial:
		return !o.HasPendingPrice() && o.PaymentStatus() == core.PaymentStatusPartial
	case FilterPaid:
		return !o.HasPendingPrice() && o.PaymentStatus() == core.PaymentStatusPaid
	default:
		return true
	}
}

func matchesSearch(o core.Order, needle string) bool {
	if containsFold(o.CustomerName, needle) || containsFold(o.OrderNumber, needle) {
		return true
	}
	for _, item := range o.Items {
		if containsFold(item.ProductName, needle) {
			return true
		}
	}
	return false
}

// ParsePaymentFilter accepts the filter keys and the Chinese menu titles.
func ParsePaymentFilter(s string) (PaymentFilter, error) {
	switch strings.TrimSpace(s) {
	case "", "all", "所有订单":
		return FilterAll, nil
	case "rework", "含返工":
		return FilterRework, nil
	case "pendingPrice", "单价待定":
		return FilterPendingPrice, nil
	case "unpaid", "未收款":
		return FilterUnpaid, nil
	case "partial", "部分收款":
		return FilterPartial, nil
	case "paid", "已结清":
		return FilterPaid, nil
	}
	return FilterAll, fmt.Errorf("%w: unknown payment filter %q", core.ErrValidation, s)
}

// groupByRecency splits date-descending orders into 今日, 过去7日 and one
// group per calendar month, the current month titled 本月.
func groupByRecency(orders []core.Order, now time.Time, loc *time.Location) []OrderGroup {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	weekAgo := now.AddDate(0, 0, -7)

	groups := []OrderGroup{}
	index := map[string]int{}
	for _, o := range orders {
		d := o.Date.In(loc)
		var title string
		switch {
		case !d.Before(today) && d.Before(today.AddDate(0, 0, 1)):
			title = "今日"
		case !d.Before(weekAgo) && d.Before(today):
			title = "过去7日"
		case d.Year() == now.Year() && d.Month() == now.Month():
			title = "本月"
		default:
			title = fmt.Sprintf("%d年%d月", d.Year(), int(d.Month()))
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, OrderGroup{Title: title})
		}
		groups[i].Orders = append(groups[i].Orders, o)
	}
	return groups
}
