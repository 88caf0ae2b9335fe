package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"order-ledger/internal/core"
)

// DefaultDeadlineDays is how long after the order date a shipment is due.
const DefaultDeadlineDays = 7

// AllShippedMessage is the report text when nothing is waiting to ship.
const AllShippedMessage = "太棒了！所有订单均已出货。"

// ShipmentLine is one unshipped order with its days until the deadline;
// negative values mean overdue.
type ShipmentLine struct {
	OrderNumber string `json:"orderNumber"`
	Customer    string `json:"customer"`
	Quantity    int    `json:"quantity"`
	DaysLeft    int    `json:"daysLeft"`
	Urgent      bool   `json:"urgent"`
}

// Status renders the deadline state.
func (l ShipmentLine) Status() string {
	switch {
	case l.DaysLeft < 0:
		return fmt.Sprintf("逾期 %d 日", -l.DaysLeft)
	case l.DaysLeft == 0:
		return "今日出货！"
	default:
		return fmt.Sprintf("%d 日内出货", l.DaysLeft)
	}
}

func (l ShipmentLine) String() string {
	return fmt.Sprintf("订单: %s | %s | %d对", l.OrderNumber, l.Status(), l.Quantity)
}

// Shipments groups the active, unshipped orders into urgent and normal lists,
// each sorted by days remaining.
type Shipments struct {
	Urgent []ShipmentLine `json:"urgent"`
	Normal []ShipmentLine `json:"normal"`
}

func (s Shipments) Empty() bool { return len(s.Urgent) == 0 && len(s.Normal) == 0 }

func (s Shipments) UrgentQuantity() int { return sumQuantity(s.Urgent) }
func (s Shipments) NormalQuantity() int { return sumQuantity(s.Normal) }

func sumQuantity(lines []ShipmentLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// PendingShipments computes deadlines relative to the start of today in loc.
func PendingShipments(orders []core.Order, now time.Time, deadlineDays int, loc *time.Location) Shipments {
	today := dayStart(now, loc)
	var s Shipments
	for _, o := range orders {
		if !o.IsActive() || o.ShipmentStatus != core.ShipmentNotShipped {
			continue
		}
		deadline := dayStart(o.Date, loc).AddDate(0, 0, deadlineDays)
		line := ShipmentLine{
			OrderNumber: o.OrderNumber,
			Customer:    o.CustomerName,
			Quantity:    o.TotalQuantity(),
			DaysLeft:    daysBetween(today, deadline),
			Urgent:      o.Urgency == core.UrgencyUrgent,
		}
		if line.Urgent {
			s.Urgent = append(s.Urgent, line)
		} else {
			s.Normal = append(s.Normal, line)
		}
	}
	byDays := func(lines []ShipmentLine) {
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].DaysLeft < lines[j].DaysLeft })
	}
	byDays(s.Urgent)
	byDays(s.Normal)
	return s
}

// ShipmentReport renders the plain-text shipping summary sent to the factory.
func ShipmentReport(orders []core.Order, now time.Time, deadlineDays int, loc *time.Location) string {
	s := PendingShipments(orders, now, deadlineDays, loc)
	if s.Empty() {
		return AllShippedMessage
	}

	lines := []string{
		fmt.Sprintf("待出货总数：%d对", s.UrgentQuantity()+s.NormalQuantity()),
		fmt.Sprintf("加急出货总数：%d对", s.UrgentQuantity()),
		fmt.Sprintf("正常出货总数：%d对", s.NormalQuantity()),
		"",
	}
	if len(s.Urgent) > 0 {
		lines = append(lines, "一、加急出货")
		for i, l := range s.Urgent {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, l))
		}
		lines = append(lines, "")
	}
	if len(s.Normal) > 0 {
		lines = append(lines, "二、正常出货")
		for i, l := range s.Normal {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, l))
		}
	}
	return strings.Join(lines, "\n")
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days, so DST shifts do not skew the result.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
