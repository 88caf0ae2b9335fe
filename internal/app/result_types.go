package app

import (
	"order-ledger/internal/analytics"
	"order-ledger/internal/backup"
	"order-ledger/internal/core"
	"order-ledger/internal/report"
)

// OrderResult is returned by single-order operations.
type OrderResult struct {
	Order         core.Order         `json:"order"`
	PaymentStatus core.PaymentStatus `json:"paymentStatus"`
	BalanceDue    string             `json:"balanceDue"`
}

func newOrderResult(o core.Order) *OrderResult {
	return &OrderResult{
		Order:         o,
		PaymentStatus: o.PaymentStatus(),
		BalanceDue:    o.BalanceDue().StringFixed(2),
	}
}

// OrderGroup is a titled run of orders: 今日, 过去7日, 本月 or a month.
type OrderGroup struct {
	Title  string       `json:"title"`
	Orders []core.Order `json:"orders"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
	Groups []OrderGroup `json:"groups"`
	Totals core.Totals  `json:"totals"`
}

// TrashResult is returned by ListTrash.
type TrashResult struct {
	Orders []core.Order `json:"orders"`
}

// CountResult reports how many orders a bulk operation touched.
type CountResult struct {
	Affected int `json:"affected"`
}

// AnalyticsResult wraps one aggregation.
type AnalyticsResult struct {
	analytics.Result
}

// ShipmentReportResult carries both the structured lines and the text.
type ShipmentReportResult struct {
	report.Shipments
	Text string `json:"text"`
}

// RestoreResult is returned by RestoreBackup.
type RestoreResult struct {
	backup.RestoreSummary
}

// SeedResult is returned by Seed.
type SeedResult struct {
	core.MergeResult
}
