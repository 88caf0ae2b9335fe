// Package report renders orders into the text formats shared with customers,
// the factory and spreadsheet tools.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"order-ledger/internal/core"
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{
	"订单号", "客户名称", "产品编号ID", "颜色/皮料", "码数/件数",
	"总件数", "无标/客人标", "单价💰", "销售总金额", "订单日期",
}

// FlatRecord is one exported row: a single item of an order.
type FlatRecord struct {
	OrderNumber   string
	CustomerName  string
	ProductName   string
	ColorLeather  string
	SizeSummary   string
	TotalQuantity int
	Trademark     string
	UnitPrice     string
	TotalPrice    string
	OrderDate     string
}

func (r FlatRecord) fields() []string {
	return []string{
		r.OrderNumber, r.CustomerName, r.ProductName, r.ColorLeather, r.SizeSummary,
		fmt.Sprint(r.TotalQuantity), r.Trademark, r.UnitPrice, r.TotalPrice, r.OrderDate,
	}
}

// ExportFileName names an export produced on the given day.
func ExportFileName(now time.Time) string {
	return "数据库导出_" + now.Format("2006-01-02") + ".csv"
}

// FlatRecords flattens orders newest first into one record per item.
// Items without any positive size quantity are skipped.
func FlatRecords(orders []core.Order, loc *time.Location) []FlatRecord {
	sorted := make([]core.Order, len(orders))
	copy(sorted, orders)
	core.SortByDateDesc(sorted)

	var out []FlatRecord
	for _, o := range sorted {
		for _, item := range o.Items {
			if item.TotalQuantity() <= 0 {
				continue
			}
			out = append(out, FlatRecord{
				OrderNumber:   o.OrderNumber,
				CustomerName:  o.CustomerName,
				ProductName:   item.ProductName,
				ColorLeather:  item.Color,
				SizeSummary:   SizeSummary(item.SizeQuantities),
				TotalQuantity: item.TotalQuantity(),
				Trademark:     o.Trademark.Label(),
				UnitPrice:     formatCNY(item.UnitPrice.StringFixed(2)),
				TotalPrice:    formatCNY(item.TotalPrice().StringFixed(2)),
				OrderDate:     o.Date.In(loc).Format("2006/01/02"),
			})
		}
	}
	return out
}

func formatCNY(amount string) string { return "CN¥" + amount }

// SizeSummary renders sizes as "37x1, 38x2": keys sorted, the 码 suffix
// dropped, zero quantities omitted.
func SizeSummary(sizes map[string]int) string {
	keys := make([]string, 0, len(sizes))
	for k, q := range sizes {
		if q > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%sx%d", strings.ReplaceAll(k, "码", ""), sizes[k])
	}
	return strings.Join(parts, ", ")
}

// WriteCSV writes a BOM-prefixed UTF-8 CSV so spreadsheet tools pick the
// right encoding for the Chinese headers.
func WriteCSV(w io.Writer, orders []core.Order, loc *time.Location) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range FlatRecords(orders, loc) {
		if err := cw.Write(rec.fields()); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", rec.OrderNumber, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish csv: %w", err)
	}
	return nil
}
