package report

import (
	"strings"
	"time"

	"order-ledger/internal/core"
)

// FactorySheet returns the production text for one item. An edited text
// stored on the item wins over the generated one.
func FactorySheet(order core.Order, item core.OrderItem, loc *time.Location) string {
	if item.FactoryOrderText != nil && strings.TrimSpace(*item.FactoryOrderText) != "" {
		return *item.FactoryOrderText
	}
	return GenerateFactorySheet(order, item, loc)
}

// GenerateFactorySheet builds the default production text.
func GenerateFactorySheet(order core.Order, item core.OrderItem, loc *time.Location) string {
	lines := []string{
		"订单编号: " + order.OrderNumber,
		"客户名称: " + order.CustomerName,
	}
	if order.Trademark == core.TrademarkGuest {
		lines = append(lines, "客人标")
	}
	lines = append(lines,
		"产品编号: "+item.ProductName,
		"颜色: "+item.Color,
		"码数+数量: "+SizeSummary(item.SizeQuantities),
	)
	if order.Urgency == core.UrgencyUrgent {
		lines = append(lines, "订单加急！")
	}
	lines = append(lines, "\n"+order.Date.In(loc).Format("2006年01月02日"))
	return strings.Join(lines, "\n")
}
