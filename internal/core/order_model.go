package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Enumerations ──────────────────────────────────────────────────────────────
//
// Canonical values are the English identifiers written to documents. Label
// returns the Chinese display title used by reports and by legacy documents.

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

var urgencyLabels = map[Urgency]string{
	UrgencyNormal: "正常",
	UrgencyUrgent: "加急",
}

func (u Urgency) Label() string { return urgencyLabels[u] }

type CustomerType string

const (
	CustomerRetail    CustomerType = "retail"
	CustomerWholesale CustomerType = "wholesale"
)

var customerTypeLabels = map[CustomerType]string{
	CustomerRetail:    "零售",
	CustomerWholesale: "批发",
}

func (c CustomerType) Label() string { return customerTypeLabels[c] }

type Trademark string

const (
	TrademarkNone  Trademark = "none"
	TrademarkGuest Trademark = "guestLabel"
)

var trademarkLabels = map[Trademark]string{
	TrademarkNone:  "无",
	TrademarkGuest: "客人标",
}

func (t Trademark) Label() string { return trademarkLabels[t] }

type ShipmentStatus string

const (
	ShipmentNotShipped ShipmentStatus = "notShipped"
	ShipmentShipped    ShipmentStatus = "shipped"
)

var shipmentLabels = map[ShipmentStatus]string{
	ShipmentNotShipped: "未寄出",
	ShipmentShipped:    "已寄出",
}

func (s ShipmentStatus) Label() string { return shipmentLabels[s] }

// OrderStatus distinguishes live orders from refunded ones. Refunded orders
// stay in the active list but are excluded from analytics and totals.
type OrderStatus string

const (
	OrderStatusActive   OrderStatus = "active"
	OrderStatusRefunded OrderStatus = "refunded"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusActive:   "正常",
	OrderStatusRefunded: "退货退款",
}

func (s OrderStatus) Label() string { return orderStatusLabels[s] }

type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bankTransfer"
	PaymentWeChat       PaymentMethod = "wechat"
	PaymentAlipay       PaymentMethod = "alipay"
	PaymentCash         PaymentMethod = "cash"
	PaymentOther        PaymentMethod = "other"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentBankTransfer: "银行转账",
	PaymentWeChat:       "微信",
	PaymentAlipay:       "支付宝",
	PaymentCash:         "现金",
	PaymentOther:        "其他",
}

func (m PaymentMethod) Label() string { return paymentMethodLabels[m] }

// PaymentStatus is derived from items and payments, never stored.
type PaymentStatus string

const (
	PaymentStatusPendingPrice PaymentStatus = "pendingPrice"
	PaymentStatusUnpaid       PaymentStatus = "unpaid"
	PaymentStatusPartial      PaymentStatus = "partial"
	PaymentStatusPaid         PaymentStatus = "paid"
)

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentStatusPendingPrice: "单价待定",
	PaymentStatusUnpaid:       "未收款",
	PaymentStatusPartial:      "部分收款",
	PaymentStatusPaid:         "已结清",
}

func (s PaymentStatus) Label() string { return paymentStatusLabels[s] }

type ProductType string

const (
	ProductCustom ProductType = "custom"
	ProductStock  ProductType = "stock"
)

var productTypeLabels = map[ProductType]string{
	ProductCustom: "定制",
	ProductStock:  "现货",
}

func (p ProductType) Label() string { return productTypeLabels[p] }

type ReworkReason string

const (
	ReworkWrongColor   ReworkReason = "wrongColor"
	ReworkWrongSize    ReworkReason = "wrongSize"
	ReworkWrongModel   ReworkReason = "wrongModel"
	ReworkWrongLeather ReworkReason = "wrongLeather"
	ReworkQualityIssue ReworkReason = "qualityIssue"
	ReworkOrderError   ReworkReason = "orderError"
	ReworkOther        ReworkReason = "other"
)

var reworkReasonLabels = map[ReworkReason]string{
	ReworkWrongColor:   "颜色错误",
	ReworkWrongSize:    "尺码错误",
	ReworkWrongModel:   "型号错误",
	ReworkWrongLeather: "皮料错误",
	ReworkQualityIssue: "质量问题",
	ReworkOrderError:   "订单填错",
	ReworkOther:        "其他",
}

func (r ReworkReason) Label() string { return reworkReasonLabels[r] }

// ── Entities ──────────────────────────────────────────────────────────────────

// Order is one customer order. Money values are decimals; every derived amount
// (totals, balance, payment status) is computed from Items and Payments.
type Order struct {
	ID             uuid.UUID      `json:"id"`
	OrderNumber    string         `json:"orderNumber"` // YYYYMMDD-NNN
	CustomerName   string         `json:"customerName"`
	Date           time.Time      `json:"date"`
	Items          []OrderItem    `json:"items"`
	Urgency        Urgency        `json:"urgency"`
	CustomerType   CustomerType   `json:"customerType"`
	Trademark      Trademark      `json:"trademark"`
	ShipmentStatus ShipmentStatus `json:"shipmentStatus"`
	Payments       []Payment      `json:"payments"`
	Status         OrderStatus    `json:"status"`
	ReworkItems    []ReworkItem   `json:"reworkItems"`
}

// OrderItem is one product line. SizeQuantities maps a size label such as
// "38码" to a pair count; a zero UnitPrice means the price is still pending.
type OrderItem struct {
	ID               uuid.UUID       `json:"id"`
	ProductName      string          `json:"productName"`
	Color            string          `json:"color"`
	Leather          string          `json:"leather"`
	SizeQuantities   map[string]int  `json:"sizeQuantities"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	ImageIDs         []string        `json:"imageIDs"`
	FactoryOrderText *string         `json:"factoryOrderText,omitempty"`
	ProductType      *ProductType    `json:"productType,omitempty"`
}

type Payment struct {
	ID     uuid.UUID       `json:"id"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
	Notes  string          `json:"notes"`
}

// ReworkItem records a remake of an existing item. OtherDetail is required
// when Reasons contains ReworkOther.
type ReworkItem struct {
	ID             uuid.UUID      `json:"id"`
	Date           time.Time      `json:"date"`
	OriginalItemID uuid.UUID      `json:"originalItemID"`
	Reasons        []ReworkReason `json:"reasons"`
	OtherDetail    string         `json:"otherReasonDetail"`
	ReworkedItem   OrderItem      `json:"reworkedItem"`
}

// balanceEpsilon absorbs rounding residue left by fractional payments.
var balanceEpsilon = decimal.NewFromFloat(0.001)

// ── Derived values ────────────────────────────────────────────────────────────

func (i OrderItem) TotalQuantity() int {
	total := 0
	for _, q := range i.SizeQuantities {
		total += q
	}
	return total
}

func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.TotalQuantity())))
}

// SortedSizes returns the size labels in ascending order, skipping empty entries.
func (i OrderItem) SortedSizes() []string {
	sizes := make([]string, 0, len(i.SizeQuantities))
	for size, q := range i.SizeQuantities {
		if q > 0 {
			sizes = append(sizes, size)
		}
	}
	sort.Strings(sizes)
	return sizes
}

func (o Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.TotalQuantity()
	}
	return total
}

func (o Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

func (o Order) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// BalanceDue is never negative; overpayment reads as zero.
func (o Order) BalanceDue() decimal.Decimal {
	due := o.TotalPrice().Sub(o.PaidAmount())
	if due.LessThan(balanceEpsilon) {
		return decimal.Zero
	}
	return due
}

func (o Order) HasPendingPrice() bool {
	for _, item := range o.Items {
		if !item.UnitPrice.IsPositive() {
			return true
		}
	}
	return false
}

func (o Order) PaymentStatus() PaymentStatus {
	switch {
	case o.HasPendingPrice():
		return PaymentStatusPendingPrice
	case !o.PaidAmount().IsPositive():
		return PaymentStatusUnpaid
	case o.BalanceDue().IsZero():
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

func (o Order) IsActive() bool { return o.Status != OrderStatusRefunded }

// ImageIDs lists every image referenced by the order's items and rework items.
func (o Order) ImageIDs() []string {
	var ids []string
	for _, item := range o.Items {
		ids = append(ids, item.ImageIDs...)
	}
	for _, rw := range o.ReworkItems {
		ids = append(ids, rw.ReworkedItem.ImageIDs...)
	}
	return ids
}

// PreviewImageIDs returns at most the first four item images.
func (o Order) PreviewImageIDs() []string {
	var ids []string
	for _, item := range o.Items {
		for _, id := range item.ImageIDs {
			if len(ids) == 4 {
				return ids
			}
			ids = append(ids, id)
		}
	}
	return ids
}

// FindItem returns the item with the given id.
func (o Order) FindItem(id uuid.UUID) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OrderItem{}, false
}

// Clone returns a deep copy that shares no maps or slices with o.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			c.Items[i] = item.Clone()
		}
	}
	if o.Payments != nil {
		c.Payments = append([]Payment(nil), o.Payments...)
	}
	if o.ReworkItems != nil {
		c.ReworkItems = make([]ReworkItem, len(o.ReworkItems))
		for i, rw := range o.ReworkItems {
			rw.Reasons = append([]ReworkReason(nil), rw.Reasons...)
			rw.ReworkedItem = rw.ReworkedItem.Clone()
			c.ReworkItems[i] = rw
		}
	}
	return c
}

func (i OrderItem) Clone() OrderItem {
	c := i
	if i.SizeQuantities != nil {
		c.SizeQuantities = make(map[string]int, len(i.SizeQuantities))
		for k, v := range i.SizeQuantities {
			c.SizeQuantities[k] = v
		}
	}
	if i.ImageIDs != nil {
		c.ImageIDs = append([]string(nil), i.ImageIDs...)
	}
	if i.FactoryOrderText != nil {
		text := *i.FactoryOrderText
		c.FactoryOrderText = &text
	}
	if i.ProductType != nil {
		pt := *i.ProductType
		c.ProductType = &pt
	}
	return c
}

func cloneOrders(orders []Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// SortByDateDesc orders newest first; equal dates keep their relative order.
func SortByDateDesc(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Date.After(orders[j].Date)
	})
}

// ── Parsing ───────────────────────────────────────────────────────────────────

func parseInput[T ~string](s string, labels map[T]string) (T, error) {
	var zero T
	v, err := parseEnum(&s, labels, zero)
	if err != nil {
		return zero, validationError("%v", err)
	}
	return v, nil
}

// ParseCustomerType accepts "retail", "wholesale" or their labels.
func ParseCustomerType(s string) (CustomerType, error) { return parseInput(s, customerTypeLabels) }

func ParseShipmentStatus(s string) (ShipmentStatus, error) { return parseInput(s, shipmentLabels) }

func ParseUrgency(s string) (Urgency, error) { return parseInput(s, urgencyLabels) }

func ParseTrademark(s string) (Trademark, error) { return parseInput(s, trademarkLabels) }

func ParsePaymentMethod(s string) (PaymentMethod, error) { return parseInput(s, paymentMethodLabels) }

func ParseReworkReason(s string) (ReworkReason, error) { return parseInput(s, reworkReasonLabels) }
