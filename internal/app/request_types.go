package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-ledger/internal/analytics"
	"order-ledger/internal/core"
)

// OrderItemInput is one product line of a create or edit request.
type OrderItemInput struct {
	ID               uuid.UUID         `json:"id,omitempty"`
	ProductName      string            `json:"productName"`
	Color            string            `json:"color"`
	Leather          string            `json:"leather"`
	SizeQuantities   map[string]int    `json:"sizeQuantities"`
	UnitPrice        decimal.Decimal   `json:"unitPrice"`
	ImageIDs         []string          `json:"imageIDs"`
	FactoryOrderText *string           `json:"factoryOrderText,omitempty"`
	ProductType      *core.ProductType `json:"productType,omitempty"`
}

func (in OrderItemInput) toItem() core.OrderItem {
	return core.OrderItem{
		ID:               in.ID,
		ProductName:      in.ProductName,
		Color:            in.Color,
		Leather:          in.Leather,
		SizeQuantities:   in.SizeQuantities,
		UnitPrice:        in.UnitPrice,
		ImageIDs:         in.ImageIDs,
		FactoryOrderText: in.FactoryOrderText,
		ProductType:      in.ProductType,
	}
}

// CreateOrderRequest is the input for a new order. The order number is
// always assigned by the ledger. A zero Date means now.
type CreateOrderRequest struct {
	CustomerName   string              `json:"customerName"`
	CustomerType   core.CustomerType   `json:"customerType"`
	Urgency        core.Urgency        `json:"urgency"`
	Trademark      core.Trademark      `json:"trademark"`
	ShipmentStatus core.ShipmentStatus `json:"shipmentStatus"`
	Date           time.Time           `json:"date"`
	Items          []OrderItemInput    `json:"items"`
}

func (r CreateOrderRequest) toOrder() core.Order {
	o := core.Order{
		CustomerName:   r.CustomerName,
		CustomerType:   r.CustomerType,
		Urgency:        r.Urgency,
		Trademark:      r.Trademark,
		ShipmentStatus: r.ShipmentStatus,
		Date:           r.Date,
		Status:         core.OrderStatusActive,
	}
	for _, in := range r.Items {
		o.Items = append(o.Items, in.toItem())
	}
	return o
}

// UpdateOrderRequest replaces the editable fields of an existing order.
// Payments, rework and the order number are kept.
type UpdateOrderRequest struct {
	Ref string `json:"-"`
	CreateOrderRequest
}

// PaymentRequest records a payment against an order. A zero Date means now.
type PaymentRequest struct {
	Ref    string             `json:"-"`
	Amount decimal.Decimal    `json:"amount"`
	Method core.PaymentMethod `json:"method"`
	Date   time.Time          `json:"date"`
	Notes  string             `json:"notes"`
}

// ReworkRequest records a remake of one item of an order.
type ReworkRequest struct {
	Ref            string              `json:"-"`
	OriginalItemID uuid.UUID           `json:"originalItemID"`
	Reasons        []core.ReworkReason `json:"reasons"`
	OtherDetail    string              `json:"otherReasonDetail"`
	Date           time.Time           `json:"date"`
	Item           OrderItemInput      `json:"item"`
}

// PaymentFilter narrows an order list the way the order screen's status menu does.
type PaymentFilter string

const (
	FilterAll          PaymentFilter = ""
	FilterRework       PaymentFilter = "rework"
	FilterPendingPrice PaymentFilter = "pendingPrice"
	FilterUnpaid       PaymentFilter = "unpaid"
	FilterPartial      PaymentFilter = "partial"
	FilterPaid         PaymentFilter = "paid"
)

// ListOrdersRequest filters active orders. Search matches customer name,
// order number or product name without regard to case.
type ListOrdersRequest struct {
	Search       string
	Filter       PaymentFilter
	CustomerType *core.CustomerType
	Shipment     *core.ShipmentStatus
}

// AnalyticsRequest adjusts the analytics selection. Nil fields keep the
// current value; Step moves the anchor by whole periods.
type AnalyticsRequest struct {
	Granularity  *analytics.Granularity `json:"granularity,omitempty"`
	Anchor       *time.Time             `json:"anchor,omitempty"`
	Step         int                    `json:"step,omitempty"`
	From         *time.Time             `json:"from,omitempty"`
	To           *time.Time             `json:"to,omitempty"`
	ClearCustom  bool                   `json:"clearCustom,omitempty"`
	CustomerType *core.CustomerType     `json:"customerType,omitempty"`
	AllTypes     bool                   `json:"allTypes,omitempty"`
	Comparison   *analytics.Comparison  `json:"comparison,omitempty"`
	Customer     *string                `json:"customer,omitempty"`
}

// maxAnalyticsStep bounds one navigation request to a century of months.
const maxAnalyticsStep = 1200

// Validate canonicalises the enum fields and rejects values the analytics
// engine cannot interpret.
func (r AnalyticsRequest) Validate() (AnalyticsRequest, error) {
	if r.Granularity != nil {
		g, err := analytics.ParseGranularity(string(*r.Granularity))
		if err != nil {
			return r, fmt.Errorf("%w: %v", core.ErrValidation, err)
		}
		r.Granularity = &g
	}
	if r.Comparison != nil {
		c, err := analytics.ParseComparison(string(*r.Comparison))
		if err != nil {
			return r, fmt.Errorf("%w: %v", core.ErrValidation, err)
		}
		r.Comparison = &c
	}
	if r.CustomerType != nil {
		ct, err := core.ParseCustomerType(string(*r.CustomerType))
		if err != nil {
			return r, err
		}
		r.CustomerType = &ct
	}
	if r.Step > maxAnalyticsStep || r.Step < -maxAnalyticsStep {
		return r, fmt.Errorf("%w: step must be within ±%d", core.ErrValidation, maxAnalyticsStep)
	}
	if (r.From == nil) != (r.To == nil) {
		return r, fmt.Errorf("%w: a custom range needs both from and to", core.ErrValidation)
	}
	return r, nil
}

// Apply returns cfg with the request applied.
func (r AnalyticsRequest) Apply(cfg analytics.Config) analytics.Config {
	if r.Granularity != nil {
		cfg.Granularity = *r.Granularity
	}
	if r.Anchor != nil {
		cfg.Anchor = *r.Anchor
	}
	if r.ClearCustom {
		cfg.Custom = nil
	}
	if r.From != nil && r.To != nil {
		cfg.Custom = &analytics.CustomRange{From: *r.From, To: *r.To}
	}
	if r.Step != 0 {
		cfg = cfg.Shift(r.Step)
	}
	if r.AllTypes {
		cfg.CustomerType = nil
	}
	if r.CustomerType != nil {
		ct := *r.CustomerType
		cfg.CustomerType = &ct
	}
	if r.Comparison != nil {
		cfg.Comparison = *r.Comparison
	}
	if r.Customer != nil {
		cfg.SelectedCustomer = *r.Customer
	}
	return cfg
}

// SeedRequest generates sample orders. Replace clears every existing order
// and image first.
type SeedRequest struct {
	Count   int
	Replace bool
	Seed    int64
}

// SettingsRequest changes user preferences.
type SettingsRequest struct {
	FontScale *float64 `json:"fontScale,omitempty"`
}
