package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// Document names shared by every DocumentStore implementation.
const (
	OrdersDocument  = "app_orders.json"
	DeletedDocument = "app_deleted_orders.json"
)

// referenceEpoch is the zero point of numeric dates found in legacy exports.
var referenceEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// ── Wire types ────────────────────────────────────────────────────────────────
//
// The wire types keep every optional field as a pointer so absent keys can be
// told apart from zero values while applying decode defaults.

type orderDoc struct {
	ID             *uuid.UUID   `json:"id,omitempty" jsonschema_description:"Order UUID; generated when absent"`
	OrderNumber    string       `json:"orderNumber" jsonschema_description:"Order number in the form YYYYMMDD-NNN"`
	CustomerName   string       `json:"customerName"`
	Date           docTime      `json:"date"`
	Items          []itemDoc    `json:"orderItems"`
	Urgency        *string      `json:"urgency,omitempty" jsonschema:"enum=normal,enum=urgent"`
	CustomerType   *string      `json:"customerType,omitempty" jsonschema:"enum=retail,enum=wholesale"`
	Trademark      *string      `json:"trademark,omitempty" jsonschema:"enum=none,enum=guestLabel"`
	ShipmentStatus *string      `json:"shipmentStatus,omitempty" jsonschema:"enum=notShipped,enum=shipped" jsonschema_description:"Absent means shipped"`
	TrackingNumber *string      `json:"trackingNumber,omitempty" jsonschema_description:"Legacy field, read only"`
	Payments       []paymentDoc `json:"payments,omitempty"`
	Status         *string      `json:"status,omitempty" jsonschema:"enum=active,enum=refunded"`
	ReworkItems    []reworkDoc  `json:"reworkItems,omitempty"`
}

type itemDoc struct {
	ID               *uuid.UUID     `json:"id,omitempty"`
	ProductName      string         `json:"productName"`
	Color            string         `json:"color"`
	Leather          string         `json:"leather"`
	SizeQuantities   map[string]int `json:"sizeQuantities"`
	UnitPrice        docAmount      `json:"unitPrice" jsonschema_description:"Price per pair; 0 means pending"`
	ImageIDs         []string       `json:"productImageIdentifiers"`
	FactoryOrderText *string        `json:"factoryOrderText,omitempty"`
	ProductType      *string        `json:"productType,omitempty" jsonschema:"enum=custom,enum=stock"`
}

type paymentDoc struct {
	ID     *uuid.UUID `json:"id,omitempty"`
	Date   docTime    `json:"date"`
	Amount docAmount  `json:"amount"`
	Method *string    `json:"method,omitempty" jsonschema:"enum=bankTransfer,enum=wechat,enum=alipay,enum=cash,enum=other"`
	Notes  string     `json:"notes"`
}

type reworkDoc struct {
	ID                *uuid.UUID `json:"id,omitempty"`
	Date              docTime    `json:"date"`
	OriginalItemID    uuid.UUID  `json:"originalOrderItemID"`
	Reasons           []string   `json:"reasons"`
	OtherReasonDetail string     `json:"otherReasonDetail"`
	ReworkedItem      itemDoc    `json:"reworkedItem"`
}

// docTime encodes as RFC 3339 and also decodes numeric seconds since 2001-01-01.
type docTime time.Time

func (t docTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

func (t *docTime) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		*t = docTime(parsed)
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", data, err)
	}
	whole, frac := math.Modf(secs)
	*t = docTime(referenceEpoch.Add(time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second))))
	return nil
}

func (docTime) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "date-time"}
}

// docAmount is a decimal written as a plain JSON number.
type docAmount decimal.Decimal

func (a docAmount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *docAmount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = docAmount(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(string(bytes.Trim(data, `"`)))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = docAmount(d)
	return nil
}

func (docAmount) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Minimum: json.Number("0")}
}

// ── Decode ────────────────────────────────────────────────────────────────────

// parseEnum accepts either the canonical value or its Chinese label.
func parseEnum[T ~string](raw *string, labels map[T]string, def T) (T, error) {
	if raw == nil || *raw == "" {
		return def, nil
	}
	if _, ok := labels[T(*raw)]; ok {
		return T(*raw), nil
	}
	for v, label := range labels {
		if label == *raw {
			return v, nil
		}
	}
	return def, fmt.Errorf("unknown value %q", *raw)
}

// DecodeOrders reads an order document, applying the defaults legacy
// documents rely on. An empty document decodes to an empty list.
func DecodeOrders(data []byte) ([]Order, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Order{}, nil
	}
	var docs []orderDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode order document: %w", err)
	}
	orders := make([]Order, 0, len(docs))
	for i, d := range docs {
		o, err := d.toOrder()
		if err != nil {
			return nil, fmt.Errorf("failed to decode order %d (%s): %w", i, d.OrderNumber, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (d orderDoc) toOrder() (Order, error) {
	o := Order{
		ID:           newIDIfNil(d.ID),
		OrderNumber:  d.OrderNumber,
		CustomerName: d.CustomerName,
		Date:         time.Time(d.Date),
		Items:        make([]OrderItem, 0, len(d.Items)),
		Payments:     make([]Payment, 0, len(d.Payments)),
		ReworkItems:  make([]ReworkItem, 0, len(d.ReworkItems)),
	}
	var err error
	if o.Urgency, err = parseEnum(d.Urgency, urgencyLabels, UrgencyNormal); err != nil {
		return Order{}, fmt.Errorf("urgency: %w", err)
	}
	if o.CustomerType, err = parseEnum(d.CustomerType, customerTypeLabels, CustomerRetail); err != nil {
		return Order{}, fmt.Errorf("customerType: %w", err)
	}
	if o.Trademark, err = parseEnum(d.Trademark, trademarkLabels, TrademarkNone); err != nil {
		return Order{}, fmt.Errorf("trademark: %w", err)
	}
	// Documents written before shipment tracking existed only ever held
	// orders that had already gone out.
	if o.ShipmentStatus, err = parseEnum(d.ShipmentStatus, shipmentLabels, ShipmentShipped); err != nil {
		return Order{}, fmt.Errorf("shipmentStatus: %w", err)
	}
	if o.Status, err = parseEnum(d.Status, orderStatusLabels, OrderStatusActive); err != nil {
		return Order{}, fmt.Errorf("status: %w", err)
	}
	for _, it := range d.Items {
		item, err := it.toItem()
		if err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	for _, p := range d.Payments {
		method, err := parseEnum(p.Method, paymentMethodLabels, PaymentOther)
		if err != nil {
			return Order{}, fmt.Errorf("payment method: %w", err)
		}
		o.Payments = append(o.Payments, Payment{
			ID:     newIDIfNil(p.ID),
			Date:   time.Time(p.Date),
			Amount: decimal.Decimal(p.Amount),
			Method: method,
			Notes:  p.Notes,
		})
	}
	for _, r := range d.ReworkItems {
		rw := ReworkItem{
			ID:             newIDIfNil(r.ID),
			Date:           time.Time(r.Date),
			OriginalItemID: r.OriginalItemID,
			Reasons:        make([]ReworkReason, 0, len(r.Reasons)),
			OtherDetail:    r.OtherReasonDetail,
		}
		for _, raw := range r.Reasons {
			reason, err := parseEnum(&raw, reworkReasonLabels, ReworkOther)
			if err != nil {
				return Order{}, fmt.Errorf("rework reason: %w", err)
			}
			rw.Reasons = append(rw.Reasons, reason)
		}
		if rw.ReworkedItem, err = r.ReworkedItem.toItem(); err != nil {
			return Order{}, err
		}
		o.ReworkItems = append(o.ReworkItems, rw)
	}
	return o, nil
}

func (d itemDoc) toItem() (OrderItem, error) {
	item := OrderItem{
		ID:               newIDIfNil(d.ID),
		ProductName:      d.ProductName,
		Color:            d.Color,
		Leather:          d.Leather,
		SizeQuantities:   make(map[string]int, len(d.SizeQuantities)),
		UnitPrice:        decimal.Decimal(d.UnitPrice),
		ImageIDs:         append([]string{}, d.ImageIDs...),
		FactoryOrderText: d.FactoryOrderText,
	}
	for size, q := range d.SizeQuantities {
		item.SizeQuantities[size] = q
	}
	if d.ProductType != nil {
		pt, err := parseEnum(d.ProductType, productTypeLabels, ProductCustom)
		if err != nil {
			return OrderItem{}, fmt.Errorf("productType: %w", err)
		}
		item.ProductType = &pt
	}
	return item, nil
}

func newIDIfNil(id *uuid.UUID) uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return uuid.New()
	}
	return *id
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeOrders writes the canonical, pretty-printed document form.
func EncodeOrders(orders []Order) ([]byte, error) {
	docs := make([]orderDoc, 0, len(orders))
	for _, o := range orders {
		docs = append(docs, fromOrder(o))
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode order document: %w", err)
	}
	return data, nil
}

func fromOrder(o Order) orderDoc {
	id := o.ID
	d := orderDoc{
		ID:             &id,
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.CustomerName,
		Date:           docTime(o.Date),
		Items:          make([]itemDoc, 0, len(o.Items)),
		Urgency:        strPtr(string(o.Urgency)),
		CustomerType:   strPtr(string(o.CustomerType)),
		Trademark:      strPtr(string(o.Trademark)),
		ShipmentStatus: strPtr(string(o.ShipmentStatus)),
		Status:         strPtr(string(o.Status)),
		Payments:       make([]paymentDoc, 0, len(o.Payments)),
		ReworkItems:    make([]reworkDoc, 0, len(o.ReworkItems)),
	}
	for _, item := range o.Items {
		d.Items = append(d.Items, fromItem(item))
	}
	for _, p := range o.Payments {
		pid := p.ID
		d.Payments = append(d.Payments, paymentDoc{
			ID:     &pid,
			Date:   docTime(p.Date),
			Amount: docAmount(p.Amount),
			Method: strPtr(string(p.Method)),
			Notes:  p.Notes,
		})
	}
	for _, rw := range o.ReworkItems {
		rid := rw.ID
		reasons := make([]string, 0, len(rw.Reasons))
		for _, r := range rw.Reasons {
			reasons = append(reasons, string(r))
		}
		d.ReworkItems = append(d.ReworkItems, reworkDoc{
			ID:                &rid,
			Date:              docTime(rw.Date),
			OriginalItemID:    rw.OriginalItemID,
			Reasons:           reasons,
			OtherReasonDetail: rw.OtherDetail,
			ReworkedItem:      fromItem(rw.ReworkedItem),
		})
	}
	return d
}

func fromItem(item OrderItem) itemDoc {
	id := item.ID
	d := itemDoc{
		ID:               &id,
		ProductName:      item.ProductName,
		Color:            item.Color,
		Leather:          item.Leather,
		SizeQuantities:   item.SizeQuantities,
		UnitPrice:        docAmount(item.UnitPrice),
		ImageIDs:         item.ImageIDs,
		FactoryOrderText: item.FactoryOrderText,
	}
	if d.SizeQuantities == nil {
		d.SizeQuantities = map[string]int{}
	}
	if d.ImageIDs == nil {
		d.ImageIDs = []string{}
	}
	if item.ProductType != nil {
		d.ProductType = strPtr(string(*item.ProductType))
	}
	return d
}

func strPtr(s string) *string { return &s }

// OrderDocumentSchema describes the order document for external tooling.
func OrderDocumentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(uuid.UUID{}) {
				return &jsonschema.Schema{Type: "string", Format: "uuid"}
			}
			return nil
		},
	}
	schema := reflector.Reflect([]orderDoc{})
	schema.Title = "Order document"
	return schema
}
