package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrValidation is wrapped by every rejection raised before persistence.
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Normalize fills defaults for absent enum values, assigns missing ids and
// prunes size entries whose quantity is not positive.
func Normalize(o *Order) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Urgency == "" {
		o.Urgency = UrgencyNormal
	}
	if o.CustomerType == "" {
		o.CustomerType = CustomerRetail
	}
	if o.Trademark == "" {
		o.Trademark = TrademarkNone
	}
	if o.ShipmentStatus == "" {
		o.ShipmentStatus = ShipmentNotShipped
	}
	if o.Status == "" {
		o.Status = OrderStatusActive
	}
	if o.Payments == nil {
		o.Payments = []Payment{}
	}
	if o.ReworkItems == nil {
		o.ReworkItems = []ReworkItem{}
	}
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	for i := range o.Items {
		normalizeItem(&o.Items[i])
	}
	for i := range o.Payments {
		if o.Payments[i].ID == uuid.Nil {
			o.Payments[i].ID = uuid.New()
		}
		if o.Payments[i].Method == "" {
			o.Payments[i].Method = PaymentOther
		}
	}
	for i := range o.ReworkItems {
		if o.ReworkItems[i].ID == uuid.Nil {
			o.ReworkItems[i].ID = uuid.New()
		}
		normalizeItem(&o.ReworkItems[i].ReworkedItem)
	}
}

func normalizeItem(item *OrderItem) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for size, q := range item.SizeQuantities {
		if q <= 0 {
			delete(item.SizeQuantities, size)
		}
	}
	if item.SizeQuantities == nil {
		item.SizeQuantities = map[string]int{}
	}
	if item.ImageIDs == nil {
		item.ImageIDs = []string{}
	}
}

// ValidateOrder checks the invariants an order must hold before it is stored.
func ValidateOrder(o Order) error {
	if len(o.Items) == 0 {
		return validationError("order %s has no items", o.OrderNumber)
	}
	if o.CustomerName == "" {
		return validationError("customer name is required")
	}
	for i, item := range o.Items {
		if err := validateItem(item); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	for _, p := range o.Payments {
		if p.Amount.IsNegative() {
			return validationError("payment amount %s is negative", p.Amount)
		}
		if _, ok := paymentMethodLabels[p.Method]; !ok {
			return validationError("unknown payment method %q", p.Method)
		}
	}
	for _, rw := range o.ReworkItems {
		if err := ValidateRework(rw); err != nil {
			return err
		}
	}
	if _, ok := urgencyLabels[o.Urgency]; !ok {
		return validationError("unknown urgency %q", o.Urgency)
	}
	if _, ok := customerTypeLabels[o.CustomerType]; !ok {
		return validationError("unknown customer type %q", o.CustomerType)
	}
	if _, ok := trademarkLabels[o.Trademark]; !ok {
		return validationError("unknown trademark %q", o.Trademark)
	}
	if _, ok := shipmentLabels[o.ShipmentStatus]; !ok {
		return validationError("unknown shipment status %q", o.ShipmentStatus)
	}
	if _, ok := orderStatusLabels[o.Status]; !ok {
		return validationError("unknown order status %q", o.Status)
	}
	return nil
}

func validateItem(item OrderItem) error {
	if strings.TrimSpace(item.ProductName) == "" {
		return validationError("product name is required")
	}
	if item.UnitPrice.IsNegative() {
		return validationError("unit price %s is negative", item.UnitPrice)
	}
	if item.ProductType != nil {
		if _, ok := productTypeLabels[*item.ProductType]; !ok {
			return validationError("unknown product type %q", *item.ProductType)
		}
	}
	return nil
}

// ValidateRework requires at least one reason and a detail text for "other".
func ValidateRework(rw ReworkItem) error {
	if len(rw.Reasons) == 0 {
		return validationError("rework needs at least one reason")
	}
	for _, r := range rw.Reasons {
		if _, ok := reworkReasonLabels[r]; !ok {
			return validationError("unknown rework reason %q", r)
		}
		if r == ReworkOther && strings.TrimSpace(rw.OtherDetail) == "" {
			return validationError("rework reason %q requires a detail", ReworkOther)
		}
	}
	return nil
}
