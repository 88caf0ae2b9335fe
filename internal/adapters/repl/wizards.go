package repl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

func (s *shell) prompt(label string) string {
	s.printf("%s", label)
	line, _ := s.reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// handleNewOrder runs an interactive order creation session.
func (s *shell) handleNewOrder() {
	customer := s.prompt("Customer name: ")
	if customer == "" || strings.EqualFold(customer, "cancel") {
		s.println("Order creation cancelled.")
		return
	}

	customerType := core.CustomerRetail
	if raw := s.prompt("Customer type (零售/批发) [零售]: "); raw != "" {
		ct, err := core.ParseCustomerType(raw)
		if err != nil {
			s.printf("  %v\n", err)
			return
		}
		customerType = ct
	}

	s.println("Enter items. Type 'done' when finished, 'cancel' to abort.")
	s.println("Format per line: <product> <color> <size:qty,size:qty> [unit-price]")
	s.println("  Example: 乐福鞋 黑色 37:1,38:2 350")

	var items []app.OrderItemInput
	lineNum := 1
	for {
		raw := s.prompt(fmt.Sprintf("  Item %d: ", lineNum))
		switch strings.ToLower(raw) {
		case "cancel":
			s.println("Order creation cancelled.")
			return
		case "done":
		case "":
			continue
		default:
			item, err := parseItemLine(raw)
			if err != nil {
				s.printf("  %v\n", err)
				continue
			}
			items = append(items, item)
			lineNum++
			continue
		}
		break
	}

	if len(items) == 0 {
		s.println("No items entered. Order not created.")
		return
	}

	req := app.CreateOrderRequest{
		CustomerName: customer,
		CustomerType: customerType,
		Items:        items,
	}
	if raw := s.prompt("Order date (YYYY-MM-DD, leave blank for today): "); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			s.printf("  Invalid date: %s\n", raw)
			return
		}
		req.Date = d
	}
	if strings.EqualFold(s.prompt("Urgent? (y/n) [n]: "), "y") {
		req.Urgency = core.UrgencyUrgent
	}

	result, err := s.svc.CreateOrder(s.ctx, req)
	if err != nil {
		s.printf("Error creating order: %v\n", err)
		return
	}
	s.printf("\nOrder created: %s\n", result.Order.OrderNumber)
	s.printOrderDetail(result)
}

// parseItemLine reads "<product> <color> <size:qty,...> [price]". A missing
// price leaves the item pending.
func parseItemLine(raw string) (app.OrderItemInput, error) {
	parts := strings.Fields(raw)
	if len(parts) < 3 {
		return app.OrderItemInput{}, fmt.Errorf("invalid format, use: <product> <color> <size:qty,...> [unit-price]")
	}
	sizes := make(map[string]int)
	for _, pair := range strings.Split(parts[2], ",") {
		size, qtyStr, ok := strings.Cut(pair, ":")
		if !ok {
			return app.OrderItemInput{}, fmt.Errorf("invalid size %q, use size:qty", pair)
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil || qty <= 0 {
			return app.OrderItemInput{}, fmt.Errorf("invalid quantity %q", qtyStr)
		}
		if !strings.HasSuffix(size, "码") {
			size += "码"
		}
		sizes[size] += qty
	}
	item := app.OrderItemInput{ProductName: parts[0], Color: parts[1], SizeQuantities: sizes}
	if len(parts) >= 4 {
		price, err := decimal.NewFromString(parts[3])
		if err != nil || price.IsNegative() {
			return app.OrderItemInput{}, fmt.Errorf("invalid price %q", parts[3])
		}
		item.UnitPrice = price
	}
	return item, nil
}
