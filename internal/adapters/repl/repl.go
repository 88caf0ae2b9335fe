package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"order-ledger/internal/analytics"
	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

var errExit = errors.New("exit")

type shell struct {
	ctx    context.Context
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
}

// Run starts the interactive loop. Slash commands are dispatched directly;
// any other input is used as an order search.
func Run(ctx context.Context, svc app.ApplicationService, in io.Reader, out io.Writer) {
	s := &shell{ctx: ctx, svc: svc, reader: bufio.NewReader(in), out: out}

	s.println("Order Ledger")
	if totals, err := svc.Totals(ctx); err == nil {
		s.printf("总金额 %s   未收款 %s\n", totals.Revenue.StringFixed(2), totals.Unconfirmed.StringFixed(2))
	}
	s.println("Type a customer, order number or product to search, or /help for commands.")
	s.println(strings.Repeat("-", 70))

	for {
		s.printf("\n> ")
		input, err := s.reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := s.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					s.println("Goodbye!")
					return
				}
				s.printf("Error: %v\n", err)
			}
			continue
		}

		result, err := svc.ListOrders(ctx, app.ListOrdersRequest{Search: input})
		if err != nil {
			s.printf("Error: %v\n", err)
			continue
		}
		s.printOrders(result)
	}
}

func (s *shell) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]
	ctx, svc := s.ctx, s.svc

	switch cmd {
	case "orders", "o":
		req := app.ListOrdersRequest{}
		if len(args) > 0 {
			f, err := app.ParsePaymentFilter(args[0])
			if err != nil {
				return err
			}
			req.Filter = f
		}
		result, err := svc.ListOrders(ctx, req)
		if err != nil {
			return err
		}
		s.printOrders(result)

	case "show":
		if len(args) < 1 {
			s.println("Usage: /show <order-ref>")
			return nil
		}
		result, err := svc.GetOrder(ctx, args[0])
		if err != nil {
			return err
		}
		s.printOrderDetail(result)

	case "new", "new-order":
		s.handleNewOrder()

	case "pay", "payment":
		// Usage: /pay <order-ref> <amount> [method]
		if len(args) < 2 {
			s.println("Usage: /pay <order-ref> <amount> [bankTransfer|wechat|alipay|cash|other]")
			return nil
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil || !amount.IsPositive() {
			s.printf("Invalid amount: %s\n", args[1])
			return nil
		}
		method := core.PaymentWeChat
		if len(args) >= 3 {
			if method, err = core.ParsePaymentMethod(args[2]); err != nil {
				return err
			}
		}
		result, err := svc.RecordPayment(ctx, app.PaymentRequest{Ref: args[0], Amount: amount, Method: method})
		if err != nil {
			return err
		}
		s.printf("Payment recorded for %s. %s, balance due %s.\n",
			result.Order.OrderNumber, result.PaymentStatus.Label(), result.BalanceDue)

	case "ship":
		if len(args) < 1 {
			s.println("Usage: /ship <order-ref>")
			return nil
		}
		result, err := svc.SetShipment(ctx, args[0], core.ShipmentShipped)
		if err != nil {
			return err
		}
		s.printf("Order %s marked as %s.\n", result.Order.OrderNumber, result.Order.ShipmentStatus.Label())

	case "refund":
		if len(args) < 1 {
			s.println("Usage: /refund <order-ref>")
			return nil
		}
		result, err := svc.RefundOrder(ctx, args[0])
		if err != nil {
			return err
		}
		s.printf("Order %s refunded.\n", result.Order.OrderNumber)

	case "trash":
		if len(args) < 1 {
			s.println("Usage: /trash <order-ref>...")
			return nil
		}
		result, err := svc.TrashOrders(ctx, args)
		if err != nil {
			return err
		}
		s.printf("Moved %d order(s) to trash.\n", result.Affected)

	case "shipments":
		result, err := svc.ShipmentReport(ctx)
		if err != nil {
			return err
		}
		s.println(result.Text)

	case "totals":
		totals, err := svc.Totals(ctx)
		if err != nil {
			return err
		}
		s.printTotals(totals)

	case "stats":
		return s.handleStats(args)

	case "help", "h":
		s.printHelp()

	case "exit", "quit", "e", "q":
		return errExit

	default:
		s.printf("Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// handleStats drives the shared analytics selection:
//
//	/stats                       current selection
//	/stats day|week|month|...    change granularity
//	/stats prev|next             move one period
//	/stats compare none|pop|yoy  comparison mode
//	/stats retail|wholesale|all  customer type filter
func (s *shell) handleStats(args []string) error {
	var req app.AnalyticsRequest
	for _, a := range args {
		switch a {
		case "prev", "previous":
			req.Step--
		case "next":
			req.Step++
		case "all":
			req.AllTypes = true
		case "compare":
		case "none", "pop", "yoy":
			c := map[string]analytics.Comparison{
				"none": analytics.CompareNone,
				"pop":  analytics.ComparePeriodOverPeriod,
				"yoy":  analytics.CompareYearOverYear,
			}[a]
			req.Comparison = &c
		default:
			if g, err := analytics.ParseGranularity(a); err == nil {
				req.Granularity = &g
				continue
			}
			ct, err := core.ParseCustomerType(a)
			if err != nil {
				return fmt.Errorf("unknown /stats argument %q", a)
			}
			req.CustomerType = &ct
		}
	}

	var (
		result *app.AnalyticsResult
		err    error
	)
	if len(args) == 0 {
		result, err = s.svc.CurrentAnalytics(s.ctx)
	} else {
		result, err = s.svc.ConfigureAnalytics(s.ctx, req)
	}
	if err != nil {
		return err
	}
	s.printAnalytics(result)
	return nil
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) println(args ...any) {
	fmt.Fprintln(s.out, args...)
}
