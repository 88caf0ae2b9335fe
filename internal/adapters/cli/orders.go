package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

func (r *runner) ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"o"},
		Short:   "List and edit orders",
	}

	var search, filter, customerType, shipment string
	list := &cobra.Command{
		Use:   "list",
		Short: "List active orders grouped by recency",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			f, err := app.ParsePaymentFilter(filter)
			if err != nil {
				return err
			}
			req := app.ListOrdersRequest{Search: search, Filter: f}
			if customerType != "" {
				ct, err := core.ParseCustomerType(customerType)
				if err != nil {
					return err
				}
				req.CustomerType = &ct
			}
			if shipment != "" {
				st, err := core.ParseShipmentStatus(shipment)
				if err != nil {
					return err
				}
				req.Shipment = &st
			}
			result, err := svc.ListOrders(ctx, req)
			if err != nil {
				return err
			}
			if r.asJSON {
				return r.printJSON(result)
			}
			r.printOrderList(result)
			return nil
		}),
	}
	list.Flags().StringVarP(&search, "search", "q", "", "match customer, order number or product")
	list.Flags().StringVar(&filter, "filter", "", "payment filter: rework, pendingPrice, unpaid, partial, paid")
	list.Flags().StringVar(&customerType, "type", "", "customer type: retail or wholesale")
	list.Flags().StringVar(&shipment, "shipment", "", "shipment status: shipped or notShipped")

	show := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show one order by id or order number",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			result, err := svc.GetOrder(ctx, args[0])
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}

	add := &cobra.Command{
		Use:   "add <file|->",
		Short: "Create an order from a JSON request",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			data, err := r.readInput(args[0])
			if err != nil {
				return err
			}
			var req app.CreateOrderRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid order JSON: %w", err)
			}
			result, err := svc.CreateOrder(ctx, req)
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}

	refund := &cobra.Command{
		Use:   "refund <ref>",
		Short: "Mark an order refunded",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			result, err := svc.RefundOrder(ctx, args[0])
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}

	reactivate := &cobra.Command{
		Use:   "reactivate <ref>",
		Short: "Return a refunded order to the active list",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			result, err := svc.ReactivateOrder(ctx, args[0])
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}

	var status string
	ship := &cobra.Command{
		Use:   "ship <ref>",
		Short: "Set the shipment status",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			st, err := core.ParseShipmentStatus(status)
			if err != nil {
				return err
			}
			result, err := svc.SetShipment(ctx, args[0], st)
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}
	ship.Flags().StringVar(&status, "status", string(core.ShipmentShipped), "shipped or notShipped")

	var amount, method, notes, date string
	pay := &cobra.Command{
		Use:   "pay <ref>",
		Short: "Record a payment",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			m, err := core.ParsePaymentMethod(method)
			if err != nil {
				return err
			}
			req := app.PaymentRequest{Ref: args[0], Amount: amt, Method: m, Notes: notes, Date: r.now()}
			if date != "" {
				if req.Date, err = time.ParseInLocation("2006-01-02", date, time.Local); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}
			result, err := svc.RecordPayment(ctx, req)
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}
	pay.Flags().StringVar(&amount, "amount", "", "amount received")
	pay.Flags().StringVar(&method, "method", string(core.PaymentWeChat), "bankTransfer, wechat, alipay, cash or other")
	pay.Flags().StringVar(&notes, "notes", "", "free-form note")
	pay.Flags().StringVar(&date, "date", "", "payment date YYYY-MM-DD (default today)")
	_ = pay.MarkFlagRequired("amount")

	rework := &cobra.Command{
		Use:   "rework <ref> <file|->",
		Short: "Add a rework entry from a JSON request",
		Args:  cobra.ExactArgs(2),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			data, err := r.readInput(args[1])
			if err != nil {
				return err
			}
			var req app.ReworkRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid rework JSON: %w", err)
			}
			req.Ref = args[0]
			result, err := svc.AddRework(ctx, req)
			if err != nil {
				return err
			}
			return r.printOrderResult(result)
		}),
	}

	trash := &cobra.Command{
		Use:   "trash <ref>...",
		Short: "Move orders to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			result, err := svc.TrashOrders(ctx, args)
			if err != nil {
				return err
			}
			r.printf("Moved %d order(s) to trash.\n", result.Affected)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <ref>...",
		Short: "Delete orders permanently, skipping the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			result, err := svc.DeleteOrders(ctx, args)
			if err != nil {
				return err
			}
			r.printf("Deleted %d order(s).\n", result.Affected)
			return nil
		}),
	}

	cmd.AddCommand(list, show, add, refund, reactivate, ship, pay, rework, trash, del)
	return cmd
}

func (r *runner) trashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and empty the trash",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			result, err := svc.ListTrash(ctx)
			if err != nil {
				return err
			}
			if r.asJSON {
				return r.printJSON(result)
			}
			if len(result.Orders) == 0 {
				r.printf("Trash is empty.\n")
				return nil
			}
			for _, o := range result.Orders {
				r.printf("%s  %-14s %-12s %s\n", o.ID, o.OrderNumber, o.CustomerName, o.Date.Format("2006-01-02"))
			}
			return nil
		}),
	}

	restore := &cobra.Command{
		Use:   "restore <id>...",
		Short: "Restore trashed orders",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			result, err := svc.RestoreOrders(ctx, ids)
			if err != nil {
				return err
			}
			r.printf("Restored %d order(s).\n", result.Affected)
			return nil
		}),
	}

	purge := &cobra.Command{
		Use:   "purge <id>...",
		Short: "Permanently delete trashed orders",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			result, err := svc.PurgeOrders(ctx, ids)
			if err != nil {
				return err
			}
			r.printf("Purged %d order(s).\n", result.Affected)
			return nil
		}),
	}

	cmd.AddCommand(restore, purge)
	return cmd
}

func (r *runner) totalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show revenue, paid and outstanding totals",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			totals, err := svc.Totals(ctx)
			if err != nil {
				return err
			}
			if r.asJSON {
				return r.printJSON(totals)
			}
			r.printf("  %-12s %15s\n", "总金额", totals.Revenue.StringFixed(2))
			r.printf("  %-12s %15s\n", "已收款", totals.Paid.StringFixed(2))
			r.printf("  %-12s %15s\n", "未收款", totals.Unconfirmed.StringFixed(2))
			return nil
		}),
	}
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid order id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ── Display ───────────────────────────────────────────────────────────────────

func (r *runner) printOrderList(result *app.OrderListResult) {
	if len(result.Orders) == 0 {
		r.printf("No orders.\n")
		return
	}
	for _, g := range result.Groups {
		r.printf("\n%s\n", g.Title)
		r.rule("-")
		for _, o := range g.Orders {
			r.printf("  %-14s %-12s %-6s %4d双 %12s  %s\n",
				o.OrderNumber, o.CustomerName, o.CustomerType.Label(),
				o.TotalQuantity(), o.TotalPrice().StringFixed(2), o.PaymentStatus().Label())
		}
	}
	r.rule("=")
	r.printf("  总金额 %s   已收款 %s   未收款 %s\n",
		result.Totals.Revenue.StringFixed(2), result.Totals.Paid.StringFixed(2), result.Totals.Unconfirmed.StringFixed(2))
}

func (r *runner) printOrderResult(result *app.OrderResult) error {
	if r.asJSON {
		return r.printJSON(result)
	}
	o := result.Order
	r.rule("=")
	r.printf("  订单编号 : %s\n", o.OrderNumber)
	r.printf("  客户     : %s (%s)\n", o.CustomerName, o.CustomerType.Label())
	r.printf("  日期     : %s\n", o.Date.Format("2006-01-02"))
	r.printf("  发货     : %s\n", o.ShipmentStatus.Label())
	r.printf("  收款     : %s  未收 %s\n", result.PaymentStatus.Label(), result.BalanceDue)
	r.rule("-")
	for _, item := range o.Items {
		r.printf("  %s  %s %s %s  %d双 x %s\n", item.ID, item.ProductName, item.Color, item.Leather,
			item.TotalQuantity(), item.UnitPrice.StringFixed(2))
	}
	for _, p := range o.Payments {
		r.printf("  收款 %s %s %s %s\n", p.Date.Format("2006-01-02"), p.Method.Label(), p.Amount.StringFixed(2), p.Notes)
	}
	if len(o.ReworkItems) > 0 {
		r.printf("  返工 %d 项\n", len(o.ReworkItems))
	}
	r.rule("=")
	return nil
}
