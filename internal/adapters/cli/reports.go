package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"order-ledger/internal/analytics"
	"order-ledger/internal/app"
	"order-ledger/internal/auth"
	"order-ledger/internal/backup"
	"order-ledger/internal/core"
	"order-ledger/internal/report"
)

// ── Reports ───────────────────────────────────────────────────────────────────

func (r *runner) exportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Export orders"}
	var out string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the order spreadsheet as UTF-8 CSV",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			if out == "-" {
				return svc.ExportCSV(ctx, r.out)
			}
			if out == "" {
				out = report.ExportFileName(r.now())
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := svc.ExportCSV(ctx, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", out, err)
			}
			r.printf("Exported to %s\n", out)
			return nil
		}),
	}
	csvCmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	cmd.AddCommand(csvCmd)
	return cmd
}

func (r *runner) reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Produce shareable reports"}
	cmd.AddCommand(&cobra.Command{
		Use:   "shipments",
		Short: "List orders awaiting shipment by deadline",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			result, err := svc.ShipmentReport(ctx)
			if err != nil {
				return err
			}
			if r.asJSON {
				return r.printJSON(result)
			}
			r.printf("%s\n", result.Text)
			return nil
		}),
	})
	return cmd
}

func (r *runner) factoryCmd() *cobra.Command {
	var set string
	var reset bool
	cmd := &cobra.Command{
		Use:   "factory <ref> <item-id>",
		Short: "Print or override the factory sheet of an item",
		Args:  cobra.ExactArgs(2),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			itemID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid item id %q: %w", args[1], err)
			}
			if set != "" || reset {
				if _, err := svc.SetFactorySheet(ctx, args[0], itemID, set); err != nil {
					return err
				}
			}
			text, err := svc.FactorySheet(ctx, args[0], itemID)
			if err != nil {
				return err
			}
			r.printf("%s\n", text)
			return nil
		}),
	}
	cmd.Flags().StringVar(&set, "set", "", "store this text as the sheet")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the stored text and regenerate")
	return cmd
}

func (r *runner) analyticsCmd() *cobra.Command {
	var granularity, anchor, from, to, customerType, comparison, customer string
	cmd := &cobra.Command{
		Use:     "analytics",
		Aliases: []string{"stats"},
		Short:   "Aggregate sales for a period",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			cfg := analytics.Config{SelectedCustomer: customer}
			var err error
			if cfg.Granularity, err = analytics.ParseGranularity(granularity); err != nil {
				return err
			}
			if cfg.Comparison, err = analytics.ParseComparison(comparison); err != nil {
				return err
			}
			if anchor != "" {
				if cfg.Anchor, err = parseDay(anchor); err != nil {
					return err
				}
			}
			if from != "" || to != "" {
				f, err := parseDay(from)
				if err != nil {
					return err
				}
				t, err := parseDay(to)
				if err != nil {
					return err
				}
				cfg.Custom = &analytics.CustomRange{From: f, To: t}
			}
			if customerType != "" {
				ct, err := core.ParseCustomerType(customerType)
				if err != nil {
					return err
				}
				cfg.CustomerType = &ct
			}
			result, err := svc.ComputeAnalytics(ctx, cfg)
			if err != nil {
				return err
			}
			if r.asJSON {
				return r.printJSON(result)
			}
			r.printAnalytics(result)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&granularity, "granularity", "g", string(analytics.Day), "day, week, month, quarter or year")
	cmd.Flags().StringVar(&anchor, "anchor", "", "any day inside the period, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&from, "from", "", "custom range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "custom range end (inclusive), YYYY-MM-DD")
	cmd.Flags().StringVar(&customerType, "type", "", "retail or wholesale")
	cmd.Flags().StringVar(&comparison, "compare", string(analytics.CompareNone), "none, periodOverPeriod or yearOverYear")
	cmd.Flags().StringVar(&customer, "customer", "", "expand one customer's history")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func (r *runner) printAnalytics(res *app.AnalyticsResult) {
	cur := res.Summary.Current
	r.rule("=")
	r.printf("  %s\n", res.Label)
	r.rule("=")
	r.printf("  %-10s %15s%s\n", "销售额", cur.Revenue.StringFixed(2), change(res.Summary.RevenueChange))
	r.printf("  %-10s %15d%s\n", "订单数", cur.OrderCount, change(res.Summary.OrderCountChange))
	r.printf("  %-10s %15d%s\n", "销售双数", cur.UnitsSold, change(res.Summary.UnitsSoldChange))
	r.printf("  %-10s %15d%s\n", "客户数", cur.CustomerCount, change(res.Summary.CustomerCountChange))
	if len(res.ProductsByRevenue) > 0 {
		r.rule("-")
		for i, p := range res.ProductsByRevenue {
			if i == 5 {
				break
			}
			r.printf("  %d. %-20s %4d双 %12s\n", i+1, p.Name, p.Quantity, p.Revenue.StringFixed(2))
		}
	}
	for _, c := range res.Customers {
		r.rule("-")
		r.printf("  %s\n", c.Customer)
		for _, m := range c.Months {
			r.printf("    %s  %3d单 %4d双 %12s\n", m.Month, m.OrderCount, m.UnitsSold, m.Revenue.StringFixed(2))
		}
	}
	r.rule("=")
}

func change(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("  (%+.1f%%)", *p*100)
}

// ── Data maintenance ──────────────────────────────────────────────────────────

func (r *runner) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge orders from an order document, skipping known ids",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			data, err := r.readInput(args[0])
			if err != nil {
				return err
			}
			result, err := svc.ImportOrders(ctx, data)
			if err != nil {
				return err
			}
			r.printf("Imported %d order(s), skipped %d.\n", result.Imported, result.Skipped)
			return nil
		}),
	}
}

func (r *runner) backupCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a zip archive of all orders and images",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			path := filepath.Join(dir, backup.FileName(r.now()))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			summary, err := svc.WriteBackup(ctx, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(path)
				return err
			}
			r.printf("Backed up %d order(s) and %d image(s) to %s\n", summary.Orders, summary.Images, path)
			if summary.MissingImages > 0 {
				r.printf("Warning: %d referenced image(s) were missing.\n", summary.MissingImages)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write the archive to")
	return cmd
}

func (r *runner) restoreBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore-backup <archive.zip>",
		Short: "Merge a backup archive into the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", args[0], err)
			}
			result, err := svc.RestoreBackup(ctx, f, info.Size())
			if err != nil {
				return err
			}
			r.printf("Imported %d order(s), skipped %d; copied %d image(s).\n",
				result.Imported, result.Skipped, result.ImagesCopied)
			return nil
		}),
	}
}

func (r *runner) seedCmd() *cobra.Command {
	var req app.SeedRequest
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample orders",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			result, err := svc.Seed(ctx, req)
			if err != nil {
				return err
			}
			r.printf("Seeded %d order(s).\n", result.Imported)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&req.Count, "count", "n", 50, "number of orders")
	cmd.Flags().BoolVar(&req.Replace, "replace", false, "clear all orders first")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func (r *runner) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the order document",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			return r.printJSON(svc.OrderSchema())
		}),
	}
}

func (r *runner) settingsCmd() *cobra.Command {
	var fontScale float64
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			var (
				s   core.Settings
				err error
			)
			if fontScale != 0 {
				s, err = svc.UpdateSettings(ctx, app.SettingsRequest{FontScale: &fontScale})
			} else {
				s, err = svc.GetSettings(ctx)
			}
			if err != nil {
				return err
			}
			return r.printJSON(s)
		}),
	}
	cmd.Flags().Float64Var(&fontScale, "font-scale", 0, "set the UI font scale")
	return cmd
}

// tokenCmd issues an API token; it needs only the secret, not the ledger.
func (r *runner) tokenCmd() *cobra.Command {
	var subject, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.Issue(r.secret, subject, role, ttl, r.now())
			if err != nil {
				return err
			}
			r.printf("%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "owner", "token subject")
	cmd.Flags().StringVar(&role, "role", "owner", "token role")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
