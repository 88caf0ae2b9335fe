package app

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"order-ledger/internal/analytics"
	"order-ledger/internal/backup"
	"order-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations contain no
// display logic of any kind.
type ApplicationService interface {
	// ListOrders returns active orders newest first, filtered and grouped by recency.
	ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error)

	// GetOrder resolves ref as an order id or order number among active orders.
	GetOrder(ctx context.Context, ref string) (*OrderResult, error)

	// CreateOrder validates and stores a new order and assigns its order number.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// UpdateOrder replaces the editable fields of an active order.
	UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error)

	// RefundOrder marks an order refunded, removing it from totals and analytics.
	RefundOrder(ctx context.Context, ref string) (*OrderResult, error)

	// ReactivateOrder undoes RefundOrder.
	ReactivateOrder(ctx context.Context, ref string) (*OrderResult, error)

	// SetShipment records whether an order has been shipped.
	SetShipment(ctx context.Context, ref string, status core.ShipmentStatus) (*OrderResult, error)

	// RecordPayment appends a payment to an order.
	RecordPayment(ctx context.Context, req PaymentRequest) (*OrderResult, error)

	// AddRework records a remake of one of the order's items.
	AddRework(ctx context.Context, req ReworkRequest) (*OrderResult, error)

	// Totals returns revenue, received payments and unconfirmed balance over active orders.
	Totals(ctx context.Context) (core.Totals, error)

	// TrashOrders moves active orders to the trash.
	TrashOrders(ctx context.Context, refs []string) (*CountResult, error)

	// ListTrash returns trashed orders, most recently trashed first.
	ListTrash(ctx context.Context) (*TrashResult, error)

	// RestoreOrders moves trashed orders back to the active list.
	RestoreOrders(ctx context.Context, ids []uuid.UUID) (*CountResult, error)

	// PurgeOrders removes trashed orders and their images for good.
	PurgeOrders(ctx context.Context, ids []uuid.UUID) (*CountResult, error)

	// DeleteOrders removes active orders and their images without going through the trash.
	DeleteOrders(ctx context.Context, refs []string) (*CountResult, error)

	// ImportOrders decodes an order document and merges the orders not already present.
	ImportOrders(ctx context.Context, data []byte) (*core.MergeResult, error)

	// ComputeAnalytics aggregates the active orders for cfg.
	ComputeAnalytics(ctx context.Context, cfg analytics.Config) (*AnalyticsResult, error)

	// CurrentAnalytics returns the session's result once pending changes are applied.
	CurrentAnalytics(ctx context.Context) (*AnalyticsResult, error)

	// ConfigureAnalytics changes the session selection and returns the recomputed result.
	ConfigureAnalytics(ctx context.Context, req AnalyticsRequest) (*AnalyticsResult, error)

	// ExportCSV writes the spreadsheet export of every order outside the trash.
	ExportCSV(ctx context.Context, w io.Writer) error

	// ShipmentReport summarises unshipped orders by deadline.
	ShipmentReport(ctx context.Context) (*ShipmentReportResult, error)

	// FactorySheet returns the production text for one item of an order.
	FactorySheet(ctx context.Context, ref string, itemID uuid.UUID) (string, error)

	// SetFactorySheet stores an edited production text; an empty text restores the generated one.
	SetFactorySheet(ctx context.Context, ref string, itemID uuid.UUID, text string) (*OrderResult, error)

	// SaveImage stores a product photo and returns its id.
	SaveImage(ctx context.Context, data []byte) (string, error)

	// LoadImage returns a stored product photo.
	LoadImage(ctx context.Context, id string) ([]byte, error)

	// WriteBackup writes a zip archive of the active orders and their images.
	WriteBackup(ctx context.Context, w io.Writer) (*backup.WriteSummary, error)

	// RestoreBackup merges a backup archive into the ledger.
	RestoreBackup(ctx context.Context, r io.ReaderAt, size int64) (*RestoreResult, error)

	// GetSettings returns the user preferences.
	GetSettings(ctx context.Context) (core.Settings, error)

	// UpdateSettings changes the user preferences.
	UpdateSettings(ctx context.Context, req SettingsRequest) (core.Settings, error)

	// OrderSchema returns the JSON schema of the order document.
	OrderSchema() *jsonschema.Schema

	// Seed generates sample orders for demos and manual testing.
	Seed(ctx context.Context, req SeedRequest) (*SeedResult, error)

	// Reload re-reads the order documents from storage.
	Reload(ctx context.Context) error

	// Flush waits until every pending change is persisted.
	Flush(ctx context.Context) error
}
