package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"order-ledger/internal/analytics"
	"order-ledger/internal/backup"
	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
	"order-ledger/internal/report"
)

// ErrItemNotFound is returned when an order has no item with the given id.
var ErrItemNotFound = errors.New("order item not found")

// Deps are the collaborators of the application service.
type Deps struct {
	Store        core.OrderStore
	Images       *imagestore.Store
	Settings     core.SettingsStore
	Engine       *analytics.Engine
	Session      *analytics.Session
	Location     *time.Location
	DeadlineDays int
	Logger       *zap.Logger
	Now          func() time.Time
}

type appService struct {
	store        core.OrderStore
	images       *imagestore.Store
	settings     core.SettingsStore
	engine       *analytics.Engine
	session      *analytics.Session
	loc          *time.Location
	deadlineDays int
	logger       *zap.Logger
	now          func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Deps) ApplicationService {
	s := &appService{
		store:        d.Store,
		images:       d.Images,
		settings:     d.Settings,
		engine:       d.Engine,
		session:      d.Session,
		loc:          d.Location,
		deadlineDays: d.DeadlineDays,
		logger:       d.Logger,
		now:          d.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.engine == nil {
		s.engine = analytics.NewEngine(s.loc).WithClock(s.now)
	}
	return s
}

// ── Orders ────────────────────────────────────────────────────────────────────

// resolve finds an active order by id or order number.
func (s *appService) resolve(ref string) (core.Order, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		if o, ok := s.store.Get(id); ok {
			return o, nil
		}
	}
	if o, ok := s.store.FindByNumber(ref); ok {
		return o, nil
	}
	return core.Order{}, fmt.Errorf("%w: %s", core.ErrOrderNotFound, ref)
}

func (s *appService) resolveAll(refs []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		o, err := s.resolve(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (s *appService) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error) {
	orders := filterOrders(s.store.Orders(), req)
	core.SortByDateDesc(orders)
	return &OrderListResult{
		Orders: orders,
		Groups: groupByRecency(orders, s.now(), s.loc),
		Totals: s.store.Totals(),
	}, nil
}

func (s *appService) GetOrder(ctx context.Context, ref string) (*OrderResult, error) {
	o, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return newOrderResult(o), nil
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	o, err := s.store.Add(ctx, req.toOrder())
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return newOrderResult(o), nil
}

func (s *appService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error) {
	existing, err := s.resolve(req.Ref)
	if err != nil {
		return nil, err
	}
	var before core.Order
	updated, err := s.store.Edit(ctx, existing.ID, func(o *core.Order) error {
		before = o.Clone()
		edited := req.toOrder()
		edited.ID = o.ID
		edited.OrderNumber = o.OrderNumber
		edited.Status = o.Status
		edited.Payments = o.Payments
		edited.ReworkItems = o.ReworkItems
		if edited.Date.IsZero() {
			edited.Date = o.Date
		}
		if edited.ShipmentStatus == "" {
			edited.ShipmentStatus = o.ShipmentStatus
		}
		*o = edited
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", existing.OrderNumber, err)
	}
	s.releaseDroppedImages(before, updated)
	return newOrderResult(updated), nil
}

// releaseDroppedImages deletes images an edit no longer references.
func (s *appService) releaseDroppedImages(before, after core.Order) {
	if s.images == nil {
		return
	}
	kept := map[string]bool{}
	for _, id := range after.ImageIDs() {
		kept[id] = true
	}
	var dropped []string
	for _, id := range before.ImageIDs() {
		if !kept[id] {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) == 0 {
		return
	}
	if err := s.images.DeleteMany(dropped); err != nil {
		s.logger.Warn("failed to delete replaced images", zap.Error(err))
	}
}

func (s *appService) setStatus(ctx context.Context, ref string, status core.OrderStatus) (*OrderResult, error) {
	o, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.SetStatus(ctx, o.ID, status)
	if err != nil {
		return nil, err
	}
	return newOrderResult(updated), nil
}

func (s *appService) RefundOrder(ctx context.Context, ref string) (*OrderResult, error) {
	return s.setStatus(ctx, ref, core.OrderStatusRefunded)
}

func (s *appService) ReactivateOrder(ctx context.Context, ref string) (*OrderResult, error) {
	return s.setStatus(ctx, ref, core.OrderStatusActive)
}

func (s *appService) SetShipment(ctx context.Context, ref string, status core.ShipmentStatus) (*OrderResult, error) {
	o, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.SetShipment(ctx, o.ID, status)
	if err != nil {
		return nil, err
	}
	return newOrderResult(updated), nil
}

func (s *appService) RecordPayment(ctx context.Context, req PaymentRequest) (*OrderResult, error) {
	o, err := s.resolve(req.Ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.AddPayment(ctx, o.ID, core.Payment{
		Date:   req.Date,
		Amount: req.Amount,
		Method: req.Method,
		Notes:  req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment on %s: %w", o.OrderNumber, err)
	}
	return newOrderResult(updated), nil
}

func (s *appService) AddRework(ctx context.Context, req ReworkRequest) (*OrderResult, error) {
	o, err := s.resolve(req.Ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.AddRework(ctx, o.ID, core.ReworkItem{
		Date:           req.Date,
		OriginalItemID: req.OriginalItemID,
		Reasons:        req.Reasons,
		OtherDetail:    req.OtherDetail,
		ReworkedItem:   req.Item.toItem(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add rework to %s: %w", o.OrderNumber, err)
	}
	return newOrderResult(updated), nil
}

func (s *appService) Totals(ctx context.Context) (core.Totals, error) {
	return s.store.Totals(), nil
}

// ── Trash ─────────────────────────────────────────────────────────────────────

func (s *appService) TrashOrders(ctx context.Context, refs []string) (*CountResult, error) {
	ids, err := s.resolveAll(refs)
	if err != nil {
		return nil, err
	}
	return &CountResult{Affected: s.store.MoveToTrash(ctx, ids)}, nil
}

func (s *appService) ListTrash(ctx context.Context) (*TrashResult, error) {
	return &TrashResult{Orders: s.store.Trash()}, nil
}

func (s *appService) RestoreOrders(ctx context.Context, ids []uuid.UUID) (*CountResult, error) {
	return &CountResult{Affected: s.store.RestoreFromTrash(ctx, ids)}, nil
}

func (s *appService) PurgeOrders(ctx context.Context, ids []uuid.UUID) (*CountResult, error) {
	return &CountResult{Affected: s.store.PurgeFromTrash(ctx, ids)}, nil
}

func (s *appService) DeleteOrders(ctx context.Context, refs []string) (*CountResult, error) {
	ids, err := s.resolveAll(refs)
	if err != nil {
		return nil, err
	}
	return &CountResult{Affected: s.store.DeletePermanently(ctx, ids)}, nil
}

func (s *appService) ImportOrders(ctx context.Context, data []byte) (*core.MergeResult, error) {
	orders, err := core.DecodeOrders(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode imported orders: %w", err)
	}
	res := s.store.MergeImported(ctx, orders)
	return &res, nil
}

// ── Analytics ─────────────────────────────────────────────────────────────────

func (s *appService) ComputeAnalytics(ctx context.Context, cfg analytics.Config) (*AnalyticsResult, error) {
	if cfg.Anchor.IsZero() {
		cfg.Anchor = s.now()
	}
	if cfg.Granularity == "" {
		cfg.Granularity = analytics.Day
	}
	if cfg.Comparison == "" {
		cfg.Comparison = analytics.CompareNone
	}
	return &AnalyticsResult{Result: s.engine.Compute(s.store.Orders(), cfg)}, nil
}

func (s *appService) CurrentAnalytics(ctx context.Context) (*AnalyticsResult, error) {
	if s.session == nil {
		return s.ComputeAnalytics(ctx, analytics.DefaultConfig(s.now()))
	}
	s.session.Follow(s.now())
	res, err := s.session.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &AnalyticsResult{Result: res}, nil
}

func (s *appService) ConfigureAnalytics(ctx context.Context, req AnalyticsRequest) (*AnalyticsResult, error) {
	req, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if s.session == nil {
		return s.ComputeAnalytics(ctx, req.Apply(analytics.DefaultConfig(s.now())))
	}
	s.session.Follow(s.now())
	s.session.Update(req.Apply)
	return s.CurrentAnalytics(ctx)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) ExportCSV(ctx context.Context, w io.Writer) error {
	return report.WriteCSV(w, s.store.Orders(), s.loc)
}

func (s *appService) ShipmentReport(ctx context.Context) (*ShipmentReportResult, error) {
	orders := s.store.Orders()
	now := s.now()
	return &ShipmentReportResult{
		Shipments: report.PendingShipments(orders, now, s.deadlineDays, s.loc),
		Text:      report.ShipmentReport(orders, now, s.deadlineDays, s.loc),
	}, nil
}

func (s *appService) FactorySheet(ctx context.Context, ref string, itemID uuid.UUID) (string, error) {
	o, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	item, ok := o.FindItem(itemID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return report.FactorySheet(o, item, s.loc), nil
}

func (s *appService) SetFactorySheet(ctx context.Context, ref string, itemID uuid.UUID, text string) (*OrderResult, error) {
	existing, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Edit(ctx, existing.ID, func(o *core.Order) error {
		for i := range o.Items {
			if o.Items[i].ID != itemID {
				continue
			}
			if strings.TrimSpace(text) == "" {
				o.Items[i].FactoryOrderText = nil
			} else {
				o.Items[i].FactoryOrderText = &text
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save factory sheet: %w", err)
	}
	return newOrderResult(updated), nil
}

// ── Images & backup ───────────────────────────────────────────────────────────

func (s *appService) SaveImage(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", core.ErrValidation)
	}
	return s.images.Save(data)
}

func (s *appService) LoadImage(ctx context.Context, id string) ([]byte, error) {
	return s.images.Load(id)
}

func (s *appService) WriteBackup(ctx context.Context, w io.Writer) (*backup.WriteSummary, error) {
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Warn("backing up with unsaved changes", zap.Error(err))
	}
	sum, err := backup.Write(ctx, w, s.store.Orders(), s.images, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return &sum, nil
}

func (s *appService) RestoreBackup(ctx context.Context, r io.ReaderAt, size int64) (*RestoreResult, error) {
	sum, err := backup.Restore(ctx, r, size, s.images, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	return &RestoreResult{RestoreSummary: sum}, nil
}

// ── Settings ──────────────────────────────────────────────────────────────────

func (s *appService) GetSettings(ctx context.Context) (core.Settings, error) {
	if s.settings == nil {
		return core.DefaultSettings(), nil
	}
	return s.settings.Load(ctx)
}

func (s *appService) UpdateSettings(ctx context.Context, req SettingsRequest) (core.Settings, error) {
	if req.FontScale != nil && (*req.FontScale < 0.5 || *req.FontScale > 3) {
		return core.Settings{}, fmt.Errorf("%w: font scale must be between 0.5 and 3", core.ErrValidation)
	}
	if s.settings == nil {
		return core.Settings{}, errors.New("settings store not configured")
	}
	return s.settings.Update(ctx, func(st *core.Settings) {
		if req.FontScale != nil {
			st.FontScale = *req.FontScale
		}
	})
}

// ── Maintenance ───────────────────────────────────────────────────────────────

func (s *appService) OrderSchema() *jsonschema.Schema {
	return core.OrderDocumentSchema()
}

func (s *appService) Reload(ctx context.Context) error {
	return s.store.Load(ctx)
}

func (s *appService) Flush(ctx context.Context) error {
	return s.store.Flush(ctx)
}
