package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrOrderNotFound is returned when no active order has the requested id.
var ErrOrderNotFound = errors.New("order not found")

// unconfirmedEpsilon hides sub-cent residue in the store-wide outstanding balance.
var unconfirmedEpsilon = decimal.NewFromFloat(0.01)

// ImageReleaser deletes images that are no longer referenced by any order.
type ImageReleaser interface {
	DeleteMany(ids []string) error
}

// MergeResult reports how many imported orders were added or skipped.
type MergeResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Totals are store-wide sums over active-status orders.
type Totals struct {
	Revenue     decimal.Decimal `json:"revenue"`
	Paid        decimal.Decimal `json:"paid"`
	Unconfirmed decimal.Decimal `json:"unconfirmedBalanceDue"`
}

// OrderStore owns the active and trashed order lists. All snapshots it
// returns are deep copies; mutations are persisted asynchronously.
type OrderStore interface {
	// Load replaces the in-memory lists with the persisted documents. Read or
	// decode failures are logged and leave the current lists in place.
	Load(ctx context.Context) error

	// Queries
	Orders() []Order
	Trash() []Order
	Get(id uuid.UUID) (Order, bool)
	FindByNumber(orderNumber string) (Order, bool)
	Totals() Totals
	WholesaleCustomerNames() []string

	// Mutations
	Add(ctx context.Context, order Order) (Order, error)
	Update(ctx context.Context, order Order) (bool, error)
	Edit(ctx context.Context, id uuid.UUID, fn func(*Order) error) (Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (Order, error)
	SetShipment(ctx context.Context, id uuid.UUID, status ShipmentStatus) (Order, error)
	AddPayment(ctx context.Context, id uuid.UUID, payment Payment) (Order, error)
	AddRework(ctx context.Context, id uuid.UUID, rework ReworkItem) (Order, error)
	MoveToTrash(ctx context.Context, ids []uuid.UUID) int
	RestoreFromTrash(ctx context.Context, ids []uuid.UUID) int
	PurgeFromTrash(ctx context.Context, ids []uuid.UUID) int
	DeletePermanently(ctx context.Context, ids []uuid.UUID) int
	MergeImported(ctx context.Context, candidates []Order) MergeResult

	// OnChange registers fn to run after every change to the lists.
	OnChange(fn func())
	// Flush waits for pending saves and returns the last save error.
	Flush(ctx context.Context) error
}

// StoreOptions configures NewOrderStore. Zero values are usable.
type StoreOptions struct {
	Numbers   *OrderNumberGenerator
	Images    ImageReleaser
	SaveDelay time.Duration
	Logger    *zap.Logger
}

type orderStore struct {
	docs    DocumentStore
	numbers *OrderNumberGenerator
	images  ImageReleaser
	logger  *zap.Logger

	activeWriter *docWriter
	trashWriter  *docWriter

	mu         sync.RWMutex
	active     []Order
	trash      []Order
	listeners  []func()
	generation uint64 // bumped by every local mutation
}

func NewOrderStore(docs DocumentStore, opts StoreOptions) OrderStore {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	numbers := opts.Numbers
	if numbers == nil {
		numbers = NewOrderNumberGenerator(nil, time.Local, logger)
	}
	return &orderStore{
		docs:         docs,
		numbers:      numbers,
		images:       opts.Images,
		logger:       logger,
		activeWriter: newDocWriter(OrdersDocument, docs, opts.SaveDelay, logger),
		trashWriter:  newDocWriter(DeletedDocument, docs, opts.SaveDelay, logger),
		active:       []Order{},
		trash:        []Order{},
	}
}

// ── Load / save ───────────────────────────────────────────────────────────────

func (s *orderStore) Load(ctx context.Context) error {
	if s.activeWriter.busy() || s.trashWriter.busy() {
		// Our own save is still in flight; memory is already newer than disk.
		return nil
	}
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()

	active, activeOK := s.readDocument(ctx, s.activeWriter)
	trash, trashOK := s.readDocument(ctx, s.trashWriter)
	if !activeOK && !trashOK {
		return nil
	}
	if activeOK {
		SortByDateDesc(active)
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Info("discarding reload that raced a local change")
		return nil
	}
	if activeOK {
		s.active = active
	}
	if trashOK {
		s.trash = trash
	}
	s.mu.Unlock()

	s.logger.Info("orders loaded", zap.Int("active", len(active)), zap.Int("trash", len(trash)))
	s.notify()
	return nil
}

// readDocument returns ok=false when the document cannot be used or still
// holds exactly what this store last wrote.
func (s *orderStore) readDocument(ctx context.Context, w *docWriter) ([]Order, bool) {
	data, err := s.docs.Read(ctx, w.name)
	if errors.Is(err, ErrDocumentNotFound) {
		return []Order{}, true
	}
	if err != nil {
		s.logger.Error("could not load orders", zap.String("document", w.name), zap.Error(err))
		return nil, false
	}
	if w.wrote(data) {
		return nil, false
	}
	orders, err := DecodeOrders(data)
	if err != nil {
		s.logger.Error("could not decode orders", zap.String("document", w.name), zap.Error(err))
		return nil, false
	}
	return orders, true
}

// saveLocked snapshots the selected lists into their writers. Caller holds s.mu.
func (s *orderStore) saveLocked(active, trash bool) {
	s.generation++
	if active {
		s.submit(s.activeWriter, s.active)
	}
	if trash {
		s.submit(s.trashWriter, s.trash)
	}
}

func (s *orderStore) submit(w *docWriter, orders []Order) {
	data, err := EncodeOrders(orders)
	if err != nil {
		s.logger.Error("could not encode orders", zap.String("document", w.name), zap.Error(err))
		return
	}
	w.submit(data)
}

func (s *orderStore) Flush(ctx context.Context) error {
	return errors.Join(s.activeWriter.flush(ctx), s.trashWriter.flush(ctx))
}

func (s *orderStore) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *orderStore) notify() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *orderStore) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrders(s.active)
}

func (s *orderStore) Trash() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrders(s.trash)
}

func (s *orderStore) Get(id uuid.UUID) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.active, id); i >= 0 {
		return s.active[i].Clone(), true
	}
	return Order{}, false
}

func (s *orderStore) FindByNumber(orderNumber string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.active {
		if o.OrderNumber == orderNumber {
			return o.Clone(), true
		}
	}
	return Order{}, false
}

func (s *orderStore) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := Totals{Revenue: decimal.Zero, Paid: decimal.Zero, Unconfirmed: decimal.Zero}
	for _, o := range s.active {
		if !o.IsActive() {
			continue
		}
		t.Revenue = t.Revenue.Add(o.TotalPrice())
		t.Paid = t.Paid.Add(o.PaidAmount())
	}
	if due := t.Revenue.Sub(t.Paid); due.GreaterThanOrEqual(unconfirmedEpsilon) {
		t.Unconfirmed = due
	}
	return t
}

// WholesaleCustomerNames lists the distinct wholesale customers, sorted.
func (s *orderStore) WholesaleCustomerNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var names []string
	for _, o := range s.active {
		if o.CustomerType == CustomerWholesale && o.IsActive() && !seen[o.CustomerName] {
			seen[o.CustomerName] = true
			names = append(names, o.CustomerName)
		}
	}
	sort.Strings(names)
	return names
}

// ── Mutations ─────────────────────────────────────────────────────────────────

// Add validates the order, assigns its order number and a fresh id when it
// has none, and inserts it at the front of the active list.
func (s *orderStore) Add(ctx context.Context, order Order) (Order, error) {
	order = order.Clone()
	Normalize(&order)
	if err := ValidateOrder(order); err != nil {
		return Order{}, err
	}
	if order.Date.IsZero() {
		order.Date = time.Now()
	}
	order.OrderNumber = s.numbers.Next(ctx, order.Date)

	s.mu.Lock()
	if indexOf(s.active, order.ID) >= 0 || indexOf(s.trash, order.ID) >= 0 {
		order.ID = uuid.New()
	}
	s.active = append([]Order{order}, s.active...)
	s.saveLocked(true, false)
	s.mu.Unlock()

	s.logger.Info("order added", zap.String("order_number", order.OrderNumber), zap.String("customer", order.CustomerName))
	s.notify()
	return order.Clone(), nil
}

// Update replaces the active order with the same id. It reports false when
// no such order exists.
func (s *orderStore) Update(ctx context.Context, order Order) (bool, error) {
	order = order.Clone()
	if order.ID == uuid.Nil {
		return false, nil
	}
	Normalize(&order)
	if err := ValidateOrder(order); err != nil {
		return false, err
	}

	s.mu.Lock()
	i := indexOf(s.active, order.ID)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.active[i] = order
	s.saveLocked(true, false)
	s.mu.Unlock()

	s.notify()
	return true, nil
}

// Edit applies fn to the current version of an active order while the store
// is locked, so concurrent payments or rework are never overwritten.
func (s *orderStore) Edit(ctx context.Context, id uuid.UUID, fn func(*Order) error) (Order, error) {
	return s.modify(id, func(o *Order) error {
		if err := fn(o); err != nil {
			return err
		}
		o.ID = id
		Normalize(o)
		return ValidateOrder(*o)
	})
}

// modify applies fn to the active order with the given id and persists it.
func (s *orderStore) modify(id uuid.UUID, fn func(*Order) error) (Order, error) {
	s.mu.Lock()
	i := indexOf(s.active, id)
	if i < 0 {
		s.mu.Unlock()
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	updated := s.active[i].Clone()
	if err := fn(&updated); err != nil {
		s.mu.Unlock()
		return Order{}, err
	}
	s.active[i] = updated
	s.saveLocked(true, false)
	s.mu.Unlock()

	s.notify()
	return updated.Clone(), nil
}

func (s *orderStore) SetStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (Order, error) {
	if _, ok := orderStatusLabels[status]; !ok {
		return Order{}, validationError("unknown order status %q", status)
	}
	return s.modify(id, func(o *Order) error {
		o.Status = status
		return nil
	})
}

func (s *orderStore) SetShipment(ctx context.Context, id uuid.UUID, status ShipmentStatus) (Order, error) {
	if _, ok := shipmentLabels[status]; !ok {
		return Order{}, validationError("unknown shipment status %q", status)
	}
	return s.modify(id, func(o *Order) error {
		o.ShipmentStatus = status
		return nil
	})
}

func (s *orderStore) AddPayment(ctx context.Context, id uuid.UUID, payment Payment) (Order, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Method == "" {
		payment.Method = PaymentOther
	}
	if payment.Date.IsZero() {
		payment.Date = time.Now()
	}
	if !payment.Amount.IsPositive() {
		return Order{}, validationError("payment amount must be positive")
	}
	if _, ok := paymentMethodLabels[payment.Method]; !ok {
		return Order{}, validationError("unknown payment method %q", payment.Method)
	}
	return s.modify(id, func(o *Order) error {
		o.Payments = append(o.Payments, payment)
		return nil
	})
}

func (s *orderStore) AddRework(ctx context.Context, id uuid.UUID, rework ReworkItem) (Order, error) {
	if err := ValidateRework(rework); err != nil {
		return Order{}, err
	}
	if rework.ID == uuid.Nil {
		rework.ID = uuid.New()
	}
	if rework.Date.IsZero() {
		rework.Date = time.Now()
	}
	rework.ReworkedItem = rework.ReworkedItem.Clone()
	normalizeItem(&rework.ReworkedItem)
	return s.modify(id, func(o *Order) error {
		original, ok := o.FindItem(rework.OriginalItemID)
		if !ok {
			return validationError("order %s has no item %s", o.OrderNumber, rework.OriginalItemID)
		}
		if rework.ReworkedItem.ProductName == "" {
			rework.ReworkedItem.ProductName = original.ProductName
		}
		o.ReworkItems = append(o.ReworkItems, rework)
		return nil
	})
}

// MoveToTrash moves active orders to the front of the trash list.
func (s *orderStore) MoveToTrash(ctx context.Context, ids []uuid.UUID) int {
	set := idSet(ids)
	s.mu.Lock()
	moved, kept := partition(s.active, set)
	if len(moved) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.active = kept
	s.trash = append(moved, s.trash...)
	s.saveLocked(true, true)
	s.mu.Unlock()

	s.notify()
	return len(moved)
}

// RestoreFromTrash moves trashed orders back and re-sorts the active list.
func (s *orderStore) RestoreFromTrash(ctx context.Context, ids []uuid.UUID) int {
	set := idSet(ids)
	s.mu.Lock()
	restored, kept := partition(s.trash, set)
	if len(restored) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.trash = kept
	s.active = append(restored, s.active...)
	SortByDateDesc(s.active)
	s.saveLocked(true, true)
	s.mu.Unlock()

	s.notify()
	return len(restored)
}

// PurgeFromTrash deletes trashed orders for good, along with their images.
func (s *orderStore) PurgeFromTrash(ctx context.Context, ids []uuid.UUID) int {
	set := idSet(ids)
	s.mu.Lock()
	purged, kept := partition(s.trash, set)
	if len(purged) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.trash = kept
	s.saveLocked(false, true)
	s.mu.Unlock()

	s.releaseImages(purged)
	s.notify()
	return len(purged)
}

// DeletePermanently removes active orders without passing through the trash.
func (s *orderStore) DeletePermanently(ctx context.Context, ids []uuid.UUID) int {
	set := idSet(ids)
	s.mu.Lock()
	removed, kept := partition(s.active, set)
	if len(removed) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.active = kept
	s.saveLocked(true, false)
	s.mu.Unlock()

	s.releaseImages(removed)
	s.notify()
	return len(removed)
}

func (s *orderStore) releaseImages(orders []Order) {
	if s.images == nil {
		return
	}
	var ids []string
	for _, o := range orders {
		ids = append(ids, o.ImageIDs()...)
	}
	if len(ids) == 0 {
		return
	}
	if err := s.images.DeleteMany(ids); err != nil {
		s.logger.Warn("failed to delete order images", zap.Int("images", len(ids)), zap.Error(err))
	}
}

// MergeImported adds candidates whose id is not already an active order.
// A candidate repeated within the batch is imported once.
func (s *orderStore) MergeImported(ctx context.Context, candidates []Order) MergeResult {
	var result MergeResult
	s.mu.Lock()
	existing := make(map[uuid.UUID]bool, len(s.active))
	for _, o := range s.active {
		existing[o.ID] = true
	}
	var fresh []Order
	for _, c := range candidates {
		if existing[c.ID] {
			result.Skipped++
			continue
		}
		o := c.Clone()
		Normalize(&o)
		if err := ValidateOrder(o); err != nil {
			s.logger.Warn("importing malformed order", zap.String("order_number", o.OrderNumber), zap.Error(err))
		}
		existing[o.ID] = true
		fresh = append(fresh, o)
	}
	if len(fresh) > 0 {
		s.active = append(s.active, fresh...)
		SortByDateDesc(s.active)
		s.saveLocked(true, false)
	}
	s.mu.Unlock()

	result.Imported = len(fresh)
	s.logger.Info("orders merged", zap.Int("imported", result.Imported), zap.Int("skipped", result.Skipped))
	if result.Imported > 0 {
		s.notify()
	}
	return result
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func indexOf(orders []Order, id uuid.UUID) int {
	for i, o := range orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// partition splits orders into those whose id is in set and the rest,
// preserving relative order in both.
func partition(orders []Order, set map[uuid.UUID]bool) (matched, rest []Order) {
	rest = make([]Order, 0, len(orders))
	for _, o := range orders {
		if set[o.ID] {
			matched = append(matched, o)
		} else {
			rest = append(rest, o)
		}
	}
	return matched, rest
}
