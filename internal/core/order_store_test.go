package core_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"order-ledger/internal/core"
)

// memDocuments is an in-memory DocumentStore.
type memDocuments struct {
	mu       sync.Mutex
	docs     map[string][]byte
	writes   map[string]int
	failRead error
}

func newMemDocuments() *memDocuments {
	return &memDocuments{docs: map[string][]byte{}, writes: map[string]int{}}
}

func (m *memDocuments) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	data, ok := m.docs[name]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	return data, nil
}

func (m *memDocuments) Write(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
	m.writes[name]++
	return nil
}

func (m *memDocuments) decoded(t *testing.T, name string) []core.Order {
	t.Helper()
	m.mu.Lock()
	data := m.docs[name]
	m.mu.Unlock()
	orders, err := core.DecodeOrders(data)
	require.NoError(t, err)
	return orders
}

type recordingImages struct {
	mu      sync.Mutex
	deleted []string
}

func (r *recordingImages) DeleteMany(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, ids...)
	return nil
}

func newOrder(customer string, date time.Time) core.Order {
	return core.Order{
		CustomerName: customer,
		Date:         date,
		Items:        []core.OrderItem{item("乐福鞋", "100", map[string]int{"38码": 1})},
	}
}

func newTestStore(t *testing.T, docs core.DocumentStore, images core.ImageReleaser) core.OrderStore {
	t.Helper()
	numbers := core.NewOrderNumberGenerator(core.NewFileSettings(t.TempDir()+"/settings.yaml"), time.UTC, zap.NewNop())
	s := core.NewOrderStore(docs, core.StoreOptions{Numbers: numbers, Images: images})
	require.NoError(t, s.Load(context.Background()))
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestStoreLoadMissingDocumentsIsEmpty(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	assert.Empty(t, s.Orders())
	assert.Empty(t, s.Trash())
}

func TestStoreLoadFailureLogsAndStaysEmpty(t *testing.T) {
	docs := newMemDocuments()
	docs.docs[core.OrdersDocument] = []byte("{not json")
	obsCore, logs := observer.New(zap.ErrorLevel)
	s := core.NewOrderStore(docs, core.StoreOptions{Logger: zap.New(obsCore)})

	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.Orders())
	assert.Equal(t, 1, logs.FilterMessage("could not decode orders").Len())
}

func TestStoreLoadSortsNewestFirst(t *testing.T) {
	docs := newMemDocuments()
	older, newer := newOrder("A", day(2024, 1, 1)), newOrder("B", day(2024, 2, 1))
	core.Normalize(&older)
	core.Normalize(&newer)
	data, err := core.EncodeOrders([]core.Order{older, newer})
	require.NoError(t, err)
	docs.docs[core.OrdersDocument] = data

	s := newTestStore(t, docs, nil)
	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "B", orders[0].CustomerName)
}

func TestStoreAddAssignsNumbersAndPersists(t *testing.T) {
	docs := newMemDocuments()
	s := newTestStore(t, docs, nil)
	ctx := context.Background()

	first, err := s.Add(ctx, newOrder("张三", day(2024, 1, 15)))
	require.NoError(t, err)
	second, err := s.Add(ctx, newOrder("李四", day(2024, 1, 15)))
	require.NoError(t, err)

	assert.Equal(t, "20240115-001", first.OrderNumber)
	assert.Equal(t, "20240115-002", second.OrderNumber)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, second.ID, s.Orders()[0].ID, "new orders go to the front")

	require.NoError(t, s.Flush(ctx))
	persisted := docs.decoded(t, core.OrdersDocument)
	assert.Len(t, persisted, 2)
}

func TestStoreAddRejectsInvalid(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	_, err := s.Add(context.Background(), core.Order{CustomerName: "张三"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Empty(t, s.Orders())
}

func TestStoreUpdateUnknownIsNoop(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	o := newOrder("张三", day(2024, 1, 1))
	o.ID = uuid.New()
	ok, err := s.Update(context.Background(), o)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.Orders())
}

func TestStoreTrashAndRestore(t *testing.T) {
	docs := newMemDocuments()
	s := newTestStore(t, docs, nil)
	ctx := context.Background()

	jan, err := s.Add(ctx, newOrder("一月", day(2024, 1, 10)))
	require.NoError(t, err)
	_, err = s.Add(ctx, newOrder("三月", day(2024, 3, 10)))
	require.NoError(t, err)
	_, err = s.Add(ctx, newOrder("二月", day(2024, 2, 10)))
	require.NoError(t, err)

	assert.Equal(t, 1, s.MoveToTrash(ctx, []uuid.UUID{jan.ID}))
	assert.Len(t, s.Orders(), 2)
	require.Len(t, s.Trash(), 1)
	assert.Equal(t, jan.ID, s.Trash()[0].ID)

	assert.Equal(t, 1, s.RestoreFromTrash(ctx, []uuid.UUID{jan.ID}))
	assert.Empty(t, s.Trash())
	orders := s.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"三月", "二月", "一月"}, []string{orders[0].CustomerName, orders[1].CustomerName, orders[2].CustomerName})

	require.NoError(t, s.Flush(ctx))
	assert.Empty(t, docs.decoded(t, core.DeletedDocument))
}

func TestStorePurgeReleasesImages(t *testing.T) {
	images := &recordingImages{}
	s := newTestStore(t, newMemDocuments(), images)
	ctx := context.Background()

	o := newOrder("张三", day(2024, 1, 1))
	o.Items[0].ImageIDs = []string{"img-a", "img-b"}
	added, err := s.Add(ctx, o)
	require.NoError(t, err)

	s.MoveToTrash(ctx, []uuid.UUID{added.ID})
	assert.Equal(t, 1, s.PurgeFromTrash(ctx, []uuid.UUID{added.ID}))
	assert.Empty(t, s.Trash())
	assert.ElementsMatch(t, []string{"img-a", "img-b"}, images.deleted)
}

func TestStoreDeletePermanently(t *testing.T) {
	images := &recordingImages{}
	s := newTestStore(t, newMemDocuments(), images)
	ctx := context.Background()

	o := newOrder("张三", day(2024, 1, 1))
	o.Items[0].ImageIDs = []string{"img-a"}
	added, err := s.Add(ctx, o)
	require.NoError(t, err)

	assert.Equal(t, 1, s.DeletePermanently(ctx, []uuid.UUID{added.ID}))
	assert.Empty(t, s.Orders())
	assert.Empty(t, s.Trash())
	assert.Equal(t, []string{"img-a"}, images.deleted)
}

func TestStoreMergeImported(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	ctx := context.Background()

	existing, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)

	fresh := newOrder("李四", day(2024, 2, 1))
	fresh.ID = uuid.New()
	fresh.OrderNumber = "20240201-001"

	result := s.MergeImported(ctx, []core.Order{existing, fresh, fresh})
	assert.Equal(t, core.MergeResult{Imported: 1, Skipped: 2}, result, "a repeat inside the batch counts as skipped")
	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, fresh.ID, orders[0].ID)

	again := s.MergeImported(ctx, []core.Order{existing, fresh})
	assert.Equal(t, core.MergeResult{Imported: 0, Skipped: 2}, again)
	assert.Len(t, s.Orders(), 2)
}

func TestStorePaymentsReworkAndStatus(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	ctx := context.Background()

	o, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)

	updated, err := s.AddPayment(ctx, o.ID, core.Payment{Amount: dec("60"), Method: core.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusPartial, updated.PaymentStatus())

	_, err = s.AddPayment(ctx, o.ID, core.Payment{Amount: dec("0")})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.AddRework(ctx, o.ID, core.ReworkItem{OriginalItemID: uuid.New(), Reasons: []core.ReworkReason{core.ReworkWrongSize}})
	assert.ErrorIs(t, err, core.ErrValidation, "unknown item")

	rw := core.ReworkItem{
		OriginalItemID: o.Items[0].ID,
		Reasons:        []core.ReworkReason{core.ReworkWrongSize},
		ReworkedItem:   core.OrderItem{SizeQuantities: map[string]int{"39码": 1}},
	}
	updated, err = s.AddRework(ctx, o.ID, rw)
	require.NoError(t, err)
	require.Len(t, updated.ReworkItems, 1)
	assert.Equal(t, "乐福鞋", updated.ReworkItems[0].ReworkedItem.ProductName)

	updated, err = s.SetStatus(ctx, o.ID, core.OrderStatusRefunded)
	require.NoError(t, err)
	assert.False(t, updated.IsActive())

	_, err = s.SetShipment(ctx, uuid.New(), core.ShipmentShipped)
	assert.ErrorIs(t, err, core.ErrOrderNotFound)
}

func TestStoreTotalsSkipRefunded(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	ctx := context.Background()

	a, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)
	b, err := s.Add(ctx, newOrder("李四", day(2024, 1, 2)))
	require.NoError(t, err)
	_, err = s.AddPayment(ctx, a.ID, core.Payment{Amount: dec("99.995")})
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, b.ID, core.OrderStatusRefunded)
	require.NoError(t, err)

	totals := s.Totals()
	assert.True(t, dec("100").Equal(totals.Revenue))
	assert.True(t, dec("99.995").Equal(totals.Paid))
	assert.True(t, totals.Unconfirmed.IsZero(), "residue below a cent is hidden")
}

func TestStoreWholesaleCustomerNames(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	ctx := context.Background()
	for _, name := range []string{"王五", "李四", "王五"} {
		o := newOrder(name, day(2024, 1, 1))
		o.CustomerType = core.CustomerWholesale
		_, err := s.Add(ctx, o)
		require.NoError(t, err)
	}
	_, err := s.Add(ctx, newOrder("零售客", day(2024, 1, 1)))
	require.NoError(t, err)

	names := s.WholesaleCustomerNames()
	assert.Len(t, names, 2)
	assert.NotContains(t, names, "零售客")
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	o, err := s.Add(context.Background(), newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)

	snapshot := s.Orders()
	snapshot[0].Items[0].SizeQuantities["38码"] = 99
	got, ok := s.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Items[0].SizeQuantities["38码"])
}

func TestStoreOnChange(t *testing.T) {
	s := newTestStore(t, newMemDocuments(), nil)
	calls := 0
	s.OnChange(func() { calls++ })
	_, err := s.Add(context.Background(), newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStoreReloadKeepsListsOnReadError(t *testing.T) {
	docs := newMemDocuments()
	s := newTestStore(t, docs, nil)
	ctx := context.Background()
	_, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	docs.mu.Lock()
	docs.failRead = errors.New("disk gone")
	docs.mu.Unlock()
	require.NoError(t, s.Load(ctx))
	assert.Len(t, s.Orders(), 1)
}

// gatedDocuments pauses the next Read after arm until release is closed.
type gatedDocuments struct {
	*memDocuments
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedDocuments) arm() {
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
	g.armed.Store(true)
}

func (g *gatedDocuments) Read(ctx context.Context, name string) ([]byte, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.memDocuments.Read(ctx, name)
}

func TestStoreReloadKeepsOrderAddedMeanwhile(t *testing.T) {
	docs := &gatedDocuments{memDocuments: newMemDocuments()}
	s := newTestStore(t, docs, nil)
	ctx := context.Background()
	first, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	// Someone else edits the document, so the reload has real work to do.
	edited := first.Clone()
	edited.CustomerName = "张三丰"
	data, err := core.EncodeOrders([]core.Order{edited})
	require.NoError(t, err)
	require.NoError(t, docs.Write(ctx, core.OrdersDocument, data))

	docs.arm()
	loaded := make(chan error, 1)
	go func() { loaded <- s.Load(ctx) }()
	<-docs.entered
	added, err := s.Add(ctx, newOrder("李四", day(2024, 1, 2)))
	require.NoError(t, err)
	close(docs.release)
	require.NoError(t, <-loaded)

	_, ok := s.Get(added.ID)
	assert.True(t, ok, "order added during the reload is still in memory")

	_, err = s.SetShipment(ctx, first.ID, core.ShipmentNotShipped)
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))
	var ids []uuid.UUID
	for _, o := range docs.decoded(t, core.OrdersDocument) {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, added.ID, "and it reaches the persisted document")
}

func TestStoreReloadSkipsItsOwnWrite(t *testing.T) {
	docs := newMemDocuments()
	s := newTestStore(t, docs, nil)
	ctx := context.Background()
	_, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
	require.NoError(t, err)
	trashed, err := s.Add(ctx, newOrder("李四", day(2024, 1, 2)))
	require.NoError(t, err)
	require.Equal(t, 1, s.MoveToTrash(ctx, []uuid.UUID{trashed.ID}))
	require.NoError(t, s.Flush(ctx))

	calls := 0
	s.OnChange(func() { calls++ })
	require.NoError(t, s.Load(ctx))
	assert.Zero(t, calls, "unchanged documents do not notify listeners")
	assert.Len(t, s.Orders(), 1)
}
