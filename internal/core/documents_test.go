package core_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"order-ledger/internal/core"
)

func TestFileDocumentsRoundTrip(t *testing.T) {
	docs, err := core.NewFileDocuments(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = docs.Read(ctx, core.OrdersDocument)
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)

	require.NoError(t, docs.Write(ctx, core.OrdersDocument, []byte("[]")))
	require.NoError(t, docs.Write(ctx, core.OrdersDocument, []byte(`[{"a":1}]`)))
	data, err := docs.Read(ctx, core.OrdersDocument)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, string(data))

	entries, err := os.ReadDir(docs.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileDocumentsMigrateLegacy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders_v3.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deletedOrders_v3.json"), []byte("[]"), 0o644))
	docs, err := core.NewFileDocuments(dir)
	require.NoError(t, err)

	migrated, err := docs.MigrateLegacy()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{core.OrdersDocument, core.DeletedDocument}, migrated)
	assert.FileExists(t, docs.Path(core.OrdersDocument))
	assert.NoFileExists(t, filepath.Join(dir, "orders_v3.json"))

	again, err := docs.MigrateLegacy()
	require.NoError(t, err)
	assert.Empty(t, again)
}

// slowDocuments records every write and blocks each one until released.
type slowDocuments struct {
	mu      sync.Mutex
	written []string
	gate    chan struct{}
}

func (s *slowDocuments) Read(ctx context.Context, name string) ([]byte, error) {
	return nil, core.ErrDocumentNotFound
}

func (s *slowDocuments) Write(ctx context.Context, name string, data []byte) error {
	<-s.gate
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, string(data))
	return nil
}

func TestStoreCoalescesPendingSaves(t *testing.T) {
	defer goleak.VerifyNone(t)

	docs := &slowDocuments{gate: make(chan struct{})}
	s := core.NewOrderStore(docs, core.StoreOptions{Logger: zap.NewNop()})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, newOrder("张三", day(2024, 1, 1)))
		require.NoError(t, err)
	}
	close(docs.gate)

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(flushCtx))

	docs.mu.Lock()
	defer docs.mu.Unlock()
	assert.LessOrEqual(t, len(docs.written), 2, "the first write plus one coalesced write")
	last, err := core.DecodeOrders([]byte(docs.written[len(docs.written)-1]))
	require.NoError(t, err)
	assert.Len(t, last, 5, "the final write holds the latest snapshot")
}

func TestPgDocuments(t *testing.T) {
	pool := setupTestDB(t)
	docs := core.NewPgDocuments(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, "DELETE FROM order_documents WHERE name = $1", core.DeletedDocument)
	require.NoError(t, err)

	_, err = docs.Read(ctx, core.DeletedDocument)
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)

	require.NoError(t, docs.Write(ctx, core.DeletedDocument, []byte("[]")))
	require.NoError(t, docs.Write(ctx, core.DeletedDocument, []byte(`[{"orderNumber":"20240101-001"}]`)))
	data, err := docs.Read(ctx, core.DeletedDocument)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"orderNumber":"20240101-001"}]`, string(data))
}
