package backup_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"order-ledger/internal/backup"
	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleOrder(imageIDs ...string) core.Order {
	return core.Order{
		ID:             uuid.New(),
		OrderNumber:    "20240105-001",
		CustomerName:   "张三",
		Date:           time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		Urgency:        core.UrgencyNormal,
		CustomerType:   core.CustomerRetail,
		Trademark:      core.TrademarkNone,
		ShipmentStatus: core.ShipmentNotShipped,
		Status:         core.OrderStatusActive,
		Items: []core.OrderItem{{
			ID:             uuid.New(),
			ProductName:    "乐福鞋",
			Color:          "黑色",
			SizeQuantities: map[string]int{"38码": 1},
			UnitPrice:      decimal.NewFromInt(120),
			ImageIDs:       imageIDs,
		}},
	}
}

func newImages(t *testing.T) *imagestore.Store {
	t.Helper()
	s, err := imagestore.New(filepath.Join(t.TempDir(), "images"), nil)
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T) core.OrderStore {
	t.Helper()
	docs, err := core.NewFileDocuments(t.TempDir())
	require.NoError(t, err)
	store := core.NewOrderStore(docs, core.StoreOptions{})
	t.Cleanup(func() { _ = store.Flush(context.Background()) })
	return store
}

func archiveNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestWriteAndRestore(t *testing.T) {
	ctx := context.Background()
	src := newImages(t)
	imgID, err := src.Save([]byte("photo"))
	require.NoError(t, err)
	order := sampleOrder(imgID, "GONE")

	var buf bytes.Buffer
	sum, err := backup.Write(ctx, &buf, []core.Order{order}, src, nil)
	require.NoError(t, err)
	assert.Equal(t, backup.WriteSummary{Orders: 1, Images: 1, MissingImages: 1}, sum)
	assert.ElementsMatch(t, []string{"app_orders.json", "Images/" + imgID + ".jpg"}, archiveNames(t, buf.Bytes()))

	dst := newImages(t)
	store := newStore(t)
	res, err := backup.Restore(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), dst, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.ImagesCopied)

	data, err := dst.Load(imgID)
	require.NoError(t, err)
	assert.Equal(t, "photo", string(data))
	got, ok := store.Get(order.ID)
	require.True(t, ok)
	assert.Equal(t, "20240105-001", got.OrderNumber)

	// Restoring the same archive again skips everything.
	res, err = backup.Restore(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), dst, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.ImagesSkipped)
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.Copy(w, strings.NewReader(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRestoreFindsNestedDocument(t *testing.T) {
	doc, err := core.EncodeOrders([]core.Order{sampleOrder("IMG1")})
	require.NoError(t, err)
	data := buildArchive(t, map[string]string{
		"__MACOSX/backup/._app_orders.json": "junk",
		"backup/app_orders.json":            string(doc),
		"backup/Images/IMG1.jpg":            "img",
		"other/Images/IMG2.jpg":             "unrelated",
	})

	images := newImages(t)
	res, err := backup.Restore(context.Background(), bytes.NewReader(data), int64(len(data)), images, newStore(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.True(t, images.Has("IMG1"))
	assert.False(t, images.Has("IMG2"))
}

func TestRestoreFailuresLeaveStoreUntouched(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		stage backup.Stage
	}{
		{"not a zip", []byte("plain text"), backup.StageOpen},
		{"no orders", buildArchive(t, map[string]string{"Images/A.jpg": "x"}), backup.StageLocate},
		{"corrupt orders", buildArchive(t, map[string]string{"app_orders.json": "{not json", "Images/A.jpg": "x"}), backup.StageDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := newImages(t)
			store := newStore(t)
			_, err := backup.Restore(context.Background(), bytes.NewReader(tt.data), int64(len(tt.data)), images, store, nil)

			var rerr *backup.RestoreError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.stage, rerr.Stage)
			assert.NotEmpty(t, rerr.Error())
			assert.Empty(t, store.Orders())
			assert.False(t, images.Has("A"), "no images copied before the orders decode")
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "商家记账本备份_2024-03-05_14-07-09.zip", backup.FileName(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)))
}
