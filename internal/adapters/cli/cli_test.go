package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/adapters/cli"
	"order-ledger/internal/analytics"
	"order-ledger/internal/app"
	"order-ledger/internal/auth"
	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
)

var shanghai = time.FixedZone("CST", 8*3600)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, shanghai)

const orderJSON = `{
  "customerName": "张三",
  "customerType": "retail",
  "date": "2024-03-15T09:00:00+08:00",
  "items": [{"productName": "乐福鞋", "color": "黑色", "sizeQuantities": {"38码": 2}, "unitPrice": "350"}]
}`

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	dir := t.TempDir()
	docs, err := core.NewFileDocuments(dir)
	require.NoError(t, err)
	images, err := imagestore.New(filepath.Join(dir, "Images"), nil)
	require.NoError(t, err)
	settings := core.NewFileSettings(filepath.Join(dir, "settings.yaml"))
	clock := func() time.Time { return fixedNow }
	store := core.NewOrderStore(docs, core.StoreOptions{
		Numbers: core.NewOrderNumberGenerator(settings, shanghai, nil),
		Images:  images,
	})
	t.Cleanup(func() { _ = store.Flush(context.Background()) })
	return app.NewAppService(app.Deps{
		Store:        store,
		Images:       images,
		Settings:     settings,
		Engine:       analytics.NewEngine(shanghai).WithClock(clock),
		Location:     shanghai,
		DeadlineDays: 7,
		Now:          clock,
	})
}

type harness struct {
	svc    app.ApplicationService
	opened int
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewCommand(func(context.Context) (app.ApplicationService, error) {
		h.opened++
		return h.svc, nil
	}, cli.Options{
		Out:       &out,
		In:        strings.NewReader(stdin),
		JWTSecret: "cli-secret",
		Now:       func() time.Time { return fixedNow },
	})
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOrdersAddListAndPay(t *testing.T) {
	h := &harness{svc: newService(t)}

	out, err := h.run(t, orderJSON, "orders", "add", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "20240315-001")
	assert.Contains(t, out, "未收款")

	out, err = h.run(t, "", "orders", "pay", "20240315-001", "--amount", "700", "--method", "cash")
	require.NoError(t, err)
	assert.Contains(t, out, "已结清")

	out, err = h.run(t, "", "orders", "list", "--filter", "paid")
	require.NoError(t, err)
	assert.Contains(t, out, "今日")
	assert.Contains(t, out, "张三")

	out, err = h.run(t, "", "orders", "list", "--filter", "unpaid")
	require.NoError(t, err)
	assert.Contains(t, out, "No orders.")

	out, err = h.run(t, "", "totals", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"revenue": "700"`)
}

func TestTrashRoundTrip(t *testing.T) {
	h := &harness{svc: newService(t)}
	_, err := h.run(t, orderJSON, "orders", "add", "-")
	require.NoError(t, err)

	out, err := h.run(t, "", "orders", "trash", "20240315-001")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved 1 order(s)")

	trash, err := h.svc.ListTrash(context.Background())
	require.NoError(t, err)
	require.Len(t, trash.Orders, 1)

	out, err = h.run(t, "", "trash", "restore", trash.Orders[0].ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 1 order(s)")

	_, err = h.run(t, "", "trash", "purge", "not-a-uuid")
	assert.Error(t, err)
}

func TestReportsAndBackup(t *testing.T) {
	h := &harness{svc: newService(t)}
	_, err := h.run(t, orderJSON, "orders", "add", "-")
	require.NoError(t, err)

	out, err := h.run(t, "", "report", "shipments")
	require.NoError(t, err)
	assert.Contains(t, out, "20240315-001")

	out, err = h.run(t, "", "export", "csv", "-o", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\ufeff"))
	assert.Contains(t, out, "张三")

	out, err = h.run(t, "", "analytics", "-g", "month", "--anchor", "2024-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "乐福鞋")

	dir := t.TempDir()
	out, err = h.run(t, "", "backup", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up 1 order(s)")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".zip"))

	other := &harness{svc: newService(t)}
	out, err = other.run(t, "", "restore-backup", filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 order(s)")
}

func TestSeedAndImport(t *testing.T) {
	h := &harness{svc: newService(t)}
	out, err := h.run(t, "", "seed", "-n", "5", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 5 order(s)")

	_, err = h.run(t, "", "seed", "-n", "0")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = h.run(t, "not json", "import", "-")
	assert.Error(t, err)
}

func TestTokenSkipsStorage(t *testing.T) {
	h := &harness{}
	out, err := h.run(t, "", "token", "--subject", "shop")
	require.NoError(t, err)
	assert.Zero(t, h.opened)

	claims, err := auth.Verify("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "shop", claims.Subject)
}

func TestNoArgsStartsShell(t *testing.T) {
	h := &harness{svc: newService(t)}
	out, err := h.run(t, "/totals\n/exit\n")
	require.NoError(t, err)
	assert.Equal(t, 1, h.opened)
	assert.Contains(t, out, "Order Ledger")
	assert.Contains(t, out, "Goodbye!")
}
