package repl

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/analytics"
	"order-ledger/internal/app"
	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
)

var shanghai = time.FixedZone("CST", 8*3600)

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, shanghai)
	clock := func() time.Time { return now }
	dir := t.TempDir()
	docs, err := core.NewFileDocuments(dir)
	require.NoError(t, err)
	images, err := imagestore.New(filepath.Join(dir, "Images"), nil)
	require.NoError(t, err)
	settings := core.NewFileSettings(filepath.Join(dir, "settings.yaml"))
	store := core.NewOrderStore(docs, core.StoreOptions{
		Numbers: core.NewOrderNumberGenerator(settings, shanghai, nil),
		Images:  images,
	})
	engine := analytics.NewEngine(shanghai).WithClock(clock)
	session := analytics.NewSession(engine, store.Orders, analytics.DefaultConfig(now), time.Millisecond, nil)
	store.OnChange(session.Refresh)
	t.Cleanup(func() {
		session.Close()
		_ = store.Flush(context.Background())
	})
	return app.NewAppService(app.Deps{
		Store: store, Images: images, Settings: settings, Engine: engine, Session: session,
		Location: shanghai, DeadlineDays: 7, Now: clock,
	})
}

func TestParseItemLine(t *testing.T) {
	item, err := parseItemLine("乐福鞋 黑色 37:1,38码:2 350")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"37码": 1, "38码": 2}, item.SizeQuantities)
	assert.True(t, item.UnitPrice.Equal(decimal.NewFromInt(350)))

	item, err = parseItemLine("乐福鞋 黑色 39:1")
	require.NoError(t, err)
	assert.True(t, item.UnitPrice.IsZero())

	for _, bad := range []string{"乐福鞋 黑色", "乐福鞋 黑色 39", "乐福鞋 黑色 39:x", "乐福鞋 黑色 39:1 -5"} {
		_, err := parseItemLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestSessionFlow(t *testing.T) {
	svc := newService(t)
	script := strings.Join([]string{
		"/new",
		"张三",
		"批发",
		"乐福鞋 黑色 37:1,38:2 300",
		"done",
		"",
		"n",
		"/pay 20240315-001 500 cash",
		"张三",
		"/orders partial",
		"/stats month",
		"/bogus",
		"/exit",
	}, "\n") + "\n"

	var out bytes.Buffer
	Run(context.Background(), svc, strings.NewReader(script), &out)
	text := out.String()

	assert.Contains(t, text, "Order created: 20240315-001")
	assert.Contains(t, text, "部分收款, balance due 400.00")
	assert.Contains(t, text, "今日 (1)")
	assert.Contains(t, text, "2024年3月")
	assert.Contains(t, text, "Unknown command: /bogus")
	assert.Contains(t, text, "Goodbye!")

	res, err := svc.CurrentAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analytics.Month, res.Config.Granularity)
}

func TestRunStopsAtEOF(t *testing.T) {
	var out bytes.Buffer
	Run(context.Background(), newService(t), strings.NewReader("/totals"), &out)
	assert.Contains(t, out.String(), "总金额")
}
