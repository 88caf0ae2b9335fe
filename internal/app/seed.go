package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-ledger/internal/core"
)

var (
	seedProducts  = []string{"经典款小白鞋", "复古德训鞋", "厚底老爹鞋", "帆布板鞋", "切尔西短靴", "乐福鞋"}
	seedColors    = []string{"白色", "黑色", "米白", "燕麦色", "卡其色", "银色"}
	seedLeathers  = []string{"牛皮", "羊皮", "帆布", "麂皮"}
	seedWholesale = []string{"广州大客户", "深圳张小姐", "杭州批发商", "北京潮流店"}
	seedRetail    = []string{"李女士", "王先生", "小红薯用户", "VIP客户-赵"}
)

// seedStart is the earliest date a generated order can carry.
var seedStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// GenerateSampleOrders builds n random orders dated between 2024-01-01 and
// now. Order numbers use the generation index as the daily counter and do
// not touch the persisted sequence.
func GenerateSampleOrders(n int, now time.Time, seed int64, loc *time.Location) []core.Order {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	pick := func(xs []string) string { return xs[r.IntN(len(xs))] }
	span := now.Sub(seedStart)
	if span <= 0 {
		span = time.Hour
	}

	orders := make([]core.Order, 0, n)
	for i := 0; i < n; i++ {
		date := seedStart.Add(time.Duration(r.Int64N(int64(span)))).In(loc)
		ct, customer := core.CustomerRetail, pick(seedRetail)
		if r.IntN(2) == 0 {
			ct, customer = core.CustomerWholesale, pick(seedWholesale)
		}

		items := make([]core.OrderItem, 1+r.IntN(3))
		for j := range items {
			sizes := map[string]int{}
			for k := 0; k < 2+r.IntN(4); k++ {
				sizes[fmt.Sprintf("%d码", 35+r.IntN(8))] = 1 + r.IntN(5)
			}
			items[j] = core.OrderItem{
				ID:             uuid.New(),
				ProductName:    fmt.Sprintf("%s-%d", pick(seedProducts), 100+r.IntN(900)),
				Color:          pick(seedColors),
				Leather:        pick(seedLeathers),
				SizeQuantities: sizes,
				UnitPrice:      decimal.NewFromInt(int64(200 + r.IntN(601))),
				ImageIDs:       []string{},
			}
		}

		o := core.Order{
			ID:             uuid.New(),
			OrderNumber:    core.OrderNumberFor(date, i),
			CustomerName:   customer,
			Date:           date,
			Items:          items,
			Urgency:        []core.Urgency{core.UrgencyNormal, core.UrgencyUrgent}[r.IntN(2)],
			CustomerType:   ct,
			Trademark:      []core.Trademark{core.TrademarkNone, core.TrademarkGuest}[r.IntN(2)],
			ShipmentStatus: []core.ShipmentStatus{core.ShipmentNotShipped, core.ShipmentShipped}[r.IntN(2)],
			Status:         core.OrderStatusActive,
			Payments:       []core.Payment{},
			ReworkItems:    []core.ReworkItem{},
		}
		orders = append(orders, o)
	}
	return orders
}

func (s *appService) Seed(ctx context.Context, req SeedRequest) (*SeedResult, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", core.ErrValidation)
	}
	if req.Replace {
		s.clearAll(ctx)
	}
	seed := req.Seed
	if seed == 0 {
		seed = s.now().UnixNano()
	}
	orders := GenerateSampleOrders(req.Count, s.now(), seed, s.loc)
	res := s.store.MergeImported(ctx, orders)
	s.logger.Info("sample orders generated", zap.Int("count", res.Imported), zap.Bool("replaced", req.Replace))
	return &SeedResult{MergeResult: res}, nil
}

// clearAll removes every order, trashed or not, with its images.
func (s *appService) clearAll(ctx context.Context) {
	ids := func(orders []core.Order) []uuid.UUID {
		out := make([]uuid.UUID, len(orders))
		for i, o := range orders {
			out[i] = o.ID
		}
		return out
	}
	s.store.DeletePermanently(ctx, ids(s.store.Orders()))
	s.store.PurgeFromTrash(ctx, ids(s.store.Trash()))
}
