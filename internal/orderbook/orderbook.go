// Package orderbook 按网格档位管理订单的生命周期。
//
// 每个周期的调用顺序是固定的：Reconcile 先裁剪不在新阶梯中的档位，
// 然后 EvaluateCrossing 最多触发一笔下单。下单通过风控后立即在执行场所成交，
// 并同步计入账本。订单只有 open -> closed 一种状态转换，
// 且只会因为其档位被裁剪而关闭。
package orderbook

import (
	"context"
	"errors"
	"fmt"
	"grid-trader-go/internal/grid"
	"grid-trader-go/internal/ids"
	"grid-trader-go/internal/ledger"
	"grid-trader-go/internal/models"
	"grid-trader-go/internal/risk"
	"grid-trader-go/internal/venue"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrDuplicateOrder 表示该档位同方向已有一笔 open 订单
var ErrDuplicateOrder = errors.New("open order already exists at level for side")

// EventSink 接收下单和成交事件。返回的错误不会影响订单簿状态。
type EventSink interface {
	RecordPlacement(event models.PlacementEvent) error
	RecordFill(event models.FillEvent) error
}

// Options 是订单簿的固定参数
type Options struct {
	Spacing  float64 // 网格间距
	Quantity float64 // 每单固定数量
}

// Book 持有从网格索引到订单列表的映射
type Book struct {
	opts    Options
	levels  map[int64][]*models.Order
	history []*models.Order
	gate    *risk.Gate
	ledger  *ledger.Ledger
	venue   venue.Venue
	sink    EventSink
	seq     *ids.Sequence
	logger  *zap.Logger
	now     func() time.Time
}

// New 创建订单簿。sink 可以为 nil。
func New(opts Options, gate *risk.Gate, l *ledger.Ledger, v venue.Venue, sink EventSink, seq *ids.Sequence, logger *zap.Logger) *Book {
	return &Book{
		opts:   opts,
		levels: make(map[int64][]*models.Order),
		gate:   gate,
		ledger: l,
		venue:  v,
		sink:   sink,
		seq:    seq,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile 关闭所有不在 newLevels 中的档位上的 open 订单，并把这些档位从索引中移除。
// 这里只做账务处理：不会生成对冲交易，也不会改动持仓。返回本次被关闭的订单。
func (b *Book) Reconcile(newLevels []models.GridLevel) []models.Order {
	keep := make(map[int64]struct{}, len(newLevels))
	for _, l := range newLevels {
		keep[l.Index] = struct{}{}
	}

	var closed []models.Order
	for _, idx := range b.sortedIndexes() {
		if _, ok := keep[idx]; ok {
			continue
		}
		for _, o := range b.levels[idx] {
			if !o.IsOpen() {
				continue
			}
			o.Status = models.StatusClosed
			o.ClosedAt = b.now()
			closed = append(closed, *o)
			b.logger.Info("Closing order at grid level",
				zap.String("order", o.Tag),
				zap.String("side", string(o.Side)),
				zap.Float64("grid_level", o.Level.Price))
		}
		delete(b.levels, idx)
	}
	return closed
}

// ShouldPlace 当档位上没有同方向的 open 订单时返回 true
func (b *Book) ShouldPlace(level models.GridLevel, side models.Side) bool {
	for _, o := range b.levels[level.Index] {
		if o.IsOpen() && o.Side == side {
			return false
		}
	}
	return true
}

// Place 在指定档位以 price 下一笔固定数量的订单。
//
// 被风控拒绝时返回 *risk.Rejection，且不做任何状态修改。
// 通过后分配新的订单编号，提交给执行场所，把订单追加到档位并把成交计入账本。
// 执行场所失败时返回错误，订单簿和账本保持不变。
func (b *Book) Place(ctx context.Context, side models.Side, price float64, level models.GridLevel) (*models.Order, error) {
	if !b.ShouldPlace(level, side) {
		return nil, fmt.Errorf("%w: %s @ %v", ErrDuplicateOrder, side, level.Price)
	}
	if rej := b.gate.Admit(b.opts.Quantity, price); rej != nil {
		return nil, rej
	}

	id := b.seq.Next()
	order := &models.Order{
		ID:        id,
		Tag:       ids.OrderTag(id),
		Side:      side,
		Price:     price,
		Quantity:  b.opts.Quantity,
		Level:     level,
		Status:    models.StatusOpen,
		CreatedAt: b.now(),
	}

	fill, err := b.venue.Submit(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%s 提交订单 %s 失败: %w", b.venue.Name(), order.Tag, err)
	}

	b.levels[level.Index] = append(b.levels[level.Index], order)
	b.history = append(b.history, order)

	b.logger.Info(fmt.Sprintf("New %s order placed at grid level %v (Price: %v)", side, level.Price, price),
		zap.String("order", order.Tag))
	b.emitPlacement(models.PlacementEvent{
		OrderID:  order.ID,
		Tag:      order.Tag,
		Side:     side,
		Level:    level,
		Price:    price,
		Quantity: order.Quantity,
		Time:     order.CreatedAt,
	})

	pnl, realized := b.ledger.ApplyFill(fill.Side, fill.Quantity, fill.Price)
	b.emitFill(models.FillEvent{
		OrderID:     order.ID,
		Side:        fill.Side,
		Price:       fill.Price,
		Quantity:    fill.Quantity,
		RealizedPnL: pnl,
		HasPnL:      realized,
		Time:        fill.Time,
	})

	orderCopy := *order
	return &orderCopy, nil
}

// CrossingResult 描述一次触发检查的结果
type CrossingResult struct {
	InRange   bool // 当前价格是否落在阶梯的某个区间内
	Lower     models.GridLevel
	Upper     models.GridLevel
	Triggered bool // 是否进入了某个档位的触发带
	Side      models.Side
	Level     models.GridLevel
	Skipped   bool          // 已有同方向 open 订单，未下单
	Order     *models.Order // 成功下单时非空
	Rejection *risk.Rejection
}

// EvaluateCrossing 找到包含当前价格的区间 (lower, upper]。
// 价格距离 lower 不超过 toleranceFraction*spacing 时尝试买入，
// 否则距离 upper 不超过该带宽时尝试卖出。带宽边界包含在内。每个周期只检查这一个区间，
// 两次轮询之间穿越但未落入触发带的档位不会被补单。
func (b *Book) EvaluateCrossing(ctx context.Context, currentPrice float64, levels []models.GridLevel, toleranceFraction float64) (CrossingResult, error) {
	var res CrossingResult

	lower, upper, ok := grid.Bracket(levels, currentPrice)
	if !ok {
		return res, nil
	}
	res.InRange, res.Lower, res.Upper = true, lower, upper

	band := toleranceFraction * b.opts.Spacing
	switch {
	case math.Abs(currentPrice-lower.Price) <= band:
		res.Triggered, res.Side, res.Level = true, models.Buy, lower
	case math.Abs(currentPrice-upper.Price) <= band:
		res.Triggered, res.Side, res.Level = true, models.Sell, upper
	default:
		return res, nil
	}

	if !b.ShouldPlace(res.Level, res.Side) {
		res.Skipped = true
		return res, nil
	}

	order, err := b.Place(ctx, res.Side, currentPrice, res.Level)
	if err != nil {
		var rej *risk.Rejection
		if errors.As(err, &rej) {
			res.Rejection = rej
			return res, nil
		}
		return res, err
	}
	res.Order = order
	return res, nil
}

// ActiveOrders 返回所有 open 订单，按档位升序、档位内按插入顺序
func (b *Book) ActiveOrders() []models.Order {
	var out []models.Order
	for _, idx := range b.sortedIndexes() {
		for _, o := range b.levels[idx] {
			if o.IsOpen() {
				out = append(out, *o)
			}
		}
	}
	return out
}

// Snapshot 返回供图表使用的 (档位, 价格, 数量) 序列
func (b *Book) Snapshot() []models.SnapshotRow {
	active := b.ActiveOrders()
	rows := make([]models.SnapshotRow, 0, len(active))
	for _, o := range active {
		rows = append(rows, models.SnapshotRow{
			GridLevel: o.Level.Price,
			Side:      o.Side,
			Price:     o.Price,
			Quantity:  o.Quantity,
		})
	}
	return rows
}

// History 返回所有下过的订单（包括已关闭的），每笔订单保留其原始档位
func (b *Book) History() []models.Order {
	out := make([]models.Order, 0, len(b.history))
	for _, o := range b.history {
		out = append(out, *o)
	}
	return out
}

// LevelIndexes 返回当前索引中的档位，升序
func (b *Book) LevelIndexes() []int64 {
	return b.sortedIndexes()
}

func (b *Book) sortedIndexes() []int64 {
	keys := make([]int64, 0, len(b.levels))
	for k := range b.levels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (b *Book) emitPlacement(event models.PlacementEvent) {
	if b.sink == nil {
		return
	}
	if err := b.sink.RecordPlacement(event); err != nil {
		b.logger.Warn("写入下单记录失败", zap.String("order", event.Tag), zap.Error(err))
	}
}

func (b *Book) emitFill(event models.FillEvent) {
	if b.sink == nil {
		return
	}
	if err := b.sink.RecordFill(event); err != nil {
		b.logger.Warn("写入成交记录失败", zap.Int64("order_id", event.OrderID), zap.Error(err))
	}
}
