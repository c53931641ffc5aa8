package orderbook

import (
	"context"
	"errors"
	"grid-trader-go/internal/grid"
	"grid-trader-go/internal/ids"
	"grid-trader-go/internal/ledger"
	"grid-trader-go/internal/models"
	"grid-trader-go/internal/risk"
	"grid-trader-go/internal/venue"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSink records every event it receives and can be told to fail.
type mockSink struct {
	placements []models.PlacementEvent
	fills      []models.FillEvent
	err        error
}

func (m *mockSink) RecordPlacement(e models.PlacementEvent) error {
	m.placements = append(m.placements, e)
	return m.err
}

func (m *mockSink) RecordFill(e models.FillEvent) error {
	m.fills = append(m.fills, e)
	return m.err
}

// failingVenue rejects every submission.
type failingVenue struct{}

func (failingVenue) Name() string { return "failing" }
func (failingVenue) Submit(ctx context.Context, order *models.Order) (models.Fill, error) {
	return models.Fill{}, errors.New("venue unavailable")
}

type fixture struct {
	book   *Book
	gate   *risk.Gate
	ledger *ledger.Ledger
	sink   *mockSink
}

func newFixture(t *testing.T, equity, maxPosition, quantity float64) *fixture {
	t.Helper()
	seq := &ids.Sequence{}
	gate := risk.NewGate(equity, maxPosition, 0.2, 0, zap.NewNop())
	l := ledger.New(seq, gate)
	sink := &mockSink{}
	book := New(Options{Spacing: 10, Quantity: quantity}, gate, l, venue.NewPaperVenue(), sink, seq, zap.NewNop())
	return &fixture{book: book, gate: gate, ledger: l, sink: sink}
}

func levelsAt(t *testing.T, price float64) []models.GridLevel {
	t.Helper()
	levels, err := grid.ComputeLevels(price, 10, 2)
	require.NoError(t, err)
	return levels
}

func TestEvaluateCrossingBuyScenario(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)
	f.book.Reconcile(levels)

	res, err := f.book.EvaluateCrossing(context.Background(), 2991, levels, 0.1)
	require.NoError(t, err)
	require.True(t, res.Triggered)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.Buy, res.Side)
	assert.Equal(t, 2990.0, res.Level.Price)
	assert.Equal(t, 2991.0, res.Order.Price, "orders are placed at the current price")
	assert.Equal(t, 0.1, res.Order.Quantity)
	assert.Equal(t, int64(1), res.Order.ID)

	assert.False(t, f.book.ShouldPlace(res.Level, models.Buy))
	assert.True(t, f.book.ShouldPlace(res.Level, models.Sell))

	// 同一价格再次检查，不会重复下单
	res, err = f.book.EvaluateCrossing(context.Background(), 2991, levels, 0.1)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Order)
	assert.Len(t, f.book.ActiveOrders(), 1)

	pos := f.ledger.Position()
	assert.InDelta(t, 0.1, pos.Quantity, 1e-12)
	assert.InDelta(t, 2991.0, pos.AvgPrice, 1e-9)
}

func TestEvaluateCrossingSellNearUpperLevel(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	res, err := f.book.EvaluateCrossing(context.Background(), 2999.5, levels, 0.1)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.Sell, res.Side)
	assert.Equal(t, 3000.0, res.Level.Price)

	require.Len(t, f.sink.fills, 1)
	assert.True(t, f.sink.fills[0].HasPnL)
}

func TestEvaluateCrossingOutsideBandDoesNothing(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	res, err := f.book.EvaluateCrossing(context.Background(), 2995, levels, 0.1)
	require.NoError(t, err)
	assert.True(t, res.InRange)
	assert.False(t, res.Triggered)
	assert.Empty(t, f.book.ActiveOrders())
}

func TestEvaluateCrossingBandBoundaryIsInclusive(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	// 距离 upper 恰好等于带宽 1.0
	res, err := f.book.EvaluateCrossing(context.Background(), 3009, levels, 0.1)
	require.NoError(t, err)
	require.True(t, res.Triggered)
	assert.Equal(t, models.Sell, res.Side)
	assert.Equal(t, 3010.0, res.Level.Price)

	res, err = f.book.EvaluateCrossing(context.Background(), 3008.9, levels, 0.1)
	require.NoError(t, err)
	assert.False(t, res.Triggered)
}

func TestEvaluateCrossingExactlyOnLevelBelongsToLowerBracket(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	// 3000 落在 (2990, 3000]，距离 upper 为 0，触发卖出
	res, err := f.book.EvaluateCrossing(context.Background(), 3000, levels, 0.1)
	require.NoError(t, err)
	assert.Equal(t, models.Sell, res.Side)
	assert.Equal(t, 3000.0, res.Level.Price)
}

func TestEvaluateCrossingOutsideLadder(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	res, err := f.book.EvaluateCrossing(context.Background(), 2980, levels, 0.1)
	require.NoError(t, err)
	assert.False(t, res.InRange)
	assert.Nil(t, res.Order)
}

func TestEvaluateCrossingRejectedByRisk(t *testing.T) {
	// 资金只有 100，买不起 0.1 @ 2991
	f := newFixture(t, 100, 0.5, 0.1)
	levels := levelsAt(t, 3000)

	res, err := f.book.EvaluateCrossing(context.Background(), 2991, levels, 0.1)
	require.NoError(t, err, "a rejection is a decision, not a failure")
	require.NotNil(t, res.Rejection)
	assert.Equal(t, risk.ReasonInsufficientFunds, res.Rejection.Reason)
	assert.Nil(t, res.Order)
	assert.Empty(t, f.book.ActiveOrders())
	assert.Empty(t, f.sink.placements)
	assert.Zero(t, f.ledger.Position().Quantity)
}

func TestPlaceRejectedOnPositionSizeRegardlessOfFunds(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	level := grid.LevelAt(3000, 10)

	order, err := f.book.Place(context.Background(), models.Buy, 3000, level)
	require.NoError(t, err)
	assert.Equal(t, 0.1, order.Quantity)

	big := newFixture(t, 1_000_000, 0.5, 0.6)
	_, err = big.book.Place(context.Background(), models.Buy, 1, level)
	var rej *risk.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, risk.ReasonPositionSize, rej.Reason)
	assert.Empty(t, big.book.ActiveOrders())
}

func TestPlaceRefusesDuplicateOpenOrder(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	level := grid.LevelAt(2990, 10)

	_, err := f.book.Place(context.Background(), models.Buy, 2991, level)
	require.NoError(t, err)

	_, err = f.book.Place(context.Background(), models.Buy, 2991, level)
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	// 另一个方向仍然可以
	_, err = f.book.Place(context.Background(), models.Sell, 2991, level)
	require.NoError(t, err)
	assert.Len(t, f.book.ActiveOrders(), 2)
}

func TestPlaceEmitsEventsAndIncreasingIDs(t *testing.T) {
	f := newFixture(t, 10_000, 0.5, 0.1)

	first, err := f.book.Place(context.Background(), models.Buy, 2991, grid.LevelAt(2990, 10))
	require.NoError(t, err)
	second, err := f.book.Place(context.Background(), models.Buy, 3001, grid.LevelAt(3000, 10))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, ids.OrderTag(second.ID), second.Tag)

	require.Len(t, f.sink.placements, 2)
	assert.Equal(t, 2990.0, f.sink.placements[0].Level.Price)
	assert.Equal(t, 2991.0, f.sink.placements[0].Price)
	require.Len(t, f.sink.fills, 2)
	assert.False(t, f.sink.fills[0].HasPnL)
}

func TestPlaceSinkFailureDoesNotAffectState(t *testing.T) {
	f := newFixture(t, 1000, 0.5, 0.1)
	f.sink.err = errors.New("disk full")

	order, err := f.book.Place(context.Background(), models.Buy, 2991, grid.LevelAt(2990, 10))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Len(t, f.book.ActiveOrders(), 1)
	assert.InDelta(t, 0.1, f.ledger.Position().Quantity, 1e-12)
}

func TestPlaceVenueFailureLeavesStateUntouched(t *testing.T) {
	seq := &ids.Sequence{}
	gate := risk.NewGate(1000, 0.5, 0.2, 0, zap.NewNop())
	l := ledger.New(seq, gate)
	book := New(Options{Spacing: 10, Quantity: 0.1}, gate, l, failingVenue{}, nil, seq, zap.NewNop())

	_, err := book.Place(context.Background(), models.Buy, 2991, grid.LevelAt(2990, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue unavailable")
	assert.Empty(t, book.ActiveOrders())
	assert.Empty(t, book.LevelIndexes())
	assert.Zero(t, l.Position().Quantity)
}

func TestReconcilePrunesStaleLevelsAndClosesOrders(t *testing.T) {
	f := newFixture(t, 10_000, 0.5, 0.1)
	ctx := context.Background()

	_, err := f.book.Place(ctx, models.Buy, 2981, grid.LevelAt(2980, 10))
	require.NoError(t, err)
	_, err = f.book.Place(ctx, models.Sell, 2981, grid.LevelAt(2980, 10))
	require.NoError(t, err)
	kept, err := f.book.Place(ctx, models.Buy, 3001, grid.LevelAt(3000, 10))
	require.NoError(t, err)
	positionBefore := f.ledger.Position()

	// 价格上移到 3030，阶梯变成 [3010..3050]，2980 与 3000 都被裁剪
	newLevels := levelsAt(t, 3030)
	closed := f.book.Reconcile(newLevels)
	assert.Len(t, closed, 3)
	for _, o := range closed {
		assert.Equal(t, models.StatusClosed, o.Status)
	}

	members := make(map[int64]bool)
	for _, l := range newLevels {
		members[l.Index] = true
	}
	for _, idx := range f.book.LevelIndexes() {
		assert.True(t, members[idx], "remaining level %d must be in the new ladder", idx)
	}
	assert.Empty(t, f.book.ActiveOrders())

	// 关闭只是账务处理，持仓不变
	assert.Equal(t, positionBefore, f.ledger.Position())

	// 已关闭订单仍然归属其原始档位
	history := f.book.History()
	require.Len(t, history, 3)
	for _, o := range history {
		assert.Equal(t, models.StatusClosed, o.Status)
	}
	assert.Equal(t, 3000.0, history[2].Level.Price)
	assert.Equal(t, kept.ID, history[2].ID)
}

func TestReconcileKeepsLevelsStillInLadder(t *testing.T) {
	f := newFixture(t, 10_000, 0.5, 0.1)
	_, err := f.book.Place(context.Background(), models.Buy, 2991, grid.LevelAt(2990, 10))
	require.NoError(t, err)

	// 浮点噪声不会导致档位被误删
	closed := f.book.Reconcile(levelsAt(t, 2999.9999999))
	assert.Empty(t, closed)
	assert.Len(t, f.book.ActiveOrders(), 1)
}

func TestClosedLevelCanBeReusedAfterReentry(t *testing.T) {
	f := newFixture(t, 10_000, 0.5, 0.1)
	ctx := context.Background()
	level := grid.LevelAt(2990, 10)

	_, err := f.book.Place(ctx, models.Buy, 2991, level)
	require.NoError(t, err)

	f.book.Reconcile(levelsAt(t, 3100))
	assert.True(t, f.book.ShouldPlace(level, models.Buy))

	f.book.Reconcile(levelsAt(t, 3000))
	res, err := f.book.EvaluateCrossing(ctx, 2991, levelsAt(t, 3000), 0.1)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Len(t, f.book.History(), 2)
}

func TestNoDuplicateOpenOrdersAcrossRandomWalk(t *testing.T) {
	f := newFixture(t, 1_000_000, 1, 0.01)
	ctx := context.Background()

	walk := []float64{3000, 2991, 2991, 2999.5, 3009, 3011, 3025, 2989.5, 2990.5, 2991, 3050, 2999.2, 2991, 3001, 2981}
	for _, price := range walk {
		levels := levelsAt(t, price)
		f.book.Reconcile(levels)
		_, err := f.book.EvaluateCrossing(ctx, price, levels, 0.1)
		require.NoError(t, err)

		seen := make(map[int64]map[models.Side]int)
		for _, o := range f.book.ActiveOrders() {
			if seen[o.Level.Index] == nil {
				seen[o.Level.Index] = make(map[models.Side]int)
			}
			seen[o.Level.Index][o.Side]++
			assert.LessOrEqual(t, seen[o.Level.Index][o.Side], 1)
		}
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, 10_000, 0.5, 0.1)
	ctx := context.Background()

	_, err := f.book.Place(ctx, models.Buy, 3001, grid.LevelAt(3000, 10))
	require.NoError(t, err)
	_, err = f.book.Place(ctx, models.Buy, 2991, grid.LevelAt(2990, 10))
	require.NoError(t, err)

	rows := f.book.Snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, models.SnapshotRow{GridLevel: 2990, Side: models.Buy, Price: 2991, Quantity: 0.1}, rows[0])
	assert.Equal(t, 3000.0, rows[1].GridLevel)
}
