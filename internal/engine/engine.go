// Package engine 把网格规划、订单簿、风控和账本组合成一个按周期驱动的引擎。
package engine

import (
	"context"
	"errors"
	"fmt"
	"grid-trader-go/internal/feed"
	"grid-trader-go/internal/grid"
	"grid-trader-go/internal/ids"
	"grid-trader-go/internal/ledger"
	"grid-trader-go/internal/metrics"
	"grid-trader-go/internal/models"
	"grid-trader-go/internal/orderbook"
	"grid-trader-go/internal/risk"
	"grid-trader-go/internal/venue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusPrinter 在每个周期结束时打印状态
type StatusPrinter interface {
	PrintCycle(currentPrice, baseGrid float64, orders []models.Order, stats models.Statistics)
}

// ChartRenderer 根据活动订单快照生成图表
type ChartRenderer interface {
	Render(ctx context.Context, rows []models.SnapshotRow) error
}

// Deps 是引擎的外部协作者。Venue 为空时使用 PaperVenue，其余可以为空。
type Deps struct {
	Feed    feed.PriceFeed
	Venue   venue.Venue
	Sink    orderbook.EventSink
	Console StatusPrinter
	Chart   ChartRenderer
}

// CycleReport 描述一个周期做了什么
type CycleReport struct {
	Price    float64
	BaseGrid float64
	Levels   []models.GridLevel
	Closed   []models.Order
	Crossing orderbook.CrossingResult
	Stats    models.Statistics
}

// Engine 持有一次运行的全部状态，由调度器独占，不支持并发调用
type Engine struct {
	runID     string
	symbol    string
	spacing   float64
	count     int
	tolerance float64

	feed    feed.PriceFeed
	gate    *risk.Gate
	ledger  *ledger.Ledger
	book    *orderbook.Book
	console StatusPrinter
	chart   ChartRenderer
	logger  *zap.Logger

	equityCurve []float64
	lastPrice   float64
	cycles      int
}

// New 根据已校验的配置构建引擎
func New(cfg *models.Config, deps Deps, logger *zap.Logger) (*Engine, error) {
	if deps.Feed == nil {
		return nil, fmt.Errorf("%w: 缺少价格来源", models.ErrConfig)
	}
	// 提前校验网格参数，避免在第一个周期才暴露
	if _, err := grid.ComputeLevels(1, cfg.GridSpacing, cfg.GridCount); err != nil {
		return nil, err
	}
	v := deps.Venue
	if v == nil {
		v = venue.NewPaperVenue()
	}

	seq := &ids.Sequence{}
	gate := risk.NewGate(cfg.InitialInvestment, cfg.MaxPositionSize, cfg.MaxDrawdownPercent, cfg.MaxLossPerTradePercent, logger)
	l := ledger.New(seq, gate)
	book := orderbook.New(orderbook.Options{Spacing: cfg.GridSpacing, Quantity: cfg.MinOrderQuantity}, gate, l, v, deps.Sink, seq, logger)

	e := &Engine{
		runID:       uuid.NewString(),
		symbol:      cfg.TradingPair,
		spacing:     cfg.GridSpacing,
		count:       cfg.GridCount,
		tolerance:   cfg.ToleranceFraction,
		feed:        deps.Feed,
		gate:        gate,
		ledger:      l,
		book:        book,
		console:     deps.Console,
		chart:       deps.Chart,
		equityCurve: []float64{cfg.InitialInvestment},
	}
	e.logger = logger.With(zap.String("run_id", e.runID), zap.String("symbol", e.symbol))
	return e, nil
}

// RunCycle 执行一个周期：获取价格、计算阶梯、裁剪档位、检查触发、输出状态。
//
// 价格获取失败时直接返回，引擎状态不变。风控拒单不是错误，周期照常完成。
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	price, err := e.feed.FetchPrice(ctx, e.symbol)
	if err != nil {
		return report, err
	}
	report.Price = price

	levels, err := grid.ComputeLevels(price, e.spacing, e.count)
	if err != nil {
		return report, err
	}
	report.Levels = levels
	report.BaseGrid = grid.LevelAt(price, e.spacing).Price

	report.Closed = e.book.Reconcile(levels)
	if n := len(report.Closed); n > 0 {
		metrics.AddClosed(n)
	}

	res, err := e.book.EvaluateCrossing(ctx, price, levels, e.tolerance)
	report.Crossing = res
	if err != nil {
		return report, err
	}
	if res.Rejection != nil {
		metrics.IncRejection(string(res.Rejection.Reason))
		e.logger.Info("Order rejected by risk gate",
			zap.String("reason", string(res.Rejection.Reason)),
			zap.String("side", string(res.Side)),
			zap.Float64("grid_level", res.Level.Price),
			zap.Error(res.Rejection))
	}

	e.lastPrice = price
	e.cycles++
	report.Stats = e.Statistics(price)
	e.equityCurve = append(e.equityCurve, report.Stats.CurrentEquity+report.Stats.UnrealizedPnL)

	metrics.ObserveStatistics(report.Stats)
	if report.Stats.DrawdownBreached {
		metrics.IncDrawdownBreach()
	}
	if e.console != nil {
		e.console.PrintCycle(price, report.BaseGrid, e.book.ActiveOrders(), report.Stats)
	}
	if e.chart != nil {
		if err := e.chart.Render(ctx, e.book.Snapshot()); err != nil {
			e.logger.Warn("生成图表失败", zap.Error(err))
		}
	}
	return report, nil
}

// Statistics 以 currentPrice 计算当前持仓和盈亏
func (e *Engine) Statistics(currentPrice float64) models.Statistics {
	pos := e.ledger.Position()
	return models.Statistics{
		CurrentPrice:     currentPrice,
		Quantity:         pos.Quantity,
		AvgPrice:         pos.AvgPrice,
		UnrealizedPnL:    e.ledger.UnrealizedPnL(currentPrice),
		TotalRealizedPnL: e.ledger.TotalRealizedPnL(),
		CurrentEquity:    e.gate.CurrentEquity(),
		DrawdownBreached: e.gate.DrawdownBreached(),
	}
}

func (e *Engine) RunID() string                { return e.runID }
func (e *Engine) Symbol() string               { return e.symbol }
func (e *Engine) Cycles() int                  { return e.cycles }
func (e *Engine) LastPrice() float64           { return e.lastPrice }
func (e *Engine) InitialEquity() float64       { return e.gate.InitialEquity() }
func (e *Engine) Records() []ledger.Record     { return e.ledger.Records() }
func (e *Engine) ActiveOrders() []models.Order { return e.book.ActiveOrders() }
func (e *Engine) History() []models.Order      { return e.book.History() }

// EquityCurve 返回每个周期结束时按市价计算的权益，第一个点是初始资金
func (e *Engine) EquityCurve() []float64 {
	return append([]float64(nil), e.equityCurve...)
}

// IsFatal 判断错误是否无法通过重试恢复
func IsFatal(err error) bool {
	return errors.Is(err, models.ErrInvalidParameter) || errors.Is(err, models.ErrConfig)
}
