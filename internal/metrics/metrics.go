// Package metrics 导出 Prometheus 指标。
//
//   - grid_orders_total{side}              下单次数
//   - grid_fills_total{side}               成交次数
//   - grid_realized_pnl_total              累计已实现盈亏
//   - grid_rejections_total{reason}        风控拒单次数
//   - grid_orders_closed_total             因档位裁剪而关闭的订单数
//   - grid_drawdown_breaches_total         回撤超限告警次数
//   - grid_cycle_failures_total            失败的周期数
//   - grid_equity                          当前权益
//   - grid_position_quantity               当前持仓数量
//   - grid_last_price                      最近一次获取的价格
//
// 指标在 init() 中注册，通过 Server 在 /metrics 暴露。
package metrics

import (
	"grid-trader-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_orders_total",
			Help: "Orders placed",
		},
		[]string{"side"},
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_fills_total",
			Help: "Fills applied to the position ledger",
		},
		[]string{"side"},
	)

	mtxRealizedPnL = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_realized_pnl_total",
			Help: "Sum of positive realized PnL",
		},
	)

	mtxRealizedLoss = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_realized_loss_total",
			Help: "Sum of absolute realized losses",
		},
	)

	mtxRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_rejections_total",
			Help: "Orders refused by the risk gate",
		},
		[]string{"reason"},
	)

	mtxClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_orders_closed_total",
			Help: "Open orders closed because their level left the ladder",
		},
	)

	mtxDrawdownBreaches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_drawdown_breaches_total",
			Help: "Cycles that ended with drawdown above the configured limit",
		},
	)

	mtxCycleFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_cycle_failures_total",
			Help: "Cycles that failed and were retried",
		},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_equity",
			Help: "Current equity in quote currency",
		},
	)

	mtxPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_position_quantity",
			Help: "Current position quantity in base currency",
		},
	)

	mtxLastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_last_price",
			Help: "Last fetched price",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxFills, mtxRealizedPnL, mtxRealizedLoss)
	prometheus.MustRegister(mtxRejections, mtxClosed, mtxDrawdownBreaches, mtxCycleFailures)
	prometheus.MustRegister(mtxEquity, mtxPosition, mtxLastPrice)
}

// Sink 把下单和成交事件计入指标，实现 orderbook.EventSink
type Sink struct{}

func (Sink) RecordPlacement(e models.PlacementEvent) error {
	mtxOrders.WithLabelValues(string(e.Side)).Inc()
	return nil
}

func (Sink) RecordFill(e models.FillEvent) error {
	mtxFills.WithLabelValues(string(e.Side)).Inc()
	if e.HasPnL {
		if e.RealizedPnL >= 0 {
			mtxRealizedPnL.Add(e.RealizedPnL)
		} else {
			mtxRealizedLoss.Add(-e.RealizedPnL)
		}
	}
	return nil
}

func IncRejection(reason string) { mtxRejections.WithLabelValues(reason).Inc() }
func AddClosed(n int)            { mtxClosed.Add(float64(n)) }
func IncDrawdownBreach()         { mtxDrawdownBreaches.Inc() }
func IncCycleFailure()           { mtxCycleFailures.Inc() }

// ObserveStatistics 用一个周期结束时的统计更新 gauge
func ObserveStatistics(s models.Statistics) {
	mtxEquity.Set(s.CurrentEquity)
	mtxPosition.Set(s.Quantity)
	mtxLastPrice.Set(s.CurrentPrice)
}
