package ledger

import (
	"grid-trader-go/internal/ids"
	"grid-trader-go/internal/models"
)

// EquityUpdater 接收已实现盈亏，一般由风控门实现
type EquityUpdater interface {
	UpdateEquity(pnl float64) bool
}

// Position 是当前持仓。Quantity 理论上非负，但卖出数量超过持仓时会变为负数。
type Position struct {
	Quantity  float64
	AvgPrice  float64
	TotalCost float64
}

// Record 是一条已实现盈亏记录，只追加不修改
type Record struct {
	Tag string
	PnL float64
}

// Ledger 维护持仓、平均成本和已实现盈亏
type Ledger struct {
	position Position
	records  []Record
	seq      *ids.Sequence
	equity   EquityUpdater
}

// New 创建一个空账本。seq 与订单簿共用，保证编号全局唯一。
func New(seq *ids.Sequence, equity EquityUpdater) *Ledger {
	return &Ledger{
		seq:    seq,
		equity: equity,
	}
}

// ApplyFill 把一笔成交计入账本，卖出时返回已实现盈亏。
//
// 买入按成交数量加权更新平均成本；卖出按比例减少数量，
// 平均成本和总成本保持不变。卖出数量超过持仓不会被拒绝。
func (l *Ledger) ApplyFill(side models.Side, quantity, price float64) (pnl float64, realized bool) {
	if side == models.Buy {
		newQty := l.position.Quantity + quantity
		// 平均成本只在持仓为正时有定义
		if newQty > 0 {
			l.position.AvgPrice = (l.position.Quantity*l.position.AvgPrice + quantity*price) / newQty
		}
		l.position.TotalCost += quantity * price
		l.position.Quantity = newQty
		return 0, false
	}

	pnl = (price - l.position.AvgPrice) * quantity
	l.position.Quantity -= quantity
	l.records = append(l.records, Record{Tag: ids.PnLTag(l.seq.Next()), PnL: pnl})
	if l.equity != nil {
		l.equity.UpdateEquity(pnl)
	}
	return pnl, true
}

// Position 返回当前持仓的副本
func (l *Ledger) Position() Position {
	return l.position
}

// UnrealizedPnL 以当前价格计算未实现盈亏
func (l *Ledger) UnrealizedPnL(currentPrice float64) float64 {
	return l.position.Quantity * (currentPrice - l.position.AvgPrice)
}

// TotalRealizedPnL 汇总所有已实现盈亏记录
func (l *Ledger) TotalRealizedPnL() float64 {
	total := 0.0
	for _, r := range l.records {
		total += r.PnL
	}
	return total
}

// Records 返回已实现盈亏记录的副本
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
