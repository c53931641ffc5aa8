package risk

import (
	"fmt"

	"go.uber.org/zap"
)

// Reason 说明一次准入被拒绝的原因
type Reason string

const (
	ReasonPositionSize      Reason = "position_size"
	ReasonInsufficientFunds Reason = "insufficient_funds"
)

// Limits 是风控配置的绝对值形式
type Limits struct {
	MaxPositionSize float64 // 单笔订单最大数量
	MaxDrawdown     float64 // 初始资金 × 最大回撤比例
	// MaxLossPerTrade 只被记录，准入检查不使用它。
	MaxLossPerTrade float64
}

// Rejection 是一次被拒绝的准入决定。它不是故障，调用方记录后继续当前周期。
type Rejection struct {
	Reason   Reason
	Quantity float64
	Price    float64
	Equity   float64
	Limit    float64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonPositionSize:
		return fmt.Sprintf("order rejected: quantity %.8f exceeds maximum position size %.8f", r.Quantity, r.Limit)
	case ReasonInsufficientFunds:
		return fmt.Sprintf("order rejected: cost %.8f exceeds current equity %.8f", r.Quantity*r.Price, r.Equity)
	default:
		return fmt.Sprintf("order rejected: %s", r.Reason)
	}
}

// Evaluate 是纯函数：相同的输入总是得到相同的决定。返回 nil 表示允许。
func Evaluate(quantity, price, currentEquity float64, limits Limits) *Rejection {
	if quantity > limits.MaxPositionSize {
		return &Rejection{Reason: ReasonPositionSize, Quantity: quantity, Price: price, Equity: currentEquity, Limit: limits.MaxPositionSize}
	}
	if quantity*price > currentEquity {
		return &Rejection{Reason: ReasonInsufficientFunds, Quantity: quantity, Price: price, Equity: currentEquity, Limit: currentEquity}
	}
	return nil
}

// CanAdmit 判断一笔订单是否通过风控
func CanAdmit(quantity, price, currentEquity float64, limits Limits) bool {
	return Evaluate(quantity, price, currentEquity, limits) == nil
}

// Gate 持有风控状态（初始资金、当前资金与限额）。
// 当前资金只会通过 UpdateEquity 被已实现盈亏修改。
type Gate struct {
	initialEquity float64
	currentEquity float64
	limits        Limits
	logger        *zap.Logger
}

// NewGate 用初始资金和比例形式的限额创建风控门
func NewGate(initialEquity, maxPositionSize, maxDrawdownPercent, maxLossPercent float64, logger *zap.Logger) *Gate {
	return &Gate{
		initialEquity: initialEquity,
		currentEquity: initialEquity,
		limits: Limits{
			MaxPositionSize: maxPositionSize,
			MaxDrawdown:     initialEquity * maxDrawdownPercent,
			MaxLossPerTrade: initialEquity * maxLossPercent,
		},
		logger: logger,
	}
}

// Admit 以当前资金评估一笔订单
func (g *Gate) Admit(quantity, price float64) *Rejection {
	return Evaluate(quantity, price, g.currentEquity, g.limits)
}

// UpdateEquity 把已实现盈亏计入当前资金。
// 回撤超过上限时只发出警告并返回 true，不会阻止后续下单。
func (g *Gate) UpdateEquity(pnl float64) bool {
	g.currentEquity += pnl
	if g.DrawdownBreached() {
		g.logger.Warn("WARNING: Maximum drawdown exceeded!",
			zap.Float64("drawdown", g.Drawdown()),
			zap.Float64("max_drawdown", g.limits.MaxDrawdown),
			zap.Float64("current_equity", g.currentEquity))
		return true
	}
	return false
}

// Drawdown 返回当前资金低于初始资金的部分
func (g *Gate) Drawdown() float64 {
	return g.initialEquity - g.currentEquity
}

func (g *Gate) DrawdownBreached() bool {
	return g.Drawdown() > g.limits.MaxDrawdown
}

func (g *Gate) CurrentEquity() float64 { return g.currentEquity }
func (g *Gate) InitialEquity() float64 { return g.initialEquity }
func (g *Gate) Limits() Limits         { return g.limits }
