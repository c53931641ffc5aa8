package reporter

import (
	"fmt"
	"grid-trader-go/internal/ledger"
	"grid-trader-go/internal/models"
	"io"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Console 把活动订单和交易统计渲染成表格
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// PrintCycle 打印一个周期的价格、基准网格、活动订单和统计信息
func (c *Console) PrintCycle(currentPrice, baseGrid float64, orders []models.Order, stats models.Statistics) {
	fmt.Fprintf(c.w, "\nCurrent price: %v\n", currentPrice)
	fmt.Fprintf(c.w, "Base grid: %v\n", baseGrid)
	c.PrintActiveOrders(orders)
	c.PrintStats(stats)
}

// PrintActiveOrders 按档位列出所有 open 订单
func (c *Console) PrintActiveOrders(orders []models.Order) {
	t := table.NewWriter()
	t.SetOutputMirror(c.w)
	t.SetTitle("Active Orders")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Grid", "Order", "Side", "Price", "Quantity"})
	for _, o := range orders {
		if !o.IsOpen() {
			continue
		}
		t.AppendRow(table.Row{o.Level.Price, o.Tag, o.Side, o.Price, o.Quantity})
	}
	if t.Length() == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-", "-"})
	}
	t.Render()
}

// PrintStats 打印当前持仓和盈亏
func (c *Console) PrintStats(s models.Statistics) {
	t := table.NewWriter()
	t.SetOutputMirror(c.w)
	t.SetTitle("Trading Statistics")
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.AppendRows([]table.Row{
		{"Quantity", fmt.Sprintf("%.8f", s.Quantity)},
		{"Average Price", fmt.Sprintf("%.4f", s.AvgPrice)},
		{"Unrealized P&L", fmt.Sprintf("%.4f", s.UnrealizedPnL)},
		{"Total Realized P&L", fmt.Sprintf("%.4f", s.TotalRealizedPnL)},
		{"Current Equity", fmt.Sprintf("%.4f", s.CurrentEquity)},
	})
	if s.DrawdownBreached {
		t.AppendSeparator()
		t.AppendRow(table.Row{"WARNING", "Maximum drawdown exceeded"})
	}
	t.Render()
}

// Metrics 存储回放结束后计算出的性能指标
type Metrics struct {
	InitialBalance   float64
	FinalEquity      float64
	TotalProfit      float64
	ProfitPercentage float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfitLoss    float64
	MaxDrawdown      float64
	StartTime        time.Time
	EndTime          time.Time
}

// CalculateMetrics 根据已实现盈亏记录和权益曲线计算指标
func CalculateMetrics(initialBalance, finalEquity float64, records []ledger.Record, equityCurve []float64) *Metrics {
	m := &Metrics{
		InitialBalance: initialBalance,
		FinalEquity:    finalEquity,
		TotalTrades:    len(records),
	}

	var totalProfit, totalLoss float64
	for _, r := range records {
		if r.PnL > 0 {
			m.WinningTrades++
			totalProfit += r.PnL
		} else {
			m.LosingTrades++
			totalLoss += r.PnL
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.LosingTrades > 0 && m.WinningTrades > 0 {
		avgWin := totalProfit / float64(m.WinningTrades)
		avgLoss := math.Abs(totalLoss / float64(m.LosingTrades))
		if avgLoss > 0 {
			m.AvgProfitLoss = avgWin / avgLoss
		}
	}

	m.TotalProfit = m.FinalEquity - m.InitialBalance
	if m.InitialBalance != 0 {
		m.ProfitPercentage = m.TotalProfit / m.InitialBalance * 100
	}
	m.MaxDrawdown = calculateMaxDrawdown(equityCurve) * 100
	return m
}

// PrintSummary 打印回放结果报告
func (c *Console) PrintSummary(symbol string, m *Metrics) {
	t := table.NewWriter()
	t.SetOutputMirror(c.w)
	t.SetTitle(fmt.Sprintf("Replay Report: %s", symbol))
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s -> %s", m.StartTime.Format("2006-01-02 15:04"), m.EndTime.Format("2006-01-02 15:04"))},
		{"Initial Balance", fmt.Sprintf("%.2f", m.InitialBalance)},
		{"Final Equity", fmt.Sprintf("%.2f", m.FinalEquity)},
		{"Total Profit", fmt.Sprintf("%.2f (%.2f%%)", m.TotalProfit, m.ProfitPercentage)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Closing Trades", m.TotalTrades},
		{"Winning / Losing", fmt.Sprintf("%d / %d", m.WinningTrades, m.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.2f%%", m.WinRate)},
		{"Avg Win / Avg Loss", fmt.Sprintf("%.2f", m.AvgProfitLoss)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown)},
	})
	t.Render()
}

func calculateMaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0.0
	}
	peak := equityCurve[0]
	maxDrawdown := 0.0

	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}
