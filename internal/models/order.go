package models

import "time"

// Side 定义了交易方向的类型
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderStatus 订单状态，只允许 open -> closed 的单向转换
type OrderStatus string

const (
	StatusOpen   OrderStatus = "open"
	StatusClosed OrderStatus = "closed"
)

// GridLevel 代表网格中的一个价格档位。
// Index = round(price / spacing) 是档位的唯一身份，Price 仅作为派生的展示值。
type GridLevel struct {
	Index int64   `json:"index"`
	Price float64 `json:"price"`
}

// Order 是在某个网格档位上开立的一笔订单。
// 除 Status 外的字段在创建后不可变。
type Order struct {
	ID        int64       `json:"id"`
	Tag       string      `json:"tag"` // 便于日志阅读的订单编号, e.g. "ORDER_1c"
	Side      Side        `json:"side"`
	Price     float64     `json:"price"`    // 下单价格（触发时的当前价）
	Quantity  float64     `json:"quantity"` // 固定的每单数量
	Level     GridLevel   `json:"level"`    // 所属网格档位，关闭后仍保留用于审计
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ClosedAt  time.Time   `json:"closed_at,omitempty"`
}

// IsOpen 返回订单是否仍处于 open 状态
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}

// Fill 是执行场所返回的成交结果
type Fill struct {
	OrderID  int64     `json:"order_id"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
}

// PlacementEvent 记录一次下单
type PlacementEvent struct {
	OrderID  int64     `json:"order_id"`
	Tag      string    `json:"tag"`
	Side     Side      `json:"side"`
	Level    GridLevel `json:"level"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
}

// FillEvent 记录一次成交；只有卖出成交才带有已实现盈亏
type FillEvent struct {
	OrderID     int64     `json:"order_id"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	RealizedPnL float64   `json:"realized_pnl"`
	HasPnL      bool      `json:"has_pnl"`
	Time        time.Time `json:"time"`
}

// SnapshotRow 是图表/报告使用的一条活动订单快照
type SnapshotRow struct {
	GridLevel float64 `json:"grid_level"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
}

// Statistics 汇总当前仓位与盈亏，用于每个周期的状态打印
type Statistics struct {
	CurrentPrice     float64
	Quantity         float64
	AvgPrice         float64
	UnrealizedPnL    float64
	TotalRealizedPnL float64
	CurrentEquity    float64
	DrawdownBreached bool
}
