package venue

import (
	"context"
	"fmt"
	"grid-trader-go/internal/models"
	"time"
)

// PaperVenue 实现了 Venue 接口，模拟交易所行为：
// 每一笔订单都按下单价格立即全部成交，不存在挂单或部分成交。
type PaperVenue struct {
	now   func() time.Time
	fills []models.Fill
}

// NewPaperVenue 创建一个新的 PaperVenue 实例。
func NewPaperVenue() *PaperVenue {
	return &PaperVenue{now: time.Now}
}

func (v *PaperVenue) Name() string { return "paper" }

// Submit 按订单的价格和数量生成一笔成交
func (v *PaperVenue) Submit(ctx context.Context, order *models.Order) (models.Fill, error) {
	if err := ctx.Err(); err != nil {
		return models.Fill{}, err
	}
	if order.Quantity <= 0 {
		return models.Fill{}, fmt.Errorf("订单 %s 数量非法: %.8f", order.Tag, order.Quantity)
	}

	fill := models.Fill{
		OrderID:  order.ID,
		Side:     order.Side,
		Price:    order.Price,
		Quantity: order.Quantity,
		Time:     v.now(),
	}
	v.fills = append(v.fills, fill)
	return fill, nil
}

// Fills 返回所有模拟成交的只读副本
func (v *PaperVenue) Fills() []models.Fill {
	out := make([]models.Fill, len(v.fills))
	copy(out, v.fills)
	return out
}
