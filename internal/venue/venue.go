package venue

import (
	"context"
	"grid-trader-go/internal/models"
)

// Venue 定义了执行场所必须提供的能力。
// 这使得网格逻辑与成交是模拟的还是真实的解耦。
type Venue interface {
	// Name 返回执行场所名称，用于日志和指标标签
	Name() string
	// Submit 提交一笔订单并返回其成交结果
	Submit(ctx context.Context, order *models.Order) (models.Fill, error)
}
