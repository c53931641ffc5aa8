// Package feed 提供获取最新价格的几种来源：REST 轮询、WebSocket 推送和 K 线回放。
package feed

import (
	"context"
	"fmt"
	"grid-trader-go/internal/models"
	"math"
)

// PriceFeed 返回交易对的最新价格。
// 网络失败、非 2xx 响应或无法解析的内容都返回包装了 models.ErrFetch 的错误。
type PriceFeed interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

func checkPrice(symbol string, price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: %s 价格非法: %v", models.ErrFetch, symbol, price)
	}
	return price, nil
}
