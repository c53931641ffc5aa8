package feed

import (
	"context"
	"fmt"
	"grid-trader-go/internal/models"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

// RESTFeed 每次调用都请求一次 ticker 价格接口
type RESTFeed struct {
	client *binance.Client
}

// NewRESTFeed 创建 REST 价格源。baseURL 为空时使用 go-binance 的默认地址。
func NewRESTFeed(apiKey, secretKey, baseURL string) *RESTFeed {
	client := binance.NewClient(apiKey, secretKey) // 公共接口不需要API Key
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &RESTFeed{client: client}
}

func (f *RESTFeed) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: 请求 %s 价格失败: %v", models.ErrFetch, symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != "" && p.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: 无法解析价格 %q: %v", models.ErrFetch, p.Price, err)
		}
		return checkPrice(symbol, price)
	}
	return 0, fmt.Errorf("%w: 响应中没有 %s 的价格", models.ErrFetch, symbol)
}
