package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"grid-trader-go/internal/models"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // Must be less than pongWait
)

// StreamFeed 订阅 aggTrade 流并缓存最新成交价，FetchPrice 直接读取缓存
type StreamFeed struct {
	symbol  string
	url     string
	maxAge  time.Duration
	dialer  *websocket.Dialer
	backoff *backoff.Backoff
	logger  *zap.Logger

	mu      sync.RWMutex
	price   float64
	updated time.Time
	now     func() time.Time
}

// NewStreamFeed 创建推送价格源。maxAge 为缓存价格的最长有效期，超过后 FetchPrice 返回 ErrFetch。
func NewStreamFeed(wsBaseURL, symbol string, maxAge time.Duration, logger *zap.Logger) *StreamFeed {
	return &StreamFeed{
		symbol: symbol,
		url:    fmt.Sprintf("%s/ws/%s@aggTrade", strings.TrimRight(wsBaseURL, "/"), strings.ToLower(symbol)),
		maxAge: maxAge,
		dialer: websocket.DefaultDialer,
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run 维持 WebSocket 连接，断开后按退避时间重连，直到 ctx 结束
func (f *StreamFeed) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			f.logger.Info("WebSocket循环已停止。")
			return
		}

		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			d := f.backoff.Duration()
			f.logger.Warn("WebSocket连接失败，稍后重试", zap.Error(err), zap.Duration("retry_in", d))
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		f.logger.Info("WebSocket连接成功。", zap.String("url", f.url))
		if err := f.handleMessages(ctx, conn); err != nil {
			f.logger.Warn("WebSocket处理时发生错误", zap.Error(err))
		}
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		d := f.backoff.Duration()
		f.logger.Info("WebSocket连接已断开，准备重连...", zap.Duration("retry_in", d))
		if !sleep(ctx, d) {
			return
		}
	}
}

func (f *StreamFeed) handleMessages(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					f.logger.Warn("发送Ping失败", zap.Error(err))
					return
				}
			case <-ctx.Done():
				// 优雅关闭，ReadMessage 随后会返回错误
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("读取消息失败: %w", err)
		}

		var trade struct {
			Price json.Number `json:"p"` // "p"代表价格
		}
		if err := json.Unmarshal(message, &trade); err != nil {
			f.logger.Warn("解析价格信息失败", zap.Error(err))
			continue
		}
		price, err := trade.Price.Float64()
		if err != nil || price <= 0 {
			f.logger.Warn("转换价格失败", zap.String("p", trade.Price.String()))
			continue
		}

		f.mu.Lock()
		f.price = price
		f.updated = f.now()
		f.mu.Unlock()
		// 收到有效数据后重置退避
		f.backoff.Reset()
	}
}

func (f *StreamFeed) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if !strings.EqualFold(symbol, f.symbol) {
		return 0, fmt.Errorf("%w: 价格流订阅的是 %s，而不是 %s", models.ErrFetch, f.symbol, symbol)
	}
	f.mu.RLock()
	price, updated := f.price, f.updated
	f.mu.RUnlock()

	if updated.IsZero() {
		return 0, fmt.Errorf("%w: 尚未收到 %s 的价格", models.ErrFetch, symbol)
	}
	if f.maxAge > 0 && f.now().Sub(updated) > f.maxAge {
		return 0, fmt.Errorf("%w: %s 价格已过期 (更新于 %s)", models.ErrFetch, symbol, updated.Format(time.RFC3339))
	}
	return checkPrice(symbol, price)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
