package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"grid-trader-go/internal/models"
	"io"
	"os"
	"strconv"
	"time"
)

// Tick 是回放数据中的一根 K 线收盘价
type Tick struct {
	Time  time.Time
	Close float64
}

// ReplayFeed 按顺序返回 K 线 CSV 中的收盘价，数据耗尽后返回 models.ErrFeedExhausted
type ReplayFeed struct {
	ticks []Tick
	pos   int
}

// LoadReplayFeed 读取下载器生成的 K 线 CSV（带表头，第 1 列 open_time 毫秒，第 5 列 close）
func LoadReplayFeed(path string) (*ReplayFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开历史数据文件: %w", err)
	}
	defer f.Close()
	return ParseReplayFeed(f)
}

func ParseReplayFeed(r io.Reader) (*ReplayFeed, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("无法读取CSV记录: %w", err)
	}
	if len(records) <= 1 { // 至少需要表头和一行数据
		return nil, fmt.Errorf("历史数据文件为空或只有表头")
	}

	ticks := make([]Tick, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 5 {
			return nil, fmt.Errorf("第 %d 行字段不足: %d", i+2, len(rec))
		}
		openTime, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行时间无法解析: %w", i+2, err)
		}
		closePrice, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行收盘价无法解析: %w", i+2, err)
		}
		ticks = append(ticks, Tick{Time: time.UnixMilli(openTime), Close: closePrice})
	}
	return &ReplayFeed{ticks: ticks}, nil
}

// FetchPrice 返回下一根 K 线的收盘价
func (f *ReplayFeed) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.pos >= len(f.ticks) {
		return 0, models.ErrFeedExhausted
	}
	t := f.ticks[f.pos]
	f.pos++
	return checkPrice(symbol, t.Close)
}

func (f *ReplayFeed) Len() int { return len(f.ticks) }

// Start 和 End 返回数据覆盖的时间范围
func (f *ReplayFeed) Start() time.Time {
	if len(f.ticks) == 0 {
		return time.Time{}
	}
	return f.ticks[0].Time
}

func (f *ReplayFeed) End() time.Time {
	if len(f.ticks) == 0 {
		return time.Time{}
	}
	return f.ticks[len(f.ticks)-1].Time
}
