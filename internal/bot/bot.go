// Package bot 以固定间隔驱动引擎运行，周期失败时按指数退避重试。
package bot

import (
	"context"
	"errors"
	"grid-trader-go/internal/engine"
	"grid-trader-go/internal/metrics"
	"grid-trader-go/internal/models"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// Cycler 执行一个完整的引擎周期
type Cycler interface {
	RunCycle(ctx context.Context) (engine.CycleReport, error)
}

// Options 控制调度节奏
type Options struct {
	Interval     time.Duration // 两个成功周期之间的间隔，可以为 0（回放模式）
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// GridTradingBot 是网格交易的调度器。同一时刻只有一个周期在运行。
type GridTradingBot struct {
	engine  Cycler
	opts    Options
	backoff *backoff.Backoff
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) bool

	failures int
}

func NewGridTradingBot(e Cycler, opts Options, logger *zap.Logger) *GridTradingBot {
	return &GridTradingBot{
		engine: e,
		opts:   opts,
		backoff: &backoff.Backoff{
			Min:    opts.RetryInitial,
			Max:    opts.RetryMax,
			Factor: 2,
			Jitter: true,
		},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Run 循环执行周期，直到 ctx 结束、数据耗尽或遇到无法重试的错误。
//
// 成功后等待固定间隔并重置退避；失败后等待退避时间（有上限、带抖动）再重试，
// 不会紧贴着失败立即重试。数据耗尽返回 nil。
func (b *GridTradingBot) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		_, err := b.engine.RunCycle(ctx)
		var wait time.Duration
		switch {
		case err == nil:
			b.backoff.Reset()
			b.failures = 0
			wait = b.opts.Interval
		case errors.Is(err, models.ErrFeedExhausted):
			b.logger.Info("价格数据已全部处理，停止运行。")
			return nil
		case ctx.Err() != nil:
			return nil
		case engine.IsFatal(err):
			b.logger.Error("遇到无法恢复的错误，停止运行", zap.Error(err))
			return err
		default:
			b.failures++
			metrics.IncCycleFailure()
			wait = b.backoff.Duration()
			b.logger.Warn("周期执行失败，稍后重试",
				zap.Error(err),
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("retry_in", wait))
		}

		if wait > 0 && !b.sleep(ctx, wait) {
			return nil
		}
	}
}

// Failures 返回当前连续失败次数
func (b *GridTradingBot) Failures() int {
	return b.failures
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
