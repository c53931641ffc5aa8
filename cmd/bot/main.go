package main

import (
	"context"
	"flag"
	"fmt"
	"grid-trader-go/internal/bot"
	"grid-trader-go/internal/chart"
	"grid-trader-go/internal/config"
	"grid-trader-go/internal/downloader"
	"grid-trader-go/internal/engine"
	"grid-trader-go/internal/feed"
	"grid-trader-go/internal/journal"
	"grid-trader-go/internal/logger"
	"grid-trader-go/internal/metrics"
	"grid-trader-go/internal/models"
	"grid-trader-go/internal/orderbook"
	"grid-trader-go/internal/persistence"
	"grid-trader-go/internal/reporter"
	"grid-trader-go/internal/venue"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

// extractSymbolFromPath 从数据文件路径中提取交易对名称
// 例如: "data/BNBUSDT-2025-03-15-2025-06-15.csv" -> "BNBUSDT"
func extractSymbolFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	return strings.Split(name, "-")[0]
}

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "", "path to the config file (default $GRID_CONFIG or config.json)")
	mode := flag.String("mode", "live", "running mode: live or replay")
	dataPath := flag.String("data", "", "path to historical kline CSV for replay")
	symbol := flag.String("symbol", "", "symbol to download for replay (e.g., ETHUSDT)")
	startDate := flag.String("start", "", "start date for the replay download (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date for the replay download (YYYY-MM-DD)")
	flag.Parse()

	// 先用默认配置初始化日志，保证加载配置时的错误也能输出
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("GRID_CONFIG")
	}
	if path == "" {
		path = "config.json"
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runMode := *mode
	if cfg.PriceSource == models.PriceSourceReplay {
		runMode = "replay"
	}

	switch runMode {
	case "live":
		if err := run(ctx, cfg, nil); err != nil {
			logger.S().Fatal(err)
		}
	case "replay":
		finalDataPath, err := prepareReplayData(ctx, cfg, *symbol, *startDate, *endDate, *dataPath)
		if err != nil {
			logger.S().Fatal(err)
		}
		replayFeed, err := feed.LoadReplayFeed(finalDataPath)
		if err != nil {
			logger.S().Fatal(err)
		}
		if s := extractSymbolFromPath(finalDataPath); *symbol == "" && s != "" && s != cfg.TradingPair {
			logger.S().Warnf("数据文件的交易对 %s 与配置 %s 不一致，使用数据文件的交易对", s, cfg.TradingPair)
			cfg.TradingPair = s
		}
		if err := run(ctx, cfg, replayFeed); err != nil {
			logger.S().Fatal(err)
		}
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'live' 或 'replay'。", runMode)
	}
}

// prepareReplayData 返回回放数据路径，需要时先下载K线数据
func prepareReplayData(ctx context.Context, cfg *models.Config, symbol, startDate, endDate, dataPath string) (string, error) {
	if symbol != "" && startDate != "" && endDate != "" {
		startTime, err1 := time.Parse("2006-01-02", startDate)
		endTime, err2 := time.Parse("2006-01-02", endDate)
		if err1 != nil || err2 != nil {
			return "", fmt.Errorf("日期格式错误，请使用 YYYY-MM-DD 格式。start: %v, end: %v", err1, err2)
		}

		fileName := filepath.Join("data", fmt.Sprintf("%s-%s-%s.csv", symbol, startDate, endDate))
		d := downloader.NewKlineDownloader(cfg.APIBaseURL)
		if err := d.DownloadKlines(ctx, symbol, fileName, startTime, endTime); err != nil {
			return "", fmt.Errorf("下载数据失败: %w", err)
		}
		cfg.TradingPair = symbol
		return fileName, nil
	}

	if dataPath == "" {
		dataPath = cfg.ReplayDataPath
	}
	if dataPath == "" {
		return "", fmt.Errorf("回放模式需要通过 -data 或 -symbol/-start/-end 参数指定数据源")
	}
	return dataPath, nil
}

// run 组装引擎及其协作者并运行调度循环。replayFeed 非空时进入回放模式。
func run(ctx context.Context, cfg *models.Config, replayFeed *feed.ReplayFeed) error {
	printBanner(cfg)

	// --- 价格来源 ---
	var priceFeed feed.PriceFeed
	interval := time.Duration(cfg.UpdateIntervalSeconds) * time.Second
	switch {
	case replayFeed != nil:
		priceFeed = replayFeed
		interval = 0
		logger.S().Infof("--- 启动回放模式，共 %d 根K线 ---", replayFeed.Len())
	case cfg.PriceSource == models.PriceSourceStream:
		// 推送价格超过两个周期未更新视为过期
		maxAge := 2*interval + 10*time.Second
		stream := feed.NewStreamFeed(cfg.WSBaseURL, cfg.TradingPair, maxAge, logger.L())
		go stream.Run(ctx)
		priceFeed = stream
		logger.S().Info("--- 启动实时模式 (WebSocket 价格流) ---")
	default:
		priceFeed = feed.NewRESTFeed(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"), cfg.APIBaseURL)
		logger.S().Info("--- 启动实时模式 (REST 轮询) ---")
	}

	// --- 事件输出 ---
	sinks := reporter.MultiSink{metrics.Sink{}}
	if cfg.LogFilePath != "" {
		lineSink, err := reporter.OpenLineSink(cfg.LogFilePath)
		if err != nil {
			return err
		}
		defer lineSink.Close()
		sinks = append(sinks, lineSink)
	}
	if cfg.JournalPath != "" {
		repo, err := persistence.NewBadgerRepository(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("无法打开事件日志数据库: %w", err)
		}
		defer repo.Close()
		j := journal.New(repo, "", logger.L())
		j.Start()
		defer j.Stop()
		sinks = append(sinks, j)
	}
	var sink orderbook.EventSink = sinks

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, logger.L())
		srv.Start()
		defer srv.Shutdown(context.Background())
	}

	deps := engine.Deps{
		Feed:    priceFeed,
		Venue:   venue.NewPaperVenue(),
		Sink:    sink,
		Console: reporter.NewConsole(os.Stdout),
	}
	if cfg.ChartEnabled {
		deps.Chart = chart.NewRenderer(cfg.DataFilePath, cfg.ChartOutputPath)
	}
	eng, err := engine.New(cfg, deps, logger.L())
	if err != nil {
		return err
	}

	gridBot := bot.NewGridTradingBot(eng, bot.Options{
		Interval:     interval,
		RetryInitial: time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
		RetryMax:     time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
	}, logger.L())

	runErr := gridBot.Run(ctx)

	if replayFeed != nil {
		m := reporter.CalculateMetrics(eng.InitialEquity(), eng.EquityCurve()[len(eng.EquityCurve())-1], eng.Records(), eng.EquityCurve())
		m.StartTime, m.EndTime = replayFeed.Start(), replayFeed.End()
		reporter.NewConsole(os.Stdout).PrintSummary(eng.Symbol(), m)
	}
	logger.S().Infof("机器人已停止，共运行 %d 个周期。", eng.Cycles())
	return runErr
}

func printBanner(cfg *models.Config) {
	gridMode := "Limited"
	if cfg.InfiniteGrid {
		gridMode = "Infinite"
	}
	fmt.Printf("Starting Grid Trading Bot for %s\n", cfg.TradingPair)
	fmt.Printf("Grid Mode: %s\n", gridMode)
	fmt.Printf("Grid: %d levels each side, spacing %v, order size %v\n", cfg.GridCount, cfg.GridSpacing, cfg.MinOrderQuantity)
}
