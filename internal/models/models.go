package models

import "errors"

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	TradingPair            string  `json:"trading_pair"`               // 交易对，如 "ETHUSDT"
	GridCount              int     `json:"grid_count"`                 // 基准网格两侧各自的网格线数量
	GridSpacing            float64 `json:"grid_spacing"`               // 相邻网格线之间的价格距离（绝对值）
	MinOrderQuantity       float64 `json:"min_order_quantity"`         // 每笔订单的固定数量
	InitialInvestment      float64 `json:"initial_investment"`         // 初始资金 (USDT)
	MaxPositionSize        float64 `json:"max_position_size"`          // 单笔订单允许的最大数量
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`       // 最大回撤比例 (0-1)
	MaxLossPerTradePercent float64 `json:"max_loss_per_trade_percent"` // 单笔最大亏损比例 (0-1)，目前仅记录不执行
	UpdateIntervalSeconds  int     `json:"update_interval_seconds"`    // 轮询间隔（秒）
	InfiniteGrid           bool    `json:"infinite_grid"`              // 仅用于启动时显示网格模式
	ToleranceFraction      float64 `json:"tolerance_fraction"`         // 触发带宽，占网格间距的比例

	LogFilePath     string `json:"log_file_path"`     // 下单/成交记录文件 (追加写入)
	DataFilePath    string `json:"data_file_path"`    // 图表数据文件
	ChartOutputPath string `json:"chart_output_path"` // 图表输出文件
	ChartEnabled    bool   `json:"chart_enabled"`     // 是否在每个周期生成图表

	PriceSource    string `json:"price_source"`     // 价格来源: "rest", "stream" 或 "replay"
	APIBaseURL     string `json:"api_base_url"`     // REST API基础地址
	WSBaseURL      string `json:"ws_base_url"`      // WebSocket基础地址
	ReplayDataPath string `json:"replay_data_path"` // 回放模式使用的K线CSV文件

	JournalPath string `json:"journal_path"` // 事件日志数据库目录，为空则不启用
	MetricsAddr string `json:"metrics_addr"` // Prometheus 监听地址，为空则不启用

	RetryInitialDelayMs int `json:"retry_initial_delay_ms"` // 周期失败后的初始退避毫秒数
	RetryMaxDelayMs     int `json:"retry_max_delay_ms"`     // 退避上限毫秒数

	LogConfig LogConfig `json:"log"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// 价格来源
const (
	PriceSourceREST   = "rest"
	PriceSourceStream = "stream"
	PriceSourceReplay = "replay"
)

var (
	// ErrConfig 表示配置缺失或非法，在任何周期运行之前即为致命错误。
	ErrConfig = errors.New("config error")
	// ErrFetch 表示价格获取失败（网络、非2xx响应或无法解析），由调度器捕获并在下个周期重试。
	ErrFetch = errors.New("fetch error")
	// ErrInvalidParameter 表示网格参数非法（间距<=0 或数量<0）。
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrFeedExhausted 表示回放数据已经全部消费完毕。
	ErrFeedExhausted = errors.New("price feed exhausted")
)
