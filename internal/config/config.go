package config

import (
	"encoding/json"
	"fmt"
	"grid-trader-go/internal/models"
	"os"
)

// requiredKeys 是必须出现在配置文件中的键。
// 其中一些键的合法取值可能是 0 或 false，所以只能通过键是否存在来判断。
var requiredKeys = []string{
	"trading_pair",
	"grid_count",
	"grid_spacing",
	"min_order_quantity",
	"initial_investment",
	"max_position_size",
	"max_drawdown_percent",
	"max_loss_per_trade_percent",
	"update_interval_seconds",
	"infinite_grid",
}

// LoadConfig 从指定路径加载JSON配置文件，填充默认值并校验
func LoadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 无法读取配置文件 %s: %v", models.ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse 解析JSON配置内容
func Parse(data []byte) (*models.Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: 配置文件不是合法的JSON: %v", models.ErrConfig, err)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: 缺少配置项 %s", models.ErrConfig, key)
		}
	}

	cfg := &models.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 为可选配置项填充默认值
func ApplyDefaults(cfg *models.Config) {
	if cfg.ToleranceFraction == 0 {
		cfg.ToleranceFraction = 0.1
	}
	if cfg.PriceSource == "" {
		cfg.PriceSource = models.PriceSourceREST
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.binance.com"
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if cfg.RetryInitialDelayMs <= 0 {
		cfg.RetryInitialDelayMs = 1000
	}
	if cfg.RetryMaxDelayMs <= 0 {
		cfg.RetryMaxDelayMs = 60000
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// Validate 校验配置取值，返回的错误包装了 models.ErrConfig
func Validate(cfg *models.Config) error {
	switch {
	case cfg.TradingPair == "":
		return invalid("trading_pair", "不能为空")
	case cfg.GridCount < 0:
		return invalid("grid_count", "必须是非负整数")
	case cfg.GridSpacing <= 0:
		return invalid("grid_spacing", "必须大于0")
	case cfg.MinOrderQuantity <= 0:
		return invalid("min_order_quantity", "必须大于0")
	case cfg.InitialInvestment <= 0:
		return invalid("initial_investment", "必须大于0")
	case cfg.MaxPositionSize <= 0:
		return invalid("max_position_size", "必须大于0")
	case cfg.MaxDrawdownPercent < 0 || cfg.MaxDrawdownPercent > 1:
		return invalid("max_drawdown_percent", "必须在 0 到 1 之间")
	case cfg.MaxLossPerTradePercent < 0 || cfg.MaxLossPerTradePercent > 1:
		return invalid("max_loss_per_trade_percent", "必须在 0 到 1 之间")
	case cfg.UpdateIntervalSeconds < 0:
		return invalid("update_interval_seconds", "必须是非负整数")
	case cfg.ToleranceFraction <= 0 || cfg.ToleranceFraction >= 1:
		return invalid("tolerance_fraction", "必须在 0 到 1 之间")
	case cfg.RetryMaxDelayMs < cfg.RetryInitialDelayMs:
		return invalid("retry_max_delay_ms", "不能小于 retry_initial_delay_ms")
	}

	switch cfg.PriceSource {
	case models.PriceSourceREST, models.PriceSourceStream:
	case models.PriceSourceReplay:
		if cfg.ReplayDataPath == "" {
			return invalid("replay_data_path", "回放模式下不能为空")
		}
	default:
		return invalid("price_source", fmt.Sprintf("未知的价格来源 %q", cfg.PriceSource))
	}

	if cfg.ChartEnabled && (cfg.DataFilePath == "" || cfg.ChartOutputPath == "") {
		return invalid("chart_output_path", "启用图表时 data_file_path 和 chart_output_path 都必须设置")
	}
	return nil
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s %s", models.ErrConfig, key, reason)
}
