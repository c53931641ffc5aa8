package config

import (
	"grid-trader-go/internal/models"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
	"trading_pair": "ETHUSDT",
	"grid_count": 2,
	"grid_spacing": 10,
	"min_order_quantity": 0.1,
	"initial_investment": 1000,
	"max_position_size": 0.5,
	"max_drawdown_percent": 0.2,
	"max_loss_per_trade_percent": 0,
	"update_interval_seconds": 0,
	"infinite_grid": false,
	"log_file_path": "trading.log"
}`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.TradingPair)
	assert.Equal(t, 2, cfg.GridCount)
	assert.Equal(t, 10.0, cfg.GridSpacing)
	assert.Equal(t, 0.1, cfg.MinOrderQuantity)
	assert.Equal(t, 0.0, cfg.MaxLossPerTradePercent)
	assert.Equal(t, "trading.log", cfg.LogFilePath)

	// 默认值
	assert.Equal(t, 0.1, cfg.ToleranceFraction)
	assert.Equal(t, models.PriceSourceREST, cfg.PriceSource)
	assert.Equal(t, "https://api.binance.com", cfg.APIBaseURL)
	assert.Equal(t, 1000, cfg.RetryInitialDelayMs)
	assert.Equal(t, 60000, cfg.RetryMaxDelayMs)
	assert.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestParseMissingRequiredKey(t *testing.T) {
	_, err := Parse([]byte(`{"trading_pair": "ETHUSDT", "grid_spacing": 10}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfig)
	assert.Contains(t, err.Error(), "grid_count")
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"trading_pair": `))
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestValidate(t *testing.T) {
	base := func() *models.Config {
		cfg, err := Parse([]byte(validConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*models.Config)
		key    string
	}{
		{"empty pair", func(c *models.Config) { c.TradingPair = "" }, "trading_pair"},
		{"negative grid count", func(c *models.Config) { c.GridCount = -1 }, "grid_count"},
		{"zero spacing", func(c *models.Config) { c.GridSpacing = 0 }, "grid_spacing"},
		{"zero quantity", func(c *models.Config) { c.MinOrderQuantity = 0 }, "min_order_quantity"},
		{"zero investment", func(c *models.Config) { c.InitialInvestment = 0 }, "initial_investment"},
		{"zero max position", func(c *models.Config) { c.MaxPositionSize = 0 }, "max_position_size"},
		{"drawdown above one", func(c *models.Config) { c.MaxDrawdownPercent = 1.5 }, "max_drawdown_percent"},
		{"loss below zero", func(c *models.Config) { c.MaxLossPerTradePercent = -0.1 }, "max_loss_per_trade_percent"},
		{"negative interval", func(c *models.Config) { c.UpdateIntervalSeconds = -5 }, "update_interval_seconds"},
		{"tolerance too wide", func(c *models.Config) { c.ToleranceFraction = 1 }, "tolerance_fraction"},
		{"unknown source", func(c *models.Config) { c.PriceSource = "carrier-pigeon" }, "price_source"},
		{"replay without data", func(c *models.Config) { c.PriceSource = models.PriceSourceReplay }, "replay_data_path"},
		{"chart without paths", func(c *models.Config) { c.ChartEnabled = true }, "chart_output_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfig)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "config.example.json"))
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.TradingPair)
	assert.True(t, cfg.InfiniteGrid)
	assert.Equal(t, models.PriceSourceREST, cfg.PriceSource)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}
