package conf

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 回测引擎的配置加载（数据源、撮合策略、日志等）

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

type Db struct {
	// sqlite 数据库文件路径，回测产物（成交记录和事件日志）写入这里
	Path string `yaml:"path"`
}

type DataConfig struct {
	// 1分钟K线CSV文件路径
	CsvPath string `yaml:"csv_path" validate:"required"`
}

// BacktestConfig 回测运行参数，启动时校验，非法配置直接终止
type BacktestConfig struct {
	Symbols []string `yaml:"symbols" validate:"required,min=1"`
	// 需要聚合的高级别周期列表，例如 [1h, 4h]
	Timeframes []string `yaml:"timeframes" validate:"required,min=1"`

	// 成交判定策略：optimistic / neutral / strict
	FillPolicy string `yaml:"fill_policy" validate:"oneof=optimistic neutral strict"`
	// 同一根K线同时触及TP和SL时的价格路径假设：worst(SL优先) / best(TP优先)
	PricePath string `yaml:"price_path" validate:"oneof=worst best"`
	// WAITING_FOR_TRIGGER 期间出现新的确认信号：ignore(先到先得) / replace(替换)
	SetupPolicy string `yaml:"setup_policy" validate:"oneof=ignore replace"`
	// setup 有效期，单位为高级别周期数
	ValidityBars int `yaml:"validity_bars" validate:"min=1"`

	InitialEquity float64 `yaml:"initial_equity" validate:"gt=0"`
	Leverage      int     `yaml:"leverage" validate:"min=1"`

	// 手续费率（按名义价值），开平仓各收一次
	CommissionRate float64 `yaml:"commission_rate" validate:"gte=0"`
	// 资金费率，持仓跨过结算点时收取
	FundingRate float64 `yaml:"funding_rate" validate:"gte=0"`
	// 资金费结算间隔，time.ParseDuration 格式，空值取8h
	FundingInterval string `yaml:"funding_interval"`

	// neutral/strict 策略的插针过滤：K线总振幅低于该值的触碰不算成交
	MinRange float64 `yaml:"min_range" validate:"gte=0"`
	// strict 策略的滑点惩罚（基点）
	SlippageBps float64 `yaml:"slippage_bps" validate:"gte=0"`
	// strict 策略的最小成交量过滤，0表示不启用
	MinVolume float64 `yaml:"min_volume" validate:"gte=0"`
}

type StrategyConfig struct {
	Name string `yaml:"name" validate:"required"`
	// 策略自定义参数，由各策略自行解释
	Params map[string]any `yaml:"params"`
}

type Config struct {
	AppName string `yaml:"app_name"`

	Data     DataConfig     `yaml:"data"`
	Backtest BacktestConfig `yaml:"backtest"`
	Strategy StrategyConfig `yaml:"strategy"`
	Log      LogConfig      `yaml:"log"`
	Db       `yaml:"database"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	applyDefaults(&AppConfig)
	return nil
}

func applyDefaults(c *Config) {
	if c.AppName == "" {
		c.AppName = "edgesim"
	}
	if c.Backtest.FillPolicy == "" {
		c.Backtest.FillPolicy = "neutral"
	}
	if c.Backtest.PricePath == "" {
		c.Backtest.PricePath = "worst"
	}
	if c.Backtest.SetupPolicy == "" {
		c.Backtest.SetupPolicy = "ignore"
	}
	if c.Backtest.ValidityBars == 0 {
		c.Backtest.ValidityBars = 1
	}
	if c.Backtest.Leverage == 0 {
		c.Backtest.Leverage = 1
	}
	if c.Backtest.FundingInterval == "" {
		c.Backtest.FundingInterval = "8h"
	}
}

// Validate 启动时校验配置，返回的错误应被视为致命错误
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
