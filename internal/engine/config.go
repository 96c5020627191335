package engine

import (
	"time"

	"edgesim/conf"
	"edgesim/internal/model"
)

// Config 引擎运行参数（已解析、已校验的形态）
type Config struct {
	Symbols    []string
	Timeframes []model.Timeframe

	FillPolicy  model.FillPolicy
	PricePath   model.PricePath
	SetupPolicy model.SetupPolicy

	ValidityBars int

	InitialEquity float64
	Leverage      int

	CommissionRate  float64
	FundingRate     float64
	FundingInterval time.Duration

	MinRange    float64
	SlippageBps float64
	MinVolume   float64
}

// NewConfig 把外部配置解析为引擎配置，非法周期等问题是致命的配置错误
func NewConfig(bc conf.BacktestConfig) (Config, error) {
	if len(bc.Timeframes) == 0 {
		return Config{}, model.NewConfigurationError("at least one higher timeframe is required")
	}
	if len(bc.Symbols) == 0 {
		return Config{}, model.NewConfigurationError("at least one symbol is required")
	}

	tfs := make([]model.Timeframe, 0, len(bc.Timeframes))
	for _, s := range bc.Timeframes {
		tf, err := model.ParseTimeframe(s)
		if err != nil {
			return Config{}, model.NewConfigurationError("invalid timeframe list: %v", err)
		}
		if tf == model.Tf1m {
			return Config{}, model.NewConfigurationError("1m is the atomic timeframe, it cannot be aggregated")
		}
		tfs = append(tfs, tf)
	}

	switch model.FillPolicy(bc.FillPolicy) {
	case model.FillOptimistic, model.FillNeutral, model.FillStrict:
	default:
		return Config{}, model.NewConfigurationError("invalid fill policy: %q", bc.FillPolicy)
	}

	pricePath := model.PricePath(bc.PricePath)
	switch pricePath {
	case model.PathWorst, model.PathBest:
	case "":
		pricePath = model.PathWorst
	default:
		return Config{}, model.NewConfigurationError("invalid price path: %q", bc.PricePath)
	}

	setupPolicy := model.SetupPolicy(bc.SetupPolicy)
	switch setupPolicy {
	case model.SetupIgnore, model.SetupReplace:
	case "":
		setupPolicy = model.SetupIgnore
	default:
		return Config{}, model.NewConfigurationError("invalid setup policy: %q", bc.SetupPolicy)
	}

	var fundingInterval time.Duration
	if bc.FundingInterval != "" {
		d, err := time.ParseDuration(bc.FundingInterval)
		if err != nil {
			return Config{}, model.NewConfigurationError("invalid funding_interval: %v", err)
		}
		fundingInterval = d
	}

	cfg := Config{
		Symbols:         bc.Symbols,
		Timeframes:      tfs,
		FillPolicy:      model.FillPolicy(bc.FillPolicy),
		PricePath:       pricePath,
		SetupPolicy:     setupPolicy,
		ValidityBars:    bc.ValidityBars,
		InitialEquity:   bc.InitialEquity,
		Leverage:        bc.Leverage,
		CommissionRate:  bc.CommissionRate,
		FundingRate:     bc.FundingRate,
		FundingInterval: fundingInterval,
		MinRange:        bc.MinRange,
		SlippageBps:     bc.SlippageBps,
		MinVolume:       bc.MinVolume,
	}
	if cfg.ValidityBars < 1 {
		cfg.ValidityBars = 1
	}
	if cfg.Leverage < 1 {
		cfg.Leverage = 1
	}
	if cfg.FundingInterval <= 0 {
		cfg.FundingInterval = 8 * time.Hour
	}
	if cfg.InitialEquity <= 0 {
		return Config{}, model.NewConfigurationError("initial equity must be positive")
	}
	return cfg, nil
}
