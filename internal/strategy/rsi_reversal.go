package strategy

import (
	"fmt"

	"edgesim/internal/model"

	"github.com/markcheno/go-talib"
)

func init() {
	Register("rsi_reversal", NewRsiReversal)
}

// RsiReversal 超卖反转策略：
// 高级别 RSI 跌破超卖阈值时确认 setup，等待低级别价格
// 再探这根K线的最低价（插针不破）后进场做多
type RsiReversal struct {
	rsiPeriod int
	oversold  float64
	tpPct     float64
	slPct     float64
	quantity  float64
}

func NewRsiReversal(params map[string]any) (Strategy, error) {
	s := &RsiReversal{
		rsiPeriod: intParam(params, "rsi_period", 14),
		oversold:  floatParam(params, "oversold", 30),
		tpPct:     floatParam(params, "tp_pct", 2.0),
		slPct:     floatParam(params, "sl_pct", 1.0),
		quantity:  floatParam(params, "quantity", 1),
	}
	if s.rsiPeriod < 2 {
		return nil, model.NewConfigurationError("rsi_reversal: rsi_period must be >= 2")
	}
	if s.oversold <= 0 || s.oversold >= 100 {
		return nil, model.NewConfigurationError("rsi_reversal: oversold must be in (0, 100)")
	}
	return s, nil
}

func (s *RsiReversal) Name() string { return "rsi_reversal" }

func (s *RsiReversal) EvaluateSetup(ctx *SetupContext) *model.Signal {
	history := ctx.History
	if len(history) < s.rsiPeriod+1 {
		return nil
	}

	closes := make([]float64, len(history))
	for i, k := range history {
		closes[i] = k.Close
	}

	rsis := talib.Rsi(closes, s.rsiPeriod)
	cur := rsis[len(rsis)-1]
	if cur >= s.oversold {
		return nil
	}

	level := ctx.Candle.Low
	return &model.Signal{
		Symbol:       ctx.Symbol,
		Side:         model.Buy,
		Comment:      fmt.Sprintf("RSI(%d)=%.2f below %.0f, watching retest of %.4f", s.rsiPeriod, cur, s.oversold, level),
		TriggerLevel: level,
		Entries: []model.EntryLeg{
			{Type: model.Limit, Price: level, Quantity: s.quantity},
		},
		TPPrice:   level * (1 + s.tpPct/100),
		SLPrice:   level * (1 - s.slPct/100),
		CreatedAt: ctx.Candle.CloseTime,
	}
}

func (s *RsiReversal) EvaluateTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit {
	return TouchTrigger(k, sig)
}
