package strategy

import (
	"fmt"

	"edgesim/internal/model"

	"github.com/markcheno/go-talib"
)

func init() {
	Register("ema_pullback", NewEmaPullback)
}

// EmaPullback 均线回踩策略：
// 高级别收盘价上穿 EMA 时确认 setup，触发价位取当前 EMA 值，
// 即等待低级别价格回踩均线后限价进场
type EmaPullback struct {
	emaPeriod float64
	tpPct     float64
	slPct     float64
	quantity  float64
}

func NewEmaPullback(params map[string]any) (Strategy, error) {
	s := &EmaPullback{
		emaPeriod: float64(intParam(params, "ema_period", 20)),
		tpPct:     floatParam(params, "tp_pct", 1.5),
		slPct:     floatParam(params, "sl_pct", 0.8),
		quantity:  floatParam(params, "quantity", 1),
	}
	if s.emaPeriod < 2 {
		return nil, model.NewConfigurationError("ema_pullback: ema_period must be >= 2")
	}
	if s.quantity <= 0 {
		return nil, model.NewConfigurationError("ema_pullback: quantity must be positive")
	}
	return s, nil
}

func (s *EmaPullback) Name() string { return "ema_pullback" }

func (s *EmaPullback) EvaluateSetup(ctx *SetupContext) *model.Signal {
	period := int(s.emaPeriod)
	history := ctx.History
	// 需要至少 period+1 根才能判断上穿
	if len(history) < period+1 {
		return nil
	}

	closes := make([]float64, len(history))
	for i, k := range history {
		closes[i] = k.Close
	}

	emas := talib.Ema(closes, period)
	curEma := emas[len(emas)-1]
	prevEma := emas[len(emas)-2]
	curClose := closes[len(closes)-1]
	prevClose := closes[len(closes)-2]

	// 上穿：前一根收在EMA下方或持平，这一根收在上方
	if !(prevClose <= prevEma && curClose > curEma) {
		return nil
	}

	level := curEma
	return &model.Signal{
		Symbol:       ctx.Symbol,
		Side:         model.Buy,
		Comment:      fmt.Sprintf("close crossed above EMA(%d) at %.4f", period, curEma),
		TriggerLevel: level,
		Entries: []model.EntryLeg{
			{Type: model.Limit, Price: level, Quantity: s.quantity},
		},
		TPPrice:   level * (1 + s.tpPct/100),
		SLPrice:   level * (1 - s.slPct/100),
		CreatedAt: ctx.Candle.CloseTime,
	}
}

func (s *EmaPullback) EvaluateTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit {
	return TouchTrigger(k, sig)
}
