package strategy

import (
	"fmt"

	"edgesim/internal/model"
)

func init() {
	Register("level_touch", NewLevelTouch)
}

// LevelTouch 突破回踩策略：
// 高级别收盘价突破前 lookback 根K线的最高价视为 setup 确认，
// 随后等待低级别价格回踩到收盘价下方 trigger_offset_pct 的位置挂限价进场。
// 支持网格式多腿建仓（grid_levels > 1 时每腿依次下移 grid_step_pct）
type LevelTouch struct {
	lookback         int
	triggerOffsetPct float64
	tpPct            float64
	slPct            float64
	quantity         float64
	gridLevels       int
	gridStepPct      float64
}

func NewLevelTouch(params map[string]any) (Strategy, error) {
	s := &LevelTouch{
		lookback:         intParam(params, "lookback", 20),
		triggerOffsetPct: floatParam(params, "trigger_offset_pct", 0.2),
		tpPct:            floatParam(params, "tp_pct", 1.5),
		slPct:            floatParam(params, "sl_pct", 0.8),
		quantity:         floatParam(params, "quantity", 1),
		gridLevels:       intParam(params, "grid_levels", 1),
		gridStepPct:      floatParam(params, "grid_step_pct", 0.3),
	}
	if s.quantity <= 0 {
		return nil, model.NewConfigurationError("level_touch: quantity must be positive")
	}
	if s.gridLevels < 1 {
		s.gridLevels = 1
	}
	return s, nil
}

func (s *LevelTouch) Name() string { return "level_touch" }

func (s *LevelTouch) EvaluateSetup(ctx *SetupContext) *model.Signal {
	history := ctx.History
	if len(history) < s.lookback+1 {
		return nil
	}

	// 前 lookback 根（不含当前这根）的最高价
	prevHigh := 0.0
	for _, k := range history[len(history)-1-s.lookback : len(history)-1] {
		if k.High > prevHigh {
			prevHigh = k.High
		}
	}

	cur := ctx.Candle
	if cur.Close <= prevHigh {
		return nil
	}

	level := cur.Close * (1 - s.triggerOffsetPct/100)
	// 每腿均分数量，依次下移
	perLeg := s.quantity / float64(s.gridLevels)
	entries := make([]model.EntryLeg, 0, s.gridLevels)
	for i := 0; i < s.gridLevels; i++ {
		price := level * (1 - s.gridStepPct/100*float64(i))
		entries = append(entries, model.EntryLeg{Type: model.Limit, Price: price, Quantity: perLeg})
	}

	return &model.Signal{
		Symbol:       ctx.Symbol,
		Side:         model.Buy,
		Comment:      fmt.Sprintf("breakout above %.4f on %s close", prevHigh, ctx.Timeframe),
		TriggerLevel: level,
		Entries:      entries,
		TPPrice:      level * (1 + s.tpPct/100),
		SLPrice:      level * (1 - s.slPct/100),
		CreatedAt:    cur.CloseTime,
	}
}

func (s *LevelTouch) EvaluateTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit {
	return TouchTrigger(k, sig)
}
