package engine

import (
	"time"

	"edgesim/internal/model"
	"edgesim/internal/strategy"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// k1m 构造一根1m K线
func k1m(symbol string, openTime time.Time, o, h, l, c, v float64) model.Kline {
	return model.Kline{
		Symbol:    symbol,
		Timeframe: model.Tf1m,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Minute),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
		IsClosed:  true,
	}
}

// flatMinutes 构造 n 根价格恒定的连续1m K线
func flatMinutes(symbol string, start time.Time, n int, price, vol float64) []model.Kline {
	out := make([]model.Kline, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, k1m(symbol, start.Add(time.Duration(i)*time.Minute), price, price, price, price, vol))
	}
	return out
}

// stubStrategy 测试用策略：在指定的高级别收盘时间产出固定信号，
// 触发判定用默认的价位触碰
type stubStrategy struct {
	fireAt     map[time.Time]*model.Signal
	setupEvals int
}

func newStubStrategy() *stubStrategy {
	return &stubStrategy{fireAt: make(map[time.Time]*model.Signal)}
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) EvaluateSetup(ctx *strategy.SetupContext) *model.Signal {
	s.setupEvals++
	sig, ok := s.fireAt[ctx.Candle.CloseTime]
	if !ok {
		return nil
	}
	out := *sig
	out.Symbol = ctx.Symbol
	out.CreatedAt = ctx.Candle.CloseTime
	return &out
}

func (s *stubStrategy) EvaluateTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit {
	return strategy.TouchTrigger(k, sig)
}

// buySignal 单腿限价买入信号
func buySignal(trigger, tp, sl, qty float64) *model.Signal {
	return &model.Signal{
		Side:         model.Buy,
		TriggerLevel: trigger,
		Entries:      []model.EntryLeg{{Type: model.Limit, Price: trigger, Quantity: qty}},
		TPPrice:      tp,
		SLPrice:      sl,
	}
}

func defaultConfig(symbol string) Config {
	return Config{
		Symbols:         []string{symbol},
		Timeframes:      []model.Timeframe{model.Tf1h},
		FillPolicy:      model.FillNeutral,
		PricePath:       model.PathWorst,
		SetupPolicy:     model.SetupIgnore,
		ValidityBars:    1,
		InitialEquity:   1e6,
		Leverage:        1,
		FundingInterval: 8 * time.Hour,
	}
}

// eventTypes 事件日志里出现的类型序列
func eventTypes(events []model.Event) []model.EventType {
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func countEvents(events []model.Event, typ model.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
