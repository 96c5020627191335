package strategy

import (
	"edgesim/internal/model"
)

// SetupContext 一次 setup 评估能看到的全部信息：
// 刚收盘的高级别K线和它之前的已收盘历史（升序，含当前这根）。
// 未收盘数据永远不会出现在这里
type SetupContext struct {
	Symbol    string
	Timeframe model.Timeframe
	Candle    model.Kline
	History   []model.Kline
}

// Strategy 策略分两段：高级别收盘时的 setup 断言，
// 和低级别K线上的进场触发判断。两段都必须是输入的纯函数
type Strategy interface {
	Name() string
	// EvaluateSetup 在一根高级别K线收盘时被调用恰好一次，
	// 返回 nil 表示本根没有 setup
	EvaluateSetup(ctx *SetupContext) *model.Signal
	// EvaluateTrigger 对一根已收盘的低级别K线判断触发条件，
	// 返回 nil 表示未触发
	EvaluateTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit
}

// TouchTrigger 默认触发判定：低级别K线触及信号的触发价位。
// 开盘已跳空越过价位时按开盘价记命中价（实际可成交的第一个价格）
func TouchTrigger(k model.Kline, sig *model.Signal) *model.TriggerHit {
	if !k.IsClosed || sig == nil {
		return nil
	}

	level := sig.TriggerLevel
	if sig.Side == model.Buy {
		if k.Low > level {
			return nil
		}
		price := level
		if k.Open < level {
			price = k.Open
		}
		return &model.TriggerHit{At: k.CloseTime, Price: price}
	}

	if k.High < level {
		return nil
	}
	price := level
	if k.Open > level {
		price = k.Open
	}
	return &model.TriggerHit{At: k.CloseTime, Price: price}
}
