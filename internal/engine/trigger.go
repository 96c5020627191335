package engine

import (
	"fmt"

	"edgesim/internal/model"
	"edgesim/internal/strategy"
)

// TriggerScanner 用低级别K线回放活跃 setup 的进场条件。
// 只评估已收盘的K线，确认 setup 的那根高级别K线所覆盖的分钟不参与扫描
type TriggerScanner struct {
	strat    strategy.Strategy
	recorder *EventRecorder
}

func NewTriggerScanner(strat strategy.Strategy, rec *EventRecorder) *TriggerScanner {
	return &TriggerScanner{strat: strat, recorder: rec}
}

// Scan 对一根低级别K线评估 setup 的触发条件。
// 命中时 setup 进入 CONSUMED 终态并返回命中信息，控制权交给撮合引擎
func (t *TriggerScanner) Scan(setup *SetupState, k model.Kline) *model.TriggerHit {
	if setup == nil || setup.Status != SetupWaitingForTrigger {
		return nil
	}
	if !k.IsClosed {
		// 永远不评估尚在形成中的K线
		return nil
	}
	// 确认时刻之前（含确认那一分钟）的K线不算触发
	if !k.CloseTime.After(setup.CreatedAt) {
		return nil
	}

	hit := t.strat.EvaluateTrigger(k, setup.Signal)
	if hit == nil {
		return nil
	}

	setup.Status = SetupConsumed
	t.recorder.Append(hit.At, model.EventTriggerHit, setup.Symbol, setup.TradeID,
		fmt.Sprintf("trigger at %.8f (candle low %.8f high %.8f)", hit.Price, k.Low, k.High))
	return hit
}
