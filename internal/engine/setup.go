package engine

import (
	"fmt"
	"time"

	"edgesim/internal/consts"
	"edgesim/internal/model"
	"edgesim/internal/strategy"

	"edgesim/pkg/logger"
)

// Setup 状态：IDLE → SETUP_CONFIRMED → WAITING_FOR_TRIGGER → {CONSUMED | SETUP_EXPIRED}。
// 确认后立即进入等待触发，CONFIRMED 只是瞬时过渡态
type SetupStatus string

const (
	SetupConfirmed         SetupStatus = "CONFIRMED"
	SetupWaitingForTrigger SetupStatus = "WAITING_FOR_TRIGGER"
	SetupExpired           SetupStatus = "EXPIRED"
	SetupConsumed          SetupStatus = "CONSUMED"
)

// SetupState 单个品种的活跃 setup，同一品种最多存在一个非终态 setup
type SetupState struct {
	TradeID string
	Symbol  string
	Status  SetupStatus
	Signal  *model.Signal

	CreatedAt time.Time
	// 超过该时刻仍未触发则过期
	ValidityDeadline time.Time
}

// SetupStateMachine 把高级别收盘的策略评估转换为 setup 的生命周期。
// 活跃 setup 的 map 由编排器持有并传入，状态机自身无全局状态
type SetupStateMachine struct {
	strat        strategy.Strategy
	policy       model.SetupPolicy
	validityBars int
	recorder     *EventRecorder

	// 交易链ID是确定性的自增序号，在 setup 确认时分配，
	// 之后的触发/成交/平仓事件共享同一个ID
	nextTradeSeq int
}

func NewSetupStateMachine(strat strategy.Strategy, policy model.SetupPolicy, validityBars int, rec *EventRecorder) *SetupStateMachine {
	if validityBars < 1 {
		validityBars = 1
	}
	return &SetupStateMachine{
		strat:        strat,
		policy:       policy,
		validityBars: validityBars,
		recorder:     rec,
		nextTradeSeq: 1,
	}
}

// OnHTFClose 在一根高级别K线收盘时调用恰好一次。
// 策略的 setup 断言只会被评估这一次，且只看到已收盘的数据
func (m *SetupStateMachine) OnHTFClose(setups map[string]*SetupState, htf model.Kline, history []model.Kline) {
	sig := m.strat.EvaluateSetup(&strategy.SetupContext{
		Symbol:    htf.Symbol,
		Timeframe: htf.Timeframe,
		Candle:    htf,
		History:   history,
	})
	if sig == nil {
		return
	}

	if active, ok := setups[htf.Symbol]; ok && active.Status == SetupWaitingForTrigger {
		if m.policy == model.SetupIgnore {
			// 先到先得：已有活跃 setup 时忽略新确认信号，保证确定性
			logger.Debugf("[setup] %s new confirmation ignored, active setup %s still waiting", htf.Symbol, active.TradeID)
			return
		}
		// replace：旧 setup 作废
		active.Status = SetupExpired
		m.recorder.Append(htf.CloseTime, model.EventSetupReplaced, htf.Symbol, active.TradeID,
			fmt.Sprintf("replaced by new confirmation at %s close", htf.Timeframe))
		delete(setups, htf.Symbol)
	}

	tradeID := fmt.Sprintf("%s%06d", consts.TradeIdPrefix, m.nextTradeSeq)
	m.nextTradeSeq++

	deadline := htf.CloseTime.Add(time.Duration(m.validityBars) * htf.Timeframe.Duration())
	setups[htf.Symbol] = &SetupState{
		TradeID:          tradeID,
		Symbol:           htf.Symbol,
		Status:           SetupWaitingForTrigger,
		Signal:           sig,
		CreatedAt:        htf.CloseTime,
		ValidityDeadline: deadline,
	}

	m.recorder.Append(htf.CloseTime, model.EventSetupConfirmed, htf.Symbol, tradeID,
		fmt.Sprintf("%s close %.8f, trigger %.8f, valid until %s, %s",
			htf.Timeframe, htf.Close, sig.TriggerLevel, deadline.UTC().Format(consts.TimeLayout), sig.Comment))
}

// CheckExpiry 时钟越过有效期仍未触发则过期（终态，不产生订单）。
// 返回 true 表示 setup 已被移除
func (m *SetupStateMachine) CheckExpiry(setups map[string]*SetupState, symbol string, now time.Time) bool {
	active, ok := setups[symbol]
	if !ok || active.Status != SetupWaitingForTrigger {
		return false
	}
	if now.Before(active.ValidityDeadline) {
		return false
	}

	active.Status = SetupExpired
	m.recorder.Append(now, model.EventSetupExpired, symbol, active.TradeID,
		fmt.Sprintf("no trigger before %s", active.ValidityDeadline.UTC().Format(consts.TimeLayout)))
	delete(setups, symbol)
	return true
}
