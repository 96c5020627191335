package engine

import (
	"testing"
	"time"

	"edgesim/internal/model"
)

func htf1h(symbol string, openTime time.Time, closePrice float64) model.Kline {
	return model.Kline{
		Symbol:    symbol,
		Timeframe: model.Tf1h,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Hour),
		Open:      closePrice,
		High:      closePrice,
		Low:       closePrice,
		Close:     closePrice,
		Volume:    60,
		IsClosed:  true,
	}
}

func TestSetupConfirmedOnClose(t *testing.T) {
	strat := newStubStrategy()
	strat.fireAt[t0.Add(time.Hour)] = buySignal(99, 101, 98, 1)

	rec := NewEventRecorder("run-1")
	sm := NewSetupStateMachine(strat, model.SetupIgnore, 2, rec)
	setups := make(map[string]*SetupState)

	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0, 100), nil)

	if strat.setupEvals != 1 {
		t.Fatalf("strategy evaluated %d times, want 1", strat.setupEvals)
	}
	active, ok := setups["BTC/USDT"]
	if !ok {
		t.Fatal("no active setup after confirmation")
	}
	if active.TradeID != "T-000001" {
		t.Errorf("trade id = %q, want T-000001", active.TradeID)
	}
	if active.Status != SetupWaitingForTrigger {
		t.Errorf("status = %q, want WAITING_FOR_TRIGGER", active.Status)
	}
	// validity 2 bars of 1h
	if want := t0.Add(3 * time.Hour); !active.ValidityDeadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", active.ValidityDeadline, want)
	}
	if countEvents(rec.Events(), model.EventSetupConfirmed) != 1 {
		t.Error("missing SETUP_CONFIRMED event")
	}
}

func TestSetupPolicyIgnore(t *testing.T) {
	strat := newStubStrategy()
	strat.fireAt[t0.Add(time.Hour)] = buySignal(99, 101, 98, 1)
	strat.fireAt[t0.Add(2*time.Hour)] = buySignal(95, 101, 90, 1)

	rec := NewEventRecorder("run-1")
	sm := NewSetupStateMachine(strat, model.SetupIgnore, 5, rec)
	setups := make(map[string]*SetupState)

	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0, 100), nil)
	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0.Add(time.Hour), 100), nil)

	// 先到先得：第二次确认被忽略
	active := setups["BTC/USDT"]
	if active.TradeID != "T-000001" {
		t.Errorf("active trade id = %q, want the original T-000001", active.TradeID)
	}
	if active.Signal.TriggerLevel != 99 {
		t.Errorf("trigger level = %v, original signal should have been kept", active.Signal.TriggerLevel)
	}
	if n := countEvents(rec.Events(), model.EventSetupConfirmed); n != 1 {
		t.Errorf("SETUP_CONFIRMED count = %d, want 1", n)
	}
}

func TestSetupPolicyReplace(t *testing.T) {
	strat := newStubStrategy()
	strat.fireAt[t0.Add(time.Hour)] = buySignal(99, 101, 98, 1)
	strat.fireAt[t0.Add(2*time.Hour)] = buySignal(95, 101, 90, 1)

	rec := NewEventRecorder("run-1")
	sm := NewSetupStateMachine(strat, model.SetupReplace, 5, rec)
	setups := make(map[string]*SetupState)

	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0, 100), nil)
	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0.Add(time.Hour), 100), nil)

	active := setups["BTC/USDT"]
	if active.TradeID != "T-000002" {
		t.Errorf("active trade id = %q, want T-000002", active.TradeID)
	}
	if active.Signal.TriggerLevel != 95 {
		t.Errorf("trigger level = %v, want the replacing signal's 95", active.Signal.TriggerLevel)
	}
	if n := countEvents(rec.Events(), model.EventSetupReplaced); n != 1 {
		t.Errorf("SETUP_REPLACED count = %d, want 1", n)
	}
	if n := countEvents(rec.Events(), model.EventSetupConfirmed); n != 2 {
		t.Errorf("SETUP_CONFIRMED count = %d, want 2", n)
	}
}

func TestSetupExpiry(t *testing.T) {
	strat := newStubStrategy()
	strat.fireAt[t0.Add(time.Hour)] = buySignal(99, 101, 98, 1)

	rec := NewEventRecorder("run-1")
	sm := NewSetupStateMachine(strat, model.SetupIgnore, 1, rec)
	setups := make(map[string]*SetupState)

	sm.OnHTFClose(setups, htf1h("BTC/USDT", t0, 100), nil)
	deadline := t0.Add(2 * time.Hour)

	if sm.CheckExpiry(setups, "BTC/USDT", deadline.Add(-time.Minute)) {
		t.Fatal("setup expired before deadline")
	}
	if !sm.CheckExpiry(setups, "BTC/USDT", deadline) {
		t.Fatal("setup should expire exactly at deadline")
	}
	if _, ok := setups["BTC/USDT"]; ok {
		t.Error("expired setup still in active map")
	}
	if countEvents(rec.Events(), model.EventSetupExpired) != 1 {
		t.Error("missing SETUP_EXPIRED event")
	}
}

func TestTriggerScanSkipsConfirmationWindow(t *testing.T) {
	strat := newStubStrategy()
	rec := NewEventRecorder("run-1")
	scanner := NewTriggerScanner(strat, rec)

	sig := buySignal(99, 101, 98, 1)
	sig.CreatedAt = t0.Add(time.Hour)
	setup := &SetupState{
		TradeID:   "T-000001",
		Symbol:    "BTC/USDT",
		Status:    SetupWaitingForTrigger,
		Signal:    sig,
		CreatedAt: t0.Add(time.Hour),
	}

	// 确认那根高级别K线覆盖的分钟即使触及价位也不算触发
	inside := k1m("BTC/USDT", t0.Add(59*time.Minute), 100, 100, 98, 99, 1)
	if hit := scanner.Scan(setup, inside); hit != nil {
		t.Fatal("trigger fired on a candle inside the confirmation window")
	}

	after := k1m("BTC/USDT", t0.Add(time.Hour), 100, 100, 98, 99, 1)
	hit := scanner.Scan(setup, after)
	if hit == nil {
		t.Fatal("trigger should fire on the first candle after confirmation")
	}
	if hit.Price != 99 {
		t.Errorf("hit price = %v, want the trigger level 99", hit.Price)
	}
	if setup.Status != SetupConsumed {
		t.Errorf("status = %q, want CONSUMED", setup.Status)
	}
	if countEvents(rec.Events(), model.EventTriggerHit) != 1 {
		t.Error("missing TRIGGER_HIT event")
	}

	// 终态后不再触发
	if hit := scanner.Scan(setup, after); hit != nil {
		t.Error("consumed setup triggered again")
	}
}
