package engine

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"edgesim/internal/model"
)

func limitBuy(price, qty float64) *model.Order {
	return &model.Order{ID: "O-000001", Side: model.Buy, Type: model.Limit, Price: price, Quantity: qty}
}

func TestLimitBuyTouchFills(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)

	// P=98，K线 (O=100, H=105, L=95)：最低价触及限价，开盘在价位上方
	k := k1m("BTC/USDT", t0, 100, 105, 95, 102, 10)
	res, err := fe.AttemptFill(limitBuy(98, 1), k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != Filled || res.Price != 98 {
		t.Errorf("got outcome=%v price=%v, want Filled at 98", res.Outcome, res.Price)
	}
}

func TestLimitBuyGapThrough(t *testing.T) {
	// P=98，K线 (O=90, H=95, L=85)：开盘已跳空到价位下方
	k := k1m("BTC/USDT", t0, 90, 95, 85, 92, 10)
	o := limitBuy(98, 1)

	neutral := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	res, err := neutral.AttemptFill(o, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFilled {
		t.Errorf("neutral: gap-through should not fill, got outcome=%v", res.Outcome)
	}

	// optimistic 只看触及
	opt := NewFillEngine(model.FillOptimistic, model.PathWorst, 0, 0, 0)
	res, err = opt.AttemptFill(o, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != Filled || res.Price != 98 {
		t.Errorf("optimistic: got outcome=%v price=%v, want Filled at 98", res.Outcome, res.Price)
	}
}

func TestLimitBuyNoTouch(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	k := k1m("BTC/USDT", t0, 100, 105, 99, 102, 10)
	res, err := fe.AttemptFill(limitBuy(98, 1), k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFilled {
		t.Errorf("price never reached the limit, got outcome=%v", res.Outcome)
	}
}

func TestLimitSellSymmetry(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	o := &model.Order{ID: "O-000001", Side: model.Sell, Type: model.Limit, Price: 102, Quantity: 1}

	k := k1m("BTC/USDT", t0, 100, 105, 95, 101, 10)
	res, err := fe.AttemptFill(o, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != Filled || res.Price != 102 {
		t.Errorf("got outcome=%v price=%v, want Filled at 102", res.Outcome, res.Price)
	}

	// 开盘跳空到限价上方
	gap := k1m("BTC/USDT", t0, 110, 112, 108, 111, 10)
	res, err = fe.AttemptFill(o, gap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFilled {
		t.Errorf("sell gap-through should not fill, got outcome=%v", res.Outcome)
	}
}

func TestNeutralWickFilter(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 2.0, 0, 0)

	// 振幅只有1，低于 minRange=2 的触碰不算
	k := k1m("BTC/USDT", t0, 99, 99.5, 98.5, 99, 10)
	res, err := fe.AttemptFill(limitBuy(98.7, 1), k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFilled {
		t.Errorf("narrow-range touch should be filtered, got outcome=%v", res.Outcome)
	}
}

func TestStrictSlippageAndVolume(t *testing.T) {
	fe := NewFillEngine(model.FillStrict, model.PathWorst, 0, 10, 5)

	// 成交量不足
	thin := k1m("BTC/USDT", t0, 100, 105, 95, 102, 1)
	res, err := fe.AttemptFill(limitBuy(98, 1), thin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != NotFilled {
		t.Errorf("below min volume should not fill, got outcome=%v", res.Outcome)
	}

	// 10bps 滑点，买方吃亏
	k := k1m("BTC/USDT", t0, 100, 105, 95, 102, 10)
	res, err = fe.AttemptFill(limitBuy(98, 1), k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 98 * 1.001
	if res.Outcome != Filled || math.Abs(res.Price-want) > 1e-9 {
		t.Errorf("got outcome=%v price=%v, want Filled at %v", res.Outcome, res.Price, want)
	}
}

func TestStopBuyGapFillsAtOpen(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	o := &model.Order{ID: "O-000001", Side: model.Buy, Type: model.Stop, Price: 100, Quantity: 1}

	// 开盘跳空越过触发价：追价按开盘成交
	k := k1m("BTC/USDT", t0, 101, 103, 100.5, 102, 10)
	res, err := fe.AttemptFill(o, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != Filled || res.Price != 101 {
		t.Errorf("got outcome=%v price=%v, want Filled at open 101", res.Outcome, res.Price)
	}
}

func TestMarketFillsAtClose(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	o := &model.Order{ID: "O-000001", Side: model.Buy, Type: model.Market, Quantity: 1}

	k := k1m("BTC/USDT", t0, 100, 105, 95, 102, 10)
	res, err := fe.AttemptFill(o, k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != Filled || res.Price != 102 {
		t.Errorf("got outcome=%v price=%v, want Filled at close 102", res.Outcome, res.Price)
	}
}

func TestMalformedOrderIsFatal(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	k := k1m("BTC/USDT", t0, 100, 105, 95, 102, 10)

	var die *model.DataIntegrityError
	if _, err := fe.AttemptFill(limitBuy(98, -1), k); !errors.As(err, &die) {
		t.Errorf("negative quantity: expected DataIntegrityError, got %v", err)
	}
	if _, err := fe.AttemptFill(limitBuy(0, 1), k); !errors.As(err, &die) {
		t.Errorf("zero limit price: expected DataIntegrityError, got %v", err)
	}
}

func TestEntryBatchPricePriority(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	ledger := NewPositionLedger("run-1", 300, 1, 0, 0, 8*time.Hour, model.FillNeutral, model.PathWorst)

	// 5条网格腿 100/99/98/97/96，数量各1，权益300：价高者先占保证金
	var orders []*model.Order
	for i, p := range []float64{96, 98, 100, 97, 99} { // 乱序入参
		orders = append(orders, &model.Order{
			ID: fmt.Sprintf("O-%06d", i+1), Side: model.Buy, Type: model.Limit, Price: p, Quantity: 1,
		})
	}
	k := k1m("BTC/USDT", t0, 100, 100.5, 95, 96, 10)

	decisions, err := fe.EvaluateEntryBatch(orders, k, ledger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions) != 5 {
		t.Fatalf("got %d decisions, want 5", len(decisions))
	}

	wantPrices := []float64{100, 99, 98, 97, 96}
	wantOutcome := []FillOutcome{Filled, Filled, Filled, Rejected, Rejected}
	for i, d := range decisions {
		if d.Order.Price != wantPrices[i] {
			t.Errorf("decision %d: price %v, want %v (price priority)", i, d.Order.Price, wantPrices[i])
		}
		if d.Result.Outcome != wantOutcome[i] {
			t.Errorf("decision %d (price %v): outcome %v, want %v", i, d.Order.Price, d.Result.Outcome, wantOutcome[i])
		}
	}
	if decisions[3].Result.Reason == "" {
		t.Error("rejected decision must carry a reason")
	}
}

func makePosition(side model.OrderSide, entry, tp, sl float64, openedAt time.Time) *model.Position {
	p := &model.Position{
		ID:       "T-000001",
		Symbol:   "BTC/USDT",
		Side:     side,
		TPPrice:  tp,
		SLPrice:  sl,
		Leverage: 1,
		OpenedAt: openedAt,
	}
	p.ApplyEntryFill(model.Fill{Price: entry, Quantity: 1, At: openedAt})
	return p
}

func TestResolveExitSkipsEntryCandle(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	openedAt := t0.Add(time.Minute)
	pos := makePosition(model.Buy, 100, 105, 95, openedAt)

	// 进场那根K线即使扫过SL也不参与离场判定
	entry := k1m("BTC/USDT", t0, 100, 106, 94, 100, 10)
	if exit := fe.ResolveExit(pos, entry); exit != nil {
		t.Fatal("exit resolved on the entry candle itself")
	}

	next := k1m("BTC/USDT", t0.Add(time.Minute), 100, 100, 94, 95, 10)
	exit := fe.ResolveExit(pos, next)
	if exit == nil {
		t.Fatal("SL touched on a later candle, expected exit")
	}
	if exit.Reason != model.ExitStopLoss || exit.Price != 95 {
		t.Errorf("got reason=%v price=%v, want STOP_LOSS at 95", exit.Reason, exit.Price)
	}
}

func TestResolveExitDualTouchPricePath(t *testing.T) {
	openedAt := t0
	both := k1m("BTC/USDT", t0.Add(time.Minute), 100, 106, 94, 100, 10)

	worst := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	pos := makePosition(model.Buy, 100, 105, 95, openedAt)
	exit := worst.ResolveExit(pos, both)
	if exit == nil || exit.Reason != model.ExitStopLoss {
		t.Errorf("worst path: got %+v, want STOP_LOSS", exit)
	}

	best := NewFillEngine(model.FillNeutral, model.PathBest, 0, 0, 0)
	pos = makePosition(model.Buy, 100, 105, 95, openedAt)
	exit = best.ResolveExit(pos, both)
	if exit == nil || exit.Reason != model.ExitTakeProfit {
		t.Errorf("best path: got %+v, want TAKE_PROFIT", exit)
	}
}

func TestResolveExitGapFillsAtOpen(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	pos := makePosition(model.Buy, 100, 110, 98, t0)

	// 开盘直接跳空到SL下方：按开盘价离场，而不是幻想在SL价位成交
	gap := k1m("BTC/USDT", t0.Add(time.Minute), 96, 97, 95, 96, 10)
	exit := fe.ResolveExit(pos, gap)
	if exit == nil {
		t.Fatal("expected SL exit on gap-down candle")
	}
	if exit.Reason != model.ExitStopLoss || exit.Price != 96 {
		t.Errorf("got reason=%v price=%v, want STOP_LOSS at open 96", exit.Reason, exit.Price)
	}
}

func TestResolveExitShortSide(t *testing.T) {
	fe := NewFillEngine(model.FillNeutral, model.PathWorst, 0, 0, 0)
	pos := makePosition(model.Sell, 100, 95, 105, t0)

	k := k1m("BTC/USDT", t0.Add(time.Minute), 100, 100, 94, 95, 10)
	exit := fe.ResolveExit(pos, k)
	if exit == nil || exit.Reason != model.ExitTakeProfit || exit.Price != 95 {
		t.Errorf("short TP: got %+v, want TAKE_PROFIT at 95", exit)
	}
}
