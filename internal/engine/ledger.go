package engine

import (
	"sort"
	"time"

	"edgesim/internal/model"
)

// PositionLedger 持仓账本：负责开仓、多次建仓的均价重算、
// MAE/MFE 追踪、资金费计提和平仓结算。
// 同时承担保证金账户角色，供撮合引擎做约束检查
type PositionLedger struct {
	runID string

	balance    float64 // 钱包余额（含已实现盈亏，已扣手续费）
	marginUsed float64
	leverage   int

	commissionRate  float64
	fundingRate     float64
	fundingInterval time.Duration

	// symbol -> 当前持仓（每个品种至多一个）
	positions map[string]*model.Position
	// symbol -> 下一个资金费结算时点
	nextFunding map[string]time.Time

	closed []model.TradeRecord

	// 权益曲线峰值与最大回撤（百分比，正数）
	equityPeak     float64
	maxDrawdownPct float64

	fillPolicy model.FillPolicy
	pricePath  model.PricePath
}

func NewPositionLedger(runID string, initialEquity float64, leverage int, commissionRate, fundingRate float64, fundingInterval time.Duration, fillPolicy model.FillPolicy, pricePath model.PricePath) *PositionLedger {
	if leverage < 1 {
		leverage = 1
	}
	return &PositionLedger{
		runID:           runID,
		balance:         initialEquity,
		leverage:        leverage,
		commissionRate:  commissionRate,
		fundingRate:     fundingRate,
		fundingInterval: fundingInterval,
		positions:       make(map[string]*model.Position),
		nextFunding:     make(map[string]time.Time),
		equityPeak:      initialEquity,
		fillPolicy:      fillPolicy,
		pricePath:       pricePath,
	}
}

// EntryFee 按名义价值计算进场手续费
func (l *PositionLedger) EntryFee(notional float64) float64 {
	return notional * l.commissionRate
}

// TryReserve 保证金检查：可用余额必须覆盖所需保证金加手续费。
// 该品种已有反方向持仓时同样拒绝，进场成交只允许加仓同方向。
// 违规时返回约束违规（可恢复），只拒绝当前这张订单
func (l *PositionLedger) TryReserve(symbol string, side model.OrderSide, notional, fee float64) error {
	if pos, ok := l.positions[symbol]; ok && pos.Side != side {
		return model.NewConstraintViolation(
			"side conflict: %s has an open %s position, %s entry rejected", symbol, pos.Side, side)
	}

	required := notional/float64(l.leverage) + fee
	available := l.balance - l.marginUsed
	if available < required {
		return model.NewConstraintViolation(
			"insufficient margin: need %.8f (margin %.8f + fee %.8f), available %.8f",
			required, notional/float64(l.leverage), fee, available)
	}
	l.marginUsed += notional / float64(l.leverage)
	l.balance -= fee
	return nil
}

// ApplyFill 记账一笔进场成交。首笔成交开仓，后续成交按成交量加权重算均价。
// 追加成交的方向必须与持仓一致，反方向成交拒绝入账（约束违规）。
// 返回更新后的持仓和是否为新开仓
func (l *PositionLedger) ApplyFill(f model.Fill, sig *model.Signal, signalTime time.Time) (*model.Position, bool, error) {
	pos, ok := l.positions[f.Symbol]
	opened := false
	if ok && pos.Side != f.Side {
		return nil, false, model.NewConstraintViolation(
			"side conflict: cannot merge %s fill into open %s position on %s", f.Side, pos.Side, f.Symbol)
	}
	if !ok {
		pos = &model.Position{
			ID:         f.TradeID,
			Symbol:     f.Symbol,
			Side:       f.Side,
			TPPrice:    sig.TPPrice,
			SLPrice:    sig.SLPrice,
			Leverage:   l.leverage,
			SignalTime: signalTime,
			OpenedAt:   f.At,
		}
		l.positions[f.Symbol] = pos
		// 首个资金费结算点：开仓后的第一个对齐时点
		l.nextFunding[f.Symbol] = f.At.Truncate(l.fundingInterval).Add(l.fundingInterval)
		opened = true
	}
	pos.ApplyEntryFill(f)
	return pos, opened, nil
}

// Position 当前持仓
func (l *PositionLedger) Position(symbol string) (*model.Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

func (l *PositionLedger) HasOpenPositions() bool {
	return len(l.positions) > 0
}

// AccrueFunding 持仓跨过资金费结算点时计提资金费
func (l *PositionLedger) AccrueFunding(symbol string, now time.Time, markPrice float64) {
	pos, ok := l.positions[symbol]
	if !ok || l.fundingRate <= 0 {
		return
	}
	for next := l.nextFunding[symbol]; !now.Before(next); next = l.nextFunding[symbol] {
		fee := markPrice * pos.Quantity * l.fundingRate
		pos.FeesPaid += fee
		l.balance -= fee
		l.nextFunding[symbol] = next.Add(l.fundingInterval)
	}
}

// UpdateExcursions 用一根K线刷新持仓的 MAE/MFE
func (l *PositionLedger) UpdateExcursions(k model.Kline) {
	if pos, ok := l.positions[k.Symbol]; ok {
		pos.UpdateExcursions(k)
	}
}

// ClosePosition 平仓并产出不可变的 TradeRecord。
// OPEN → CLOSED 只发生一次，重复平仓是编排器的bug
func (l *PositionLedger) ClosePosition(symbol string, price float64, reason model.ExitReason, at time.Time) *model.TradeRecord {
	pos, ok := l.positions[symbol]
	if !ok || pos.Closed {
		return nil
	}

	exitNotional := price * pos.Quantity
	exitFee := exitNotional * l.commissionRate
	pnl := pos.UnrealizedPnl(price)

	pos.FeesPaid += exitFee
	pos.Closed = true
	pos.ClosedAt = at
	pos.ExitReason = reason
	pos.ExitPrice = price

	// 释放保证金，结算已实现盈亏
	l.marginUsed -= pos.AvgEntryPrice * pos.Quantity / float64(l.leverage)
	l.balance += pnl - exitFee

	rec := model.TradeRecord{
		RunID:          l.runID,
		TradeID:        pos.ID,
		Symbol:         pos.Symbol,
		Side:           pos.Side,
		SignalTime:     pos.SignalTime,
		EntryTime:      pos.OpenedAt,
		EntryPrice:     pos.AvgEntryPrice,
		Quantity:       pos.Quantity,
		ExitTime:       at,
		ExitPrice:      price,
		ExitReason:     reason,
		ExecutionDelay: pos.OpenedAt.Sub(pos.SignalTime),
		FillPolicyUsed: l.fillPolicy,
		PricePathUsed:  l.pricePath,
		Pnl:            pnl - pos.FeesPaid,
		Fees:           pos.FeesPaid,
		MAE:            pos.MAE,
		MFE:            pos.MFE,
	}
	l.closed = append(l.closed, rec)

	delete(l.positions, symbol)
	delete(l.nextFunding, symbol)
	return &rec
}

// MarkEquity 用各品种最新收盘价刷新权益曲线与最大回撤
func (l *PositionLedger) MarkEquity(lastClose map[string]float64) {
	equity := l.Equity(lastClose)
	if equity > l.equityPeak {
		l.equityPeak = equity
	}
	if l.equityPeak > 0 {
		dd := (l.equityPeak - equity) / l.equityPeak * 100
		if dd > l.maxDrawdownPct {
			l.maxDrawdownPct = dd
		}
	}
}

func (l *PositionLedger) ClosedTrades() []model.TradeRecord {
	return l.closed
}

// Equity 钱包余额加全部持仓的未实现盈亏。
// 浮点加法不满足结合律，必须按固定的品种顺序累加，
// 否则多品种持仓下的结果随 map 遍历顺序漂移
func (l *PositionLedger) Equity(lastClose map[string]float64) float64 {
	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	equity := l.balance
	for _, sym := range symbols {
		if price, ok := lastClose[sym]; ok {
			equity += l.positions[sym].UnrealizedPnl(price)
		}
	}
	return equity
}

func (l *PositionLedger) Balance() float64        { return l.balance }
func (l *PositionLedger) MaxDrawdownPct() float64 { return l.maxDrawdownPct }
