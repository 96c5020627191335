package engine

import (
	"fmt"
	"time"

	"edgesim/internal/model"
	"edgesim/internal/strategy"

	"edgesim/pkg/logger"
)

// Orchestrator 驱动模拟时钟，把组件串成单线程流水线。
// 每根1m K线按固定顺序走完整条流水线后才处理下一根：
// 聚合 → 高级别收盘评估 → 触发扫描 → 撮合 → 账本更新 → 时钟推进。
// 顺序本身就是正确性约束，给定相同输入输出逐字节可复现：
// 无随机、无墙上时钟依赖
type Orchestrator struct {
	cfg   Config
	strat strategy.Strategy

	agg      *Aggregator
	sm       *SetupStateMachine
	scanner  *TriggerScanner
	fills    *FillEngine
	ledger   *PositionLedger
	recorder *EventRecorder

	// 每个品种的活跃 setup，由编排器持有并传给状态机
	setups map[string]*SetupState
	// symbol -> 未成交的进场挂单
	pendingOrders map[string][]*model.Order

	symbolSet map[string]bool
	lastClose map[string]float64
	lastK     map[string]model.Kline

	clock    time.Time
	orderSeq int
}

func NewOrchestrator(cfg Config, strat strategy.Strategy, runID string) *Orchestrator {
	rec := NewEventRecorder(runID)
	symbolSet := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbolSet[s] = true
	}
	return &Orchestrator{
		cfg:      cfg,
		strat:    strat,
		agg:      NewAggregator(cfg.Timeframes),
		sm:       NewSetupStateMachine(strat, cfg.SetupPolicy, cfg.ValidityBars, rec),
		scanner:  NewTriggerScanner(strat, rec),
		fills:    NewFillEngine(cfg.FillPolicy, cfg.PricePath, cfg.MinRange, cfg.SlippageBps, cfg.MinVolume),
		ledger:   NewPositionLedger(runID, cfg.InitialEquity, cfg.Leverage, cfg.CommissionRate, cfg.FundingRate, cfg.FundingInterval, cfg.FillPolicy, cfg.PricePath),
		recorder: rec,

		setups:        make(map[string]*SetupState),
		pendingOrders: make(map[string][]*model.Order),
		symbolSet:     symbolSet,
		lastClose:     make(map[string]float64),
		lastK:         make(map[string]model.Kline),
		orderSeq:      1,
	}
}

// Run 顺序消费整个K线流。致命错误立即中止，部分事件日志保留可查；
// 流结束时强制平掉所有持仓并产出完整报告
func (o *Orchestrator) Run(stream []model.Kline) (*model.Report, error) {
	if len(stream) == 0 {
		return nil, model.NewDataIntegrityError(time.Time{}, "empty candle stream")
	}

	for i := range stream {
		if err := o.Step(stream[i]); err != nil {
			o.recorder.Append(o.clock, model.EventRunAborted, stream[i].Symbol, "", err.Error())
			logger.Error("backtest aborted",
				logger.Pair("last_processed", o.clock),
				logger.Pair("error", err.Error()))
			return nil, err
		}
	}

	o.finalize()
	return o.buildReport(), nil
}

// Step 处理一根1m K线的完整流水线。不支持中途取消：
// 一步要么完整执行，要么带着致命错误整体中止
func (o *Orchestrator) Step(k model.Kline) error {
	if !o.symbolSet[k.Symbol] {
		return model.NewDataIntegrityError(k.OpenTime, "unexpected symbol in stream: %q", k.Symbol)
	}

	// 1. 聚合：可能在本步产出若干高级别收盘
	htfCloses, err := o.agg.Consume(k)
	if err != nil {
		return err
	}

	// 2. 每个高级别收盘驱动一次策略 setup 评估（每次收盘恰好一次）
	for _, htf := range htfCloses {
		o.sm.OnHTFClose(o.setups, htf, o.agg.History(htf.Symbol, htf.Timeframe))
	}

	// 3. 先检查过期，再扫描触发
	if !o.sm.CheckExpiry(o.setups, k.Symbol, k.OpenTime) {
		if setup, ok := o.setups[k.Symbol]; ok {
			if hit := o.scanner.Scan(setup, k); hit != nil {
				o.createEntryOrders(setup, hit, k)
				delete(o.setups, k.Symbol)
			}
		}
	}

	// 4. 撮合：先评估进场挂单，再评估持仓的TP/SL
	if err := o.fillPendingOrders(k); err != nil {
		return err
	}
	o.resolveExits(k)

	// 5. 账本：资金费、MAE/MFE、权益曲线
	o.ledger.AccrueFunding(k.Symbol, k.CloseTime, k.Close)
	o.ledger.UpdateExcursions(k)
	o.lastClose[k.Symbol] = k.Close
	o.lastK[k.Symbol] = k
	o.ledger.MarkEquity(o.lastClose)

	// 6. 时钟推进
	o.clock = k.CloseTime
	return nil
}

// createEntryOrders 触发命中后按信号的进场腿生成订单
func (o *Orchestrator) createEntryOrders(setup *SetupState, hit *model.TriggerHit, k model.Kline) {
	sig := setup.Signal
	for _, leg := range sig.Entries {
		order := &model.Order{
			ID:         fmt.Sprintf("O-%06d", o.orderSeq),
			TradeID:    setup.TradeID,
			Symbol:     setup.Symbol,
			Side:       sig.Side,
			Type:       leg.Type,
			Price:      leg.Price,
			Quantity:   leg.Quantity,
			TPPrice:    sig.TPPrice,
			SLPrice:    sig.SLPrice,
			Status:     model.OrderPending,
			CreatedAt:  hit.At,
			FillPolicy: o.cfg.FillPolicy,
		}
		o.orderSeq++
		o.pendingOrders[setup.Symbol] = append(o.pendingOrders[setup.Symbol], order)
		o.recorder.Append(hit.At, model.EventOrderCreated, setup.Symbol, setup.TradeID,
			fmt.Sprintf("%s %s %s %.8f @ %.8f (tp %.8f, sl %.8f)",
				order.ID, order.Side, order.Type, order.Quantity, order.Price, order.TPPrice, order.SLPrice))
	}
}

// fillPendingOrders 按价格优先级撮合本品种的进场挂单
func (o *Orchestrator) fillPendingOrders(k model.Kline) error {
	orders := o.pendingOrders[k.Symbol]
	if len(orders) == 0 {
		return nil
	}

	decisions, err := o.fills.EvaluateEntryBatch(orders, k, o.ledger)
	if err != nil {
		return err
	}

	var remaining []*model.Order
	for _, d := range decisions {
		order := d.Order
		switch d.Result.Outcome {
		case Filled:
			fill := model.Fill{
				OrderID:  order.ID,
				TradeID:  order.TradeID,
				Symbol:   order.Symbol,
				Side:     order.Side,
				Price:    d.Result.Price,
				Quantity: order.Quantity,
				Fee:      d.Fee,
				At:       k.CloseTime,
				IsEntry:  true,
			}
			setupSig := &model.Signal{TPPrice: order.TPPrice, SLPrice: order.SLPrice}
			pos, opened, err := o.ledger.ApplyFill(fill, setupSig, o.signalTimeOf(order))
			if err != nil {
				order.Status = model.OrderRejected
				order.RejectReason = err.Error()
				o.recorder.Append(k.CloseTime, model.EventOrderRejected, order.Symbol, order.TradeID,
					fmt.Sprintf("%s rejected: %v", order.ID, err))
				continue
			}

			order.Status = model.OrderFilled
			order.FilledAt = k.CloseTime
			order.FillPrice = d.Result.Price
			o.recorder.Append(k.CloseTime, model.EventOrderFilled, order.Symbol, order.TradeID,
				fmt.Sprintf("%s filled %.8f @ %.8f, fee %.8f", order.ID, fill.Quantity, fill.Price, fill.Fee))
			if opened {
				o.recorder.Append(k.CloseTime, model.EventPositionOpened, order.Symbol, order.TradeID,
					fmt.Sprintf("%s %s opened, avg entry %.8f", pos.Side, pos.Symbol, pos.AvgEntryPrice))
			}

		case Rejected:
			order.Status = model.OrderRejected
			order.RejectReason = d.Result.Reason
			o.recorder.Append(k.CloseTime, model.EventOrderRejected, order.Symbol, order.TradeID,
				fmt.Sprintf("%s rejected: %s", order.ID, d.Result.Reason))

		case NotFilled:
			remaining = append(remaining, order)
		}
	}

	if len(remaining) > 0 {
		o.pendingOrders[k.Symbol] = remaining
	} else {
		delete(o.pendingOrders, k.Symbol)
	}
	return nil
}

// signalTimeOf 进场订单对应的信号时间（订单创建于触发命中时，
// 信号时间要追溯到 setup 确认的事件链）
func (o *Orchestrator) signalTimeOf(order *model.Order) time.Time {
	events := o.recorder.ByTradeID(order.TradeID)
	for _, ev := range events {
		if ev.Type == model.EventSetupConfirmed {
			return ev.Timestamp
		}
	}
	return order.CreatedAt
}

// resolveExits 检查持仓的TP/SL离场
func (o *Orchestrator) resolveExits(k model.Kline) {
	pos, ok := o.ledger.Position(k.Symbol)
	if !ok {
		return
	}

	exit := o.fills.ResolveExit(pos, k)
	if exit == nil {
		return
	}

	rec := o.ledger.ClosePosition(k.Symbol, exit.Price, exit.Reason, exit.At)
	if rec == nil {
		return
	}
	o.recorder.Append(exit.At, model.EventPositionClosed, k.Symbol, rec.TradeID,
		fmt.Sprintf("%s @ %.8f, pnl %.8f, fees %.8f", exit.Reason, exit.Price, rec.Pnl, rec.Fees))

	// 仓位关闭后撤掉同一交易链剩余的进场挂单
	o.cancelPending(k.Symbol, rec.TradeID, exit.At)
}

func (o *Orchestrator) cancelPending(symbol, tradeID string, at time.Time) {
	var remaining []*model.Order
	for _, ord := range o.pendingOrders[symbol] {
		if ord.TradeID == tradeID {
			ord.Status = model.OrderCanceled
			continue
		}
		remaining = append(remaining, ord)
	}
	if len(remaining) > 0 {
		o.pendingOrders[symbol] = remaining
	} else {
		delete(o.pendingOrders, symbol)
	}
}

// finalize 流结束：所有未平仓位按最后收盘价强制平仓
func (o *Orchestrator) finalize() {
	// 按配置的品种顺序遍历，保证事件顺序确定
	for _, sym := range o.cfg.Symbols {
		pos, ok := o.ledger.Position(sym)
		if !ok {
			continue
		}
		last, ok := o.lastK[sym]
		if !ok {
			continue
		}
		rec := o.ledger.ClosePosition(sym, last.Close, model.ExitEndOfBacktest, last.CloseTime)
		if rec != nil {
			o.recorder.Append(last.CloseTime, model.EventPositionClosed, sym, rec.TradeID,
				fmt.Sprintf("END_OF_BACKTEST @ %.8f, pnl %.8f", last.Close, rec.Pnl))
			o.cancelPending(sym, pos.ID, last.CloseTime)
		}
	}
}

func (o *Orchestrator) buildReport() *model.Report {
	trades := o.ledger.ClosedTrades()
	return &model.Report{
		RunID:   o.recorder.runID,
		Trades:  trades,
		Summary: buildSummary(trades, o.ledger, o.lastClose),
	}
}

// Events 完整事件日志（中止的运行也可用于诊断）
func (o *Orchestrator) Events() []model.Event {
	return o.recorder.Events()
}

// EventsByTrade 一笔交易的事件链
func (o *Orchestrator) EventsByTrade(tradeID string) []model.Event {
	return o.recorder.ByTradeID(tradeID)
}

// LastProcessed 最后一根成功处理的K线收盘时间
func (o *Orchestrator) LastProcessed() time.Time {
	return o.clock
}
