package engine

import (
	"sort"
	"time"

	"edgesim/internal/model"
)

// FillOutcome 单次撮合判定的结论
type FillOutcome int

const (
	NotFilled FillOutcome = iota
	Filled
	Rejected
)

// FillResult 撮合结果。Outcome 为 Filled 时 Price 是实际成交价
// （strict 策略下含滑点惩罚）；Rejected 时 Reason 说明拒绝原因
type FillResult struct {
	Outcome FillOutcome
	Price   float64
	Reason  string
}

// ExitFill 持仓离场成交（TP/SL 命中）
type ExitFill struct {
	Price  float64
	Reason model.ExitReason
	At     time.Time
}

// MarginAccount 保证金检查边界。约束违规在撮合边界被拦下，
// 只拒绝单笔订单，不会中断整个回测
type MarginAccount interface {
	// TryReserve 校验并占用保证金。余量不足或与该品种的
	// 现有持仓方向冲突时返回 *model.ConstraintViolation
	TryReserve(symbol string, side model.OrderSide, notional, fee float64) error
	// EntryFee 按名义价值计算进场手续费
	EntryFee(notional float64) float64
}

// FillEngine 决定订单是否成交、何时成交、以什么价格成交。
//
// 对价位 P 的买入限价单与K线 (O,H,L,C) 的判定：
//   - optimistic：触及即成交（L <= P）
//   - neutral：  再加开盘跳空规则（O >= P，跳空越过价位视为不可成交）
//     和插针过滤（总振幅低于 minRange 的触碰不算）
//   - strict：   neutral 基础上再加滑点惩罚和最小成交量过滤
//
// 卖出方向完全对称
type FillEngine struct {
	policy      model.FillPolicy
	pricePath   model.PricePath
	minRange    float64
	slippageBps float64
	minVolume   float64
}

func NewFillEngine(policy model.FillPolicy, pricePath model.PricePath, minRange, slippageBps, minVolume float64) *FillEngine {
	return &FillEngine{
		policy:      policy,
		pricePath:   pricePath,
		minRange:    minRange,
		slippageBps: slippageBps,
		minVolume:   minVolume,
	}
}

func (e *FillEngine) Policy() model.FillPolicy   { return e.policy }
func (e *FillEngine) PricePath() model.PricePath { return e.pricePath }

// slip 对成交价施加不利方向的滑点（仅 strict）
func (e *FillEngine) slip(price float64, side model.OrderSide) float64 {
	if e.policy != model.FillStrict || e.slippageBps == 0 {
		return price
	}
	return price * (1 + e.slippageBps/10000*side.Sign())
}

// AttemptFill 判定一张挂单对一根K线是否成交。
// 价格或数量非法属于致命输入错误，由调用方终止回测
func (e *FillEngine) AttemptFill(o *model.Order, k model.Kline) (FillResult, error) {
	if o.Quantity <= 0 {
		return FillResult{}, model.NewDataIntegrityError(k.OpenTime, "order %s: malformed quantity %.8f", o.ID, o.Quantity)
	}
	if o.Type != model.Market && o.Price <= 0 {
		return FillResult{}, model.NewDataIntegrityError(k.OpenTime, "order %s: malformed price %.8f", o.ID, o.Price)
	}

	// strict 策略的最小成交量过滤：流动性不足的K线不认可成交
	if e.policy == model.FillStrict && e.minVolume > 0 && k.Volume < e.minVolume {
		return FillResult{Outcome: NotFilled}, nil
	}

	switch o.Type {
	case model.Market:
		// 市价单在决策后的第一个可观测价格成交，即本根K线收盘价
		return FillResult{Outcome: Filled, Price: e.slip(k.Close, o.Side)}, nil
	case model.Limit:
		return e.attemptLimit(o, k), nil
	case model.Stop:
		return e.attemptStop(o, k), nil
	}
	return FillResult{}, model.NewDataIntegrityError(k.OpenTime, "order %s: unknown type %q", o.ID, o.Type)
}

func (e *FillEngine) attemptLimit(o *model.Order, k model.Kline) FillResult {
	p := o.Price

	touched := false
	gapped := false
	if o.Side == model.Buy {
		touched = k.Low <= p
		// 开盘价已在限价下方：价格跳空穿过了价位，真实市场中这张单
		// 要么早已成交要么根本排不到，按不可成交处理
		gapped = k.Open < p
	} else {
		touched = k.High >= p
		gapped = k.Open > p
	}

	if !touched {
		return FillResult{Outcome: NotFilled}
	}

	if e.policy == model.FillOptimistic {
		return FillResult{Outcome: Filled, Price: p}
	}

	if gapped {
		return FillResult{Outcome: NotFilled}
	}
	// 插针过滤：整根K线振幅过窄的触碰不算数
	if e.minRange > 0 && k.Range() < e.minRange {
		return FillResult{Outcome: NotFilled}
	}

	return FillResult{Outcome: Filled, Price: e.slip(p, o.Side)}
}

func (e *FillEngine) attemptStop(o *model.Order, k model.Kline) FillResult {
	p := o.Price

	touched := false
	gapped := false
	if o.Side == model.Buy {
		// 买入止损：价格上行触及触发价
		touched = k.High >= p
		gapped = k.Open > p
	} else {
		touched = k.Low <= p
		gapped = k.Open < p
	}

	if !touched {
		return FillResult{Outcome: NotFilled}
	}
	if e.policy == model.FillOptimistic {
		return FillResult{Outcome: Filled, Price: p}
	}
	if gapped {
		// 跳空越过触发价：按开盘价成交（触发单会追价）
		return FillResult{Outcome: Filled, Price: e.slip(k.Open, o.Side)}
	}
	if e.minRange > 0 && k.Range() < e.minRange {
		return FillResult{Outcome: NotFilled}
	}
	return FillResult{Outcome: Filled, Price: e.slip(p, o.Side)}
}

// EvaluateEntryBatch 按严格价格优先级评估一组进场挂单（网格/分批建仓）：
// 买单价高者先、卖单价低者先。每张单成交前先过保证金检查，
// 余量不足只拒绝这一张（返回结果里 Outcome=Rejected），回测继续。
// 返回的切片与排序后的订单一一对应
type EntryDecision struct {
	Order  *model.Order
	Result FillResult
	Fee    float64
}

func (e *FillEngine) EvaluateEntryBatch(orders []*model.Order, k model.Kline, acct MarginAccount) ([]EntryDecision, error) {
	sorted := make([]*model.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Side == model.Buy {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].Price < sorted[j].Price
	})

	decisions := make([]EntryDecision, 0, len(sorted))
	for _, o := range sorted {
		res, err := e.AttemptFill(o, k)
		if err != nil {
			return nil, err
		}
		if res.Outcome != Filled {
			decisions = append(decisions, EntryDecision{Order: o, Result: res})
			continue
		}

		notional := res.Price * o.Quantity
		fee := acct.EntryFee(notional)
		if err := acct.TryReserve(o.Symbol, o.Side, notional, fee); err != nil {
			cv, ok := err.(*model.ConstraintViolation)
			if !ok {
				return nil, err
			}
			decisions = append(decisions, EntryDecision{
				Order:  o,
				Result: FillResult{Outcome: Rejected, Reason: cv.Reason},
			})
			continue
		}

		decisions = append(decisions, EntryDecision{Order: o, Result: res, Fee: fee})
	}
	return decisions, nil
}

// ResolveExit 对一个已开仓位检查本根K线的TP/SL命中。
// 同一根K线内同时触及两者时按配置的价格路径假设裁决
// （默认不利结果优先，即止损先成交），结果是确定性的。
// 进场那根K线不参与离场判定，K线内部的价格路径不可知
func (e *FillEngine) ResolveExit(p *model.Position, k model.Kline) *ExitFill {
	if p.Closed || !k.CloseTime.After(p.OpenedAt) {
		return nil
	}

	var tpTouched, slTouched bool
	if p.Side == model.Buy {
		tpTouched = p.TPPrice > 0 && k.High >= p.TPPrice
		slTouched = p.SLPrice > 0 && k.Low <= p.SLPrice
	} else {
		tpTouched = p.TPPrice > 0 && k.Low <= p.TPPrice
		slTouched = p.SLPrice > 0 && k.High >= p.SLPrice
	}

	if !tpTouched && !slTouched {
		return nil
	}

	useSL := slTouched
	if tpTouched && slTouched {
		// 双触裁决：worst 取止损，best 取止盈
		useSL = e.pricePath == model.PathWorst
	} else if tpTouched {
		useSL = false
	}

	if useSL {
		return &ExitFill{Price: e.exitPrice(p, k, p.SLPrice, true), Reason: model.ExitStopLoss, At: k.CloseTime}
	}
	return &ExitFill{Price: e.exitPrice(p, k, p.TPPrice, false), Reason: model.ExitTakeProfit, At: k.CloseTime}
}

// exitPrice 离场成交价：正常情况按价位成交，开盘跳空越过价位时按开盘价
func (e *FillEngine) exitPrice(p *model.Position, k model.Kline, level float64, isStop bool) float64 {
	if p.Side == model.Buy {
		if isStop && k.Open < level {
			return k.Open
		}
		if !isStop && k.Open > level {
			return k.Open
		}
	} else {
		if isStop && k.Open > level {
			return k.Open
		}
		if !isStop && k.Open < level {
			return k.Open
		}
	}
	return level
}
