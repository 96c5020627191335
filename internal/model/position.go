package model

import (
	"time"
)

type ExitReason string

const (
	ExitTakeProfit    ExitReason = "TAKE_PROFIT"
	ExitStopLoss      ExitReason = "STOP_LOSS"
	ExitManual        ExitReason = "MANUAL"
	ExitEndOfBacktest ExitReason = "END_OF_BACKTEST"
)

// Position 一笔持仓，由首次进场成交创建，OPEN → CLOSED 只发生一次
type Position struct {
	ID     string // 等于交易链ID
	Symbol string
	Side   OrderSide

	// 按成交顺序保存的进场成交列表
	EntryFills []Fill
	// 按成交量加权的开仓均价，仅在进场成交时重算
	AvgEntryPrice float64
	Quantity      float64

	TPPrice  float64
	SLPrice  float64
	Leverage int

	SignalTime time.Time // setup 确认时间
	OpenedAt   time.Time
	ClosedAt   time.Time
	ExitReason ExitReason
	ExitPrice  float64
	Closed     bool

	// 持仓期间的峰值不利/有利波动（杠杆ROI百分比），幅度单调递增，平仓后冻结
	MAE float64
	MFE float64

	// 累计手续费 + 资金费
	FeesPaid float64
}

// ApplyEntryFill 追加一笔进场成交并重算加权均价
func (p *Position) ApplyEntryFill(f Fill) {
	p.EntryFills = append(p.EntryFills, f)
	p.FeesPaid += f.Fee

	total := 0.0
	notional := 0.0
	for _, ef := range p.EntryFills {
		total += ef.Quantity
		notional += ef.Price * ef.Quantity
	}
	p.Quantity = total
	if total > 0 {
		p.AvgEntryPrice = notional / total
	}
}

// LeveragedRoiPct 给定标记价格下的杠杆ROI百分比
func (p *Position) LeveragedRoiPct(price float64) float64 {
	if p.AvgEntryPrice == 0 {
		return 0
	}
	return (price - p.AvgEntryPrice) / p.AvgEntryPrice * p.Side.Sign() * float64(p.Leverage) * 100
}

// UpdateExcursions 用一根K线的极值刷新 MAE/MFE，平仓后不再变化
func (p *Position) UpdateExcursions(k Kline) {
	if p.Closed || p.Quantity == 0 {
		return
	}

	// 多头的最不利价格是最低价，空头相反
	adversePrice := k.Low
	favorablePrice := k.High
	if p.Side == Sell {
		adversePrice = k.High
		favorablePrice = k.Low
	}

	if roi := p.LeveragedRoiPct(adversePrice); roi < p.MAE {
		p.MAE = roi
	}
	if roi := p.LeveragedRoiPct(favorablePrice); roi > p.MFE {
		p.MFE = roi
	}
}

// UnrealizedPnl 未实现盈亏（未扣手续费）
func (p *Position) UnrealizedPnl(price float64) float64 {
	return (price - p.AvgEntryPrice) * p.Quantity * p.Side.Sign()
}

// TradeRecord 平仓后由 Position 一比一导出的最终成交记录，生成后不可变
type TradeRecord struct {
	ID      uint   `gorm:"column:id;primaryKey" json:"-"`
	RunID   string `gorm:"column:run_id;index" json:"run_id"`
	TradeID string `gorm:"column:trade_id;index" json:"trade_id"`
	Symbol  string `gorm:"column:symbol" json:"symbol"`

	Side       OrderSide  `gorm:"column:side" json:"side"`
	SignalTime time.Time  `gorm:"column:signal_time" json:"signal_time"`
	EntryTime  time.Time  `gorm:"column:entry_time" json:"entry_time"`
	EntryPrice float64    `gorm:"column:entry_price" json:"entry_price"`
	Quantity   float64    `gorm:"column:quantity" json:"quantity"`
	ExitTime   time.Time  `gorm:"column:exit_time" json:"exit_time"`
	ExitPrice  float64    `gorm:"column:exit_price" json:"exit_price"`
	ExitReason ExitReason `gorm:"column:exit_reason" json:"exit_reason"`

	// 信号确认到实际进场的延迟
	ExecutionDelay time.Duration `gorm:"column:execution_delay" json:"execution_delay"`
	FillPolicyUsed FillPolicy    `gorm:"column:fill_policy_used" json:"fill_policy_used"`
	// 本笔使用的价格路径假设
	PricePathUsed PricePath `gorm:"column:price_path_used" json:"price_path_used"`

	Pnl  float64 `gorm:"column:pnl" json:"pnl"`
	Fees float64 `gorm:"column:fees" json:"fees"`
	MAE  float64 `gorm:"column:mae" json:"mae"`
	MFE  float64 `gorm:"column:mfe" json:"mfe"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
