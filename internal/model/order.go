package model

import (
	"time"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Sign 多头为+1，空头为-1，用于统一盈亏方向计算
func (s OrderSide) Sign() float64 {
	if s == Buy {
		return 1
	}
	return -1
}

func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	// 市价单
	Market OrderType = "market"
	// 限价单
	Limit OrderType = "limit"
	// 止损触发单
	Stop OrderType = "stop"
)

type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderRejected OrderStatus = "REJECTED"
)

// FillPolicy 成交判定的严格程度
type FillPolicy string

const (
	// 触及即成交
	FillOptimistic FillPolicy = "optimistic"
	// 触及 + 开盘跳空规则 + 插针过滤
	FillNeutral FillPolicy = "neutral"
	// neutral 基础上再加滑点惩罚和最小成交量过滤
	FillStrict FillPolicy = "strict"
)

// PricePath 同一根K线内同时触及TP/SL时的价格路径假设
type PricePath string

const (
	// 不利结果优先（默认，SL先成交）
	PathWorst PricePath = "worst"
	// 有利结果优先（TP先成交）
	PathBest PricePath = "best"
)

// SetupPolicy 等待触发期间又出现新确认信号时的处理方式
type SetupPolicy string

const (
	// 忽略新信号，先到先得
	SetupIgnore SetupPolicy = "ignore"
	// 新信号替换旧信号
	SetupReplace SetupPolicy = "replace"
)

type Order struct {
	ID      string
	TradeID string // 所属交易链ID，贯穿 setup → trigger → fill → exit
	Symbol  string
	Side    OrderSide
	Type    OrderType

	Price    float64 // 限价/触发价，市价单为0
	Quantity float64

	TPPrice float64
	SLPrice float64

	Status     OrderStatus
	CreatedAt  time.Time
	FillPolicy FillPolicy

	// 成交后追加的元数据，订单一旦 FILLED/REJECTED 其余字段不再变更
	FilledAt     time.Time
	FillPrice    float64
	RejectReason string
}

// Fill 单次成交
type Fill struct {
	OrderID  string    `json:"order_id"`
	TradeID  string    `json:"trade_id"`
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Fee      float64   `json:"fee"`
	At       time.Time `json:"at"`
	// 是否开仓方向成交（false 表示平仓）
	IsEntry bool `json:"is_entry"`
}
