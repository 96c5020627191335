package model

import "time"

// EntryLeg 一条进场腿。网格/分批建仓的信号带多条腿
type EntryLeg struct {
	Type     OrderType `json:"type"`
	Price    float64   `json:"price"` // 市价腿为0
	Quantity float64   `json:"quantity"`
}

// Signal 策略在高级别收盘时给出的开仓预案。
// 引擎只负责照预案生成订单，预案的合理性由策略自己负责
type Signal struct {
	Symbol  string    `json:"symbol"`
	Side    OrderSide `json:"side"`
	Comment string    `json:"comment"`

	// 默认触发条件：低级别K线触及该价位。
	// 策略可以在 EvaluateTrigger 里实现更复杂的微观结构判断
	TriggerLevel float64 `json:"trigger_level"`

	Entries []EntryLeg `json:"entries"`
	TPPrice float64    `json:"tp_price"`
	SLPrice float64    `json:"sl_price"`

	// 信号产生的高级别收盘时间
	CreatedAt time.Time `json:"created_at"`
}

// TriggerHit 触发命中，带命中K线的时间和价格
type TriggerHit struct {
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
}
