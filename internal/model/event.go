package model

import "time"

type EventType string

const (
	EventSetupConfirmed EventType = "SETUP_CONFIRMED"
	EventSetupExpired   EventType = "SETUP_EXPIRED"
	EventSetupReplaced  EventType = "SETUP_REPLACED"
	EventTriggerHit     EventType = "TRIGGER_HIT"
	EventOrderCreated   EventType = "ORDER_CREATED"
	EventOrderFilled    EventType = "ORDER_FILLED"
	EventOrderRejected  EventType = "ORDER_REJECTED"
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventRunAborted     EventType = "RUN_ABORTED"
)

// Event 审计日志条目，追加后不可变，ID 严格单调递增
type Event struct {
	// 数据库代理主键，引擎内不使用
	RowID uint64 `gorm:"column:row_id;primaryKey" json:"-"`
	// 引擎分配的事件ID，每次运行从1开始严格单调递增
	ID        uint64    `gorm:"column:event_id;index" json:"id"`
	RunID     string    `gorm:"column:run_id;index" json:"run_id"`
	Timestamp time.Time `gorm:"column:timestamp" json:"timestamp"` // 模拟时钟时间，不是墙上时钟
	Type      EventType `gorm:"column:type" json:"type"`
	Symbol    string    `gorm:"column:symbol" json:"symbol"`
	// 所属交易链ID，不属于任何交易的事件为空
	TradeID string `gorm:"column:trade_id;index" json:"trade_id,omitempty"`
	Details string `gorm:"column:details" json:"details"`
}

func (Event) TableName() string {
	return "events"
}
