package engine

import (
	"time"

	"edgesim/internal/model"
)

// EventRecorder 只追加的审计日志。
// ID 从1开始严格单调递增，时间戳取模拟时钟，条目一旦追加不再修改。
// 按 trade_id 建索引，用于回放一笔交易的完整因果链
type EventRecorder struct {
	runID   string
	events  []model.Event
	nextID  uint64
	byTrade map[string][]int
}

func NewEventRecorder(runID string) *EventRecorder {
	return &EventRecorder{
		runID:   runID,
		nextID:  1,
		byTrade: make(map[string][]int),
	}
}

// Append 追加一条事件并返回分配的ID
func (r *EventRecorder) Append(ts time.Time, typ model.EventType, symbol, tradeID, details string) uint64 {
	id := r.nextID
	r.nextID++

	r.events = append(r.events, model.Event{
		ID:        id,
		RunID:     r.runID,
		Timestamp: ts,
		Type:      typ,
		Symbol:    symbol,
		TradeID:   tradeID,
		Details:   details,
	})
	if tradeID != "" {
		r.byTrade[tradeID] = append(r.byTrade[tradeID], len(r.events)-1)
	}
	return id
}

// Events 全部事件，严格按模拟时钟顺序
func (r *EventRecorder) Events() []model.Event {
	return r.events
}

// ByTradeID 一笔交易的完整事件链（signal → setup → trigger → fill → exit）
func (r *EventRecorder) ByTradeID(tradeID string) []model.Event {
	idxs, ok := r.byTrade[tradeID]
	if !ok {
		return nil
	}
	out := make([]model.Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, r.events[i])
	}
	return out
}

func (r *EventRecorder) Len() int {
	return len(r.events)
}
