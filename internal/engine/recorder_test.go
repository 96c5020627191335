package engine

import (
	"testing"
	"time"

	"edgesim/internal/model"
)

func TestRecorderMonotonicIds(t *testing.T) {
	rec := NewEventRecorder("run-1")

	for i := 0; i < 5; i++ {
		id := rec.Append(t0.Add(time.Duration(i)*time.Minute), model.EventSetupConfirmed, "BTC/USDT", "", "")
		if id != uint64(i+1) {
			t.Fatalf("event %d: id = %d, want %d", i, id, i+1)
		}
	}

	events := rec.Events()
	if len(events) != 5 || rec.Len() != 5 {
		t.Fatalf("len = %d/%d, want 5", len(events), rec.Len())
	}
	for i := 1; i < len(events); i++ {
		if events[i].ID <= events[i-1].ID {
			t.Errorf("ids not strictly increasing at index %d", i)
		}
	}
	if events[0].RunID != "run-1" {
		t.Errorf("run id = %q", events[0].RunID)
	}
}

func TestRecorderTradeChain(t *testing.T) {
	rec := NewEventRecorder("run-1")

	rec.Append(t0, model.EventSetupConfirmed, "BTC/USDT", "T-000001", "setup")
	rec.Append(t0.Add(time.Minute), model.EventSetupConfirmed, "ETH/USDT", "T-000002", "setup")
	rec.Append(t0.Add(2*time.Minute), model.EventTriggerHit, "BTC/USDT", "T-000001", "trigger")
	rec.Append(t0.Add(3*time.Minute), model.EventOrderFilled, "BTC/USDT", "T-000001", "fill")
	rec.Append(t0.Add(4*time.Minute), model.EventRunAborted, "", "", "not part of any trade")

	chain := rec.ByTradeID("T-000001")
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	want := []model.EventType{model.EventSetupConfirmed, model.EventTriggerHit, model.EventOrderFilled}
	for i, typ := range want {
		if chain[i].Type != typ {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].Type, typ)
		}
	}

	if rec.ByTradeID("T-999999") != nil {
		t.Error("unknown trade id should return nil")
	}
}
