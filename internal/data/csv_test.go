package data

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edgesim/internal/model"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klines.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSingleSymbolFile(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704153600,100,101,99,100.5,12.5
1704153660,100.5,102,100,101,8
`)

	klines, err := NewCSVProvider(path, "BTC/USDT").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(klines) != 2 {
		t.Fatalf("got %d klines, want 2", len(klines))
	}

	k := klines[0]
	if k.Symbol != "BTC/USDT" {
		t.Errorf("symbol = %q, want default BTC/USDT", k.Symbol)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !k.OpenTime.Equal(want) || !k.CloseTime.Equal(want.Add(time.Minute)) {
		t.Errorf("window = [%v, %v)", k.OpenTime, k.CloseTime)
	}
	if k.Open != 100 || k.High != 101 || k.Low != 99 || k.Close != 100.5 || k.Volume != 12.5 {
		t.Errorf("OHLCV mismatch: %+v", k)
	}
	if k.Timeframe != model.Tf1m || !k.IsClosed {
		t.Errorf("kline must be a closed 1m candle: %+v", k)
	}
}

func TestLoadMultiSymbolAndLayouts(t *testing.T) {
	// symbol列 + 毫秒时间戳 + 可读时间混用
	path := writeCSV(t, `symbol,timestamp,open,high,low,close,volume
BTC/USDT,1704153600000,100,101,99,100.5,1
ETH/USDT,2024-01-02 00:00:00,50,51,49,50.5,2
`)

	klines, err := NewCSVProvider(path, "").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if klines[0].Symbol != "BTC/USDT" || klines[1].Symbol != "ETH/USDT" {
		t.Errorf("symbols = %q / %q", klines[0].Symbol, klines[1].Symbol)
	}
	if !klines[0].OpenTime.Equal(klines[1].OpenTime) {
		t.Errorf("timestamp layouts disagree: %v vs %v", klines[0].OpenTime, klines[1].OpenTime)
	}
}

func TestLoadAggregatesRowErrors(t *testing.T) {
	// 两行都有问题：非法时间戳 + high < low
	path := writeCSV(t, `timestamp,open,high,low,close,volume
not-a-time,100,101,99,100.5,1
1704153660,100,99,101,100,1
`)

	_, err := NewCSVProvider(path, "BTC/USDT").Load()
	var die *model.DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
	// 逐行错误聚合后一次性报告
	msg := err.Error()
	for _, frag := range []string{"line 2", "line 3"} {
		if !strings.Contains(msg, frag) {
			t.Errorf("error %q should mention %q", msg, frag)
		}
	}
}

func TestLoadRejectsEmptyAndHeaderless(t *testing.T) {
	empty := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	var die *model.DataIntegrityError
	if _, err := NewCSVProvider(empty, "BTC/USDT").Load(); !errors.As(err, &die) {
		t.Errorf("empty file: expected DataIntegrityError, got %v", err)
	}

	noTs := writeCSV(t, "open,high,low,close,volume\n100,101,99,100,1\n")
	if _, err := NewCSVProvider(noTs, "BTC/USDT").Load(); !errors.As(err, &die) {
		t.Errorf("missing timestamp column: expected DataIntegrityError, got %v", err)
	}
}
