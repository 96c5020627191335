package model

import (
	"fmt"
	"time"
)

// K线周期，基础周期固定为1分钟，高级别周期由聚合器推导
type Timeframe string

const (
	Tf1m  Timeframe = "1m"
	Tf5m  Timeframe = "5m"
	Tf15m Timeframe = "15m"
	Tf30m Timeframe = "30m"
	Tf1h  Timeframe = "1h"
	Tf4h  Timeframe = "4h"
	Tf1d  Timeframe = "1d"
)

var tfDurations = map[Timeframe]time.Duration{
	Tf1m:  time.Minute,
	Tf5m:  5 * time.Minute,
	Tf15m: 15 * time.Minute,
	Tf30m: 30 * time.Minute,
	Tf1h:  time.Hour,
	Tf4h:  4 * time.Hour,
	Tf1d:  24 * time.Hour,
}

// ParseTimeframe 解析配置中的周期字符串，未知周期返回错误
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := tfDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe: %q", s)
	}
	return tf, nil
}

func (tf Timeframe) Duration() time.Duration {
	return tfDurations[tf]
}

func (tf Timeframe) String() string {
	return string(tf)
}

type Kline struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`  // 窗口起点（含）
	CloseTime time.Time `json:"close_time"` // 窗口终点（不含）
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	// 窗口是否已完整消费。聚合器保证该标志只翻转一次
	IsClosed bool `json:"is_closed"`
}

// Validate 检查单根K线自身的数据完整性
func (k *Kline) Validate() error {
	if k.High < k.Low {
		return fmt.Errorf("invalid ohlc: high %.8f < low %.8f", k.High, k.Low)
	}
	if k.Open < k.Low || k.Open > k.High {
		return fmt.Errorf("invalid ohlc: open %.8f outside [low, high]", k.Open)
	}
	if k.Close < k.Low || k.Close > k.High {
		return fmt.Errorf("invalid ohlc: close %.8f outside [low, high]", k.Close)
	}
	if k.Volume < 0 {
		return fmt.Errorf("invalid volume: %.8f", k.Volume)
	}
	if !k.CloseTime.After(k.OpenTime) {
		return fmt.Errorf("invalid window: close_time not after open_time")
	}
	return nil
}

// Range K线总振幅，用于插针过滤
func (k *Kline) Range() float64 {
	return k.High - k.Low
}
