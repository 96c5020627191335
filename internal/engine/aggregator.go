package engine

import (
	"time"

	"edgesim/internal/consts"
	"edgesim/internal/model"
)

// 单个 (symbol, timeframe) 桶的累加器
type htfAccumulator struct {
	bucketStart time.Time
	open        float64
	high        float64
	low         float64
	close       float64
	volume      float64
	minutes     int
}

// Aggregator 把1分钟K线聚合成高级别K线。
// 高级别K线只在窗口被完整消费的那一刻收盘，绝不基于部分数据产出，
// 这是防未来函数的核心保证：策略看到某个高级别数值时，
// 它的全部构成分钟必然已经流过。
// 时间戳非单调或有缺口视为致命的数据完整性错误
type Aggregator struct {
	timeframes []model.Timeframe

	// symbol -> timeframe -> 进行中的桶
	accs map[string]map[model.Timeframe]*htfAccumulator
	// symbol -> 最近一根已消费的1m K线，用于连续性校验
	lastLtf map[string]model.Kline
	// symbol -> timeframe -> 已收盘历史（升序），策略的可见窗口
	cache map[string]map[model.Timeframe][]model.Kline

	historyWindow int
}

func NewAggregator(timeframes []model.Timeframe) *Aggregator {
	return &Aggregator{
		timeframes:    timeframes,
		accs:          make(map[string]map[model.Timeframe]*htfAccumulator),
		lastLtf:       make(map[string]model.Kline),
		cache:         make(map[string]map[model.Timeframe][]model.Kline),
		historyWindow: consts.DefaultHistoryWindow,
	}
}

// Consume 消费一根1m K线，返回本步收盘的高级别K线（按配置的周期顺序）。
// 返回 DataIntegrityError 时整个回测必须终止
func (a *Aggregator) Consume(k model.Kline) ([]model.Kline, error) {
	if k.Timeframe != model.Tf1m {
		return nil, model.NewDataIntegrityError(k.OpenTime, "aggregator expects 1m candles, got %s", k.Timeframe)
	}
	if err := k.Validate(); err != nil {
		return nil, model.NewDataIntegrityError(k.OpenTime, "%s %v", k.Symbol, err)
	}
	if k.CloseTime.Sub(k.OpenTime) != time.Minute {
		return nil, model.NewDataIntegrityError(k.OpenTime, "%s: 1m candle window is %s", k.Symbol, k.CloseTime.Sub(k.OpenTime))
	}

	// 连续性：下一根的开盘时间必须等于上一根的收盘时间，缺口不允许被默默插值
	if last, ok := a.lastLtf[k.Symbol]; ok {
		if !k.OpenTime.Equal(last.CloseTime) {
			return nil, model.NewDataIntegrityError(last.CloseTime,
				"%s: non-contiguous stream, expected open %s got %s",
				k.Symbol, last.CloseTime.UTC(), k.OpenTime.UTC())
		}
	}
	a.lastLtf[k.Symbol] = k

	var closes []model.Kline
	for _, tf := range a.timeframes {
		if closed := a.consumeOne(k, tf); closed != nil {
			closes = append(closes, *closed)
		}
	}
	return closes, nil
}

func (a *Aggregator) consumeOne(k model.Kline, tf model.Timeframe) *model.Kline {
	dur := tf.Duration()
	bucketStart := k.OpenTime.Truncate(dur)

	symAccs, ok := a.accs[k.Symbol]
	if !ok {
		symAccs = make(map[model.Timeframe]*htfAccumulator)
		a.accs[k.Symbol] = symAccs
	}

	acc, ok := symAccs[tf]
	if !ok {
		// 数据流从桶中间开始时，丢弃残缺的首个桶，等到对齐点再开始累计。
		// 高级别K线必须是窗口内全部分钟的纯函数
		if !k.OpenTime.Equal(bucketStart) {
			return nil
		}
		acc = &htfAccumulator{
			bucketStart: bucketStart,
			open:        k.Open,
			high:        k.High,
			low:         k.Low,
		}
		symAccs[tf] = acc
	} else {
		if k.High > acc.high {
			acc.high = k.High
		}
		if k.Low < acc.low {
			acc.low = k.Low
		}
	}

	acc.close = k.Close
	acc.volume += k.Volume
	acc.minutes++

	// 窗口完整消费的那一刻收盘
	if !k.CloseTime.Equal(acc.bucketStart.Add(dur)) {
		return nil
	}

	closed := model.Kline{
		Symbol:    k.Symbol,
		Timeframe: tf,
		OpenTime:  acc.bucketStart,
		CloseTime: acc.bucketStart.Add(dur),
		Open:      acc.open,
		High:      acc.high,
		Low:       acc.low,
		Close:     acc.close,
		Volume:    acc.volume,
		IsClosed:  true,
	}
	delete(symAccs, tf)
	a.store(closed)
	return &closed
}

// 存入历史缓存并裁剪窗口
func (a *Aggregator) store(k model.Kline) {
	symCache, ok := a.cache[k.Symbol]
	if !ok {
		symCache = make(map[model.Timeframe][]model.Kline)
		a.cache[k.Symbol] = symCache
	}
	lines := append(symCache[k.Timeframe], k)
	if len(lines) > a.historyWindow {
		lines = lines[len(lines)-a.historyWindow:]
	}
	symCache[k.Timeframe] = lines
}

// History 已收盘的高级别K线窗口（升序）
func (a *Aggregator) History(symbol string, tf model.Timeframe) []model.Kline {
	return a.cache[symbol][tf]
}
