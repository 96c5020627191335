package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"edgesim/internal/consts"
	"edgesim/internal/model"

	"go.uber.org/multierr"
)

// CSVProvider 从CSV文件加载1分钟K线。
// 支持两种表头：
//
//	timestamp,open,high,low,close,volume            （单品种文件，品种取 defaultSymbol）
//	symbol,timestamp,open,high,low,close,volume     （多品种文件）
//
// 时间戳接受 unix 秒、unix 毫秒或 "2006-01-02 15:04:05"（按UTC解析）
type CSVProvider struct {
	Path          string
	DefaultSymbol string
}

func NewCSVProvider(path, defaultSymbol string) *CSVProvider {
	return &CSVProvider{Path: path, DefaultSymbol: defaultSymbol}
}

func (p *CSVProvider) Load() ([]model.Kline, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := indexColumns(header)
	if _, ok := col["timestamp"]; !ok {
		return nil, model.NewDataIntegrityError(time.Time{}, "csv header missing timestamp column: %v", header)
	}

	var (
		klines []model.Kline
		errs   error
		line   = 1
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		k, err := p.parseRow(row, col)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		klines = append(klines, k)
	}

	if errs != nil {
		return nil, model.NewDataIntegrityError(time.Time{}, "csv parse failed: %v", errs)
	}
	if len(klines) == 0 {
		return nil, model.NewDataIntegrityError(time.Time{}, "csv contains no candles: %s", p.Path)
	}
	return klines, nil
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

func (p *CSVProvider) parseRow(row []string, col map[string]int) (model.Kline, error) {
	get := func(name string) (string, error) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return "", fmt.Errorf("missing column %q", name)
		}
		return strings.TrimSpace(row[i]), nil
	}

	symbol := p.DefaultSymbol
	if i, ok := col["symbol"]; ok && i < len(row) {
		symbol = strings.TrimSpace(row[i])
	}

	tsRaw, err := get("timestamp")
	if err != nil {
		return model.Kline{}, err
	}
	openTime, err := parseTimestamp(tsRaw)
	if err != nil {
		return model.Kline{}, err
	}

	var vals [5]float64
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		raw, err := get(name)
		if err != nil {
			return model.Kline{}, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Kline{}, fmt.Errorf("column %q: %w", name, err)
		}
		vals[i] = v
	}

	k := model.Kline{
		Symbol:    symbol,
		Timeframe: model.Tf1m,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Minute),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		IsClosed:  true,
	}
	if err := k.Validate(); err != nil {
		return model.Kline{}, err
	}
	return k, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// 粗略界限：13位当毫秒，10位当秒
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(consts.TimeLayout, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
