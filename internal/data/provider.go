package data

import (
	"edgesim/internal/model"
)

// Provider 行情数据源边界：返回有序、无缺口的1分钟K线序列。
// 缺口由聚合器作为致命错误暴露，绝不默默插值
type Provider interface {
	Load() ([]model.Kline, error)
}
