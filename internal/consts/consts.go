package consts

const (
	DateLayout   = "2006-01-02"
	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"

	// 交易ID前缀，回测内的交易ID是确定性的自增序号
	TradeIdPrefix = "T-"

	// 策略可见的高级别K线历史窗口上限
	DefaultHistoryWindow = 500
)
