package model

import "time"

// BacktestRun 一次回测运行的元数据行
type BacktestRun struct {
	RunID    string `gorm:"column:run_id;primaryKey" json:"run_id"`
	Strategy string `gorm:"column:strategy" json:"strategy"`
	Symbols  string `gorm:"column:symbols" json:"symbols"`

	FillPolicy FillPolicy `gorm:"column:fill_policy" json:"fill_policy"`
	PricePath  PricePath  `gorm:"column:price_path" json:"price_path"`

	DataStart time.Time `gorm:"column:data_start" json:"data_start"`
	DataEnd   time.Time `gorm:"column:data_end" json:"data_end"`

	// COMPLETED 或 ABORTED
	Status string `gorm:"column:status" json:"status"`
	// 中止时最后一根成功处理的K线时间与错误信息
	LastProcessed time.Time `gorm:"column:last_processed" json:"last_processed"`
	ErrorMsg      string    `gorm:"column:error_msg" json:"error_msg"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

// Summary 汇总指标
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // 0-100
	TotalPnl    float64 `json:"total_pnl"`
	TotalFees   float64 `json:"total_fees"`
	// 权益曲线的最大回撤百分比（正数）
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	FinalEquity    float64 `json:"final_equity"`
}

// Report 完整回测结果：成交列表 + 汇总指标
type Report struct {
	RunID   string        `json:"run_id"`
	Trades  []TradeRecord `json:"trades"`
	Summary Summary       `json:"summary"`
}
