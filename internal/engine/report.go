package engine

import (
	"edgesim/internal/model"
)

// buildSummary 汇总成交列表为报告指标
func buildSummary(trades []model.TradeRecord, ledger *PositionLedger, lastClose map[string]float64) model.Summary {
	s := model.Summary{
		TotalTrades: len(trades),
	}
	for _, t := range trades {
		s.TotalPnl += t.Pnl
		s.TotalFees += t.Fees
		if t.Pnl >= 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = 100 * float64(s.Wins) / float64(s.TotalTrades)
	}
	s.MaxDrawdownPct = ledger.MaxDrawdownPct()
	s.FinalEquity = ledger.Equity(lastClose)
	return s
}
