package dao

import (
	"context"

	"edgesim/internal/model"

	"gorm.io/gorm"
)

// ReportDao 回测产物的持久化边界：运行元数据、成交记录和事件日志
type ReportDao interface {
	// 事务性地保存一次运行的全部产物
	SaveReport(ctx context.Context, run *model.BacktestRun, trades []model.TradeRecord, events []model.Event) error
	// 按交易链ID重建一笔交易的完整事件链（按事件ID升序）。
	// 交易ID在单次运行内才唯一，所以按 run 限定
	GetEventsByTradeID(ctx context.Context, runID, tradeID string) ([]model.Event, error)
	GetRun(ctx context.Context, runID string) (*model.BacktestRun, error)
	GetTrades(ctx context.Context, runID string) ([]model.TradeRecord, error)
}

type reportDao struct {
	db *gorm.DB
}

func NewReportDao(db *gorm.DB) (ReportDao, error) {
	if err := db.AutoMigrate(&model.BacktestRun{}, &model.TradeRecord{}, &model.Event{}); err != nil {
		return nil, err
	}
	return &reportDao{db: db}, nil
}

func (d *reportDao) SaveReport(ctx context.Context, run *model.BacktestRun, trades []model.TradeRecord, events []model.Event) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 200).Error; err != nil {
				return err
			}
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(events, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *reportDao) GetEventsByTradeID(ctx context.Context, runID, tradeID string) ([]model.Event, error) {
	var events []model.Event
	err := d.db.WithContext(ctx).
		Where("run_id = ? AND trade_id = ?", runID, tradeID).
		Order("event_id asc").
		Find(&events).Error
	return events, err
}

func (d *reportDao) GetRun(ctx context.Context, runID string) (*model.BacktestRun, error) {
	var run model.BacktestRun
	if err := d.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *reportDao) GetTrades(ctx context.Context, runID string) ([]model.TradeRecord, error) {
	var trades []model.TradeRecord
	err := d.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id asc").
		Find(&trades).Error
	return trades, err
}
