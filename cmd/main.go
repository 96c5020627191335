package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"edgesim/conf"
	"edgesim/internal/consts"
	"edgesim/internal/dao"
	"edgesim/internal/data"
	"edgesim/internal/engine"
	"edgesim/internal/model"
	"edgesim/internal/strategy"
	"edgesim/pkg/db"
	"edgesim/pkg/logger"
	"edgesim/pkg/recorder"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// 回测引擎入口：run 执行一次回测，trace 回放一笔交易的事件链

var (
	cfgFile string
	outPath string

	traceDb    string
	traceRun   string
	traceTrade string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "edgesim",
		Short: "多周期K线回测引擎",
		Long:  "把1分钟历史K线回放给 setup/trigger 策略，产出可复现、可审计的模拟成交记录",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "执行一次回测并落盘结果",
		Run:   runBacktest,
	}
	runCmd.Flags().StringVarP(&cfgFile, "config", "c", "conf/config.yaml", "配置文件路径")
	runCmd.Flags().StringVar(&outPath, "out", "", "可选的JSONL导出路径（成交记录）")

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "回放一笔交易的完整事件链",
		Run:   runTrace,
	}
	traceCmd.Flags().StringVar(&traceDb, "db", "edgesim.db", "回测产物数据库路径")
	traceCmd.Flags().StringVar(&traceRun, "run", "", "运行ID，缺省取该交易ID最近一次出现的运行")
	traceCmd.Flags().StringVar(&traceTrade, "trade", "", "交易链ID，例如 T-000001")
	_ = traceCmd.MarkFlagRequired("trade")

	rootCmd.AddCommand(runCmd, traceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runBacktest(cmd *cobra.Command, args []string) {
	if err := conf.LoadConfig(cfgFile); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	appCfg := conf.AppConfig
	logger.InitLogger(&appCfg.Log, appCfg.AppName)
	defer logger.Sync()

	// 配置错误一律在启动阶段终止
	if err := appCfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", logger.Pair("error", err.Error()))
	}
	engineCfg, err := engine.NewConfig(appCfg.Backtest)
	if err != nil {
		logger.Fatal("invalid configuration", logger.Pair("error", err.Error()))
	}
	strat, err := strategy.New(appCfg.Strategy.Name, appCfg.Strategy.Params)
	if err != nil {
		logger.Fatal("invalid configuration", logger.Pair("error", err.Error()))
	}

	provider := data.NewCSVProvider(appCfg.Data.CsvPath, engineCfg.Symbols[0])
	stream, err := provider.Load()
	if err != nil {
		logger.Fatal("load market data failed", logger.Pair("error", err.Error()))
	}
	logger.Info("market data loaded",
		logger.Pair("candles", len(stream)),
		logger.Pair("start", stream[0].OpenTime),
		logger.Pair("end", stream[len(stream)-1].CloseTime))

	// 运行ID只是产物的外部元数据，不参与确定性的模拟过程
	runID := uuid.NewString()
	orch := engine.NewOrchestrator(engineCfg, strat, runID)

	run := &model.BacktestRun{
		RunID:      runID,
		Strategy:   strat.Name(),
		Symbols:    strings.Join(engineCfg.Symbols, ","),
		FillPolicy: engineCfg.FillPolicy,
		PricePath:  engineCfg.PricePath,
		DataStart:  stream[0].OpenTime,
		DataEnd:    stream[len(stream)-1].CloseTime,
		CreatedAt:  time.Now(),
	}

	report, runErr := orch.Run(stream)
	if runErr != nil {
		// 中止的运行不产出报告，但部分事件日志保留下来供诊断
		run.Status = "ABORTED"
		run.LastProcessed = orch.LastProcessed()
		run.ErrorMsg = runErr.Error()
		persist(run, nil, orch.Events(), appCfg.Db.Path)
		logger.Fatal("backtest aborted",
			logger.Pair("last_processed", orch.LastProcessed().Format(consts.TimeLayout)),
			logger.Pair("error", runErr.Error()))
	}

	run.Status = "COMPLETED"
	run.LastProcessed = orch.LastProcessed()
	persist(run, report.Trades, orch.Events(), appCfg.Db.Path)

	if outPath != "" {
		rec := recorder.NewJSONFileRecorder(outPath)
		for i := range report.Trades {
			if err := rec.Record(report.Trades[i]); err != nil {
				logger.Error("export trade failed", logger.Pair("error", err.Error()))
				break
			}
		}
	}

	s := report.Summary
	logger.Info("backtest completed",
		logger.Pair("run_id", runID),
		logger.Pair("trades", s.TotalTrades),
		logger.Pair("win_rate", fmt.Sprintf("%.2f%%", s.WinRate)),
		logger.Pair("pnl", fmt.Sprintf("%.4f", s.TotalPnl)),
		logger.Pair("fees", fmt.Sprintf("%.4f", s.TotalFees)),
		logger.Pair("max_drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdownPct)),
		logger.Pair("final_equity", fmt.Sprintf("%.4f", s.FinalEquity)),
		logger.Pair("events", len(orch.Events())))
}

func persist(run *model.BacktestRun, trades []model.TradeRecord, events []model.Event, dbPath string) {
	datasource := db.Init(db.Config{Path: dbPath})
	reportDao, err := dao.NewReportDao(datasource)
	if err != nil {
		logger.Error("init report dao failed", logger.Pair("error", err.Error()))
		return
	}
	if err := reportDao.SaveReport(context.Background(), run, trades, events); err != nil {
		logger.Error("persist report failed", logger.Pair("error", err.Error()))
	}
}

func runTrace(cmd *cobra.Command, args []string) {
	datasource := db.Init(db.Config{Path: traceDb})
	reportDao, err := dao.NewReportDao(datasource)
	if err != nil {
		fmt.Printf("open database failed: %v\n", err)
		os.Exit(1)
	}

	runID := traceRun
	if runID == "" {
		runID, err = latestRunForTrade(datasource, traceTrade)
		if err != nil {
			fmt.Printf("locate run for trade %s failed: %v\n", traceTrade, err)
			os.Exit(1)
		}
	}

	events, err := reportDao.GetEventsByTradeID(context.Background(), runID, traceTrade)
	if err != nil {
		fmt.Printf("query events failed: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Printf("no events for trade %s in run %s\n", traceTrade, runID)
		return
	}

	fmt.Printf("trade %s (run %s):\n", traceTrade, runID)
	for _, ev := range events {
		fmt.Printf("  #%-6d %s  %-16s %s\n",
			ev.ID, ev.Timestamp.UTC().Format(consts.TimeLayout), ev.Type, ev.Details)
	}
}

// latestRunForTrade 该交易ID最近一次出现的运行
func latestRunForTrade(datasource *gorm.DB, tradeID string) (string, error) {
	var ev model.Event
	err := datasource.
		Where("trade_id = ?", tradeID).
		Order("row_id desc").
		First(&ev).Error
	if err != nil {
		return "", err
	}
	return ev.RunID, nil
}
