package logger

import (
	"os"

	"edgesim/conf"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 基于 zap 的全局日志，文件输出走 lumberjack 滚动

var lg *zap.Logger

// Pair 构造一个结构化日志字段
func Pair(key string, value any) zap.Field {
	return zap.Any(key, value)
}

// InitLogger 初始化全局日志实例，重复调用会覆盖之前的实例
func InitLogger(cfg *conf.LogConfig, appName string) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	if cfg.TimeFormat != "" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	} else {
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var cores []zapcore.Core

	if cfg.FileName != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level))
	}

	if cfg.Console || cfg.FileName == "" {
		consoleEnc := zap.NewDevelopmentEncoderConfig()
		if cfg.TimeFormat != "" {
			consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.AddSync(os.Stdout), level))
	}

	lg = zap.New(zapcore.NewTee(cores...), zap.Fields(zap.String("app", appName)))
}

func instance() *zap.Logger {
	if lg == nil {
		// 未初始化时兜底到标准输出，避免 nil panic
		lg, _ = zap.NewDevelopment()
	}
	return lg
}

func Debug(msg string, fields ...zap.Field) { instance().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { instance().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { instance().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { instance().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { instance().Fatal(msg, fields...) }

func Debugf(format string, args ...any) { instance().Sugar().Debugf(format, args...) }
func Infof(format string, args ...any)  { instance().Sugar().Infof(format, args...) }
func Warnf(format string, args ...any)  { instance().Sugar().Warnf(format, args...) }
func Errorf(format string, args ...any) { instance().Sugar().Errorf(format, args...) }

// Sync 刷新缓冲，进程退出前调用
func Sync() {
	if lg != nil {
		_ = lg.Sync()
	}
}
