package db

import (
	"log"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB   *gorm.DB
	once sync.Once
)

type Config struct {
	// sqlite 文件路径，回测结果作为独立产物文件落盘
	Path string
}

func Init(cfg Config) *gorm.DB {
	once.Do(func() {
		path := cfg.Path
		if path == "" {
			path = "edgesim.db"
		}

		var err error
		DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
	})
	return DB
}
