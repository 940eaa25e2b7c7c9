package main

import (
	"context"
	"os"
	"time"

	"campusrunner/internal/config"
	"campusrunner/internal/db"
	"campusrunner/internal/importer"
	"campusrunner/internal/logging"
	catalogrepo "campusrunner/internal/repository/catalog"
	catalogsvc "campusrunner/internal/service/catalog"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var filePath string
	pflag.StringVarP(&filePath, "file", "f", "", "Path to catalog CSV (category,name,price,unit,available)")
	pflag.Parse()

	if filePath == "" {
		pflag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New("importer", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.String("file", filePath), zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, catalogsvc.New(catalogrepo.NewPostgres(pool)))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	logger.Info("import finished", zap.Int("items", count), zap.Duration("took", time.Since(start).Truncate(time.Millisecond)))
}
