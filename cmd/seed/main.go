package main

import (
	"context"

	"campusrunner/internal/config"
	"campusrunner/internal/db"
	"campusrunner/internal/logging"
	catalogrepo "campusrunner/internal/repository/catalog"
	"campusrunner/internal/seed"
	catalogsvc "campusrunner/internal/service/catalog"

	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("seed", cfg.LogLevel)
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

	count, err := seed.Apply(ctx, catalogsvc.New(catalogrepo.NewPostgres(pool)))
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.Int("items", count))
}
