package main

import (
	"context"
	"os"

	"campusrunner/internal/config"
	"campusrunner/internal/db"
	"campusrunner/internal/logging"
	"campusrunner/internal/migrate"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	down := pflag.Bool("down", false, "roll back every applied migration")
	version := pflag.Bool("version", false, "print the applied schema version and exit")
	pflag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New("migrate", cfg.LogLevel)
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

	switch {
	case *version:
		v, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			logger.Fatal("read schema version", zap.Error(err))
		}
		logger.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		if dirty {
			os.Exit(1)
		}
	case *down:
		if err := migrate.Rollback(ctx, pool); err != nil {
			logger.Fatal("roll back migrations", zap.Error(err))
		}
		logger.Info("migrations rolled back")
	default:
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}
}
