package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/app/snapshotapp"
	"github.com/cursivehq/revenue/internal/config"
	"github.com/cursivehq/revenue/internal/infra/logger"
)

func main() {
	configPath := flag.String("config", "", "config file, overrides APP_CONFIG")
	once := flag.Bool("once", false, "take a single snapshot and exit")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("APP_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := snapshotapp.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("create snapshot app", zap.Error(err))
	}
	defer app.Close()

	if *once {
		snap, err := app.RunOnce(ctx)
		if err != nil {
			log.Fatal("snapshot failed", zap.Error(err))
		}
		log.Info("snapshot stored", zap.String("snapshot_id", snap.ID), zap.String("object_key", snap.ObjectKey))
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatal("snapshot app failed", zap.Error(err))
	}
}
