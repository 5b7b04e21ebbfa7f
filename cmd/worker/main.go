package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/internal/app"
	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	a, err := app.Get(context.Background(), log)
	if err != nil {
		log.Error("Failed to wire application", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	redisCfg := cfg.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	ingestWorker, err := worker.NewIngestWorker(workerCfg, a.Pipeline, log)
	if err != nil {
		log.Error("Failed to create ingest worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	ingestWorker.Stop()
	log.Info("Worker stopped")
}
