package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/indexer/v1"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/service/reconciler/v1/reconciler"
	"github.com/asunaverse/equipledger/internal/storage/v1/inpsql"
	"github.com/robfig/cron/v3"
)

func main() {
	log := logger.InitLog()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// get configuration
	cfg, err := config.NewConfiguration()
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	cfg.ParseFlags()

	// initialize storage
	st, err := inpsql.InitStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize reconciliation service
	indexerClient := indexer.InitClient(cfg.IndexerConfig, log)
	reconcilerService, err := reconciler.InitService(st, indexerClient, cfg.ReconcilerConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// schedule reconciliation passes
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ReconcilerConfig.Schedule, func() {
		if err := reconcilerService.Run(ctx); err != nil {
			log.Error().Err(err).Msg("reconciliation pass failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg("reconciler start attempted")
	scheduler.Start()

	// set a listener for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Info().Msg("reconciler shutdown attempted")
	cancel()
	<-scheduler.Stop().Done()
	log.Info().Msg("reconciler shutdown succeeded")
}
