package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/service/charges/v1/charges"
	"github.com/asunaverse/equipledger/internal/storage/v1/inpsql"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	wg := &sync.WaitGroup{}

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

	// initialize queue consumer
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	consumer, err := charges.InitConsumer(ctx, awssqs.NewFromConfig(awsCfg), st, cfg.QueueConfig, cfg.CommerceConfig, log, wg)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg("charge reader start attempted")
	consumer.ListenAndProcess()

	// set a listener for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Info().Msg("charge reader shutdown attempted")
	cancel()
	wg.Wait()
	log.Info().Msg("charge reader shutdown succeeded")
}
