package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asunaverse/equipledger/internal/api/rest"
	"github.com/asunaverse/equipledger/internal/chain/v1/holder"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/events/v1/eventbridge"
	"github.com/asunaverse/equipledger/internal/indexer/v1"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/service/equip/v1/equip"
	"github.com/asunaverse/equipledger/internal/service/outbox/v1/outbox"
	"github.com/asunaverse/equipledger/internal/signer/v1/kms"
	"github.com/asunaverse/equipledger/internal/storage/v1/inpsql"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/ethclient"
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

	// initialize AWS clients
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize chain signer and holder contract
	signerService, err := kms.InitSigner(awskms.NewFromConfig(awsCfg), cfg.SignerConfig.KeyID, big.NewInt(cfg.ChainConfig.ChainID), log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	rpcClient, err := ethclient.Dial(cfg.ChainConfig.RPCAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	holderContract, err := holder.InitContract(rpcClient, signerService, cfg.ChainConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize equip service
	indexerClient := indexer.InitClient(cfg.IndexerConfig, log)
	equipService, err := equip.InitService(st, indexerClient, holderContract, cfg.EventsConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize outbox dispatcher
	publisher := eventbridge.InitPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventsConfig, log)
	dispatcher := outbox.InitDispatcher(ctx, st, publisher, cfg.EventsConfig, log, wg)
	dispatcher.ListenAndDispatch()

	// initialize server
	server, err := rest.InitServer(cfg, st, equipService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// set a listener for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-done
		log.Info().Msg("server shutdown attempted")
		ctxTO, cancelTO := context.WithTimeout(ctx, 5*time.Second)
		defer cancelTO()
		if err := server.Shutdown(ctxTO); err != nil {
			log.Fatal().Err(err).Msg("server shutdown failed")
		}
		cancel()
	}()

	// start up the server
	log.Info().Msg("server start attempted")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("")
	}
	wg.Wait()
	log.Info().Msg("server shutdown succeeded")
}
