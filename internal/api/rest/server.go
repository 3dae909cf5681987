// Package rest provides functionality for initializing a server
package rest

import (
	"net/http"
	"time"

	"github.com/asunaverse/equipledger/internal/api/rest/handlers"
	"github.com/asunaverse/equipledger/internal/api/rest/middleware"
	"github.com/asunaverse/equipledger/internal/coinbase/v1"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/service/accounts/v1/accounts"
	"github.com/asunaverse/equipledger/internal/service/billing/v1/billing"
	"github.com/asunaverse/equipledger/internal/service/equip/v1"
	"github.com/asunaverse/equipledger/internal/service/secretary/v1/secretary"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(cfg *config.Config, st storage.Storage, equipService equip.Processor, log *zerolog.Logger) (server *http.Server, err error) {
	// initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize accounts service
	accountsService, err := accounts.InitService(st, secretaryService, log)
	if err != nil {
		return nil, err
	}

	// initialize billing service
	commerceClient := coinbase.InitClient(cfg.CommerceConfig, log)
	billingService, err := billing.InitService(st, commerceClient, cfg.CommerceConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(secretaryService)
	if err != nil {
		return nil, err
	}

	urlHandler, err := handlers.InitHandlers(accountsService, equipService, billingService, cfg.ServerConfig, log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	loginGroup := r.Group(nil)
	loginGroup.Post("/api/auth/login", urlHandler.HandleLogin())
	loginGroup.Get("/api/asunas/{asunaID}/requests", urlHandler.HandleGetRequests())
	mainGroup := r.Group(nil)
	mainGroup.Use(tokenHandler.TokenHandle)
	mainGroup.Get("/api/wallet/balance", urlHandler.HandleGetBalance())
	mainGroup.Post("/api/requests", urlHandler.HandleNewRequests())
	mainGroup.Post("/api/charges", urlHandler.HandleNewCharge())

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}
