// Package billing implements hosted charge creation for credit top-ups.
package billing

import (
	"context"
	"fmt"

	"github.com/asunaverse/equipledger/internal/coinbase/v1"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/models/modeldto"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/billing/v1/errors"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	"github.com/rs/zerolog"
)

const chargeName = "Asuna Credit"

// Service defines attributes of a struct available to its methods.
type Service struct {
	storage        storage.Storage
	commerce       coinbase.Commerce
	commerceConfig *config.CommerceConfig
	log            *zerolog.Logger
}

// InitService initializes a billing service.
func InitService(st storage.Storage, commerce coinbase.Commerce, commerceConfig *config.CommerceConfig, log *zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if commerce == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil commerce client was passed to service initializer"}
	}
	if commerceConfig == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil commerce configuration was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	return &Service{storage: st, commerce: commerce, commerceConfig: commerceConfig, log: log}, nil
}

// CreateCharge creates a hosted charge for a wallet and records it as NEW.
// Later lifecycle transitions arrive asynchronously through the charge event
// queue, keyed by the charge identifier recorded here.
func (s *Service) CreateCharge(ctx context.Context, address string, input modeldto.NewCharge) (modeldto.Charge, error) {
	if input.Amount <= 0 {
		return modeldto.Charge{}, &serviceErrors.IllegalAmountError{Amount: input.Amount}
	}
	user, err := s.storage.GetUserByAddress(ctx, address)
	if err != nil {
		return modeldto.Charge{}, err
	}
	description := fmt.Sprintf("%d credits for %s", input.Amount*s.commerceConfig.CreditPerDollar, address)
	resource, err := s.commerce.CreateCharge(ctx, chargeName, description, input.Amount)
	if err != nil {
		return modeldto.Charge{}, err
	}
	entry := modelstorage.ChargeStorageEntry{
		ID:        resource.ID,
		UserID:    user.UserID,
		Amount:    input.Amount,
		Status:    modelstorage.ChargeStatusNew,
		HostedURL: resource.HostedURL,
	}
	err = s.storage.AddNewCharge(ctx, entry)
	if err != nil {
		return modeldto.Charge{}, err
	}
	s.log.Info().Msg(fmt.Sprintf("created charge %s for %d USD", resource.ID, input.Amount))
	return modeldto.Charge{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Status:    entry.Status,
		HostedURL: entry.HostedURL,
	}, nil
}
