// Package accounts implements wallet-based login and balance queries.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/asunaverse/equipledger/internal/models/modeldto"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/accounts/v1/errors"
	"github.com/asunaverse/equipledger/internal/service/secretary/v1"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
	ethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service defines object structure and its attributes.
type Service struct {
	storage   storage.Storage
	secretary secretary.Secretary
	log       *zerolog.Logger
}

// InitService initializes an accounts service.
func InitService(st storage.Storage, sec secretary.Secretary, log *zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if sec == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil secretary was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	return &Service{storage: st, secretary: sec, log: log}, nil
}

// LoginUser verifies a signed login message, registers the wallet on first
// sight and returns a session token bound to the recovered address.
func (s *Service) LoginUser(ctx context.Context, credentials modeldto.Login) (string, error) {
	recovered, err := RecoverAddress(credentials.Message, credentials.Signature)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(recovered, credentials.Address) {
		return "", &serviceErrors.SignatureMismatchError{Claimed: credentials.Address, Recovered: recovered}
	}
	_, err = s.storage.GetUserByAddress(ctx, recovered)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
		err = s.storage.AddNewUser(ctx, uuid.New().String(), recovered)
		if err != nil {
			var alreadyExistsError *storageErrors.AlreadyExistsError
			if !errors.As(err, &alreadyExistsError) {
				return "", err
			}
		}
		s.log.Info().Msg("registered new wallet " + recovered)
	}
	return s.secretary.GetTokenForAddress(recovered)
}

// GetBalance returns the current credit balance of a wallet address.
func (s *Service) GetBalance(ctx context.Context, address string) (modeldto.Balance, error) {
	user, err := s.storage.GetUserByAddress(ctx, address)
	if err != nil {
		return modeldto.Balance{}, err
	}
	amount, err := s.storage.GetCurrentAmount(ctx, user.UserID)
	if err != nil {
		return modeldto.Balance{}, err
	}
	return modeldto.Balance{CurrentAmount: amount}, nil
}

// GetAddress retrieves the wallet address bound to a session token.
func (s *Service) GetAddress(accessToken string) (string, error) {
	return s.secretary.ValidateToken(accessToken)
}

// RecoverAddress recovers the signing address of a personal-sign message.
func RecoverAddress(message string, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", &serviceErrors.InvalidSignatureError{Msg: "signature is not valid hex: " + err.Error()}
	}
	if len(sig) != crypto.SignatureLength {
		return "", &serviceErrors.InvalidSignatureError{Msg: "signature must be 65 bytes long"}
	}
	// wallets produce v as 27 or 28, Ecrecover expects 0 or 1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(ethaccounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", &serviceErrors.InvalidSignatureError{Msg: "signature recovery failed: " + err.Error()}
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
