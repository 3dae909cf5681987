package accounts

import (
	"context"

	"github.com/asunaverse/equipledger/internal/models/modeldto"
)

type Processor interface {
	LoginUser(ctx context.Context, credentials modeldto.Login) (string, error)
	GetBalance(ctx context.Context, address string) (modeldto.Balance, error)
	GetAddress(accessToken string) (string, error)
}
