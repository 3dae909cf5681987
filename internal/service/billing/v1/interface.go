package billing

import (
	"context"

	"github.com/asunaverse/equipledger/internal/models/modeldto"
)

type Biller interface {
	CreateCharge(ctx context.Context, address string, input modeldto.NewCharge) (modeldto.Charge, error)
}
