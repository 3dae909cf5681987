package equip

import (
	"context"

	"github.com/asunaverse/equipledger/internal/models/modeldto"
)

type Processor interface {
	CreateRequests(ctx context.Context, input modeldto.NewActionRequest, requesterAddress string) ([]modeldto.ActionRequest, error)
	ListRequests(ctx context.Context, asunaID int64, actionType string, txnState string, limit int) ([]modeldto.ActionRequest, error)
}
