package storage

import (
	"context"

	"github.com/asunaverse/equipledger/internal/models/modelstorage"
)

// SubmitFunc performs the external chain submission inside the admission
// transaction and returns the transaction hash. A submission, once sent,
// cannot be unsent even if the surrounding transaction rolls back.
type SubmitFunc func(ctx context.Context) (txnHash string, err error)

// MakeEventFunc renders an outbox payload for one created request row.
type MakeEventFunc func(entry modelstorage.ActionRequestStorageEntry) (source string, detailType string, detail []byte, err error)

// NewActionRequests describes one admission: a batch of accessory ids sharing
// one action type, target and requester.
type NewActionRequests struct {
	AsunaID      int64
	AccessoryIDs []int64
	ActionType   string
	ReqAddress   string
}

type Users interface {
	AddNewUser(ctx context.Context, userID string, address string) error
	GetUserByAddress(ctx context.Context, address string) (modelstorage.UserStorageEntry, error)
}

type Wallets interface {
	GetCurrentAmount(ctx context.Context, userID string) (int64, error)
}

type ActionRequests interface {
	CreateActionRequests(ctx context.Context, input NewActionRequests, submit SubmitFunc, makeEvent MakeEventFunc) ([]modelstorage.ActionRequestStorageEntry, error)
	GetPendingRequests(ctx context.Context) ([]modelstorage.ActionRequestStorageEntry, error)
	GetPendingRequestsByTarget(ctx context.Context, asunaID int64, actionType string, accessoryIDs []int64) ([]modelstorage.ActionRequestStorageEntry, error)
	GetRequestsByAsuna(ctx context.Context, asunaID int64, actionType string, txnState string, limit int) ([]modelstorage.ActionRequestStorageEntry, error)
	MarkRequestSuccess(ctx context.Context, requestID int64) error
}

type Charges interface {
	AddNewCharge(ctx context.Context, charge modelstorage.ChargeStorageEntry) error
	GetCharge(ctx context.Context, chargeID string) (modelstorage.ChargeStorageEntry, error)
	SetChargeStatus(ctx context.Context, chargeID string, status string) error
	CompleteChargeAndCredit(ctx context.Context, chargeID string, creditMultiplier int64) (bool, error)
}

type Outbox interface {
	GetUnsentEvents(ctx context.Context, limit int) ([]modelstorage.OutboxStorageEntry, error)
	MarkEventSent(ctx context.Context, eventID int64) error
}

type Storage interface {
	Users
	Wallets
	ActionRequests
	Charges
	Outbox
}
