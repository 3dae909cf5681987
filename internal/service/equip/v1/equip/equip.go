// Package equip provides intermediary layer functionality between the ledger
// store, the chain submitter and the API endpoint handlers for accessory
// action requests.
package equip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/asunaverse/equipledger/internal/chain/v1/holder"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/indexer/v1"
	"github.com/asunaverse/equipledger/internal/models/modeldto"
	"github.com/asunaverse/equipledger/internal/models/modelevent"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/equip/v1/errors"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

const (
	// commitTimeout bounds the admission transaction; on expiry the debit and
	// inserts roll back, though a chain submission already sent stays sent.
	commitTimeout = 20 * time.Second
	admissionTTL  = 30 * time.Second
)

// Service validates and admits accessory action requests.
type Service struct {
	storage   storage.Storage
	indexer   indexer.Indexer
	submitter holder.Submitter
	admission *admissionTable
	source    string
	log       *zerolog.Logger
}

// InitService initializes an intermediary service for request admission.
func InitService(st storage.Storage, idx indexer.Indexer, submitter holder.Submitter, eventsConfig *config.EventsConfig, log *zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if idx == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil indexer was passed to service initializer"}
	}
	if submitter == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil submitter was passed to service initializer"}
	}
	service := &Service{
		storage:   st,
		indexer:   idx,
		submitter: submitter,
		admission: newAdmissionTable(admissionTTL),
		source:    eventsConfig.Source,
		log:       log,
	}
	return service, nil
}

// CreateRequests runs the validation sequence fail-fast with no effects, then
// the commit sequence as one bounded transaction: debit, chain submission,
// Pending rows sharing one transaction hash, and outbox events.
func (svc *Service) CreateRequests(ctx context.Context, input modeldto.NewActionRequest, requesterAddress string) ([]modeldto.ActionRequest, error) {
	if len(input.AccessoryIDs) == 0 {
		return nil, &serviceErrors.NoSelectionError{}
	}
	if input.ActionType != modelstorage.ActionTypeEquip && input.ActionType != modelstorage.ActionTypeUnequip {
		return nil, &serviceErrors.UnknownActionError{ActionType: input.ActionType}
	}

	// the snapshot load and the advisory pending check are independent reads
	var snapshot *indexer.Snapshot
	var pending []modelstorage.ActionRequestStorageEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = svc.indexer.AsunaSnapshot(gctx, input.AsunaID)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = svc.storage.GetPendingRequestsByTarget(gctx, input.AsunaID, input.ActionType, input.AccessoryIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, &serviceErrors.UnknownAsunaError{AsunaID: input.AsunaID}
	}

	var mismatched []int64
	for _, accessoryID := range input.AccessoryIDs {
		equipped := snapshot.Equipped(accessoryID)
		if input.ActionType == modelstorage.ActionTypeEquip && equipped {
			mismatched = append(mismatched, accessoryID)
		}
		if input.ActionType == modelstorage.ActionTypeUnequip && !equipped {
			mismatched = append(mismatched, accessoryID)
		}
	}
	if len(mismatched) > 0 {
		if input.ActionType == modelstorage.ActionTypeEquip {
			return nil, &serviceErrors.AlreadyEquippedError{AccessoryIDs: mismatched}
		}
		return nil, &serviceErrors.NotEquippedError{AccessoryIDs: mismatched}
	}

	if len(pending) > 0 {
		conflicted := make([]int64, 0, len(pending))
		for _, entry := range pending {
			conflicted = append(conflicted, entry.AccessoryID)
		}
		return nil, &serviceErrors.ConflictingPendingRequestError{AccessoryIDs: conflicted}
	}

	conflicted, ok := svc.admission.reserve(requesterAddress, input.AsunaID, input.ActionType, input.AccessoryIDs)
	if !ok {
		return nil, &serviceErrors.ConflictingPendingRequestError{AccessoryIDs: conflicted}
	}
	defer svc.admission.release(input.AsunaID, input.ActionType, input.AccessoryIDs)

	ctxTO, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()
	entries, err := svc.storage.CreateActionRequests(ctxTO, storage.NewActionRequests{
		AsunaID:      input.AsunaID,
		AccessoryIDs: input.AccessoryIDs,
		ActionType:   input.ActionType,
		ReqAddress:   requesterAddress,
	}, svc.makeSubmit(input, requesterAddress), svc.makeEvent)
	if err != nil {
		var alreadyExistsError *storageErrors.AlreadyExistsError
		if errors.As(err, &alreadyExistsError) {
			return nil, &serviceErrors.ConflictingPendingRequestError{AccessoryIDs: input.AccessoryIDs}
		}
		return nil, err
	}

	requests := make([]modeldto.ActionRequest, 0, len(entries))
	for _, entry := range entries {
		requests = append(requests, fromStorageEntry(entry))
	}
	return requests, nil
}

// ListRequests lists requests for one asuna with optional type and state filters.
func (svc *Service) ListRequests(ctx context.Context, asunaID int64, actionType string, txnState string, limit int) ([]modeldto.ActionRequest, error) {
	entries, err := svc.storage.GetRequestsByAsuna(ctx, asunaID, actionType, txnState, limit)
	if err != nil {
		return nil, err
	}
	requests := make([]modeldto.ActionRequest, 0, len(entries))
	for _, entry := range entries {
		requests = append(requests, fromStorageEntry(entry))
	}
	return requests, nil
}

func (svc *Service) makeSubmit(input modeldto.NewActionRequest, requesterAddress string) storage.SubmitFunc {
	return func(ctx context.Context) (string, error) {
		if input.ActionType == modelstorage.ActionTypeEquip {
			return svc.submitter.EquipAccessories(ctx, input.AsunaID, input.AccessoryIDs, requesterAddress)
		}
		return svc.submitter.UnequipAccessories(ctx, input.AsunaID, input.AccessoryIDs, requesterAddress)
	}
}

func (svc *Service) makeEvent(entry modelstorage.ActionRequestStorageEntry) (string, string, []byte, error) {
	detail, err := json.Marshal(modelevent.EquipmentRequestDetail{
		ID:          entry.ID,
		AccessoryID: entry.AccessoryID,
		AsunaID:     entry.AsunaID,
		ReqAddress:  entry.ReqAddress,
		ActionType:  entry.ActionType,
		TxnHash:     entry.TxnHash,
	})
	if err != nil {
		return "", "", nil, err
	}
	return svc.source, modelevent.DetailTypeEquipmentRequest, detail, nil
}

func fromStorageEntry(entry modelstorage.ActionRequestStorageEntry) modeldto.ActionRequest {
	return modeldto.ActionRequest{
		ID:          entry.ID,
		AsunaID:     entry.AsunaID,
		AccessoryID: entry.AccessoryID,
		ActionType:  entry.ActionType,
		TxnState:    entry.TxnState,
		ReqAddress:  entry.ReqAddress,
		TxnHash:     entry.TxnHash,
		CreatedAt:   entry.CreatedAt,
	}
}
