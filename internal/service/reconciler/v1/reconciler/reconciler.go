// Package reconciler transitions pending action requests against the subgraph
// record on a fixed schedule. Re-running a pass is idempotent; a row with no
// confirmation stays Pending and is retried on the next scheduled run, which
// is the system's only retry mechanism for confirmation.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/indexer/v1"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/reconciler/v1/errors"
	"github.com/asunaverse/equipledger/internal/storage/v1"
)

// Service performs one reconciliation pass per invocation. A single active
// instance is assumed; concurrent instances stay correct because the Success
// transition is idempotent, they just waste indexer queries.
type Service struct {
	storage      storage.ActionRequests
	indexer      indexer.Indexer
	concurrency  int
	stalePending time.Duration
	log          *zerolog.Logger
}

// InitService initializes a reconciliation service.
func InitService(st storage.ActionRequests, idx indexer.Indexer, reconcilerConfig *config.ReconcilerConfig, log *zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if idx == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil indexer was passed to service initializer"}
	}
	service := &Service{
		storage:      st,
		indexer:      idx,
		concurrency:  reconcilerConfig.Concurrency,
		stalePending: reconcilerConfig.StalePending,
		log:          log,
	}
	return service, nil
}

// Run loads all pending requests and queries the subgraph for each one.
// Failures for one row are logged and do not affect the others; the row stays
// Pending for the next run.
func (svc *Service) Run(ctx context.Context) error {
	pending, err := svc.storage.GetPendingRequests(ctx)
	if err != nil {
		return err
	}
	svc.log.Info().Msg(fmt.Sprintf("reconciling %d pending requests", len(pending)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, row := range pending {
		row := row
		g.Go(func() error {
			svc.reconcileRow(gctx, row.ID, row.TxnHash, row.CreatedAt)
			return nil
		})
	}
	return g.Wait()
}

func (svc *Service) reconcileRow(ctx context.Context, requestID int64, txnHash string, createdAt string) {
	confirmed, err := svc.indexer.RequestConfirmed(ctx, txnHash)
	if err != nil {
		svc.log.Warn().Err(err).Msg(fmt.Sprintf("failed to handle request %d, retrying on next run", requestID))
		return
	}
	if !confirmed {
		svc.warnIfStale(requestID, txnHash, createdAt)
		return
	}
	if err := svc.storage.MarkRequestSuccess(ctx, requestID); err != nil {
		svc.log.Warn().Err(err).Msg(fmt.Sprintf("failed to transition request %d, retrying on next run", requestID))
		return
	}
	svc.log.Info().Msg(fmt.Sprintf("request=%d, hash=%s is complete", requestID, txnHash))
}

// warnIfStale flags rows that have sat Pending past the staleness threshold.
// There is no terminal failure state; a reverted chain transaction never
// produces a subgraph record, so such rows surface here for manual
// reconciliation by transaction hash.
func (svc *Service) warnIfStale(requestID int64, txnHash string, createdAt string) {
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return
	}
	if time.Since(created) > svc.stalePending {
		svc.log.Warn().Msg(fmt.Sprintf("request=%d, hash=%s pending since %s, needs manual review", requestID, txnHash, createdAt))
	}
}
