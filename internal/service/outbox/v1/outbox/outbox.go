// Package outbox drains event rows written alongside ledger commits and
// publishes them to the event bus, closing the dual-write gap between the
// database and the bus.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/events/v1"
	"github.com/asunaverse/equipledger/internal/storage/v1"
)

const dispatchBatchSize = 50

type Dispatcher struct {
	ctx       context.Context
	storage   storage.Outbox
	publisher events.Publisher
	interval  time.Duration
	log       *zerolog.Logger
	wg        *sync.WaitGroup
}

func InitDispatcher(ctx context.Context, st storage.Outbox, publisher events.Publisher, eventsConfig *config.EventsConfig, log *zerolog.Logger, wg *sync.WaitGroup) *Dispatcher {
	dispatcher := Dispatcher{
		ctx:       ctx,
		storage:   st,
		publisher: publisher,
		interval:  eventsConfig.DispatchInterval,
		log:       log,
		wg:        wg,
	}
	return &dispatcher
}

// ListenAndDispatch runs the dispatch loop until the parent context is done.
func (d *Dispatcher) ListenAndDispatch() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.log.Info().Msg("started listening to outbox for unsent events")
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				d.log.Info().Msg("stopped listening to outbox for unsent events")
				return
			case <-ticker.C:
				d.DispatchOnce(d.ctx)
			}
		}
	}()
}

// DispatchOnce publishes one batch of unsent events. A failed publish leaves
// the row unsent for the next pass; a failed mark leaves a duplicate publish
// possible, which consumers tolerate.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	entries, err := d.storage.GetUnsentEvents(ctx, dispatchBatchSize)
	if err != nil {
		d.log.Warn().Err(err).Msg("outbox query failed, retrying on next tick")
		return
	}
	for _, entry := range entries {
		err := d.publisher.Publish(ctx, entry.Source, entry.DetailType, entry.Detail)
		if err != nil {
			d.log.Warn().Err(err).Msg(fmt.Sprintf("publishing outbox event %d failed, retrying on next tick", entry.ID))
			continue
		}
		err = d.storage.MarkEventSent(ctx, entry.ID)
		if err != nil {
			d.log.Warn().Err(err).Msg(fmt.Sprintf("marking outbox event %d sent failed", entry.ID))
		}
	}
}
