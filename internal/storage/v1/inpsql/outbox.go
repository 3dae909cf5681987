package inpsql

import (
	"context"
	"fmt"
	"time"

	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// GetUnsentEvents returns outbox rows awaiting publication, oldest first.
func (s *Storage) GetUnsentEvents(ctx context.Context, limit int) ([]modelstorage.OutboxStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, source, detail_type, detail, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan []modelstorage.OutboxStorageEntry, 1)
	chanEr := make(chan error, 1)
	go func() {
		rows, err := selectStmt.QueryContext(ctx, limit)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.OutboxStorageEntry
		for rows.Next() {
			var queryOutputRow modelstorage.OutboxStorageEntry
			err = rows.Scan(&queryOutputRow.ID, &queryOutputRow.Source, &queryOutputRow.DetailType, &queryOutputRow.Detail, &queryOutputRow.CreatedAt)
			if err != nil {
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			queryOutput = append(queryOutput, queryOutputRow)
		}
		err = rows.Err()
		if err != nil {
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("querying unsent events failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("querying unsent events failed")
		return nil, methodErr
	case queryOutput := <-chanOk:
		return queryOutput, nil
	}
}

// MarkEventSent stamps an outbox row after successful publication.
func (s *Storage) MarkEventSent(ctx context.Context, eventID int64) error {
	updateStmt, err := s.DB.PrepareContext(ctx, "UPDATE outbox SET sent_at = $1 WHERE id = $2")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := updateStmt.ExecContext(ctx, time.Now().Format(time.RFC3339), eventID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("marking event %d sent failed", eventID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("marking event %d sent failed", eventID))
		return methodErr
	case <-chanOk:
		return nil
	}
}
