package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// CreateActionRequests runs the admission commit sequence as one transaction:
// price lookup, balance debit, external submission via the supplied callback,
// request row inserts sharing the submission hash, and outbox event inserts.
// The caller bounds the whole sequence with a context timeout; on timeout or
// error everything local rolls back, but an already-sent submission stays sent.
func (s *Storage) CreateActionRequests(ctx context.Context, input storage.NewActionRequests, submit storage.SubmitFunc, makeEvent storage.MakeEventFunc) ([]modelstorage.ActionRequestStorageEntry, error) {
	chanOk := make(chan []modelstorage.ActionRequestStorageEntry, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entries, err := s.createActionRequestsTx(ctx, input, submit, makeEvent)
		if err != nil {
			chanEr <- err
			return
		}
		chanOk <- entries
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("creating action requests failed for asuna %d", input.AsunaID))
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("creating action requests failed for asuna %d", input.AsunaID))
		return nil, methodErr
	case entries := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("created %d action requests for asuna %d", len(entries), input.AsunaID))
		return entries, nil
	}
}

func (s *Storage) createActionRequestsTx(ctx context.Context, input storage.NewActionRequests, submit storage.SubmitFunc, makeEvent storage.MakeEventFunc) ([]modelstorage.ActionRequestStorageEntry, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	defer tx.Rollback()

	var price int64
	err = tx.QueryRowContext(ctx, "SELECT cost FROM action_prices WHERE action_type = $1", input.ActionType).Scan(&price)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}

	if price > 0 {
		var balance int64
		err = tx.QueryRowContext(ctx, `SELECT w.balance FROM wallets w
			JOIN users u ON u.user_id = w.user_id
			WHERE lower(u.address) = lower($1) FOR UPDATE`, input.ReqAddress).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &storageErrors.NotFoundError{Err: err}
			}
			return nil, &storageErrors.ExecutionPSQLError{Err: err}
		}
		if balance < price {
			return nil, &storageErrors.InsufficientFundsError{Balance: balance, Price: price}
		}
		_, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $1
			WHERE user_id = (SELECT user_id FROM users WHERE lower(address) = lower($2))`, price, input.ReqAddress)
		if err != nil {
			return nil, &storageErrors.ExecutionPSQLError{Err: err}
		}
	}

	txnHash, err := submit(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]modelstorage.ActionRequestStorageEntry, 0, len(input.AccessoryIDs))
	for _, accessoryID := range input.AccessoryIDs {
		entry := modelstorage.ActionRequestStorageEntry{
			AsunaID:     input.AsunaID,
			AccessoryID: accessoryID,
			ActionType:  input.ActionType,
			TxnState:    modelstorage.TxnStatePending,
			ReqAddress:  input.ReqAddress,
			TxnHash:     txnHash,
			CreatedAt:   time.Now().Format(time.RFC3339),
		}
		err = tx.QueryRowContext(ctx, `INSERT INTO action_requests
			(asuna_id, accessory_id, action_type, txn_state, req_address, txn_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			entry.AsunaID, entry.AccessoryID, entry.ActionType, entry.TxnState, entry.ReqAddress, entry.TxnHash, entry.CreatedAt,
		).Scan(&entry.ID)
		if err != nil {
			if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == pgerrcode.UniqueViolation {
				return nil, &storageErrors.AlreadyExistsError{Err: err, ID: fmt.Sprintf("accessory %d", accessoryID)}
			}
			return nil, &storageErrors.ExecutionPSQLError{Err: err}
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		source, detailType, detail, err := makeEvent(entry)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO outbox (source, detail_type, detail, created_at)
			VALUES ($1, $2, $3, $4)`, source, detailType, detail, time.Now().Format(time.RFC3339))
		if err != nil {
			return nil, &storageErrors.ExecutionPSQLError{Err: err}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return entries, nil
}

// GetPendingRequests returns every request still awaiting confirmation.
func (s *Storage) GetPendingRequests(ctx context.Context) ([]modelstorage.ActionRequestStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, asuna_id, accessory_id, action_type, txn_state, req_address, txn_hash, created_at
		FROM action_requests WHERE txn_state = $1`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryRequests(ctx, selectStmt, modelstorage.TxnStatePending)
}

// GetPendingRequestsByTarget returns in-flight requests matching a prospective
// admission; the advisory duplicate check reads through here.
func (s *Storage) GetPendingRequestsByTarget(ctx context.Context, asunaID int64, actionType string, accessoryIDs []int64) ([]modelstorage.ActionRequestStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, asuna_id, accessory_id, action_type, txn_state, req_address, txn_hash, created_at
		FROM action_requests WHERE txn_state = $1 AND asuna_id = $2 AND action_type = $3 AND accessory_id = ANY($4)
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryRequests(ctx, selectStmt, modelstorage.TxnStatePending, asunaID, actionType, accessoryIDs)
}

// GetRequestsByAsuna lists requests for one asuna with optional type/state
// filters. A non-positive limit binds NULL, which LIMIT treats as unbounded.
func (s *Storage) GetRequestsByAsuna(ctx context.Context, asunaID int64, actionType string, txnState string, limit int) ([]modelstorage.ActionRequestStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, asuna_id, accessory_id, action_type, txn_state, req_address, txn_hash, created_at
		FROM action_requests WHERE asuna_id = $1 AND ($2 = '' OR action_type = $2) AND ($3 = '' OR txn_state = $3)
		ORDER BY created_at DESC LIMIT $4`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	var rowLimit interface{}
	if limit > 0 {
		rowLimit = limit
	}
	return s.queryRequests(ctx, selectStmt, asunaID, actionType, txnState, rowLimit)
}

// MarkRequestSuccess transitions a request to its terminal state. Setting
// Success twice is harmless.
func (s *Storage) MarkRequestSuccess(ctx context.Context, requestID int64) error {
	updateStmt, err := s.DB.PrepareContext(ctx, "UPDATE action_requests SET txn_state = $1 WHERE id = $2")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := updateStmt.ExecContext(ctx, modelstorage.TxnStateSuccess, requestID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("marking request %d successful failed", requestID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("marking request %d successful failed", requestID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("request %d transitioned to %s", requestID, modelstorage.TxnStateSuccess))
		return nil
	}
}

func (s *Storage) queryRequests(ctx context.Context, stmt *sql.Stmt, args ...interface{}) ([]modelstorage.ActionRequestStorageEntry, error) {
	chanOk := make(chan []modelstorage.ActionRequestStorageEntry, 1)
	chanEr := make(chan error, 1)
	go func() {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.ActionRequestStorageEntry
		for rows.Next() {
			var queryOutputRow modelstorage.ActionRequestStorageEntry
			err = rows.Scan(&queryOutputRow.ID, &queryOutputRow.AsunaID, &queryOutputRow.AccessoryID, &queryOutputRow.ActionType, &queryOutputRow.TxnState, &queryOutputRow.ReqAddress, &queryOutputRow.TxnHash, &queryOutputRow.CreatedAt)
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
		s.log.Error().Err(ctx.Err()).Msg("querying action requests failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("querying action requests failed")
		return nil, methodErr
	case queryOutput := <-chanOk:
		return queryOutput, nil
	}
}
