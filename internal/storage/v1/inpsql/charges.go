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
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// AddNewCharge records a charge created at top-up initiation time.
func (s *Storage) AddNewCharge(ctx context.Context, charge modelstorage.ChargeStorageEntry) error {
	insertStmt, err := s.DB.PrepareContext(ctx, `INSERT INTO charges (id, user_id, amount, status, hosted_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer insertStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		now := time.Now().Format(time.RFC3339)
		_, err := insertStmt.ExecContext(ctx, charge.ID, charge.UserID, charge.Amount, charge.Status, charge.HostedURL, now, now)
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: charge.ID}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new charge failed for %s", charge.ID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new charge failed for %s", charge.ID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new charge done for %s", charge.ID))
		return nil
	}
}

// GetCharge looks up a charge by its external identifier.
func (s *Storage) GetCharge(ctx context.Context, chargeID string) (modelstorage.ChargeStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, user_id, amount, status, hosted_url, created_at, updated_at
		FROM charges WHERE id = $1`)
	if err != nil {
		return modelstorage.ChargeStorageEntry{}, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan modelstorage.ChargeStorageEntry, 1)
	chanEr := make(chan error, 1)
	go func() {
		var queryOutput modelstorage.ChargeStorageEntry
		err := selectStmt.QueryRowContext(ctx, chargeID).Scan(&queryOutput.ID, &queryOutput.UserID, &queryOutput.Amount, &queryOutput.Status, &queryOutput.HostedURL, &queryOutput.CreatedAt, &queryOutput.UpdatedAt)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			default:
				chanEr <- err
				return
			}
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("charge lookup failed for %s", chargeID))
		return modelstorage.ChargeStorageEntry{}, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		return modelstorage.ChargeStorageEntry{}, methodErr
	case entry := <-chanOk:
		return entry, nil
	}
}

// SetChargeStatus applies a non-terminal lifecycle transition.
func (s *Storage) SetChargeStatus(ctx context.Context, chargeID string, status string) error {
	updateStmt, err := s.DB.PrepareContext(ctx, "UPDATE charges SET status = $1, updated_at = $2 WHERE id = $3")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := updateStmt.ExecContext(ctx, status, time.Now().Format(time.RFC3339), chargeID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("charge status update failed for %s", chargeID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("charge status update failed for %s", chargeID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("charge %s transitioned to %s", chargeID, status))
		return nil
	}
}

// CompleteChargeAndCredit makes the terminal COMPLETED transition and credits
// the owning wallet in one transaction. The transition is conditional on the
// charge not being COMPLETED already, so a redelivered confirmation credits
// nothing; the returned flag reports whether the credit was applied.
func (s *Storage) CompleteChargeAndCredit(ctx context.Context, chargeID string, creditMultiplier int64) (bool, error) {
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		credited, err := s.completeChargeTx(ctx, chargeID, creditMultiplier)
		if err != nil {
			chanEr <- err
			return
		}
		chanOk <- credited
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("charge completion failed for %s", chargeID))
		return false, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("charge completion failed for %s", chargeID))
		return false, methodErr
	case credited := <-chanOk:
		if credited {
			s.log.Info().Msg(fmt.Sprintf("charge %s completed and credited", chargeID))
		} else {
			s.log.Info().Msg(fmt.Sprintf("charge %s already completed, credit skipped", chargeID))
		}
		return credited, nil
	}
}

func (s *Storage) completeChargeTx(ctx context.Context, chargeID string, creditMultiplier int64) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE charges SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1",
		modelstorage.ChargeStatusCompleted, time.Now().Format(time.RFC3339), chargeID)
	if err != nil {
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	if affected == 0 {
		// terminal already; nothing to credit
		return false, tx.Commit()
	}

	var userID string
	var amount int64
	err = tx.QueryRowContext(ctx, "SELECT user_id, amount FROM charges WHERE id = $1", chargeID).Scan(&userID, &amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, &storageErrors.NotFoundError{Err: err}
		}
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	_, err = tx.ExecContext(ctx, "UPDATE wallets SET balance = balance + $1 WHERE user_id = $2", amount*creditMultiplier, userID)
	if err != nil {
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	if err = tx.Commit(); err != nil {
		return false, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return true, nil
}
