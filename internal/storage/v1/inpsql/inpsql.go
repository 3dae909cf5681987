// Package inpsql implements the ledger store on PostgreSQL.
package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

type Storage struct {
	mu  sync.Mutex
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	// initialize a Storage
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// AddNewUser registers an address together with its zero-balance wallet.
func (s *Storage) AddNewUser(ctx context.Context, userID string, address string) error {
	newUserStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO users (user_id, address, registered_at) VALUES ($1, $2, $3)")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer newUserStmt.Close()
	newWalletStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO wallets (user_id, balance) VALUES ($1, $2)")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer newWalletStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := newUserStmt.ExecContext(ctx, userID, address, time.Now().Format(time.RFC3339))
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: address}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = newWalletStmt.ExecContext(ctx, userID, 0)
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: address}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new user failed for %s", address))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new user failed for %s", address))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new user done for %s", address))
		return nil
	}
}

// GetUserByAddress resolves a registered user entry by wallet address.
func (s *Storage) GetUserByAddress(ctx context.Context, address string) (modelstorage.UserStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, user_id, address, registered_at FROM users WHERE lower(address) = lower($1)")
	if err != nil {
		return modelstorage.UserStorageEntry{}, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan modelstorage.UserStorageEntry, 1)
	chanEr := make(chan error, 1)
	go func() {
		var queryOutput modelstorage.UserStorageEntry
		err := selectStmt.QueryRowContext(ctx, address).Scan(&queryOutput.ID, &queryOutput.UserID, &queryOutput.Address, &queryOutput.RegisteredAt)
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
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("user lookup failed for %s", address))
		return modelstorage.UserStorageEntry{}, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		return modelstorage.UserStorageEntry{}, methodErr
	case entry := <-chanOk:
		return entry, nil
	}
}

// GetCurrentAmount returns the spendable balance for a user.
func (s *Storage) GetCurrentAmount(ctx context.Context, userID string) (int64, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT balance FROM wallets WHERE user_id = $1")
	if err != nil {
		return 0, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan int64, 1)
	chanEr := make(chan error, 1)
	go func() {
		var balance int64
		err := selectStmt.QueryRowContext(ctx, userID).Scan(&balance)
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
		chanOk <- balance
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting current balance failed")
		return 0, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting current balance failed")
		return 0, methodErr
	case amount := <-chanOk:
		return amount, nil
	}
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL   NOT NULL,
		user_id       TEXT        NOT NULL UNIQUE,
		address       TEXT        NOT NULL UNIQUE,
		registered_at TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS wallets (
		id      BIGSERIAL NOT NULL,
		user_id TEXT      NOT NULL UNIQUE,
		balance BIGINT    NOT NULL CHECK (balance >= 0)
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS action_requests (
		id           BIGSERIAL   PRIMARY KEY,
		asuna_id     BIGINT      NOT NULL,
		accessory_id BIGINT      NOT NULL,
		action_type  TEXT        NOT NULL,
		txn_state    TEXT        NOT NULL,
		req_address  TEXT        NOT NULL,
		txn_hash     TEXT        NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	// one in-flight request per target; the admission backstop
	query = `CREATE UNIQUE INDEX IF NOT EXISTS action_requests_pending_key
		ON action_requests (asuna_id, accessory_id, action_type)
		WHERE txn_state = 'Pending';`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS charges (
		id         TEXT        PRIMARY KEY,
		user_id    TEXT        NOT NULL,
		amount     BIGINT      NOT NULL,
		status     TEXT        NOT NULL,
		hosted_url TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS action_prices (
		id          BIGSERIAL NOT NULL,
		action_type TEXT      NOT NULL UNIQUE,
		cost        BIGINT    NOT NULL DEFAULT 0
	);`
	queries = append(queries, query)
	query = `INSERT INTO action_prices (action_type) VALUES ('Equip'), ('Unequip') ON CONFLICT (action_type) DO NOTHING;`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS outbox (
		id          BIGSERIAL   PRIMARY KEY,
		source      TEXT        NOT NULL,
		detail_type TEXT        NOT NULL,
		detail      JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		sent_at     TIMESTAMPTZ
	);`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
