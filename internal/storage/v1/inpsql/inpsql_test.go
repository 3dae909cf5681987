package inpsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/logger"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// stubDriver is an in-memory database/sql driver. Exec sleeps for execDelay
// before reporting success, Query records its bound arguments and replays the
// configured rows.
type stubDriver struct {
	execDelay time.Duration
	columns   []string
	rows      [][]driver.Value

	mu        sync.Mutex
	queryArgs [][]driver.Value
}

func (d *stubDriver) Open(_ string) (driver.Conn, error) { return &stubConn{d: d}, nil }

func (d *stubDriver) Connect(_ context.Context) (driver.Conn, error) { return &stubConn{d: d}, nil }

func (d *stubDriver) Driver() driver.Driver { return d }

func (d *stubDriver) lastQueryArgs() []driver.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queryArgs) == 0 {
		return nil
	}
	return d.queryArgs[len(d.queryArgs)-1]
}

type stubConn struct {
	d *stubDriver
}

func (c *stubConn) Prepare(_ string) (driver.Stmt, error) { return &stubStmt{d: c.d}, nil }

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

type stubStmt struct {
	d *stubDriver
}

func (s *stubStmt) Close() error { return nil }

func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(_ []driver.Value) (driver.Result, error) {
	time.Sleep(s.d.execDelay)
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.d.mu.Lock()
	s.d.queryArgs = append(s.d.queryArgs, args)
	s.d.mu.Unlock()
	return &stubRows{columns: s.d.columns, rows: s.d.rows}, nil
}

type stubRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *stubRows) Columns() []string { return r.columns }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func newStubStorage(d *stubDriver) *Storage {
	return &Storage{
		DB:  sql.OpenDB(d),
		log: logger.InitLog(),
	}
}

var requestColumns = []string{"id", "asuna_id", "accessory_id", "action_type", "txn_state", "req_address", "txn_hash", "created_at"}

func requestRow(id int64) []driver.Value {
	return []driver.Value{id, int64(7), int64(10 + id), "Equip", "Pending", "0xabc", "0xfeed", "2022-05-01T10:00:00Z"}
}

func TestMarkRequestSuccess_TimedOutWriteDoesNotWedgeStore(t *testing.T) {
	d := &stubDriver{execDelay: 100 * time.Millisecond}
	st := newStubStorage(d)

	ctxShort, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	err := st.MarkRequestSuccess(ctxShort, 1)
	var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
	require.ErrorAs(t, err, &contextTimeoutExceededError)

	ctxLong, cancelLong := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelLong()
	assert.NoError(t, st.MarkRequestSuccess(ctxLong, 2))
}

func TestGetRequestsByAsuna_ZeroLimitMeansAllRows(t *testing.T) {
	d := &stubDriver{
		columns: requestColumns,
		rows:    [][]driver.Value{requestRow(1), requestRow(2), requestRow(3)},
	}
	st := newStubStorage(d)

	entries, err := st.GetRequestsByAsuna(context.Background(), 7, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	args := d.lastQueryArgs()
	require.Len(t, args, 4)
	assert.Nil(t, args[3])
}

func TestGetRequestsByAsuna_PositiveLimitIsBound(t *testing.T) {
	d := &stubDriver{
		columns: requestColumns,
		rows:    [][]driver.Value{requestRow(1)},
	}
	st := newStubStorage(d)

	_, err := st.GetRequestsByAsuna(context.Background(), 7, "Equip", "Pending", 5)
	require.NoError(t, err)

	args := d.lastQueryArgs()
	require.Len(t, args, 4)
	assert.Equal(t, int64(5), args[3])
}
