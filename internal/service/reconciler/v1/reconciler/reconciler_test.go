package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/indexer/v1"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	"github.com/asunaverse/equipledger/internal/storage/v1"
)

// mockRequests implements storage.ActionRequests over an in-memory slice.
type mockRequests struct {
	mu      sync.Mutex
	rows    []modelstorage.ActionRequestStorageEntry
	marked  []int64
	markErr error
}

func (m *mockRequests) CreateActionRequests(_ context.Context, _ storage.NewActionRequests, _ storage.SubmitFunc, _ storage.MakeEventFunc) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}

func (m *mockRequests) GetPendingRequests(_ context.Context) ([]modelstorage.ActionRequestStorageEntry, error) {
	return m.rows, nil
}

func (m *mockRequests) GetPendingRequestsByTarget(_ context.Context, _ int64, _ string, _ []int64) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}

func (m *mockRequests) GetRequestsByAsuna(_ context.Context, _ int64, _ string, _ string, _ int) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}

func (m *mockRequests) MarkRequestSuccess(_ context.Context, requestID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, requestID)
	return nil
}

// mockIndexer confirms the hashes listed in confirmed and fails the ones
// listed in failing.
type mockIndexer struct {
	confirmed map[string]bool
	failing   map[string]bool
}

func (m *mockIndexer) AsunaSnapshot(_ context.Context, _ int64) (*indexer.Snapshot, error) {
	return nil, nil
}

func (m *mockIndexer) RequestConfirmed(_ context.Context, txnHash string) (bool, error) {
	if m.failing[txnHash] {
		return false, errors.New("subgraph unavailable")
	}
	return m.confirmed[txnHash], nil
}

func newTestService(t *testing.T, st *mockRequests, idx *mockIndexer) *Service {
	t.Helper()
	svc, err := InitService(st, idx, &config.ReconcilerConfig{Concurrency: 4, StalePending: 24 * time.Hour}, logger.InitLog())
	require.NoError(t, err)
	return svc
}

func pendingRow(id int64, txnHash string) modelstorage.ActionRequestStorageEntry {
	return modelstorage.ActionRequestStorageEntry{
		ID:        id,
		TxnState:  modelstorage.TxnStatePending,
		TxnHash:   txnHash,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
}

func TestRun_TransitionsConfirmedRows(t *testing.T) {
	st := &mockRequests{rows: []modelstorage.ActionRequestStorageEntry{
		pendingRow(1, "0xaaa"),
		pendingRow(2, "0xbbb"),
		pendingRow(3, "0xaaa"),
	}}
	idx := &mockIndexer{confirmed: map[string]bool{"0xaaa": true}}
	svc := newTestService(t, st, idx)

	err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, st.marked)
}

func TestRun_IndexerErrorsAreIsolated(t *testing.T) {
	st := &mockRequests{rows: []modelstorage.ActionRequestStorageEntry{
		pendingRow(1, "0xaaa"),
		pendingRow(2, "0xbad"),
		pendingRow(3, "0xccc"),
	}}
	idx := &mockIndexer{
		confirmed: map[string]bool{"0xaaa": true, "0xccc": true},
		failing:   map[string]bool{"0xbad": true},
	}
	svc := newTestService(t, st, idx)

	err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, st.marked)
}

func TestRun_TransitionFailureLeavesRowPending(t *testing.T) {
	st := &mockRequests{
		rows:    []modelstorage.ActionRequestStorageEntry{pendingRow(1, "0xaaa")},
		markErr: errors.New("connection reset"),
	}
	idx := &mockIndexer{confirmed: map[string]bool{"0xaaa": true}}
	svc := newTestService(t, st, idx)

	err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.marked)
}

func TestRun_NoPendingRows(t *testing.T) {
	svc := newTestService(t, &mockRequests{}, &mockIndexer{})
	assert.NoError(t, svc.Run(context.Background()))
}

func TestRun_Idempotent(t *testing.T) {
	st := &mockRequests{rows: []modelstorage.ActionRequestStorageEntry{pendingRow(1, "0xaaa")}}
	idx := &mockIndexer{confirmed: map[string]bool{"0xaaa": true}}
	svc := newTestService(t, st, idx)

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, []int64{1, 1}, st.marked)
}
