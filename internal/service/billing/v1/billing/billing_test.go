package billing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/coinbase/v1"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/models/modeldto"
	"github.com/asunaverse/equipledger/internal/models/modelstorage"
	serviceErrors "github.com/asunaverse/equipledger/internal/service/billing/v1/errors"
	"github.com/asunaverse/equipledger/internal/storage/v1"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
)

// mockStorage implements storage.Storage; only the user lookup and charge
// insert carry behavior.
type mockStorage struct {
	mu      sync.Mutex
	user    modelstorage.UserStorageEntry
	userErr error
	charges []modelstorage.ChargeStorageEntry
}

func (m *mockStorage) AddNewUser(_ context.Context, _ string, _ string) error { return nil }
func (m *mockStorage) GetUserByAddress(_ context.Context, _ string) (modelstorage.UserStorageEntry, error) {
	return m.user, m.userErr
}
func (m *mockStorage) GetCurrentAmount(_ context.Context, _ string) (int64, error) { return 0, nil }
func (m *mockStorage) CreateActionRequests(_ context.Context, _ storage.NewActionRequests, _ storage.SubmitFunc, _ storage.MakeEventFunc) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}
func (m *mockStorage) GetPendingRequests(_ context.Context) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}
func (m *mockStorage) GetPendingRequestsByTarget(_ context.Context, _ int64, _ string, _ []int64) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}
func (m *mockStorage) GetRequestsByAsuna(_ context.Context, _ int64, _ string, _ string, _ int) ([]modelstorage.ActionRequestStorageEntry, error) {
	return nil, nil
}
func (m *mockStorage) MarkRequestSuccess(_ context.Context, _ int64) error { return nil }

func (m *mockStorage) AddNewCharge(_ context.Context, charge modelstorage.ChargeStorageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, charge)
	return nil
}
func (m *mockStorage) GetCharge(_ context.Context, _ string) (modelstorage.ChargeStorageEntry, error) {
	return modelstorage.ChargeStorageEntry{}, nil
}
func (m *mockStorage) SetChargeStatus(_ context.Context, _ string, _ string) error { return nil }
func (m *mockStorage) CompleteChargeAndCredit(_ context.Context, _ string, _ int64) (bool, error) {
	return false, nil
}
func (m *mockStorage) GetUnsentEvents(_ context.Context, _ int) ([]modelstorage.OutboxStorageEntry, error) {
	return nil, nil
}
func (m *mockStorage) MarkEventSent(_ context.Context, _ int64) error { return nil }

// mockCommerce returns a fixed hosted charge resource.
type mockCommerce struct {
	resource   coinbase.ChargeResource
	err        error
	lastAmount int64
}

func (m *mockCommerce) CreateCharge(_ context.Context, _ string, _ string, amountUSD int64) (coinbase.ChargeResource, error) {
	m.lastAmount = amountUSD
	return m.resource, m.err
}

func newTestService(t *testing.T, st *mockStorage, commerce *mockCommerce) *Service {
	t.Helper()
	svc, err := InitService(st, commerce, &config.CommerceConfig{CreditPerDollar: 25}, logger.InitLog())
	require.NoError(t, err)
	return svc
}

func TestCreateCharge_PersistsNewCharge(t *testing.T) {
	st := &mockStorage{user: modelstorage.UserStorageEntry{UserID: "u-1", Address: "0xabc"}}
	commerce := &mockCommerce{resource: coinbase.ChargeResource{ID: "ch-1", HostedURL: "https://commerce.test/pay/ch-1"}}
	svc := newTestService(t, st, commerce)

	charge, err := svc.CreateCharge(context.Background(), "0xabc", modeldto.NewCharge{Amount: 4})
	require.NoError(t, err)
	assert.Equal(t, "ch-1", charge.ID)
	assert.Equal(t, modelstorage.ChargeStatusNew, charge.Status)
	assert.Equal(t, "https://commerce.test/pay/ch-1", charge.HostedURL)
	assert.Equal(t, int64(4), commerce.lastAmount)

	require.Len(t, st.charges, 1)
	assert.Equal(t, "u-1", st.charges[0].UserID)
	assert.Equal(t, int64(4), st.charges[0].Amount)
	assert.Equal(t, modelstorage.ChargeStatusNew, st.charges[0].Status)
}

func TestCreateCharge_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, &mockStorage{}, &mockCommerce{})
	_, err := svc.CreateCharge(context.Background(), "0xabc", modeldto.NewCharge{Amount: 0})
	var illegalAmountError *serviceErrors.IllegalAmountError
	assert.ErrorAs(t, err, &illegalAmountError)
}

func TestCreateCharge_UnknownUser(t *testing.T) {
	st := &mockStorage{userErr: &storageErrors.NotFoundError{}}
	commerce := &mockCommerce{}
	svc := newTestService(t, st, commerce)

	_, err := svc.CreateCharge(context.Background(), "0xabc", modeldto.NewCharge{Amount: 4})
	var notFoundError *storageErrors.NotFoundError
	assert.ErrorAs(t, err, &notFoundError)
	assert.Zero(t, commerce.lastAmount)
}

func TestCreateCharge_CommerceFailureLeavesNoRow(t *testing.T) {
	st := &mockStorage{user: modelstorage.UserStorageEntry{UserID: "u-1"}}
	svc := newTestService(t, st, &mockCommerce{err: errors.New("commerce returned 503")})

	_, err := svc.CreateCharge(context.Background(), "0xabc", modeldto.NewCharge{Amount: 4})
	assert.Error(t, err)
	assert.Empty(t, st.charges)
}
