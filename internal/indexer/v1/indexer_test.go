package indexer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/logger"
)

// subgraphStub answers the asuna and request queries from fixed maps keyed by
// the GraphQL variable value.
type subgraphStub struct {
	asunas   map[string][]string
	requests map[string]bool
}

func (s *subgraphStub) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Variables map[string]string `json:"variables"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if asunaID, ok := req.Variables["asunaId"]; ok {
		accessories, exists := s.asunas[asunaID]
		if !exists {
			_, _ = w.Write([]byte(`{"data": {"asuna": null}}`))
			return
		}
		type wrapped struct {
			Accessory map[string]string `json:"accessory"`
		}
		equipped := make([]wrapped, 0, len(accessories))
		for _, tokenID := range accessories {
			equipped = append(equipped, wrapped{Accessory: map[string]string{"token_id": tokenID}})
		}
		payload := map[string]interface{}{
			"data": map[string]interface{}{
				"asuna": map[string]interface{}{"token_id": asunaID, "accessories": equipped},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	requestID := req.Variables["requestId"]
	if s.requests[requestID] {
		_, _ = w.Write([]byte(`{"data": {"request": {"transaction": "` + requestID + `"}}}`))
		return
	}
	_, _ = w.Write([]byte(`{"data": {"request": null}}`))
}

func newTestClient(t *testing.T, stub *subgraphStub) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	client := InitClient(&config.IndexerConfig{SubgraphAddress: server.URL}, logger.InitLog())
	return client, server.Close
}

func TestAsunaSnapshot_ParsesAccessories(t *testing.T) {
	client, closeServer := newTestClient(t, &subgraphStub{
		asunas: map[string][]string{"asuna-7": {"10", "11"}},
	})
	defer closeServer()

	snapshot, err := client.AsunaSnapshot(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, int64(7), snapshot.AsunaID)
	assert.Equal(t, []int64{10, 11}, snapshot.AccessoryIDs)
	assert.True(t, snapshot.Equipped(10))
	assert.False(t, snapshot.Equipped(12))
}

func TestAsunaSnapshot_MissingAsuna(t *testing.T) {
	client, closeServer := newTestClient(t, &subgraphStub{})
	defer closeServer()

	snapshot, err := client.AsunaSnapshot(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestRequestConfirmed_KeyedByTransactionHash(t *testing.T) {
	client, closeServer := newTestClient(t, &subgraphStub{
		requests: map[string]bool{"req-0xfeed": true},
	})
	defer closeServer()

	confirmed, err := client.RequestConfirmed(context.Background(), "0xfeed")
	require.NoError(t, err)
	assert.True(t, confirmed)

	confirmed, err = client.RequestConfirmed(context.Background(), "0xother")
	require.NoError(t, err)
	assert.False(t, confirmed)
}
