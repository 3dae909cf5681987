// Package indexer implements a client for querying the accessory subgraph.
// The subgraph mirrors on-chain state and is eventually consistent with the
// chain; it is never treated as authoritative for local invariants until the
// reconciler has acted on it.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
)

// Indexer exposes the two subgraph lookups the ledger depends on.
type Indexer interface {
	AsunaSnapshot(ctx context.Context, asunaID int64) (*Snapshot, error)
	RequestConfirmed(ctx context.Context, txnHash string) (bool, error)
}

// Snapshot is the indexer's view of one asuna and its equipped accessories.
type Snapshot struct {
	AsunaID      int64
	AccessoryIDs []int64
}

// Equipped reports whether the snapshot carries the given accessory.
func (s *Snapshot) Equipped(accessoryID int64) bool {
	for _, id := range s.AccessoryIDs {
		if id == accessoryID {
			return true
		}
	}
	return false
}

// Client defines attributes of a struct available to its methods.
type Client struct {
	client        *resty.Client
	indexerConfig *config.IndexerConfig
	log           *zerolog.Logger
}

// InitClient initializes a resty client for the subgraph endpoint.
func InitClient(indexerConfig *config.IndexerConfig, log *zerolog.Logger) *Client {
	subgraphClient := resty.New()
	log.Info().Msg("accessory subgraph client initialized")
	return &Client{client: subgraphClient, indexerConfig: indexerConfig, log: log}
}

const asunaQuery = `query getToken($asunaId: String!) {
	asuna(id: $asunaId) {
		token_id
		accessories {
			accessory {
				token_id
			}
		}
	}
}`

const requestQuery = `query getRequest($requestId: String!) {
	request(id: $requestId) {
		transaction
	}
}`

type gqlRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type asunaResponse struct {
	Data struct {
		Asuna *struct {
			TokenID     string `json:"token_id"`
			Accessories []struct {
				Accessory struct {
					TokenID string `json:"token_id"`
				} `json:"accessory"`
			} `json:"accessories"`
		} `json:"asuna"`
	} `json:"data"`
}

type requestResponse struct {
	Data struct {
		Request *struct {
			Transaction string `json:"transaction"`
		} `json:"request"`
	} `json:"data"`
}

// AsunaSnapshot queries the subgraph for an asuna and its equipped accessory
// token ids. A missing asuna yields a nil snapshot.
func (c *Client) AsunaSnapshot(ctx context.Context, asunaID int64) (*Snapshot, error) {
	body := gqlRequest{
		Query:     asunaQuery,
		Variables: map[string]string{"asunaId": fmt.Sprintf("asuna-%d", asunaID)},
	}
	response, err := c.client.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(body).Post(c.indexerConfig.SubgraphAddress)
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("asuna snapshot retrieval failed for asuna %d", asunaID))
		return nil, err
	}
	var parsed asunaResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("asuna snapshot decoding failed for asuna %d", asunaID))
		return nil, err
	}
	if parsed.Data.Asuna == nil {
		return nil, nil
	}
	snapshot := Snapshot{AsunaID: asunaID}
	for _, equipped := range parsed.Data.Asuna.Accessories {
		tokenID, err := strconv.ParseInt(equipped.Accessory.TokenID, 10, 64)
		if err != nil {
			return nil, err
		}
		snapshot.AccessoryIDs = append(snapshot.AccessoryIDs, tokenID)
	}
	return &snapshot, nil
}

// RequestConfirmed reports whether the subgraph has recorded the request
// derived from the given transaction hash.
func (c *Client) RequestConfirmed(ctx context.Context, txnHash string) (bool, error) {
	body := gqlRequest{
		Query:     requestQuery,
		Variables: map[string]string{"requestId": "req-" + txnHash},
	}
	response, err := c.client.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(body).Post(c.indexerConfig.SubgraphAddress)
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("request confirmation retrieval failed for hash %s", txnHash))
		return false, err
	}
	var parsed requestResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("request confirmation decoding failed for hash %s", txnHash))
		return false, err
	}
	return parsed.Data.Request != nil, nil
}
