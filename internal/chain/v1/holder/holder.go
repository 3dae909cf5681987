// Package holder submits equip and unequip transactions to the accessories
// holder contract through the remote signer, under a fixed gas price policy.
package holder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/signer/v1"
)

const holderABI = `[
	{"name": "equipAccessories", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [
		{"name": "asunaId", "type": "uint256"},
		{"name": "accessoryIds", "type": "uint256[]"},
		{"name": "amounts", "type": "uint256[]"},
		{"name": "asunaOwner", "type": "address"}
	 ], "outputs": []},
	{"name": "unequipAccessories", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [
		{"name": "asunaId", "type": "uint256"},
		{"name": "accessoryIds", "type": "uint256[]"},
		{"name": "amounts", "type": "uint256[]"},
		{"name": "asunaOwner", "type": "address"}
	 ], "outputs": []}
]`

// Submitter sends accessory transactions to the chain and returns their hashes.
type Submitter interface {
	EquipAccessories(ctx context.Context, asunaID int64, accessoryIDs []int64, ownerAddress string) (string, error)
	UnequipAccessories(ctx context.Context, asunaID int64, accessoryIDs []int64, ownerAddress string) (string, error)
}

// RPCClient is the subset of the chain RPC surface the submitter depends on.
type RPCClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, txn *types.Transaction) error
}

// Contract binds the holder contract address to an RPC endpoint and a signer.
type Contract struct {
	rpc         RPCClient
	signer      signer.Signer
	chainConfig *config.ChainConfig
	address     common.Address
	abi         abi.ABI
	log         *zerolog.Logger
}

// InitContract parses the holder ABI and prepares a submitter.
func InitContract(rpc RPCClient, sgn signer.Signer, chainConfig *config.ChainConfig, log *zerolog.Logger) (*Contract, error) {
	parsedABI, err := abi.JSON(strings.NewReader(holderABI))
	if err != nil {
		return nil, err
	}
	return &Contract{
		rpc:         rpc,
		signer:      sgn,
		chainConfig: chainConfig,
		address:     common.HexToAddress(chainConfig.HolderAddress),
		abi:         parsedABI,
		log:         log,
	}, nil
}

// EquipAccessories submits an equip transaction for the given accessory set.
func (c *Contract) EquipAccessories(ctx context.Context, asunaID int64, accessoryIDs []int64, ownerAddress string) (string, error) {
	return c.submit(ctx, "equipAccessories", asunaID, accessoryIDs, ownerAddress)
}

// UnequipAccessories submits an unequip transaction for the given accessory set.
func (c *Contract) UnequipAccessories(ctx context.Context, asunaID int64, accessoryIDs []int64, ownerAddress string) (string, error) {
	return c.submit(ctx, "unequipAccessories", asunaID, accessoryIDs, ownerAddress)
}

func (c *Contract) submit(ctx context.Context, method string, asunaID int64, accessoryIDs []int64, ownerAddress string) (string, error) {
	from, err := c.signer.Address(ctx)
	if err != nil {
		return "", err
	}
	nonce, err := c.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return "", err
	}
	ids := make([]*big.Int, len(accessoryIDs))
	amounts := make([]*big.Int, len(accessoryIDs))
	for i, id := range accessoryIDs {
		ids[i] = big.NewInt(id)
		amounts[i] = big.NewInt(1)
	}
	data, err := c.abi.Pack(method, big.NewInt(asunaID), ids, amounts, common.HexToAddress(ownerAddress))
	if err != nil {
		return "", err
	}
	gasPrice := new(big.Int).Mul(big.NewInt(c.chainConfig.GasPriceGwei), big.NewInt(params.GWei))
	unsigned := types.NewTransaction(nonce, c.address, big.NewInt(0), c.chainConfig.GasLimit, gasPrice, data)
	signed, err := c.signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return "", err
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	hash := signed.Hash().Hex()
	c.log.Info().Msg(fmt.Sprintf("%s submitted for asuna %d, hash %s", method, asunaID, hash))
	return hash, nil
}
