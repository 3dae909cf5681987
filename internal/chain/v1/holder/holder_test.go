package holder

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/logger"
	"github.com/asunaverse/equipledger/internal/signer/v1"
)

// localSigner implements the signing contract with an in-process key.
type localSigner struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func (s *localSigner) Address(_ context.Context) (common.Address, error) {
	return crypto.PubkeyToAddress(s.key.PublicKey), nil
}

func (s *localSigner) SignDigest(_ context.Context, digest [32]byte) (*signer.Signature, error) {
	raw, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, err
	}
	return &signer.Signature{
		R: new(big.Int).SetBytes(raw[:32]),
		S: new(big.Int).SetBytes(raw[32:64]),
		V: raw[64],
	}, nil
}

func (s *localSigner) SignTransaction(_ context.Context, txn *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(txn, types.LatestSignerForChainID(s.chainID), s.key)
}

func (s *localSigner) SignMessage(_ context.Context, _ []byte) (*signer.Signature, error) {
	return nil, nil
}

// mockRPC serves a fixed nonce and captures the submitted transaction.
type mockRPC struct {
	nonce     uint64
	submitted *types.Transaction
}

func (m *mockRPC) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return m.nonce, nil
}

func (m *mockRPC) SendTransaction(_ context.Context, txn *types.Transaction) error {
	m.submitted = txn
	return nil
}

func newTestContract(t *testing.T, rpc *mockRPC) (*Contract, *localSigner) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sgn := &localSigner{key: key, chainID: big.NewInt(80001)}
	contract, err := InitContract(rpc, sgn, &config.ChainConfig{
		ChainID:       80001,
		HolderAddress: "0x00000000000000000000000000000000000000aa",
		GasPriceGwei:  50,
		GasLimit:      500000,
	}, logger.InitLog())
	require.NoError(t, err)
	return contract, sgn
}

func TestEquipAccessories_BuildsAndSubmits(t *testing.T) {
	rpc := &mockRPC{nonce: 9}
	contract, sgn := newTestContract(t, rpc)

	hash, err := contract.EquipAccessories(context.Background(), 7, []int64{10, 11}, "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)
	require.NotNil(t, rpc.submitted)
	assert.Equal(t, rpc.submitted.Hash().Hex(), hash)
	assert.Equal(t, uint64(9), rpc.submitted.Nonce())
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), *rpc.submitted.To())
	assert.Equal(t, new(big.Int).Mul(big.NewInt(50), big.NewInt(params.GWei)), rpc.submitted.GasPrice())
	assert.Equal(t, uint64(500000), rpc.submitted.Gas())
	assert.Zero(t, rpc.submitted.Value().Sign())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(80001)), rpc.submitted)
	require.NoError(t, err)
	want, _ := sgn.Address(context.Background())
	assert.Equal(t, want, sender)
}

func TestEquipAccessories_EncodesUnitAmounts(t *testing.T) {
	rpc := &mockRPC{}
	contract, _ := newTestContract(t, rpc)

	_, err := contract.EquipAccessories(context.Background(), 7, []int64{10, 11, 12}, "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)

	data := rpc.submitted.Data()
	method, err := contract.abi.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "equipAccessories", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, big.NewInt(7), args[0])
	assert.Equal(t, []*big.Int{big.NewInt(10), big.NewInt(11), big.NewInt(12)}, args[1])
	assert.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(1), big.NewInt(1)}, args[2])
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000bb"), args[3])
}

func TestUnequipAccessories_UsesUnequipMethod(t *testing.T) {
	rpc := &mockRPC{}
	contract, _ := newTestContract(t, rpc)

	_, err := contract.UnequipAccessories(context.Background(), 7, []int64{10}, "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)

	method, err := contract.abi.MethodById(rpc.submitted.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "unequipAccessories", method.Name)
}
