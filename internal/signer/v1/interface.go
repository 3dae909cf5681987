// Package signer defines the remote signing contract for the hot wallet.
package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signature is a canonical secp256k1 signature with its recovery id.
type Signature struct {
	R *big.Int
	S *big.Int
	V byte // recovery id, 0 or 1
}

// Bytes returns the 65-byte [R || S || V] wire form.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, 65)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:64])
	out[64] = sig.V
	return out
}

type Signer interface {
	Address(ctx context.Context) (common.Address, error)
	SignDigest(ctx context.Context, digest [32]byte) (*Signature, error)
	SignTransaction(ctx context.Context, txn *types.Transaction) (*types.Transaction, error)
	SignMessage(ctx context.Context, msg []byte) (*Signature, error)
}
