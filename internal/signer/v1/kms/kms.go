// Package kms implements the remote signing contract on top of an AWS KMS key.
// The raw private key never leaves the key service; the recovery id and the
// canonical low-S form are computed locally from the DER material KMS returns.
package kms

import (
	"context"
	"encoding/asn1"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/signer/v1"
	signerErrors "github.com/asunaverse/equipledger/internal/signer/v1/errors"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(new(big.Int).Set(secp256k1N), 1)
)

// KeyClient is the subset of the KMS API the signer depends on.
type KeyClient interface {
	GetPublicKey(ctx context.Context, params *awskms.GetPublicKeyInput, optFns ...func(*awskms.Options)) (*awskms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *awskms.SignInput, optFns ...func(*awskms.Options)) (*awskms.SignOutput, error)
}

// Signer derives a stable account identity from a KMS key and signs digests with it.
type Signer struct {
	client  KeyClient
	keyID   string
	chainID *big.Int
	log     *zerolog.Logger

	mu       sync.Mutex
	address  common.Address
	resolved bool
}

// InitSigner initializes a KMS-backed signer for one key and one chain.
func InitSigner(client KeyClient, keyID string, chainID *big.Int, log *zerolog.Logger) (*Signer, error) {
	if client == nil {
		return nil, &signerErrors.UnavailableError{Msg: "nil key client was passed to signer initializer"}
	}
	return &Signer{
		client:  client,
		keyID:   keyID,
		chainID: chainID,
		log:     log,
	}, nil
}

// Address returns the account address bound to the remote key. The first call
// performs a GetPublicKey round trip; the result is memoized for the process
// lifetime.
func (s *Signer) Address(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.address, nil
	}
	out, err := s.client.GetPublicKey(ctx, &awskms.GetPublicKeyInput{KeyId: aws.String(s.keyID)})
	if err != nil {
		return common.Address{}, &signerErrors.UnavailableError{Msg: "public key request failed", Err: err}
	}
	if out.PublicKey == nil {
		return common.Address{}, &signerErrors.UnavailableError{Msg: "missing public key"}
	}
	address, err := AddressFromDER(out.PublicKey)
	if err != nil {
		return common.Address{}, err
	}
	s.address = address
	s.resolved = true
	s.log.Info().Msg(fmt.Sprintf("resolved hot wallet address %s", address.Hex()))
	return address, nil
}

// SignDigest requests a raw digest-mode ECDSA signature from KMS and converts
// it to canonical [r, s, v] form. A recovered address that matches neither
// candidate encoding is fatal and must not be retried.
func (s *Signer) SignDigest(ctx context.Context, digest [32]byte) (*signer.Signature, error) {
	address, err := s.Address(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.client.Sign(ctx, &awskms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest[:],
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, &signerErrors.UnavailableError{Msg: "sign request failed", Err: err}
	}
	if out.Signature == nil {
		return nil, &signerErrors.UnavailableError{Msg: "missing signature"}
	}
	r, sVal, err := DecodeDERSignature(out.Signature)
	if err != nil {
		return nil, err
	}
	v, err := findRecoveryID(digest[:], r, sVal, address)
	if err != nil {
		return nil, err
	}
	return &signer.Signature{R: r, S: sVal, V: v}, nil
}

// SignTransaction hashes the unsigned transaction per EIP-155, signs the
// digest remotely and attaches the signature.
func (s *Signer) SignTransaction(ctx context.Context, txn *types.Transaction) (*types.Transaction, error) {
	chainSigner := types.LatestSignerForChainID(s.chainID)
	var digest [32]byte
	copy(digest[:], chainSigner.Hash(txn).Bytes())
	sig, err := s.SignDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	return txn.WithSignature(chainSigner, sig.Bytes())
}

// SignMessage applies the personal-message prefix hashing scheme before signing.
func (s *Signer) SignMessage(ctx context.Context, msg []byte) (*signer.Signature, error) {
	var digest [32]byte
	copy(digest[:], accounts.TextHash(msg))
	return s.SignDigest(ctx, digest)
}

// ecdsaSigValue is the RFC 3279 ECDSA-Sig-Value sequence.
type ecdsaSigValue struct {
	R *big.Int
	S *big.Int
}

// algorithmIdentifier and subjectPublicKeyInfo follow RFC 5480 section 2.
type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type subjectPublicKeyInfo struct {
	Algorithm algorithmIdentifier
	PublicKey asn1.BitString
}

// AddressFromDER extracts the uncompressed curve point from a DER-encoded EC
// public key and derives the account address from its keccak-256 hash.
func AddressFromDER(der []byte) (common.Address, error) {
	var pki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &pki); err != nil {
		return common.Address{}, &signerErrors.MalformedKeyError{Err: err}
	}
	point := pki.PublicKey.Bytes
	if len(point) != 65 || point[0] != 0x04 {
		return common.Address{}, &signerErrors.MalformedKeyError{Err: fmt.Errorf("unexpected public key point of %d bytes", len(point))}
	}
	hash := crypto.Keccak256(point[1:])
	return common.BytesToAddress(hash[12:]), nil
}

// DecodeDERSignature decodes a DER (r, s) pair and normalizes s to its low-S
// form so downstream consumers never reject a malleable signature.
func DecodeDERSignature(der []byte) (r *big.Int, s *big.Int, err error) {
	var sig ecdsaSigValue
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, nil, &signerErrors.MalformedKeyError{Err: err}
	}
	r, s = sig.R, sig.S
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	return r, s, nil
}

// findRecoveryID tries both candidate recovery ids and selects the one whose
// recovered address matches the signer address.
func findRecoveryID(digest []byte, r *big.Int, s *big.Int, want common.Address) (byte, error) {
	candidate := signer.Signature{R: r, S: s}
	for _, v := range []byte{0, 1} {
		candidate.V = v
		pub, err := crypto.Ecrecover(digest, candidate.Bytes())
		if err != nil {
			continue
		}
		recovered := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
		if strings.EqualFold(recovered.Hex(), want.Hex()) {
			return v, nil
		}
	}
	return 0, &signerErrors.MismatchError{Address: want.Hex()}
}
