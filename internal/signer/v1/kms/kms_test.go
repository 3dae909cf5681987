package kms

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/logger"
	signerErrors "github.com/asunaverse/equipledger/internal/signer/v1/errors"
)

var oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// fakeKeyClient signs with a local secp256k1 key while presenting the KMS
// API shape: DER-encoded public key material and DER-encoded signatures.
type fakeKeyClient struct {
	key       *ecdsa.PrivateKey
	pubErr    error
	signErr   error
	signCalls int
}

func (f *fakeKeyClient) GetPublicKey(_ context.Context, _ *awskms.GetPublicKeyInput, _ ...func(*awskms.Options)) (*awskms.GetPublicKeyOutput, error) {
	if f.pubErr != nil {
		return nil, f.pubErr
	}
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: algorithmIdentifier{Algorithm: oidECPublicKey, Parameters: asn1.NullRawValue},
		PublicKey: asn1.BitString{Bytes: crypto.FromECDSAPub(&f.key.PublicKey), BitLength: 65 * 8},
	})
	if err != nil {
		return nil, err
	}
	return &awskms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKeyClient) Sign(_ context.Context, params *awskms.SignInput, _ ...func(*awskms.Options)) (*awskms.SignOutput, error) {
	f.signCalls++
	if f.signErr != nil {
		return nil, f.signErr
	}
	r, s, err := ecdsa.Sign(rand.Reader, f.key, params.Message)
	if err != nil {
		return nil, err
	}
	der, err := asn1.Marshal(ecdsaSigValue{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &awskms.SignOutput{Signature: der}, nil
}

func newTestSigner(t *testing.T) (*Signer, *fakeKeyClient, common.Address) {
	t.Helper()
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	client := &fakeKeyClient{key: key}
	sgn, err := InitSigner(client, "arn:aws:kms:test-key", big.NewInt(80001), logger.InitLog())
	require.NoError(t, err)
	return sgn, client, crypto.PubkeyToAddress(key.PublicKey)
}

func TestInitSigner_NilClient(t *testing.T) {
	_, err := InitSigner(nil, "key", big.NewInt(1), logger.InitLog())
	assert.Error(t, err)
}

func TestAddress_DerivesFromPublicKey(t *testing.T) {
	sgn, _, want := newTestSigner(t)
	got, err := sgn.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAddress_MemoizesResolution(t *testing.T) {
	sgn, client, _ := newTestSigner(t)
	_, err := sgn.Address(context.Background())
	require.NoError(t, err)
	client.pubErr = errors.New("key service is down")
	_, err = sgn.Address(context.Background())
	assert.NoError(t, err)
}

func TestSignDigest_RecoversToSignerAddress(t *testing.T) {
	sgn, _, want := newTestSigner(t)
	digest := sha256.Sum256([]byte("equip accessory 42"))
	sig, err := sgn.SignDigest(context.Background(), digest)
	require.NoError(t, err)

	pub, err := crypto.Ecrecover(digest[:], sig.Bytes())
	require.NoError(t, err)
	recovered := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
	assert.Equal(t, want, recovered)
}

func TestSignDigest_AlwaysLowS(t *testing.T) {
	sgn, _, _ := newTestSigner(t)
	for i := 0; i < 16; i++ {
		digest := sha256.Sum256([]byte{byte(i)})
		sig, err := sgn.SignDigest(context.Background(), digest)
		require.NoError(t, err)
		assert.LessOrEqual(t, sig.S.Cmp(secp256k1HalfN), 0)
	}
}

func TestSignDigest_UnavailableKeyService(t *testing.T) {
	sgn, client, _ := newTestSigner(t)
	_, err := sgn.Address(context.Background())
	require.NoError(t, err)
	client.signErr = errors.New("throttled")
	digest := sha256.Sum256([]byte("payload"))
	_, err = sgn.SignDigest(context.Background(), digest)
	var unavailableError *signerErrors.UnavailableError
	assert.ErrorAs(t, err, &unavailableError)
}

func TestSignTransaction_SenderMatches(t *testing.T) {
	sgn, _, want := newTestSigner(t)
	unsigned := types.NewTransaction(7, common.HexToAddress("0x1"), big.NewInt(0), 500000, big.NewInt(50000000000), []byte{0x01})
	signed, err := sgn.SignTransaction(context.Background(), unsigned)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(80001)), signed)
	require.NoError(t, err)
	assert.Equal(t, want, sender)
}

func TestSignMessage_RecoversWithTextHash(t *testing.T) {
	sgn, _, want := newTestSigner(t)
	msg := []byte("login to the accessory ledger")
	sig, err := sgn.SignMessage(context.Background(), msg)
	require.NoError(t, err)

	pub, err := crypto.Ecrecover(accounts.TextHash(msg), sig.Bytes())
	require.NoError(t, err)
	recovered := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
	assert.Equal(t, want, recovered)
}

func TestAddressFromDER_RejectsMalformedKey(t *testing.T) {
	_, err := AddressFromDER([]byte{0xde, 0xad, 0xbe, 0xef})
	var malformedKeyError *signerErrors.MalformedKeyError
	assert.ErrorAs(t, err, &malformedKeyError)
}

func TestDecodeDERSignature_NormalizesHighS(t *testing.T) {
	r := big.NewInt(12345)
	highS := new(big.Int).Sub(secp256k1N, big.NewInt(67890))
	der, err := asn1.Marshal(ecdsaSigValue{R: r, S: highS})
	require.NoError(t, err)

	gotR, gotS, err := DecodeDERSignature(der)
	require.NoError(t, err)
	assert.Equal(t, r, gotR)
	assert.Equal(t, big.NewInt(67890), gotS)
}

func TestFindRecoveryID_MismatchedAddress(t *testing.T) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("payload"))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	_, err = findRecoveryID(digest[:], r, s, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	var mismatchError *signerErrors.MismatchError
	assert.ErrorAs(t, err, &mismatchError)
}
