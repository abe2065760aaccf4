package cryptoprims

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"grugchain/core/gtypes"
)

type derSignature struct {
	R, S *big.Int
}

func TestAddressDerivationIsDeterministic(t *testing.T) {
	deployer := gtypes.Address{1, 2, 3}
	codeHash := gtypes.HashBytes([]byte("code"))
	salt := []byte("salt")

	a1, err := DeriveAddress(deployer, codeHash, salt)
	require.NoError(t, err)
	a2, err := DeriveAddress(deployer, codeHash, salt)
	require.NoError(t, err)
	require.Equal(t, a1, a2)

	a3, err := DeriveAddress(deployer, codeHash, []byte("different-salt"))
	require.NoError(t, err)
	require.NotEqual(t, a1, a3)
}

func TestSecp256k1VerifyRejectsHighS(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	hash := Sha256([]byte("message")).Bytes()

	sig := ecdsa.Sign(priv, hash) // dcrd's ecdsa.Sign always produces a low-S signature

	var der derSignature
	_, err = asn1.Unmarshal(sig.Serialize(), &der)
	require.NoError(t, err)

	raw := make([]byte, 64)
	rBytes, sBytes := der.R.Bytes(), der.S.Bytes()
	copy(raw[32-len(rBytes):32], rBytes)
	copy(raw[64-len(sBytes):64], sBytes)

	ok, err := Secp256k1Verify(priv.PubKey().SerializeCompressed(), hash, raw)
	require.NoError(t, err)
	require.True(t, ok)

	// the same signature with S replaced by n-S is equally valid
	// mathematically, but is high-S and must be rejected.
	var sScalar secp256k1.ModNScalar
	sScalar.SetByteSlice(raw[32:])
	sScalar.Negate()
	highS := make([]byte, 64)
	copy(highS[:32], raw[:32])
	sNeg := sScalar.Bytes()
	copy(highS[32:], sNeg[:])

	_, err = Secp256k1Verify(priv.PubKey().SerializeCompressed(), hash, highS)
	require.ErrorIs(t, err, ErrHighS)
}

func TestEd25519VerifyAndBatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	msg := []byte("hello")
	sig := ed25519.Sign(priv, msg)

	require.True(t, Ed25519Verify(pub, msg, sig))

	ok, err := Ed25519BatchVerify([][]byte{pub}, [][]byte{msg}, [][]byte{sig})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHashFunctionsProduceFixedLength(t *testing.T) {
	require.Len(t, Sha512([]byte("x")), 64)
	require.Len(t, Sha3_256([]byte("x")), 32)
	require.Len(t, Keccak256([]byte("x")), 32)
	require.Len(t, Blake3([]byte("x")), 32)
	b2b, err := Blake2b([]byte("x"))
	require.NoError(t, err)
	require.Len(t, b2b, 32)
}
