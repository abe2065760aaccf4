// Package cryptoprims implements the cryptographic primitives named in §4.3
// and §4.6: hashes, signature verification, batch verification and recovery,
// and deterministic address derivation.
package cryptoprims

import (
	ecdsaStd "crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hdevalence/ed25519consensus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // still the canonical Go ripemd160, per §6 address derivation
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"grugchain/core/gtypes"
)

var (
	ErrInvalidSignatureLength = errors.New("cryptoprims: invalid signature length")
	ErrInvalidPubkeyLength    = errors.New("cryptoprims: invalid public key length")
	ErrHighS                  = errors.New("cryptoprims: secp256k1 signature is not low-S")
)

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) gtypes.Hash { return gtypes.HashBytes(data) }

// Sha512 returns the 64-byte SHA-512 digest of data.
func Sha512(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// Sha3_256 returns the 32-byte SHA3-256 digest of data.
func Sha3_256(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}

// Keccak256 returns the 32-byte Keccak-256 digest, grounded on the teacher's
// use of go-ethereum's crypto package for EVM-style hashing.
func Keccak256(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// Blake2s returns the 32-byte BLAKE2s digest.
func Blake2s(data []byte) []byte {
	sum := blake2s.Sum256(data)
	return sum[:]
}

// Blake2b returns the 32-byte BLAKE2b-256 digest.
func Blake2b(data []byte) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// Blake3 returns the 32-byte BLAKE3 digest.
func Blake3(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// Secp256k1Verify verifies a 64-byte compact (r||s) signature over a 32-byte
// message hash using a 33-byte compressed public key. Determinism requires
// low-S signatures (§5); a signature with a high S value is rejected rather
// than silently normalized, so two validators can never disagree about
// whether a signature was accepted.
func Secp256k1Verify(pubkeyCompressed, hash, sig []byte) (bool, error) {
	if len(sig) != 64 {
		return false, ErrInvalidSignatureLength
	}
	pub, err := secp256k1.ParsePubKey(pubkeyCompressed)
	if err != nil {
		return false, fmt.Errorf("cryptoprims: parse secp256k1 pubkey: %w", err)
	}
	r := new(secp256k1.ModNScalar)
	s := new(secp256k1.ModNScalar)
	r.SetByteSlice(sig[:32])
	s.SetByteSlice(sig[32:])
	if s.IsOverHalfOrder() {
		return false, ErrHighS
	}
	signature := ecdsa.NewSignature(r, s)
	return signature.Verify(hash, pub), nil
}

// Secp256k1PubkeyRecover recovers a 33-byte compressed public key from a
// signature and message hash given a recovery id in [0,3].
func Secp256k1PubkeyRecover(hash, sig []byte, recoveryID byte) ([]byte, error) {
	if len(sig) != 64 {
		return nil, ErrInvalidSignatureLength
	}
	compact := make([]byte, 65)
	compact[0] = recoveryID + 27
	copy(compact[1:], sig)
	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("cryptoprims: recover pubkey: %w", err)
	}
	return pub.SerializeCompressed(), nil
}

// Secp256r1Verify verifies a 64-byte raw (r||s) signature over a
// 32-byte message hash using an uncompressed P-256 public key. No pack
// example imports a dedicated secp256r1 library (DESIGN.md); stdlib's
// constant-time P-256 implementation is used instead.
func Secp256r1Verify(pubkeyUncompressed, hash, sig []byte) (bool, error) {
	if len(sig) != 64 {
		return false, ErrInvalidSignatureLength
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), pubkeyUncompressed)
	if x == nil {
		return false, ErrInvalidPubkeyLength
	}
	pub := &ecdsaStd.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsaStd.Verify(pub, hash, r, s), nil
}

// Ed25519Verify verifies a single signature.
func Ed25519Verify(pubkey, msg, sig []byte) bool {
	return ed25519consensus.Verify(pubkey, msg, sig)
}

// Ed25519BatchVerify verifies many signatures at once, rejecting the whole
// batch if any one signature is invalid (§4.6 ed25519_batch_verify).
func Ed25519BatchVerify(pubkeys, msgs, sigs [][]byte) (bool, error) {
	if len(pubkeys) != len(msgs) || len(msgs) != len(sigs) {
		return false, fmt.Errorf("cryptoprims: batch verify: mismatched slice lengths")
	}
	verifier := ed25519consensus.NewBatchVerifier()
	for i := range pubkeys {
		verifier.Add(pubkeys[i], msgs[i], sigs[i])
	}
	return verifier.Verify(), nil
}

// DeriveAddress implements §6: addr = RIPEMD160(SHA256(deployer || code_hash
// || salt)).
func DeriveAddress(deployer gtypes.Address, codeHash gtypes.Hash, salt []byte) (gtypes.Address, error) {
	preimage := make([]byte, 0, len(deployer)+len(codeHash)+len(salt))
	preimage = append(preimage, deployer.Bytes()...)
	preimage = append(preimage, codeHash.Bytes()...)
	preimage = append(preimage, salt...)

	shaSum := sha256.Sum256(preimage)
	r := ripemd160.New()
	r.Write(shaSum[:])
	return gtypes.AddressFromSlice(r.Sum(nil))
}
