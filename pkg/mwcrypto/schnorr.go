package mwcrypto

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/blake2b"
)

// SignatureSize is the length of a serialized signature: the aggregate
// public nonce followed by the s value.
const SignatureSize = CommitmentSize + 32

var (
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("signature does not verify")
	// ErrMalformedSignature ...
	ErrMalformedSignature = errors.New("signature must be a 65 byte value in hex format")
	// ErrNonceSumMismatch ...
	ErrNonceSumMismatch = errors.New("partial signatures commit to different aggregate nonces")
	// ErrKernelSumMismatch ...
	ErrKernelSumMismatch = errors.New("transaction commitments do not balance with the kernel excess")
	// ErrNoSignatures ...
	ErrNoSignatures = errors.New("signature list must not be empty")
)

// Signature is an aggregate-nonce Schnorr signature (R, s). Partial
// signatures carry the aggregate nonce R so they can be summed directly.
type Signature struct {
	R Commitment
	S btcec.ModNScalar
}

// ParseSignature decodes a hex signature.
func ParseSignature(str string) (Signature, error) {
	buf, err := hex.DecodeString(str)
	if err != nil || len(buf) != SignatureSize {
		return Signature{}, ErrMalformedSignature
	}
	r, err := ParseCommitment(hex.EncodeToString(buf[:CommitmentSize]))
	if err != nil {
		return Signature{}, ErrMalformedSignature
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(buf[CommitmentSize:]); overflow {
		return Signature{}, ErrMalformedSignature
	}
	return Signature{R: r, S: s}, nil
}

// String returns the hex encoding of the signature.
func (sig Signature) String() string {
	s := sig.S.Bytes()
	return hex.EncodeToString(append(sig.R[:], s[:]...))
}

// Challenge computes e = H(R || P || m) mod n.
func Challenge(nonceSum, keySum *btcec.PublicKey, msg [32]byte) btcec.ModNScalar {
	h, _ := blake2b.New256(nil)
	h.Write(nonceSum.SerializeCompressed())
	h.Write(keySum.SerializeCompressed())
	h.Write(msg[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	var e btcec.ModNScalar
	e.SetBytes(&digest)
	return e
}

// PartialSign returns s_i = k_i + e*x_i where e is bound to the aggregate
// nonce and the aggregate public key of all participants.
func PartialSign(
	secret, nonce *btcec.ModNScalar,
	nonceSum, keySum *btcec.PublicKey, msg [32]byte,
) Signature {
	e := Challenge(nonceSum, keySum, msg)
	var s btcec.ModNScalar
	s.Mul2(&e, secret).Add(nonce)
	return Signature{R: CommitmentFromPubKey(nonceSum), S: s}
}

// VerifyPartial checks s_i*G == R_i + e*P_i for a single participant.
func VerifyPartial(
	sig Signature, pubNonce, pubKey, nonceSum, keySum *btcec.PublicKey,
	msg [32]byte,
) error {
	if sig.R != CommitmentFromPubKey(nonceSum) {
		return ErrNonceSumMismatch
	}
	e := Challenge(nonceSum, keySum, msg)
	return verify(&sig.S, &e, pubNonce, pubKey)
}

// Aggregate sums the partial signatures of all participants.
func Aggregate(sigs []Signature) (Signature, error) {
	if len(sigs) == 0 {
		return Signature{}, ErrNoSignatures
	}
	agg := Signature{R: sigs[0].R}
	for _, sig := range sigs {
		if sig.R != agg.R {
			return Signature{}, ErrNonceSumMismatch
		}
		agg.S.Add(&sig.S)
	}
	return agg, nil
}

// Verify checks a complete signature against the aggregate public key.
func Verify(sig Signature, keySum *btcec.PublicKey, msg [32]byte) error {
	nonceSum, err := sig.R.PubKey()
	if err != nil {
		return ErrInvalidSignature
	}
	e := Challenge(nonceSum, keySum, msg)
	return verify(&sig.S, &e, nonceSum, keySum)
}

func verify(s, e *btcec.ModNScalar, nonce, key *btcec.PublicKey) error {
	var sG, eP, r, p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(s, &sG)

	key.AsJacobian(&p)
	btcec.ScalarMultNonConst(e, &p, &eP)
	nonce.AsJacobian(&r)
	expected := add(&r, &eP)

	if isInfinity(&sG) || isInfinity(&expected) {
		return ErrInvalidSignature
	}
	sG.ToAffine()
	expected.ToAffine()
	if !sG.X.Equals(&expected.X) || !sG.Y.Equals(&expected.Y) {
		return ErrInvalidSignature
	}
	return nil
}
