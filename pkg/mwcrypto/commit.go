// Package mwcrypto implements the small set of curve primitives a
// Mimblewimble wallet relies on: Pedersen commitments, aggregate Schnorr
// partial signatures over kernel messages, and sealed proof envelopes used
// to recognize owned outputs while scanning.
package mwcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// CommitmentSize is the length in bytes of a serialized commitment.
const CommitmentSize = 33

var (
	// ErrInvalidCommitment ...
	ErrInvalidCommitment = errors.New("commitment must be a 33 byte compressed point in hex format")
	// ErrInvalidScalar ...
	ErrInvalidScalar = errors.New("scalar must be a 32 byte value lower than the curve order")
	// ErrPointAtInfinity ...
	ErrPointAtInfinity = errors.New("operation resulted in the point at infinity")
)

// generatorH is the value generator. Nobody knows its discrete log with
// respect to G.
var generatorH = hashToCurve([]byte("walletd/pedersen/generator-h"))

// Commitment is a serialized Pedersen commitment r*G + v*H. Public keys
// (v = 0) share the same encoding.
type Commitment [CommitmentSize]byte

// ParseCommitment decodes a hex commitment and checks that it is a valid
// point on the curve.
func ParseCommitment(str string) (Commitment, error) {
	buf, err := hex.DecodeString(str)
	if err != nil || len(buf) != CommitmentSize {
		return Commitment{}, ErrInvalidCommitment
	}
	if _, err := btcec.ParsePubKey(buf); err != nil {
		return Commitment{}, ErrInvalidCommitment
	}
	var c Commitment
	copy(c[:], buf)
	return c, nil
}

// CommitmentFromPubKey returns the commitment encoding of a public key.
func CommitmentFromPubKey(key *btcec.PublicKey) Commitment {
	var c Commitment
	copy(c[:], key.SerializeCompressed())
	return c
}

// String returns the hex encoding of the commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero returns whether the commitment is unset.
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}

// PubKey returns the commitment as a curve point.
func (c Commitment) PubKey() (*btcec.PublicKey, error) {
	key, err := btcec.ParsePubKey(c[:])
	if err != nil {
		return nil, ErrInvalidCommitment
	}
	return key, nil
}

func (c Commitment) jacobian() (btcec.JacobianPoint, error) {
	var p btcec.JacobianPoint
	key, err := c.PubKey()
	if err != nil {
		return p, err
	}
	key.AsJacobian(&p)
	return p, nil
}

// Commit returns r*G + v*H.
func Commit(value uint64, blind *btcec.ModNScalar) (Commitment, error) {
	var rG, vH btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(blind, &rG)
	v := ScalarFromUint64(value)
	btcec.ScalarMultNonConst(&v, &generatorH, &vH)
	sum := add(&rG, &vH)
	return fromJacobian(&sum)
}

// CommitValue returns v*H, the commitment to a value with no blinding
// factor. It is used to account for the fee when balancing a transaction.
func CommitValue(value uint64) (Commitment, error) {
	var vH btcec.JacobianPoint
	v := ScalarFromUint64(value)
	btcec.ScalarMultNonConst(&v, &generatorH, &vH)
	return fromJacobian(&vH)
}

// SumCommitments returns sum(positive) - sum(negative).
func SumCommitments(positive, negative []Commitment) (Commitment, error) {
	var acc btcec.JacobianPoint
	for _, c := range positive {
		p, err := c.jacobian()
		if err != nil {
			return Commitment{}, err
		}
		acc = add(&acc, &p)
	}
	for _, c := range negative {
		p, err := c.jacobian()
		if err != nil {
			return Commitment{}, err
		}
		negate(&p)
		acc = add(&acc, &p)
	}
	return fromJacobian(&acc)
}

// VerifyKernelSums checks that a transaction balances:
// sum(outputs) - sum(inputs) + fee*H == excess + offset*G.
func VerifyKernelSums(
	inputs, outputs []Commitment, fee uint64,
	excess Commitment, offset *btcec.ModNScalar,
) error {
	positiveOuts := make([]Commitment, 0, len(outputs)+1)
	positiveOuts = append(positiveOuts, outputs...)
	if fee > 0 {
		feeCommit, err := CommitValue(fee)
		if err != nil {
			return err
		}
		positiveOuts = append(positiveOuts, feeCommit)
	}
	lhs, err := SumCommitments(positiveOuts, inputs)
	if err != nil {
		return err
	}

	positive := []Commitment{excess}
	if !offset.IsZero() {
		offsetCommit, err := Commit(0, offset)
		if err != nil {
			return err
		}
		positive = append(positive, offsetCommit)
	}
	rhs, err := SumCommitments(positive, nil)
	if err != nil {
		return err
	}

	if lhs != rhs {
		return ErrKernelSumMismatch
	}
	return nil
}

func fromJacobian(p *btcec.JacobianPoint) (Commitment, error) {
	if isInfinity(p) {
		return Commitment{}, ErrPointAtInfinity
	}
	p.ToAffine()
	return CommitmentFromPubKey(btcec.NewPublicKey(&p.X, &p.Y)), nil
}

func add(p1, p2 *btcec.JacobianPoint) btcec.JacobianPoint {
	var result btcec.JacobianPoint
	btcec.AddNonConst(p1, p2, &result)
	return result
}

func isInfinity(p *btcec.JacobianPoint) bool {
	var z btcec.FieldVal
	z.Set(&p.Z).Normalize()
	return z.IsZero()
}

func negate(p *btcec.JacobianPoint) {
	p.ToAffine()
	p.Y.Negate(1).Normalize()
}

// hashToCurve finds a point by hashing the seed with an increasing counter
// until the digest is a valid x coordinate.
func hashToCurve(seed []byte) btcec.JacobianPoint {
	var p btcec.JacobianPoint
	for ctr := uint32(0); ; ctr++ {
		buf := make([]byte, len(seed)+4)
		copy(buf, seed)
		binary.BigEndian.PutUint32(buf[len(seed):], ctr)
		digest := sha256.Sum256(buf)

		var x, y btcec.FieldVal
		if overflow := x.SetByteSlice(digest[:]); overflow {
			continue
		}
		if !btcec.DecompressY(&x, false, &y) {
			continue
		}
		y.Normalize()
		p.X.Set(&x)
		p.Y.Set(&y)
		p.Z.SetInt(1)
		return p
	}
}
