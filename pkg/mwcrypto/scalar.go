package mwcrypto

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ScalarFromUint64 returns v as a scalar mod n.
func ScalarFromUint64(v uint64) btcec.ModNScalar {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], v)
	var s btcec.ModNScalar
	s.SetBytes(&buf)
	return s
}

// ParseScalar decodes a 32 byte hex scalar. Values not lower than the curve
// order are rejected.
func ParseScalar(str string) (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	buf, err := hex.DecodeString(str)
	if err != nil || len(buf) != 32 {
		return s, ErrInvalidScalar
	}
	if overflow := s.SetByteSlice(buf); overflow {
		return s, ErrInvalidScalar
	}
	return s, nil
}

// ScalarHex returns the hex encoding of a scalar.
func ScalarHex(s *btcec.ModNScalar) string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

// SumScalars returns sum(positive) - sum(negative) mod n.
func SumScalars(positive, negative []btcec.ModNScalar) btcec.ModNScalar {
	var acc btcec.ModNScalar
	for i := range positive {
		acc.Add(&positive[i])
	}
	for i := range negative {
		var neg btcec.ModNScalar
		neg.NegateVal(&negative[i])
		acc.Add(&neg)
	}
	return acc
}

// PublicKey returns s*G.
func PublicKey(s *btcec.ModNScalar) *btcec.PublicKey {
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(s, &p)
	p.ToAffine()
	return btcec.NewPublicKey(&p.X, &p.Y)
}

// SumPublicKeys adds the given points.
func SumPublicKeys(keys []*btcec.PublicKey) (*btcec.PublicKey, error) {
	var acc btcec.JacobianPoint
	for _, k := range keys {
		var p btcec.JacobianPoint
		k.AsJacobian(&p)
		acc = add(&acc, &p)
	}
	if isInfinity(&acc) {
		return nil, ErrPointAtInfinity
	}
	acc.ToAffine()
	return btcec.NewPublicKey(&acc.X, &acc.Y), nil
}
