package mwcrypto

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KernelFeatures identifies the kind of a transaction kernel.
type KernelFeatures uint8

const (
	// PlainKernel is a regular transaction kernel.
	PlainKernel KernelFeatures = iota
	// CoinbaseKernel is a block reward kernel.
	CoinbaseKernel
	// HeightLockedKernel cannot be included before its lock height.
	HeightLockedKernel
)

func (f KernelFeatures) String() string {
	switch f {
	case PlainKernel:
		return "Plain"
	case CoinbaseKernel:
		return "Coinbase"
	case HeightLockedKernel:
		return "HeightLocked"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// KernelMessage returns the message every participant signs. The lock
// height is committed to only for height locked kernels.
func KernelMessage(features KernelFeatures, fee, lockHeight uint64) [32]byte {
	buf := make([]byte, 0, 17)
	buf = append(buf, byte(features))
	buf = binary.BigEndian.AppendUint64(buf, fee)
	if features == HeightLockedKernel {
		buf = binary.BigEndian.AppendUint64(buf, lockHeight)
	}
	return blake2b.Sum256(buf)
}
