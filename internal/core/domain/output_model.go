package domain

import (
	"fmt"

	"github.com/ironbelly/walletd/pkg/keychain"
)

// OutputStatus is the lifecycle stage of an output.
type OutputStatus int

func (s OutputStatus) String() string {
	switch s {
	case OutputStatusUnconfirmed:
		return "Unconfirmed"
	case OutputStatusUnspent:
		return "Unspent"
	case OutputStatusLocked:
		return "Locked"
	case OutputStatusSpent:
		return "Spent"
	case OutputStatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("OutputStatus(%d)", int(s))
	}
}

// Output is a confidential output owned by the wallet. Its blinding factor
// is never stored, it is derived from KeyID whenever needed.
type Output struct {
	Commit     string
	KeyID      keychain.KeyID
	Value      uint64
	Status     OutputStatus
	Height     uint64
	MMRIndex   uint64
	LockedBy   string
	TxID       string
	IsCoinbase bool
}
