package domain

import (
	"github.com/ironbelly/walletd/pkg/coinselect"
)

// IsUnspent returns whether the output is confirmed and free.
func (o *Output) IsUnspent() bool {
	return o.Status == OutputStatusUnspent
}

// IsLocked returns whether the output is reserved by a pending transaction.
func (o *Output) IsLocked() bool {
	return o.Status == OutputStatusLocked
}

// IsSpent returns whether the output is consumed on chain.
func (o *Output) IsSpent() bool {
	return o.Status == OutputStatusSpent
}

// Confirmations returns how many blocks confirm the output at tipHeight.
func (o *Output) Confirmations(tipHeight uint64) uint64 {
	if o.Height == 0 || o.Height > tipHeight {
		return 0
	}
	return tipHeight - o.Height + 1
}

// IsSpendable returns whether the output can fund a new transaction.
func (o *Output) IsSpendable(tipHeight, minConfirmations uint64) bool {
	return o.IsUnspent() && o.Confirmations(tipHeight) >= minConfirmations
}

// Lock reserves the output for the given transaction. Locking again for the
// same transaction is a no-op.
func (o *Output) Lock(txID string) error {
	if o.IsLocked() {
		if o.LockedBy != txID {
			return ErrOutputAlreadyLocked
		}
		return nil
	}
	if !o.IsUnspent() {
		return ErrOutputAlreadyLocked
	}
	o.Status = OutputStatusLocked
	o.LockedBy = txID
	return nil
}

// Unlock releases the reservation of the given transaction, if any.
func (o *Output) Unlock(txID string) {
	if !o.IsLocked() || o.LockedBy != txID {
		return
	}
	o.Status = OutputStatusUnspent
	o.LockedBy = ""
}

// Spend marks the output as consumed on chain.
func (o *Output) Spend() {
	o.Status = OutputStatusSpent
	o.LockedBy = ""
}

// Confirm records where the output landed on chain. Unconfirmed outputs
// become unspent, other statuses are preserved.
func (o *Output) Confirm(height, mmrIndex uint64) {
	o.Height = height
	o.MMRIndex = mmrIndex
	if o.Status == OutputStatusUnconfirmed || o.Status == OutputStatusCancelled {
		o.Status = OutputStatusUnspent
	}
}

// Cancel marks an output that never made it on chain as cancelled.
func (o *Output) Cancel() {
	if o.Status == OutputStatusUnconfirmed {
		o.Status = OutputStatusCancelled
	}
}

// Coin returns the output in the form the selection engine works with.
func (o *Output) Coin() coinselect.Coin {
	return coinselect.Coin{
		Commit: o.Commit,
		Value:  o.Value,
		Height: o.Height,
	}
}
