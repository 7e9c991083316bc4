package domain

import (
	"github.com/ironbelly/walletd/pkg/slate"
)

// NewWalletTransaction returns a transaction in Created status for the
// given slate, where the wallet plays participantID.
func NewWalletTransaction(
	s slate.Slate, direction TxDirection, participantID uint8,
	message string, now int64,
) *WalletTransaction {
	return &WalletTransaction{
		ID:            s.ID,
		Direction:     direction,
		Kind:          s.Kind,
		ParticipantID: participantID,
		Status:        TxStatus{Code: TxStatusCodeCreated},
		Amount:        s.Amount,
		Fee:           s.Fee,
		Slate:         s,
		Message:       message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Send brings a Created transaction to Sent once its slate left the wallet.
func (t *WalletTransaction) Send(s slate.Slate, now int64) error {
	if t.IsCancelled() {
		return ErrTxCancelled
	}
	if t.Status.Code >= TxStatusCodeSent {
		return nil
	}
	t.Status.Code = TxStatusCodeSent
	t.setSlate(s, now)
	return nil
}

// Receive records the wallet's response to a partner's slate.
func (t *WalletTransaction) Receive(s slate.Slate, now int64) error {
	if t.IsCancelled() {
		return ErrTxCancelled
	}
	if t.Status.Code >= TxStatusCodeReceived {
		return nil
	}
	t.Status.Code = TxStatusCodeReceived
	t.setSlate(s, now)
	return nil
}

// Finalize records the finalized slate and the kernel excess.
func (t *WalletTransaction) Finalize(s slate.Slate, excess string, now int64) error {
	if t.IsCancelled() {
		return ErrTxCancelled
	}
	if t.Status.Code >= TxStatusCodeFinalized {
		return nil
	}
	t.Status = TxStatus{Code: TxStatusCodeFinalized}
	t.Excess = excess
	t.setSlate(s, now)
	return nil
}

// Post brings a Finalized transaction to Posted once the node accepted it.
func (t *WalletTransaction) Post(now int64) error {
	if t.IsCancelled() {
		return ErrTxCancelled
	}
	if t.Status.Code >= TxStatusCodePosted {
		return ErrTxAlreadyPosted
	}
	if t.Status.Code != TxStatusCodeFinalized {
		return ErrTxMustBeFinalized
	}
	t.Status = TxStatus{Code: TxStatusCodePosted}
	t.FailureReason = ""
	t.setSlate(t.Slate.WithState(slate.Posted), now)
	return nil
}

// Fail flags the current step as failed, keeping the status code.
func (t *WalletTransaction) Fail(reason string, now int64) {
	t.Status.Failed = true
	t.FailureReason = reason
	t.UpdatedAt = now
}

// Confirm records the height of the block including the kernel.
func (t *WalletTransaction) Confirm(height uint64, now int64) {
	if t.IsConfirmed() {
		return
	}
	t.Status = TxStatus{Code: TxStatusCodeConfirmed}
	t.KernelHeight = height
	t.ConfirmedAt = now
	t.UpdatedAt = now
}

// Cancel aborts a transaction that did not reach the node yet. Cancelling
// twice is a no-op.
func (t *WalletTransaction) Cancel(now int64) error {
	if t.IsCancelled() {
		return nil
	}
	if t.Status.Code >= TxStatusCodePosted {
		return ErrTxAlreadyPosted
	}
	t.Status = TxStatus{Code: TxStatusCodeCancelled}
	t.setSlate(t.Slate.WithState(slate.Cancelled), now)
	return nil
}

// IsCancelled ...
func (t *WalletTransaction) IsCancelled() bool {
	return t.Status.Code == TxStatusCodeCancelled
}

// IsFinalized ...
func (t *WalletTransaction) IsFinalized() bool {
	return t.Status.Code == TxStatusCodeFinalized
}

// IsPosted ...
func (t *WalletTransaction) IsPosted() bool {
	return t.Status.Code == TxStatusCodePosted
}

// IsConfirmed ...
func (t *WalletTransaction) IsConfirmed() bool {
	return t.Status.Code == TxStatusCodeConfirmed
}

// AwaitsConfirmation returns whether the kernel of the transaction may
// show up on chain and should be looked up.
func (t *WalletTransaction) AwaitsConfirmation() bool {
	if t.Excess == "" {
		return false
	}
	switch t.Status.Code {
	case TxStatusCodeReceived, TxStatusCodeFinalized, TxStatusCodePosted:
		return true
	default:
		return false
	}
}

func (t *WalletTransaction) setSlate(s slate.Slate, now int64) {
	t.Slate = s
	if s.Fee != 0 {
		t.Fee = s.Fee
	}
	t.UpdatedAt = now
}
