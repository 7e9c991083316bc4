package domain

import (
	"fmt"

	"github.com/ironbelly/walletd/pkg/slate"
)

// TxDirection tells whether a transaction spends or receives funds.
type TxDirection int

func (d TxDirection) String() string {
	switch d {
	case TxOutgoing:
		return "Outgoing"
	case TxIncoming:
		return "Incoming"
	default:
		return fmt.Sprintf("TxDirection(%d)", int(d))
	}
}

// TxStatus represents the different statuses that a wallet transaction can
// assume. Failed is set when the step of Code went wrong, for example a
// finalized transaction rejected by the node.
type TxStatus struct {
	Code   int
	Failed bool
}

func (s TxStatus) String() string {
	var name string
	switch s.Code {
	case TxStatusCodeCreated:
		name = "Created"
	case TxStatusCodeSent:
		name = "Sent"
	case TxStatusCodeReceived:
		name = "Received"
	case TxStatusCodeFinalized:
		name = "Finalized"
	case TxStatusCodePosted:
		name = "Posted"
	case TxStatusCodeConfirmed:
		name = "Confirmed"
	case TxStatusCodeCancelled:
		name = "Cancelled"
	default:
		name = "Undefined"
	}
	if s.Failed {
		return name + " (failed)"
	}
	return name
}

// WalletTransaction is the wallet's record of one slate negotiation.
// Inputs lists the commitments reserved by the wallet, Outputs the outputs
// the wallet produced (change or received funds) which are stored as
// unconfirmed only once the transaction goes on chain.
type WalletTransaction struct {
	ID            string
	Direction     TxDirection
	Kind          slate.Kind
	ParticipantID uint8
	Status        TxStatus
	Amount        uint64
	Fee           uint64
	Inputs        []string
	Outputs       []Output
	Slate         slate.Slate
	Excess        string
	KernelHeight  uint64
	Message       string
	FailureReason string
	CreatedAt     int64
	UpdatedAt     int64
	ConfirmedAt   int64
}
