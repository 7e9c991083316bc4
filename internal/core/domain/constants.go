package domain

const (
	// OutputStatusUnconfirmed is an output known to the wallet but not yet
	// seen on chain.
	OutputStatusUnconfirmed OutputStatus = iota
	// OutputStatusUnspent is a confirmed output available for spending.
	OutputStatusUnspent
	// OutputStatusLocked is reserved as input of a pending transaction.
	OutputStatusLocked
	// OutputStatusSpent is consumed on chain.
	OutputStatusSpent
	// OutputStatusCancelled belongs to a cancelled transaction.
	OutputStatusCancelled
)

const (
	TxStatusCodeUndefined = iota
	TxStatusCodeCreated
	TxStatusCodeSent
	TxStatusCodeReceived
	TxStatusCodeFinalized
	TxStatusCodePosted
	TxStatusCodeConfirmed
	TxStatusCodeCancelled
)

const (
	// TxOutgoing transactions spend wallet outputs.
	TxOutgoing TxDirection = iota
	// TxIncoming transactions pay the wallet.
	TxIncoming
)

// DefaultAccount is the account used when none is configured.
const DefaultAccount = 0
