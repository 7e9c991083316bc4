package application

import "time"

// Participant ids. In standard transactions the sender initiates, in
// invoices the receiver (issuer) does.
const (
	senderID   uint8 = 0
	receiverID uint8 = 1
	issuerID   uint8 = 0
	payerID    uint8 = 1
)

const (
	defaultEntropyBytes       = 32
	defaultRefreshConcurrency = 8
	defaultRefreshRate        = 50
	defaultObserveInterval    = time.Minute

	// outputRefreshBatchSize caps the commitments looked up per node call.
	outputRefreshBatchSize = 500
)
