package application

import (
	"fmt"

	"github.com/ironbelly/walletd/pkg/coinselect"
)

// SendRequest holds what is needed to fund a transaction.
type SendRequest struct {
	Amount   uint64
	Strategy coinselect.Strategy
	Message  string
}

// StrategyPreview is the outcome a selection strategy would have for a
// given amount.
type StrategyPreview struct {
	Strategy coinselect.Strategy
	Amount   uint64
	Fee      uint64
	Total    uint64
	Change   uint64
	Inputs   int
	Outputs  int
}

// Summary is the balance of the wallet.
type Summary struct {
	TipHeight            uint64
	MinConfirmations     uint64
	Total                uint64
	Spendable            uint64
	AwaitingConfirmation uint64
	Locked               uint64
}

// PMMRRange is the portion of the node's output PMMR left to scan.
type PMMRRange struct {
	LastRetrievedIndex uint64
	HighestIndex       uint64
}

// ScanResult reports the progress of one or more scan batches.
type ScanResult struct {
	LastRetrievedIndex uint64
	HighestIndex       uint64
	Found              int
	Confirmed          int
	Spent              int
}

// IsComplete returns whether the scan reached the highest index.
func (r ScanResult) IsComplete() bool {
	return r.LastRetrievedIndex >= r.HighestIndex
}

// BatchError is returned by batch operations that failed midway. Processed
// items are kept, FailedID is the item that failed.
type BatchError struct {
	Processed int
	FailedID  string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf(
		"batch failed at %s after %d processed items: %s",
		e.FailedID, e.Processed, e.Err,
	)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
