package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironbelly/walletd/pkg/slate"
)

var (
	// ErrNodeUnavailable wraps every transport failure talking to the node.
	// It is retryable.
	ErrNodeUnavailable = errors.New("node is unavailable")
	// ErrTxRejected ...
	ErrTxRejected = errors.New("transaction rejected by node")
)

// TxRejectedError is returned by PushTransaction when the node refuses a
// transaction, for example because its fee is too low.
type TxRejectedError struct {
	Reason string
}

func (e *TxRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTxRejected, e.Reason)
}

// Is makes errors.Is(err, ErrTxRejected) hold.
func (e *TxRejectedError) Is(target error) bool {
	return target == ErrTxRejected
}

// Tip is the head of the node's chain.
type Tip struct {
	Height uint64
	Hash   string
}

// PMMRIndices are the output PMMR bounds for a block range.
type PMMRIndices struct {
	LastRetrievedIndex uint64
	HighestIndex       uint64
}

// NodeOutput is an unspent output as reported by the node.
type NodeOutput struct {
	Commit     string
	Proof      string
	Height     uint64
	MMRIndex   uint64
	IsCoinbase bool
}

// OutputListing is one page of the node's unspent output PMMR, covering
// the leaves after the requested start index up to LastRetrievedIndex.
// PrevRoot is the root of the PMMR right before the page, Root the one at
// LastRetrievedIndex.
type OutputListing struct {
	HighestIndex       uint64
	LastRetrievedIndex uint64
	PrevRoot           string
	Root               string
	Outputs            []NodeOutput
}

// KernelLocation tells where a kernel was included.
type KernelLocation struct {
	Excess   string
	Height   uint64
	MMRIndex uint64
}

// Transaction is the body of a finalized transaction as pushed to the node.
type Transaction struct {
	Offset  string
	Inputs  []slate.Input
	Outputs []slate.Output
	Kernels []slate.Kernel
}

// NodeClient is the subset of the node API the wallet relies on.
type NodeClient interface {
	GetTip(ctx context.Context) (*Tip, error)
	GetPMMRIndices(
		ctx context.Context, startHeight, endHeight uint64,
	) (*PMMRIndices, error)
	GetUnspentOutputs(
		ctx context.Context, startIndex, endIndex, max uint64,
	) (*OutputListing, error)
	GetOutputs(ctx context.Context, commits []string) ([]NodeOutput, error)
	// GetKernel returns nil if the kernel is not on chain.
	GetKernel(
		ctx context.Context, excess string, minHeight, maxHeight uint64,
	) (*KernelLocation, error)
	PushTransaction(ctx context.Context, tx Transaction) error
}
