package domain

import "context"

// OutputRepository is the durable map commitment -> Output. Methods called
// with a context carrying a db transaction (see ports.RepoManager) join it,
// otherwise each call runs in its own transaction.
type OutputRepository interface {
	// AddOutputs inserts the given outputs, skipping those already stored,
	// and returns the number of inserted ones.
	AddOutputs(ctx context.Context, outputs []Output) (int, error)
	GetOutput(ctx context.Context, commit string) (*Output, error)
	GetAllOutputs(ctx context.Context) ([]Output, error)
	GetOutputsByStatus(ctx context.Context, statuses ...OutputStatus) ([]Output, error)
	GetOutputsByTx(ctx context.Context, txID string) ([]Output, error)
	GetSpendableOutputs(
		ctx context.Context, tipHeight, minConfirmations uint64,
	) ([]Output, error)
	// ReserveOutputs locks all the given outputs for txID or none of them.
	// It fails with ErrOutputAlreadyLocked if any is not unspent or locked
	// by another transaction.
	ReserveOutputs(ctx context.Context, commits []string, txID string) error
	// ReleaseOutputs unlocks every output locked by txID and returns how
	// many were released.
	ReleaseOutputs(ctx context.Context, txID string) (int, error)
	// CommitOutputs marks as spent the outputs locked by txID and inserts
	// the produced ones as unconfirmed.
	CommitOutputs(ctx context.Context, txID string, produced []Output) error
	// CancelOutputs marks as cancelled the unconfirmed outputs produced by
	// txID.
	CancelOutputs(ctx context.Context, txID string) (int, error)
	UpdateOutput(
		ctx context.Context, commit string,
		updateFn func(o *Output) (*Output, error),
	) error
}
