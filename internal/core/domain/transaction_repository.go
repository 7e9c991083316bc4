package domain

import "context"

// TransactionRepository persists wallet transactions by slate id.
type TransactionRepository interface {
	AddTransaction(ctx context.Context, tx *WalletTransaction) error
	GetTransaction(ctx context.Context, id string) (*WalletTransaction, error)
	GetAllTransactions(ctx context.Context) ([]WalletTransaction, error)
	GetTransactionsByStatus(
		ctx context.Context, codes ...int,
	) ([]WalletTransaction, error)
	UpdateTransaction(
		ctx context.Context, id string,
		updateFn func(tx *WalletTransaction) (*WalletTransaction, error),
	) error
}
