package ports

import (
	"context"

	"github.com/ironbelly/walletd/internal/core/domain"
)

// RepoManager gives access to every repository of the wallet store and
// runs handlers inside a single db transaction.
type RepoManager interface {
	VaultRepository() domain.VaultRepository
	OutputRepository() domain.OutputRepository
	TransactionRepository() domain.TransactionRepository
	ScanCursorRepository() domain.ScanCursorRepository

	// RunTransaction executes handler within a db transaction carried by
	// the context given to it. Repositories called with that context join
	// the transaction, so either all their writes are committed or none.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)

	Close()
}
