package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type transactionRepository struct {
	store *badgerhold.Store
}

func newTransactionRepository(
	store *badgerhold.Store,
) domain.TransactionRepository {
	return transactionRepository{store}
}

func (r transactionRepository) AddTransaction(
	ctx context.Context, transaction *domain.WalletTransaction,
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		if err := r.store.TxInsert(tx, transaction.ID, transaction); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return domain.ErrTxAlreadyExists
			}
			return err
		}
		return nil
	})
}

func (r transactionRepository) GetTransaction(
	ctx context.Context, id string,
) (*domain.WalletTransaction, error) {
	var transaction *domain.WalletTransaction
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) (err error) {
		transaction, err = r.getTransaction(tx, id)
		return
	})
	return transaction, err
}

func (r transactionRepository) GetAllTransactions(
	ctx context.Context,
) ([]domain.WalletTransaction, error) {
	return r.findTransactions(ctx, nil)
}

func (r transactionRepository) GetTransactionsByStatus(
	ctx context.Context, codes ...int,
) ([]domain.WalletTransaction, error) {
	if len(codes) <= 0 {
		return r.GetAllTransactions(ctx)
	}

	iface := make([]interface{}, 0, len(codes))
	for _, c := range codes {
		iface = append(iface, c)
	}
	query := badgerhold.Where("Status.Code").In(iface...)

	return r.findTransactions(ctx, query)
}

func (r transactionRepository) UpdateTransaction(
	ctx context.Context, id string,
	updateFn func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error),
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		transaction, err := r.getTransaction(tx, id)
		if err != nil {
			return err
		}

		updatedTransaction, err := updateFn(transaction)
		if err != nil {
			return err
		}

		return r.store.TxUpdate(tx, id, updatedTransaction)
	})
}

func (r transactionRepository) findTransactions(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.WalletTransaction, error) {
	var transactions []domain.WalletTransaction
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &transactions, query)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		if transactions[i].CreatedAt == transactions[j].CreatedAt {
			return transactions[i].ID < transactions[j].ID
		}
		return transactions[i].CreatedAt < transactions[j].CreatedAt
	})
	return transactions, nil
}

func (r transactionRepository) getTransaction(
	tx *badger.Txn, id string,
) (*domain.WalletTransaction, error) {
	var transaction domain.WalletTransaction
	if err := r.store.TxGet(tx, id, &transaction); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTxNotFound
		}
		return nil, err
	}
	return &transaction, nil
}
