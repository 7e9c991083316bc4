package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const vaultKey = "vault"

type vaultRepository struct {
	store *badgerhold.Store
}

func newVaultRepository(store *badgerhold.Store) domain.VaultRepository {
	return vaultRepository{store}
}

func (r vaultRepository) GetVault(ctx context.Context) (*domain.Vault, error) {
	var vault *domain.Vault
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) (err error) {
		vault, err = r.getVault(tx)
		return
	})
	return vault, err
}

func (r vaultRepository) InsertVault(
	ctx context.Context, vault *domain.Vault,
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		if err := r.store.TxInsert(tx, vaultKey, vault); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return domain.ErrVaultAlreadyInitialized
			}
			return err
		}
		return nil
	})
}

func (r vaultRepository) UpdateVault(
	ctx context.Context, updateFn func(v *domain.Vault) (*domain.Vault, error),
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		vault, err := r.getVault(tx)
		if err != nil {
			return err
		}

		updatedVault, err := updateFn(vault)
		if err != nil {
			return err
		}

		return r.store.TxUpdate(tx, vaultKey, updatedVault)
	})
}

func (r vaultRepository) getVault(tx *badger.Txn) (*domain.Vault, error) {
	var vault domain.Vault
	if err := r.store.TxGet(tx, vaultKey, &vault); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrVaultNotInitialized
		}
		return nil, err
	}
	return &vault, nil
}
