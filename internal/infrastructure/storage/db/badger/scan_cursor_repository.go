package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const cursorKey = "cursor"

type scanCursorRepository struct {
	store *badgerhold.Store
}

func newScanCursorRepository(
	store *badgerhold.Store,
) domain.ScanCursorRepository {
	return scanCursorRepository{store}
}

func (r scanCursorRepository) GetCursor(
	ctx context.Context,
) (*domain.ScanCursor, error) {
	cursor := &domain.ScanCursor{}
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) error {
		if err := r.store.TxGet(tx, cursorKey, cursor); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				*cursor = domain.ScanCursor{}
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (r scanCursorRepository) UpdateCursor(
	ctx context.Context, cursor domain.ScanCursor,
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		return r.store.TxUpsert(tx, cursorKey, &cursor)
	})
}
