package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type outputRepository struct {
	store *badgerhold.Store
}

func newOutputRepository(store *badgerhold.Store) domain.OutputRepository {
	return outputRepository{store}
}

func (r outputRepository) AddOutputs(
	ctx context.Context, outputs []domain.Output,
) (int, error) {
	count := 0
	err := withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		count = 0
		for _, o := range outputs {
			inserted, err := r.insertOutput(tx, o)
			if err != nil {
				return err
			}
			if inserted {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r outputRepository) GetOutput(
	ctx context.Context, commit string,
) (*domain.Output, error) {
	var output *domain.Output
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) (err error) {
		output, err = r.getOutput(tx, commit)
		return
	})
	return output, err
}

func (r outputRepository) GetAllOutputs(
	ctx context.Context,
) ([]domain.Output, error) {
	return r.findOutputs(ctx, nil)
}

func (r outputRepository) GetOutputsByStatus(
	ctx context.Context, statuses ...domain.OutputStatus,
) ([]domain.Output, error) {
	if len(statuses) <= 0 {
		return r.GetAllOutputs(ctx)
	}

	iface := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		iface = append(iface, s)
	}
	query := badgerhold.Where("Status").In(iface...)

	return r.findOutputs(ctx, query)
}

func (r outputRepository) GetOutputsByTx(
	ctx context.Context, txID string,
) ([]domain.Output, error) {
	query := badgerhold.Where("TxID").Eq(txID).Or(
		badgerhold.Where("LockedBy").Eq(txID),
	)
	return r.findOutputs(ctx, query)
}

func (r outputRepository) GetSpendableOutputs(
	ctx context.Context, tipHeight, minConfirmations uint64,
) ([]domain.Output, error) {
	unspents, err := r.GetOutputsByStatus(ctx, domain.OutputStatusUnspent)
	if err != nil {
		return nil, err
	}

	spendables := make([]domain.Output, 0, len(unspents))
	for _, o := range unspents {
		if o.IsSpendable(tipHeight, minConfirmations) {
			spendables = append(spendables, o)
		}
	}
	return spendables, nil
}

func (r outputRepository) ReserveOutputs(
	ctx context.Context, commits []string, txID string,
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		for _, commit := range commits {
			output, err := r.getOutput(tx, commit)
			if err != nil {
				return err
			}
			if err := output.Lock(txID); err != nil {
				return fmt.Errorf("%w: %s", err, commit)
			}
			if err := r.updateOutput(tx, *output); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r outputRepository) ReleaseOutputs(
	ctx context.Context, txID string,
) (int, error) {
	count := 0
	err := withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		count = 0
		query := badgerhold.Where("Status").Eq(domain.OutputStatusLocked).
			And("LockedBy").Eq(txID)

		var outputs []domain.Output
		if err := r.store.TxFind(tx, &outputs, query); err != nil {
			return err
		}
		for _, o := range outputs {
			o.Unlock(txID)
			if err := r.updateOutput(tx, o); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r outputRepository) CommitOutputs(
	ctx context.Context, txID string, produced []domain.Output,
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		query := badgerhold.Where("Status").Eq(domain.OutputStatusLocked).
			And("LockedBy").Eq(txID)

		var inputs []domain.Output
		if err := r.store.TxFind(tx, &inputs, query); err != nil {
			return err
		}
		for _, o := range inputs {
			o.Spend()
			if err := r.updateOutput(tx, o); err != nil {
				return err
			}
		}

		for _, o := range produced {
			o.Status = domain.OutputStatusUnconfirmed
			o.TxID = txID
			if _, err := r.insertOutput(tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r outputRepository) CancelOutputs(
	ctx context.Context, txID string,
) (int, error) {
	count := 0
	err := withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		count = 0
		query := badgerhold.Where("Status").Eq(domain.OutputStatusUnconfirmed).
			And("TxID").Eq(txID)

		var outputs []domain.Output
		if err := r.store.TxFind(tx, &outputs, query); err != nil {
			return err
		}
		for _, o := range outputs {
			o.Cancel()
			if err := r.updateOutput(tx, o); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r outputRepository) UpdateOutput(
	ctx context.Context, commit string,
	updateFn func(o *domain.Output) (*domain.Output, error),
) error {
	return withTx(ctx, r.store, true, func(tx *badger.Txn) error {
		output, err := r.getOutput(tx, commit)
		if err != nil {
			return err
		}

		updatedOutput, err := updateFn(output)
		if err != nil {
			return err
		}

		return r.updateOutput(tx, *updatedOutput)
	})
}

func (r outputRepository) findOutputs(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Output, error) {
	var outputs []domain.Output
	err := withTx(ctx, r.store, false, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &outputs, query)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(outputs, func(i, j int) bool {
		if outputs[i].Height == outputs[j].Height {
			return outputs[i].Commit < outputs[j].Commit
		}
		return outputs[i].Height < outputs[j].Height
	})
	return outputs, nil
}

func (r outputRepository) getOutput(
	tx *badger.Txn, commit string,
) (*domain.Output, error) {
	var output domain.Output
	if err := r.store.TxGet(tx, commit, &output); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOutputNotFound, commit)
		}
		return nil, err
	}
	return &output, nil
}

func (r outputRepository) insertOutput(
	tx *badger.Txn, output domain.Output,
) (bool, error) {
	if err := r.store.TxInsert(tx, output.Commit, &output); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r outputRepository) updateOutput(
	tx *badger.Txn, output domain.Output,
) error {
	return r.store.TxUpdate(tx, output.Commit, &output)
}
