package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const maxConflictRetries = 5

type txKey struct{}

type repoManager struct {
	store *badgerhold.Store

	vaultRepository       domain.VaultRepository
	outputRepository      domain.OutputRepository
	transactionRepository domain.TransactionRepository
	cursorRepository      domain.ScanCursorRepository
}

// NewRepoManager opens (or creates if not exists) the wallet store in the
// given data dir. The store is kept in memory if baseDbDir is empty.
func NewRepoManager(
	baseDbDir string, logger badger.Logger,
) (ports.RepoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "wallet")
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	return &repoManager{
		store:                 store,
		vaultRepository:       newVaultRepository(store),
		outputRepository:      newOutputRepository(store),
		transactionRepository: newTransactionRepository(store),
		cursorRepository:      newScanCursorRepository(store),
	}, nil
}

func (m *repoManager) VaultRepository() domain.VaultRepository {
	return m.vaultRepository
}

func (m *repoManager) OutputRepository() domain.OutputRepository {
	return m.outputRepository
}

func (m *repoManager) TransactionRepository() domain.TransactionRepository {
	return m.transactionRepository
}

func (m *repoManager) ScanCursorRepository() domain.ScanCursorRepository {
	return m.cursorRepository
}

func (m *repoManager) Close() {
	m.store.Close()
}

// RunTransaction runs handler within a badger transaction added to its
// context. The transaction is committed if handler succeeds and discarded
// otherwise. On write conflicts, the whole handler is run again.
func (m *repoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	// Nested calls join the outer transaction.
	if _, ok := txFromContext(ctx); ok {
		return handler(ctx)
	}

	for i := 0; ; i++ {
		tx := m.store.Badger().NewTransaction(!readOnly)
		res, err := handler(context.WithValue(ctx, txKey{}, tx))
		if err != nil {
			tx.Discard()
			return nil, err
		}

		if readOnly {
			tx.Discard()
			return res, nil
		}

		err = tx.Commit()
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, badger.ErrConflict) || i >= maxConflictRetries {
			return nil, err
		}
		log.Debugf("db: write conflict, retrying transaction (%d)", i+1)
	}
}

func txFromContext(ctx context.Context) (*badger.Txn, bool) {
	tx, ok := ctx.Value(txKey{}).(*badger.Txn)
	return tx, ok && tx != nil
}

// withTx runs fn within the transaction carried by ctx if any, otherwise in
// a dedicated one.
func withTx(
	ctx context.Context, store *badgerhold.Store, update bool,
	fn func(tx *badger.Txn) error,
) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(tx)
	}
	if !update {
		return store.Badger().View(fn)
	}

	var err error
	for i := 0; i <= maxConflictRetries; i++ {
		if err = store.Badger().Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}()
	}

	return db, nil
}
