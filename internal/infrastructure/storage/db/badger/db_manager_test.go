package dbbadger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	dbbadger "github.com/ironbelly/walletd/internal/infrastructure/storage/db/badger"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/stretchr/testify/require"
)

func newTestRepoManager(t *testing.T) ports.RepoManager {
	repoManager, err := dbbadger.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func newTestOutputs(n int, status domain.OutputStatus) []domain.Output {
	outputs := make([]domain.Output, 0, n)
	for i := 0; i < n; i++ {
		outputs = append(outputs, domain.Output{
			Commit: fmt.Sprintf("%066d", i+1),
			KeyID:  keychain.KeyID{Index: uint32(i)},
			Value:  uint64(10 * (i + 1)),
			Status: status,
			Height: uint64(i + 1),
		})
	}
	return outputs
}

func TestOutputRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepoManager(t).OutputRepository()
	outputs := newTestOutputs(3, domain.OutputStatusUnspent)

	count, err := repo.AddOutputs(ctx, outputs)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = repo.AddOutputs(ctx, outputs)
	require.NoError(t, err)
	require.Zero(t, count)

	all, err := repo.GetAllOutputs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	output, err := repo.GetOutput(ctx, outputs[1].Commit)
	require.NoError(t, err)
	require.Equal(t, outputs[1], *output)

	_, err = repo.GetOutput(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrOutputNotFound)

	spendables, err := repo.GetSpendableOutputs(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, spendables, 2)

	err = repo.UpdateOutput(
		ctx, outputs[0].Commit,
		func(o *domain.Output) (*domain.Output, error) {
			o.Spend()
			return o, nil
		},
	)
	require.NoError(t, err)

	spent, err := repo.GetOutputsByStatus(ctx, domain.OutputStatusSpent)
	require.NoError(t, err)
	require.Len(t, spent, 1)
	require.Equal(t, outputs[0].Commit, spent[0].Commit)
}

func TestReserveOutputs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepoManager(t).OutputRepository()
	outputs := newTestOutputs(3, domain.OutputStatusUnspent)
	_, err := repo.AddOutputs(ctx, outputs)
	require.NoError(t, err)

	commits := []string{outputs[0].Commit, outputs[1].Commit}
	err = repo.ReserveOutputs(ctx, commits, "tx1")
	require.NoError(t, err)

	// Reserving again for the same transaction is harmless.
	err = repo.ReserveOutputs(ctx, commits, "tx1")
	require.NoError(t, err)

	// Overlapping reservations fail and leave nothing locked.
	err = repo.ReserveOutputs(
		ctx, []string{outputs[2].Commit, outputs[1].Commit}, "tx2",
	)
	require.ErrorIs(t, err, domain.ErrOutputAlreadyLocked)

	output, err := repo.GetOutput(ctx, outputs[2].Commit)
	require.NoError(t, err)
	require.True(t, output.IsUnspent())

	locked, err := repo.GetOutputsByTx(ctx, "tx1")
	require.NoError(t, err)
	require.Len(t, locked, 2)

	count, err := repo.ReleaseOutputs(ctx, "tx1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = repo.ReleaseOutputs(ctx, "tx1")
	require.NoError(t, err)
	require.Zero(t, count)

	unspents, err := repo.GetOutputsByStatus(ctx, domain.OutputStatusUnspent)
	require.NoError(t, err)
	require.Len(t, unspents, 3)
}

func TestCommitAndCancelOutputs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepoManager(t).OutputRepository()
	outputs := newTestOutputs(2, domain.OutputStatusUnspent)
	_, err := repo.AddOutputs(ctx, outputs)
	require.NoError(t, err)

	err = repo.ReserveOutputs(ctx, []string{outputs[0].Commit}, "tx1")
	require.NoError(t, err)

	change := domain.Output{
		Commit: fmt.Sprintf("%066d", 100),
		KeyID:  keychain.KeyID{Index: 100},
		Value:  5,
	}
	err = repo.CommitOutputs(ctx, "tx1", []domain.Output{change})
	require.NoError(t, err)

	input, err := repo.GetOutput(ctx, outputs[0].Commit)
	require.NoError(t, err)
	require.True(t, input.IsSpent())

	produced, err := repo.GetOutput(ctx, change.Commit)
	require.NoError(t, err)
	require.Equal(t, domain.OutputStatusUnconfirmed, produced.Status)
	require.Equal(t, "tx1", produced.TxID)

	count, err := repo.CancelOutputs(ctx, "tx1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	produced, err = repo.GetOutput(ctx, change.Commit)
	require.NoError(t, err)
	require.Equal(t, domain.OutputStatusCancelled, produced.Status)
}

func TestTransactionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepoManager(t).TransactionRepository()

	first := domain.NewWalletTransaction(
		slate.New(slate.Standard, 50, 10), domain.TxOutgoing, 0, "", 1,
	)
	second := domain.NewWalletTransaction(
		slate.New(slate.Invoice, 20, 10), domain.TxIncoming, 0, "hi", 2,
	)

	require.NoError(t, repo.AddTransaction(ctx, first))
	require.NoError(t, repo.AddTransaction(ctx, second))
	require.ErrorIs(t, repo.AddTransaction(ctx, first), domain.ErrTxAlreadyExists)

	tx, err := repo.GetTransaction(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "hi", tx.Message)
	require.Equal(t, second.Slate.ID, tx.Slate.ID)

	_, err = repo.GetTransaction(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrTxNotFound)

	err = repo.UpdateTransaction(
		ctx, first.ID,
		func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
			if err := tx.Cancel(3); err != nil {
				return nil, err
			}
			return tx, nil
		},
	)
	require.NoError(t, err)

	cancelled, err := repo.GetTransactionsByStatus(
		ctx, domain.TxStatusCodeCancelled,
	)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Equal(t, first.ID, cancelled[0].ID)

	all, err := repo.GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, first.ID, all[0].ID)
}

func TestVaultAndCursorRepositories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repoManager := newTestRepoManager(t)
	vaultRepo := repoManager.VaultRepository()

	_, err := vaultRepo.GetVault(ctx)
	require.ErrorIs(t, err, domain.ErrVaultNotInitialized)

	vault := &domain.Vault{
		EncryptedSeed: "encrypted",
		Accounts:      map[uint32]*domain.Account{0: {}},
	}
	require.NoError(t, vaultRepo.InsertVault(ctx, vault))
	require.ErrorIs(
		t, vaultRepo.InsertVault(ctx, vault), domain.ErrVaultAlreadyInitialized,
	)

	err = vaultRepo.UpdateVault(ctx, func(v *domain.Vault) (*domain.Vault, error) {
		v.NextKeyID(0)
		return v, nil
	})
	require.NoError(t, err)

	vault, err = vaultRepo.GetVault(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), vault.PeekKeyIndex(0))

	cursorRepo := repoManager.ScanCursorRepository()
	cursor, err := cursorRepo.GetCursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.IsZero())

	err = cursorRepo.UpdateCursor(ctx, domain.ScanCursor{
		LastRetrievedIndex: 10, HighestIndex: 20, Root: "root",
	})
	require.NoError(t, err)

	cursor, err = cursorRepo.GetCursor(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), cursor.LastRetrievedIndex)
	require.Equal(t, "root", cursor.Root)
}

func TestRunTransactionRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repoManager := newTestRepoManager(t)
	outputs := newTestOutputs(2, domain.OutputStatusUnspent)

	_, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			if _, err := repoManager.OutputRepository().AddOutputs(
				ctx, outputs,
			); err != nil {
				return nil, err
			}
			err := repoManager.ScanCursorRepository().UpdateCursor(
				ctx, domain.ScanCursor{LastRetrievedIndex: 5, Root: "root"},
			)
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("abort")
		},
	)
	require.Error(t, err)

	all, err := repoManager.OutputRepository().GetAllOutputs(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	cursor, err := repoManager.ScanCursorRepository().GetCursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.IsZero())

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return repoManager.OutputRepository().AddOutputs(ctx, outputs)
		},
	)
	require.NoError(t, err)
	require.Equal(t, 2, res)

	all, err = repoManager.OutputRepository().GetAllOutputs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
