package application

import (
	"context"
	"errors"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/slate"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

// LedgerService tracks the lifecycle of wallet transactions once they are
// negotiated: broadcasting, confirmation and the resulting balance.
type LedgerService interface {
	// GetTransaction returns the transaction with the given id. If refresh
	// is set, the node is asked whether its kernel is on chain first.
	GetTransaction(
		ctx context.Context, id string, refresh bool,
	) (*domain.WalletTransaction, error)
	// ListTransactions returns all transactions. If refresh fails midway,
	// the list is returned along with a *BatchError, transactions before
	// the failing one are refreshed. A complete refresh also runs
	// RefreshOutputs.
	ListTransactions(
		ctx context.Context, refresh bool,
	) ([]domain.WalletTransaction, error)
	// RefreshOutputs marks as spent the unspent or locked outputs that are
	// no longer in the node's UTXO set, and returns how many there were.
	RefreshOutputs(ctx context.Context) (int, error)
	PostTransaction(ctx context.Context, id string) (*domain.WalletTransaction, error)
	GetSummary(ctx context.Context, refresh bool) (*Summary, error)
	ListOutputs(
		ctx context.Context, statuses ...domain.OutputStatus,
	) ([]domain.Output, error)
}

type ledgerService struct {
	wallet      *Wallet
	node        ports.NodeClient
	minConfs    uint64
	concurrency int
	limiter     ratelimit.Limiter
}

// NewLedgerService returns a ledger. Refresh lookups run at most
// concurrency at a time, paced at rate requests per second.
func NewLedgerService(
	wallet *Wallet, node ports.NodeClient, minConfs uint64,
	concurrency, rate int,
) LedgerService {
	if concurrency <= 0 {
		concurrency = defaultRefreshConcurrency
	}
	if rate <= 0 {
		rate = defaultRefreshRate
	}
	return &ledgerService{
		wallet:      wallet,
		node:        node,
		minConfs:    minConfs,
		concurrency: concurrency,
		limiter:     ratelimit.New(rate),
	}
}

func (l *ledgerService) GetTransaction(
	ctx context.Context, id string, refresh bool,
) (*domain.WalletTransaction, error) {
	tx, err := l.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !refresh || !tx.AwaitsConfirmation() {
		return tx, nil
	}

	conf, err := l.lookupKernel(ctx, *tx)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return tx, nil
	}
	return l.applyConfirmation(ctx, conf)
}

func (l *ledgerService) ListTransactions(
	ctx context.Context, refresh bool,
) ([]domain.WalletTransaction, error) {
	res, err := l.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return l.repo().TransactionRepository().GetAllTransactions(ctx)
	})
	if err != nil {
		return nil, err
	}
	txs := res.([]domain.WalletTransaction)
	if !refresh {
		return txs, nil
	}
	if txs, err = l.refresh(ctx, txs); err != nil {
		return txs, err
	}
	if _, err := l.RefreshOutputs(ctx); err != nil {
		return txs, err
	}
	return txs, nil
}

func (l *ledgerService) RefreshOutputs(ctx context.Context) (int, error) {
	res, err := l.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return l.repo().OutputRepository().GetOutputsByStatus(
			ctx, domain.OutputStatusUnspent, domain.OutputStatusLocked,
		)
	})
	if err != nil {
		return 0, err
	}

	// Outputs not on chain yet cannot have been spent.
	commits := make([]string, 0)
	for _, o := range res.([]domain.Output) {
		if o.MMRIndex != 0 {
			commits = append(commits, o.Commit)
		}
	}
	if len(commits) == 0 {
		return 0, nil
	}

	listed := make(map[string]struct{}, len(commits))
	for start := 0; start < len(commits); start += outputRefreshBatchSize {
		end := start + outputRefreshBatchSize
		if end > len(commits) {
			end = len(commits)
		}
		l.limiter.Take()
		outputs, err := l.node.GetOutputs(ctx, commits[start:end])
		if err != nil {
			return 0, err
		}
		for _, o := range outputs {
			listed[o.Commit] = struct{}{}
		}
	}

	res, err = l.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		outputRepo := l.repo().OutputRepository()
		spent := 0
		for _, commit := range commits {
			if _, ok := listed[commit]; ok {
				continue
			}
			marked := false
			if err := outputRepo.UpdateOutput(
				ctx, commit,
				func(o *domain.Output) (*domain.Output, error) {
					if o.IsUnspent() || o.IsLocked() {
						o.Spend()
						marked = true
					}
					return o, nil
				},
			); err != nil {
				return nil, err
			}
			if marked {
				spent++
			}
		}
		return spent, nil
	})
	if err != nil {
		return 0, err
	}

	spent := res.(int)
	if spent > 0 {
		spentOutputsTotal.Add(float64(spent))
		log.Infof("%d outputs were spent outside of the wallet", spent)
	}
	return spent, nil
}

func (l *ledgerService) PostTransaction(
	ctx context.Context, id string,
) (*domain.WalletTransaction, error) {
	// The claim keeps Cancel away until the outcome of the push is stored.
	if !l.wallet.claimPost(id) {
		return nil, ErrTxPostInProgress
	}
	defer l.wallet.releasePost(id)

	tx, err := l.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	// A transaction broadcast by someone else may be on chain already.
	if tx.IsFinalized() && tx.AwaitsConfirmation() {
		conf, err := l.lookupKernel(ctx, *tx)
		if err != nil {
			return nil, err
		}
		if conf != nil {
			if _, err := l.applyConfirmation(ctx, conf); err != nil {
				return nil, err
			}
			return nil, ErrTxAlreadyConfirmed
		}
	}

	// Checks and, for a transaction the node rejected before, the new
	// reservation of its inputs happen under the lock. The push does not.
	res, err := l.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		tx, err := l.repo().TransactionRepository().GetTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case tx.IsConfirmed():
			return nil, ErrTxAlreadyConfirmed
		case tx.IsPosted():
			return nil, domain.ErrTxAlreadyPosted
		case tx.IsCancelled():
			return nil, domain.ErrTxCancelled
		case !tx.IsFinalized() || tx.Slate.Kernel == nil:
			return nil, domain.ErrTxMustBeFinalized
		}
		if tx.Status.Failed {
			if err := l.repo().OutputRepository().ReserveOutputs(
				ctx, tx.Inputs, tx.ID,
			); err != nil {
				return nil, err
			}
		}
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	tx = res.(*domain.WalletTransaction)

	pushErr := l.node.PushTransaction(ctx, nodeTransaction(tx.Slate))
	observeStatus(txPostedTotal, pushErr)
	if pushErr != nil {
		if !errors.Is(pushErr, ports.ErrTxRejected) {
			return nil, pushErr
		}
		if err := l.failTransaction(ctx, id, pushErr); err != nil {
			log.WithError(err).Warnf("failed to release inputs of transaction %s", id)
		}
		return nil, pushErr
	}

	res, err = l.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		repo := l.repo()
		if err := repo.TransactionRepository().UpdateTransaction(
			ctx, id,
			func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
				if err := tx.Post(l.wallet.now()); err != nil {
					return nil, err
				}
				return tx, nil
			},
		); err != nil {
			return nil, err
		}
		if err := repo.OutputRepository().CommitOutputs(
			ctx, id, tx.Outputs,
		); err != nil {
			return nil, err
		}
		return repo.TransactionRepository().GetTransaction(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("posted transaction %s", id)
	return res.(*domain.WalletTransaction), nil
}

func (l *ledgerService) GetSummary(
	ctx context.Context, refresh bool,
) (*Summary, error) {
	var tipHeight uint64
	if refresh {
		if _, err := l.ListTransactions(ctx, true); err != nil {
			return nil, err
		}
		tip, err := l.node.GetTip(ctx)
		if err != nil {
			return nil, err
		}
		tipHeight = tip.Height
	}

	res, err := l.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		repo := l.repo()
		outputs, err := repo.OutputRepository().GetAllOutputs(ctx)
		if err != nil {
			return nil, err
		}
		if tipHeight == 0 {
			cursor, err := repo.ScanCursorRepository().GetCursor(ctx)
			if err != nil {
				return nil, err
			}
			tipHeight = cursor.TipHeight
		}
		return outputs, nil
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TipHeight:        tipHeight,
		MinConfirmations: l.minConfs,
	}
	for _, o := range res.([]domain.Output) {
		switch o.Status {
		case domain.OutputStatusUnspent:
			if o.IsSpendable(tipHeight, l.minConfs) {
				summary.Spendable += o.Value
			} else {
				summary.AwaitingConfirmation += o.Value
			}
		case domain.OutputStatusUnconfirmed:
			summary.AwaitingConfirmation += o.Value
		case domain.OutputStatusLocked:
			summary.Locked += o.Value
		}
	}
	summary.Total = summary.Spendable + summary.AwaitingConfirmation
	return summary, nil
}

func (l *ledgerService) ListOutputs(
	ctx context.Context, statuses ...domain.OutputStatus,
) ([]domain.Output, error) {
	res, err := l.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		if len(statuses) == 0 {
			return l.repo().OutputRepository().GetAllOutputs(ctx)
		}
		return l.repo().OutputRepository().GetOutputsByStatus(ctx, statuses...)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Output), nil
}

// confirmation is what a kernel lookup found for a transaction.
type confirmation struct {
	txID    string
	height  uint64
	outputs []ports.NodeOutput
}

// refresh looks up concurrently the kernels of the transactions awaiting
// confirmation, then applies the results in list order up to the first
// failure.
func (l *ledgerService) refresh(
	ctx context.Context, txs []domain.WalletTransaction,
) ([]domain.WalletTransaction, error) {
	pending := make([]int, 0, len(txs))
	for i := range txs {
		if txs[i].AwaitsConfirmation() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return txs, nil
	}

	confs := make([]*confirmation, len(pending))
	errs := make([]error, len(pending))

	eg := &errgroup.Group{}
	eg.SetLimit(l.concurrency)
	for i, idx := range pending {
		i, tx := i, txs[idx]
		eg.Go(func() error {
			l.limiter.Take()
			confs[i], errs[i] = l.lookupKernel(ctx, tx)
			return nil
		})
	}
	_ = eg.Wait()

	for i, idx := range pending {
		if errs[i] != nil {
			return txs, &BatchError{Processed: i, FailedID: txs[idx].ID, Err: errs[i]}
		}
		if confs[i] == nil {
			continue
		}
		tx, err := l.applyConfirmation(ctx, confs[i])
		if err != nil {
			return txs, &BatchError{Processed: i, FailedID: txs[idx].ID, Err: err}
		}
		txs[idx] = *tx
	}
	return txs, nil
}

// lookupKernel asks the node whether the kernel of tx is on chain and, if
// so, where the outputs the wallet produced landed. A nil confirmation
// means the kernel was not found.
func (l *ledgerService) lookupKernel(
	ctx context.Context, tx domain.WalletTransaction,
) (*confirmation, error) {
	kernel, err := l.node.GetKernel(ctx, tx.Excess, tx.Slate.Height, 0)
	observeStatus(kernelLookupsTotal, err)
	if err != nil {
		return nil, err
	}
	if kernel == nil {
		return nil, nil
	}

	conf := &confirmation{txID: tx.ID, height: kernel.Height}
	if len(tx.Outputs) > 0 {
		commits := make([]string, 0, len(tx.Outputs))
		for _, o := range tx.Outputs {
			commits = append(commits, o.Commit)
		}
		if conf.outputs, err = l.node.GetOutputs(ctx, commits); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func (l *ledgerService) applyConfirmation(
	ctx context.Context, conf *confirmation,
) (*domain.WalletTransaction, error) {
	res, err := l.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		repo := l.repo()
		tx, err := repo.TransactionRepository().GetTransaction(ctx, conf.txID)
		if err != nil {
			return nil, err
		}
		if !tx.AwaitsConfirmation() {
			return tx, nil
		}

		if err := repo.OutputRepository().CommitOutputs(
			ctx, tx.ID, tx.Outputs,
		); err != nil {
			return nil, err
		}
		for _, out := range conf.outputs {
			out := out
			if err := repo.OutputRepository().UpdateOutput(
				ctx, out.Commit,
				func(o *domain.Output) (*domain.Output, error) {
					o.Confirm(out.Height, out.MMRIndex)
					o.IsCoinbase = out.IsCoinbase
					return o, nil
				},
			); err != nil {
				return nil, err
			}
		}

		if err := repo.TransactionRepository().UpdateTransaction(
			ctx, tx.ID,
			func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
				tx.Confirm(conf.height, l.wallet.now())
				return tx, nil
			},
		); err != nil {
			return nil, err
		}
		return repo.TransactionRepository().GetTransaction(ctx, tx.ID)
	})
	if err != nil {
		return nil, err
	}

	txConfirmedTotal.Inc()
	log.Debugf("transaction %s confirmed at height %d", conf.txID, conf.height)
	return res.(*domain.WalletTransaction), nil
}

func (l *ledgerService) failTransaction(
	ctx context.Context, id string, reason error,
) error {
	_, err := l.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		repo := l.repo()
		if err := repo.TransactionRepository().UpdateTransaction(
			ctx, id,
			func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
				tx.Fail(reason.Error(), l.wallet.now())
				return tx, nil
			},
		); err != nil {
			return nil, err
		}
		_, err := repo.OutputRepository().ReleaseOutputs(ctx, id)
		return nil, err
	})
	return err
}

func (l *ledgerService) getTransaction(
	ctx context.Context, id string,
) (*domain.WalletTransaction, error) {
	res, err := l.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return l.repo().TransactionRepository().GetTransaction(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.WalletTransaction), nil
}

func (l *ledgerService) repo() ports.RepoManager {
	return l.wallet.repo
}

func nodeTransaction(s slate.Slate) ports.Transaction {
	tx := ports.Transaction{
		Offset:  s.Offset,
		Inputs:  s.Inputs,
		Outputs: s.Outputs,
	}
	if s.Kernel != nil {
		tx.Kernels = []slate.Kernel{*s.Kernel}
	}
	return tx
}
