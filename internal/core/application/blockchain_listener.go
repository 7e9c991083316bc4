package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
)

// BlockchainListener defines the needed methods to start and stop a
// blockchain listener. While running, it periodically asks the node for
// the confirmation of pending transactions and the outputs spent outside
// of the wallet, then resumes the output scan from the stored cursor.
type BlockchainListener interface {
	ObserveBlockchain()
	StopObserveBlockchain()
}

type blockchainListener struct {
	wallet   *Wallet
	ledger   LedgerService
	scanner  ScannerService
	clock    clock.Clock
	interval time.Duration

	quitChan chan struct{}
	wg       sync.WaitGroup
	mutex    sync.Mutex
	running  bool

	// Loggers
	lockedLogged bool
	desyncLogged bool
}

// NewBlockchainListener returns a BlockchainListener observing the chain
// every interval.
func NewBlockchainListener(
	wallet *Wallet, ledger LedgerService, scanner ScannerService,
	interval time.Duration,
) BlockchainListener {
	if interval <= 0 {
		interval = defaultObserveInterval
	}
	return &blockchainListener{
		wallet:   wallet,
		ledger:   ledger,
		scanner:  scanner,
		clock:    wallet.clock,
		interval: interval,
	}
}

func (b *blockchainListener) ObserveBlockchain() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.quitChan = make(chan struct{})
	b.wg.Add(1)
	go b.observe(b.quitChan)
	log.Debug("start observe")
}

func (b *blockchainListener) StopObserveBlockchain() {
	b.mutex.Lock()
	if !b.running {
		b.mutex.Unlock()
		return
	}
	b.running = false
	close(b.quitChan)
	b.mutex.Unlock()

	b.wg.Wait()
	log.Debug("stop observe")
}

func (b *blockchainListener) observe(quit chan struct{}) {
	defer b.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-quit
		cancel()
	}()

	for {
		select {
		case <-b.clock.TickAfter(b.interval):
			log.Debug("observe interval")
			b.observeOnce(ctx)
		case <-quit:
			return
		}
	}
}

func (b *blockchainListener) observeOnce(ctx context.Context) {
	if !b.wallet.IsUnlocked() {
		if !b.lockedLogged {
			log.Warn("wallet is locked, skipping transactions refresh and scan")
			b.lockedLogged = true
		}
		return
	}
	b.lockedLogged = false

	if _, err := b.ledger.ListTransactions(ctx, true); err != nil {
		log.WithError(err).Warn("failed to refresh transactions")
	}

	if err := b.scan(ctx); err != nil {
		if errors.Is(err, ErrDesync) {
			if !b.desyncLogged {
				log.Error(
					"scanned outputs diverged from the node ones, the wallet must be " +
						"restored with a full rescan",
				)
				b.desyncLogged = true
			}
			return
		}
		log.WithError(err).Warn("failed to scan outputs")
		return
	}
	b.desyncLogged = false
}

func (b *blockchainListener) scan(ctx context.Context) error {
	pmmr, err := b.scanner.GetPMMRRange(ctx)
	if err != nil {
		return err
	}

	last, highest := pmmr.LastRetrievedIndex, pmmr.HighestIndex
	for last < highest {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := b.scanner.Scan(ctx, last, highest)
		if err != nil {
			return err
		}
		if res.Found > 0 || res.Confirmed > 0 || res.Spent > 0 {
			log.Infof(
				"scan: %d outputs found, %d confirmed, %d spent",
				res.Found, res.Confirmed, res.Spent,
			)
		}
		last, highest = res.LastRetrievedIndex, res.HighestIndex
	}
	return nil
}
