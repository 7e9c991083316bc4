package application

import (
	"context"
	"sync"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/lightningnetwork/lnd/clock"
)

// Wallet is the handle every service operates on. It owns the store and,
// once unlocked, the keychain derived from the seed.
//
// Every state mutation goes through mutate, which serializes writers with
// a single lock. The lock is held only for the db transaction, callers
// must do any network I/O before or after it.
type Wallet struct {
	repo  ports.RepoManager
	clock clock.Clock

	writer sync.Mutex

	// posting holds the ids of the transactions being pushed to the node.
	postingLock sync.Mutex
	posting     map[string]struct{}

	lock     sync.RWMutex
	seed     []byte
	keychain *keychain.Keychain
	closed   bool
}

// NewWallet returns a locked handle over the given store.
func NewWallet(repo ports.RepoManager, clk clock.Clock) *Wallet {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Wallet{repo: repo, clock: clk, posting: make(map[string]struct{})}
}

// IsUnlocked returns whether key material is available.
func (w *Wallet) IsUnlocked() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.keychain != nil
}

// Close locks the wallet and releases the store. The handle is unusable
// afterwards.
func (w *Wallet) Close() {
	w.writer.Lock()
	defer w.writer.Unlock()

	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	w.wipe()
	w.closed = true
	w.repo.Close()
}

func (w *Wallet) keys() (*keychain.Keychain, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	if w.closed {
		return nil, ErrWalletClosed
	}
	if w.keychain == nil {
		return nil, ErrWalletLocked
	}
	return w.keychain, nil
}

func (w *Wallet) phrase() (string, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	if w.closed {
		return "", ErrWalletClosed
	}
	if w.keychain == nil {
		return "", ErrWalletLocked
	}
	return keychain.PhraseFromSeed(w.seed)
}

func (w *Wallet) unlock(seed []byte) error {
	kc, err := keychain.New(seed)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return ErrWalletClosed
	}
	w.wipe()
	w.seed = append([]byte(nil), seed...)
	w.keychain = kc
	return nil
}

func (w *Wallet) relock() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.wipe()
}

func (w *Wallet) wipe() {
	for i := range w.seed {
		w.seed[i] = 0
	}
	w.seed = nil
	w.keychain = nil
}

// claimPost marks the transaction as being posted. It returns false if
// another post of the same transaction is in flight.
func (w *Wallet) claimPost(txID string) bool {
	w.postingLock.Lock()
	defer w.postingLock.Unlock()
	if _, ok := w.posting[txID]; ok {
		return false
	}
	w.posting[txID] = struct{}{}
	return true
}

func (w *Wallet) releasePost(txID string) {
	w.postingLock.Lock()
	defer w.postingLock.Unlock()
	delete(w.posting, txID)
}

func (w *Wallet) isPosting(txID string) bool {
	w.postingLock.Lock()
	defer w.postingLock.Unlock()
	_, ok := w.posting[txID]
	return ok
}

func (w *Wallet) now() int64 {
	return w.clock.Now().Unix()
}

func (w *Wallet) isClosed() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.closed
}

// mutate runs handler in a write transaction while holding the writer
// lock.
func (w *Wallet) mutate(
	ctx context.Context, handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	w.writer.Lock()
	defer w.writer.Unlock()

	if w.isClosed() {
		return nil, ErrWalletClosed
	}
	return w.repo.RunTransaction(ctx, false, handler)
}

// read runs handler in a read-only transaction. Readers never wait for
// writers.
func (w *Wallet) read(
	ctx context.Context, handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if w.isClosed() {
		return nil, ErrWalletClosed
	}
	return w.repo.RunTransaction(ctx, true, handler)
}
