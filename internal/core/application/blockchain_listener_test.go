package application_test

import (
	"testing"
	"time"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBlockchainListener(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	testClock := w.config.Clock.(*clock.TestClock)

	outputs := w.nodeOutputs(t, 0, 1, 10, 20)
	w.node.On("GetPMMRIndices", mock.Anything, uint64(0), uint64(testTipHeight)).
		Return(&ports.PMMRIndices{LastRetrievedIndex: 2, HighestIndex: 2}, nil)
	w.node.On("GetUnspentOutputs", mock.Anything, uint64(1), uint64(2), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       2,
			LastRetrievedIndex: 2,
			Root:               "root",
			Outputs:            outputs,
		}, nil).Once()
	// Refreshes after the scan find both outputs still unspent.
	w.node.On("GetOutputs", mock.Anything, mock.Anything).Return(outputs, nil).Maybe()

	listener := w.config.BlockchainListener()
	listener.ObserveBlockchain()
	// Starting twice is a no-op.
	listener.ObserveBlockchain()

	require.Eventually(t, func() bool {
		testClock.SetTime(testClock.Now().Add(time.Minute))
		unspent, err := w.ledger.ListOutputs(ctx, domain.OutputStatusUnspent)
		return err == nil && len(unspent) == 2
	}, 5*time.Second, 10*time.Millisecond)

	listener.StopObserveBlockchain()
	listener.StopObserveBlockchain()

	// The cursor reached the highest index, nothing is scanned twice.
	w.node.AssertNumberOfCalls(t, "GetUnspentOutputs", 1)
	require.Equal(t, []uint64{10, 20}, values(w.outputsByStatus(t, domain.OutputStatusUnspent)))
}

func TestBlockchainListenerLockedWallet(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	testClock := w.config.Clock.(*clock.TestClock)
	w.wallet.LockWallet(ctx)

	listener := application.NewBlockchainListener(
		w.config.Wallet(), w.ledger, w.scanner, time.Second,
	)
	listener.ObserveBlockchain()
	for i := 0; i < 10; i++ {
		testClock.SetTime(testClock.Now().Add(time.Second))
		time.Sleep(5 * time.Millisecond)
	}
	listener.StopObserveBlockchain()

	w.node.AssertNotCalled(t, "GetPMMRIndices", mock.Anything, mock.Anything, mock.Anything)
}
