package application_test

import (
	"testing"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScanEmptyRange(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)

	res, err := w.scanner.Scan(ctx, 100, 100)
	require.NoError(t, err)
	require.Equal(t, application.ScanResult{
		LastRetrievedIndex: 100,
		HighestIndex:       100,
	}, *res)
	require.True(t, res.IsComplete())
	w.node.AssertNotCalled(
		t, "GetUnspentOutputs", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)

	_, err = w.scanner.Scan(ctx, 101, 100)
	require.ErrorIs(t, err, application.ErrInvalidScanRange)
}

func TestScan(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	stranger := newTestWallet(t, nil)

	foreign := stranger.nodeOutputs(t, 0, 1, 99)
	owned := w.nodeOutputs(t, 0, 2, 10, 20)
	listing := append(foreign, owned...)

	w.node.On("GetUnspentOutputs", mock.Anything, uint64(1), uint64(5), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       5,
			LastRetrievedIndex: 5,
			Root:               "root-5",
			Outputs:            listing,
		}, nil).Once()

	res, err := w.scanner.Scan(ctx, 0, 5)
	require.NoError(t, err)
	require.Equal(t, 2, res.Found)
	require.Zero(t, res.Spent)
	require.True(t, res.IsComplete())

	unspent := w.outputsByStatus(t, domain.OutputStatusUnspent)
	require.Equal(t, []uint64{10, 20}, values(unspent))
	require.Equal(t, uint64(2), unspent[0].MMRIndex)
	require.Equal(t, uint64(testFundingHeight), unspent[0].Height)

	w.node.On("GetPMMRIndices", mock.Anything, uint64(0), uint64(testTipHeight)).
		Return(&ports.PMMRIndices{HighestIndex: 8}, nil)
	rng, err := w.scanner.GetPMMRRange(ctx)
	require.NoError(t, err)
	require.Equal(t, application.PMMRRange{LastRetrievedIndex: 5, HighestIndex: 8}, *rng)

	// New outputs derive keys past the recovered ones.
	s, err := w.negotiator.IssueInvoice(ctx, 5, "")
	require.NoError(t, err)
	require.Equal(t, uint32(2), w.tx(t, s.ID).Outputs[0].KeyID.Index)
}

func TestScanKeyHorizon(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)

	near := w.nodeOutputs(t, 500, 1, 10)
	far := w.nodeOutputs(t, 5000, 2, 20)

	w.node.On("GetUnspentOutputs", mock.Anything, uint64(1), uint64(2), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       2,
			LastRetrievedIndex: 2,
			Outputs:            append(near, far...),
		}, nil).Once()

	res, err := w.scanner.Scan(ctx, 0, 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.Found)
	require.Equal(t, []uint64{10}, values(w.outputsByStatus(t, domain.OutputStatusUnspent)))
}

func TestScanSpent(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	outputs := w.fund(t, 10, 20)
	received := w.nodeOutputs(t, 2, 3, 5)
	received[0].Height = 20

	// The node no longer lists the first output.
	w.node.On("GetPMMRIndices", mock.Anything, uint64(0), uint64(testTipHeight)).
		Return(&ports.PMMRIndices{HighestIndex: 3}, nil)
	w.node.On("GetUnspentOutputs", mock.Anything, uint64(1), uint64(3), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       3,
			LastRetrievedIndex: 3,
			Root:               "root-3",
			Outputs:            []ports.NodeOutput{outputs[1], received[0]},
		}, nil).Once()

	var progress []application.ScanResult
	res, err := w.scanner.Restore(ctx, func(r application.ScanResult) {
		progress = append(progress, r)
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Found)
	require.Equal(t, 1, res.Spent)
	require.Zero(t, res.Confirmed)
	require.Len(t, progress, 1)
	require.Equal(t, *res, progress[0])

	require.Equal(t, []uint64{10}, values(w.outputsByStatus(t, domain.OutputStatusSpent)))
	require.Equal(t, []uint64{20, 5}, values(w.outputsByStatus(t, domain.OutputStatusUnspent)))
}

func TestScanConfirmsPendingOutputs(t *testing.T) {
	t.Parallel()

	alice := newTestWallet(t, nil)
	bob := newTestWallet(t, nil)
	funding := alice.fund(t, 30, 70)
	final := finalizedTx(t, alice, bob, 50)

	alice.node.On(
		"GetKernel", mock.Anything, final.Kernel.Excess, mock.Anything, mock.Anything,
	).Return(nil, nil)
	alice.node.On("PushTransaction", mock.Anything, mock.Anything).Return(nil).Once()
	_, err := alice.ledger.PostTransaction(ctx, final.ID)
	require.NoError(t, err)

	change := alice.outputsByStatus(t, domain.OutputStatusUnconfirmed)[0]
	mined := alice.nodeOutputs(t, change.KeyID.Index, 4, change.Value)
	mined[0].Height = 50
	require.Equal(t, change.Commit, mined[0].Commit)

	alice.node.On("GetUnspentOutputs", mock.Anything, uint64(3), uint64(4), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       4,
			LastRetrievedIndex: 4,
			PrevRoot:           "root",
			Root:               "root-4",
			Outputs:            mined,
		}, nil).Once()

	res, err := alice.scanner.Scan(ctx, 2, 4)
	require.NoError(t, err)
	require.Equal(t, 1, res.Confirmed)
	require.Zero(t, res.Found)
	require.Zero(t, res.Spent)

	unspent := alice.outputsByStatus(t, domain.OutputStatusUnspent)
	require.Equal(t, []uint64{30, 12}, values(unspent))
	require.Equal(t, funding[0].Commit, unspent[0].Commit)
	require.Equal(t, uint64(4), unspent[1].MMRIndex)
}

func TestScanDesync(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	w.fund(t, 10, 20)

	w.node.On("GetUnspentOutputs", mock.Anything, uint64(3), uint64(6), uint64(testBatchSize)).
		Return(&ports.OutputListing{
			HighestIndex:       6,
			LastRetrievedIndex: 6,
			PrevRoot:           "another-root",
			Root:               "root-6",
		}, nil).Once()

	_, err := w.scanner.Scan(ctx, 2, 6)
	require.ErrorIs(t, err, application.ErrDesync)
	require.Equal(t, application.ErrorCodeDesync, application.ToError(err).Code)
	require.Equal(t, []uint64{10, 20}, values(w.outputsByStatus(t, domain.OutputStatusUnspent)))
}

func TestScanNodeUnavailable(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	w.fund(t, 10)

	w.node.On("GetUnspentOutputs", mock.Anything, uint64(2), uint64(4), uint64(testBatchSize)).
		Return(nil, ports.ErrNodeUnavailable).Once()

	_, err := w.scanner.Scan(ctx, 1, 4)
	require.ErrorIs(t, err, ports.ErrNodeUnavailable)

	// The cursor did not move.
	w.node.On("GetPMMRIndices", mock.Anything, uint64(0), uint64(testTipHeight)).
		Return(&ports.PMMRIndices{HighestIndex: 4}, nil)
	rng, err := w.scanner.GetPMMRRange(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rng.LastRetrievedIndex)
}
