package application_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testPassword      = "Sup3rS3cr3tP4ssw0rd!"
	testChain         = "testnet"
	testTipHeight     = 100
	testFundingHeight = 10
	testMinConfs      = 10
	testBatchSize     = 1000
)

var ctx = context.Background()

type testWallet struct {
	phrase     string
	kc         *keychain.Keychain
	node       *mockNodeClient
	config     *application.Config
	wallet     application.WalletService
	ledger     application.LedgerService
	scanner    application.ScannerService
	negotiator application.NegotiatorService
}

func newTestWallet(t *testing.T, sender ports.SlateSender) *testWallet {
	phrase, err := keychain.NewMnemonic(16)
	require.NoError(t, err)
	seed, err := keychain.SeedFromPhrase(phrase)
	require.NoError(t, err)
	kc, err := keychain.New(seed)
	require.NoError(t, err)

	cfg, node := newTestConfig(t, sender, testChain, "")
	require.NoError(t, cfg.WalletService().InitWallet(ctx, phrase, testPassword))

	return &testWallet{
		phrase:     phrase,
		kc:         kc,
		node:       node,
		config:     cfg,
		wallet:     cfg.WalletService(),
		ledger:     cfg.LedgerService(),
		scanner:    cfg.ScannerService(),
		negotiator: cfg.NegotiatorService(),
	}
}

// newTestConfig returns the config of a wallet not yet initialized. An
// empty datadir keeps the store in memory.
func newTestConfig(
	t *testing.T, sender ports.SlateSender, chain, datadir string,
) (*application.Config, *mockNodeClient) {
	node := &mockNodeClient{}
	node.On("GetTip", mock.Anything).
		Return(&ports.Tip{Height: testTipHeight}, nil).Maybe()
	if sender == nil {
		sender = &mockSlateSender{}
	}

	cfg := &application.Config{
		DBType:           application.DBBadger,
		DBConfig:         datadir,
		Node:             node,
		Sender:           sender,
		Clock:            clock.NewTestClock(time.Unix(1700000000, 0)),
		Chain:            chain,
		MinConfirmations: testMinConfs,
		BaseFee:          1,
		ScanBatchSize:    testBatchSize,
		KDFCost:          1 << 10,
	}
	require.NoError(t, cfg.Validate())
	t.Cleanup(cfg.Wallet().Close)
	return cfg, node
}

// nodeOutputs builds outputs owned by the wallet as the node would list
// them, with key indexes starting from firstIndex and MMR indexes from
// firstMMRIndex. Each output is mined one block after the previous one so
// that listings come back in the given order.
func (w *testWallet) nodeOutputs(
	t *testing.T, firstIndex uint32, firstMMRIndex uint64, values ...uint64,
) []ports.NodeOutput {
	outputs := make([]ports.NodeOutput, 0, len(values))
	for i, v := range values {
		id := keychain.KeyID{Index: firstIndex + uint32(i)}
		commit, envelope, err := w.kc.BuildOutput(id, v)
		require.NoError(t, err)
		outputs = append(outputs, ports.NodeOutput{
			Commit:   commit.String(),
			Proof:    hex.EncodeToString(envelope),
			Height:   testFundingHeight + uint64(i),
			MMRIndex: firstMMRIndex + uint64(i),
		})
	}
	return outputs
}

// fund makes the wallet find unspent outputs of the given values with a
// scan of the first len(values) PMMR leaves.
func (w *testWallet) fund(t *testing.T, values ...uint64) []ports.NodeOutput {
	outputs := w.nodeOutputs(t, 0, 1, values...)
	highest := uint64(len(values))

	w.node.On(
		"GetUnspentOutputs", mock.Anything, uint64(1), highest, uint64(testBatchSize),
	).Return(&ports.OutputListing{
		HighestIndex:       highest,
		LastRetrievedIndex: highest,
		Root:               "root",
		Outputs:            outputs,
	}, nil).Once()

	res, err := w.scanner.Scan(ctx, 0, highest)
	require.NoError(t, err)
	require.Equal(t, len(values), res.Found)
	return outputs
}

func (w *testWallet) outputsByStatus(
	t *testing.T, status domain.OutputStatus,
) []domain.Output {
	outputs, err := w.ledger.ListOutputs(ctx, status)
	require.NoError(t, err)
	return outputs
}

func (w *testWallet) tx(t *testing.T, id string) *domain.WalletTransaction {
	tx, err := w.ledger.GetTransaction(ctx, id, false)
	require.NoError(t, err)
	return tx
}

func values(outputs []domain.Output) []uint64 {
	list := make([]uint64, 0, len(outputs))
	for _, o := range outputs {
		list = append(list, o.Value)
	}
	return list
}
