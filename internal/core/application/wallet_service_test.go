package application_test

import (
	"strings"
	"testing"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/stretchr/testify/require"
)

func TestGenSeed(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t, nil, testChain, "")
	svc := cfg.WalletService()

	tests := []struct {
		entropyBytes int
		words        int
	}{
		{0, 24},
		{16, 12},
		{32, 24},
	}

	for _, tt := range tests {
		phrase, err := svc.GenSeed(ctx, tt.entropyBytes)
		require.NoError(t, err)
		require.Len(t, strings.Fields(phrase), tt.words)
	}

	_, err := svc.GenSeed(ctx, 7)
	require.Error(t, err)
}

func TestInitWallet(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t, nil, testChain, "")
	svc := cfg.WalletService()

	status, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Initialized)
	require.False(t, status.Unlocked)

	err = svc.InitWallet(ctx, "not a mnemonic", testPassword)
	require.ErrorIs(t, err, keychain.ErrInvalidMnemonic)

	_, err = cfg.NegotiatorService().IssueInvoice(ctx, 10, "")
	require.ErrorIs(t, err, application.ErrWalletLocked)

	phrase, err := svc.GenSeed(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, svc.InitWallet(ctx, phrase, testPassword))

	status, err = svc.GetStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.Initialized)
	require.True(t, status.Unlocked)
	require.Equal(t, testChain, status.Chain)
	require.NotZero(t, status.CreatedAt)

	got, err := svc.GetPhrase(ctx)
	require.NoError(t, err)
	require.Equal(t, phrase, got)

	err = svc.InitWallet(ctx, phrase, testPassword)
	require.ErrorIs(t, err, domain.ErrVaultAlreadyInitialized)
}

func TestLockUnlockWallet(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)

	w.wallet.LockWallet(ctx)
	status, err := w.wallet.GetStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Unlocked)

	_, err = w.wallet.GetPhrase(ctx)
	require.ErrorIs(t, err, application.ErrWalletLocked)

	err = w.wallet.UnlockWallet(ctx, "wrong password")
	require.ErrorIs(t, err, domain.ErrVaultInvalidPassword)

	require.NoError(t, w.wallet.UnlockWallet(ctx, testPassword))
	phrase, err := w.wallet.GetPhrase(ctx)
	require.NoError(t, err)
	require.Equal(t, w.phrase, phrase)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, nil)
	newPassword := "An0th3rS3cr3tP4ssw0rd!"

	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", testPassword, true},
		{"invalid", newPassword, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		ok, err := w.wallet.CheckPassword(ctx, tt.password)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.ok, ok, tt.name)
	}

	err := w.wallet.ChangePassword(ctx, newPassword, testPassword)
	require.ErrorIs(t, err, domain.ErrVaultInvalidPassword)

	require.NoError(t, w.wallet.ChangePassword(ctx, testPassword, newPassword))

	ok, err := w.wallet.CheckPassword(ctx, testPassword)
	require.NoError(t, err)
	require.False(t, ok)

	w.wallet.LockWallet(ctx)
	err = w.wallet.UnlockWallet(ctx, testPassword)
	require.ErrorIs(t, err, domain.ErrVaultInvalidPassword)
	require.NoError(t, w.wallet.UnlockWallet(ctx, newPassword))
}

func TestUnlockWalletWrongChain(t *testing.T) {
	t.Parallel()

	datadir := t.TempDir()

	cfg, _ := newTestConfig(t, nil, testChain, datadir)
	phrase, err := cfg.WalletService().GenSeed(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, cfg.WalletService().InitWallet(ctx, phrase, testPassword))
	cfg.Wallet().Close()

	_, err = cfg.WalletService().GetStatus(ctx)
	require.ErrorIs(t, err, application.ErrWalletClosed)

	cfg, _ = newTestConfig(t, nil, "mainnet", datadir)
	err = cfg.WalletService().UnlockWallet(ctx, testPassword)
	require.Error(t, err)

	status, err := cfg.WalletService().GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, testChain, status.Chain)
	require.False(t, status.Unlocked)

	cfg.Wallet().Close()
	cfg, _ = newTestConfig(t, nil, testChain, datadir)
	require.NoError(t, cfg.WalletService().UnlockWallet(ctx, testPassword))
}
