package application

import (
	"context"
	"fmt"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/pkg/keychain"
	log "github.com/sirupsen/logrus"
)

// WalletStatus describes the state of the wallet handle.
type WalletStatus struct {
	Initialized bool
	Unlocked    bool
	Chain       string
	CreatedAt   int64
}

type WalletService interface {
	GenSeed(ctx context.Context, entropyBytes int) (string, error)
	InitWallet(ctx context.Context, phrase, password string) error
	UnlockWallet(ctx context.Context, password string) error
	LockWallet(ctx context.Context)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	// CheckPassword validates password without decrypting any key material.
	CheckPassword(ctx context.Context, password string) (bool, error)
	// GetPhrase returns the mnemonic of the seed. The wallet must be
	// unlocked.
	GetPhrase(ctx context.Context) (string, error)
	GetStatus(ctx context.Context) (*WalletStatus, error)
}

type walletService struct {
	wallet  *Wallet
	chain   string
	kdfCost int
}

func NewWalletService(wallet *Wallet, chain string, kdfCost int) WalletService {
	return &walletService{wallet, chain, kdfCost}
}

func (s *walletService) GenSeed(
	_ context.Context, entropyBytes int,
) (string, error) {
	if entropyBytes == 0 {
		entropyBytes = defaultEntropyBytes
	}
	return keychain.NewMnemonic(entropyBytes)
}

func (s *walletService) InitWallet(
	ctx context.Context, phrase, password string,
) error {
	seed, err := keychain.SeedFromPhrase(phrase)
	if err != nil {
		return err
	}

	vault, err := domain.NewVault(domain.NewVaultOpts{
		Seed:     seed,
		Password: password,
		Chain:    s.chain,
		KDFCost:  s.kdfCost,
		Now:      s.wallet.now(),
	})
	if err != nil {
		return err
	}

	if _, err := s.wallet.mutate(
		ctx, func(ctx context.Context) (interface{}, error) {
			return nil, s.wallet.repo.VaultRepository().InsertVault(ctx, vault)
		},
	); err != nil {
		return err
	}

	log.Info("wallet initialized")
	return s.wallet.unlock(seed)
}

func (s *walletService) UnlockWallet(ctx context.Context, password string) error {
	vault, err := s.getVault(ctx)
	if err != nil {
		return err
	}
	if vault.Chain != s.chain {
		return fmt.Errorf(
			"wallet was created for chain %s, not %s", vault.Chain, s.chain,
		)
	}

	seed, err := vault.Unlock(password)
	if err != nil {
		return err
	}
	if err := s.wallet.unlock(seed); err != nil {
		return err
	}

	log.Debug("wallet unlocked")
	return nil
}

func (s *walletService) LockWallet(_ context.Context) {
	s.wallet.relock()
	log.Debug("wallet locked")
}

func (s *walletService) ChangePassword(
	ctx context.Context, currentPassword, newPassword string,
) error {
	_, err := s.wallet.mutate(
		ctx, func(ctx context.Context) (interface{}, error) {
			return nil, s.wallet.repo.VaultRepository().UpdateVault(
				ctx, func(v *domain.Vault) (*domain.Vault, error) {
					if err := v.ChangePassword(
						currentPassword, newPassword,
					); err != nil {
						return nil, err
					}
					return v, nil
				},
			)
		},
	)
	return err
}

func (s *walletService) CheckPassword(
	ctx context.Context, password string,
) (bool, error) {
	vault, err := s.getVault(ctx)
	if err != nil {
		return false, err
	}
	return vault.CheckPassword(password), nil
}

func (s *walletService) GetPhrase(_ context.Context) (string, error) {
	return s.wallet.phrase()
}

func (s *walletService) GetStatus(ctx context.Context) (*WalletStatus, error) {
	status := &WalletStatus{
		Unlocked: s.wallet.IsUnlocked(),
		Chain:    s.chain,
	}

	vault, err := s.getVault(ctx)
	if err != nil {
		if err == domain.ErrVaultNotInitialized {
			return status, nil
		}
		return nil, err
	}
	status.Initialized = vault.IsInitialized()
	status.Chain = vault.Chain
	status.CreatedAt = vault.CreatedAt
	return status, nil
}

func (s *walletService) getVault(ctx context.Context) (*domain.Vault, error) {
	res, err := s.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return s.wallet.repo.VaultRepository().GetVault(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Vault), nil
}
