package domain

import "context"

// VaultRepository persists the single Vault of the wallet.
type VaultRepository interface {
	// GetVault fails with ErrVaultNotInitialized if no vault was stored.
	GetVault(ctx context.Context) (*Vault, error)
	// InsertVault fails with ErrVaultAlreadyInitialized if a vault exists.
	InsertVault(ctx context.Context, vault *Vault) error
	UpdateVault(
		ctx context.Context, updateFn func(v *Vault) (*Vault, error),
	) error
}
