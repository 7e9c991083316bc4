package domain

import (
	"crypto/subtle"

	"github.com/ironbelly/walletd/pkg/keychain"
)

// IsInitialized returns whether the Vault holds an encrypted seed.
func (v *Vault) IsInitialized() bool {
	return len(v.EncryptedSeed) > 0
}

// CheckPassword returns whether password is the wallet password. No key
// material is decrypted.
func (v *Vault) CheckPassword(password string) bool {
	if !v.IsInitialized() || len(password) <= 0 {
		return false
	}
	hash := hashPassword(password, v.PasswordSalt)
	return subtle.ConstantTimeCompare(hash, v.PasswordHash) == 1
}

// Unlock decrypts the seed with the given password.
func (v *Vault) Unlock(password string) ([]byte, error) {
	if !v.IsInitialized() {
		return nil, ErrVaultNotInitialized
	}
	if !v.CheckPassword(password) {
		return nil, ErrVaultInvalidPassword
	}
	return keychain.Decrypt(keychain.DecryptOpts{
		CypherText: v.EncryptedSeed,
		Password:   password,
		Cost:       v.KDFCost,
	})
}

// ChangePassword re-encrypts the seed with a new password.
func (v *Vault) ChangePassword(currentPassword, newPassword string) error {
	seed, err := v.Unlock(currentPassword)
	if err != nil {
		return err
	}
	updated, err := NewVault(NewVaultOpts{
		Seed:     seed,
		Password: newPassword,
		Chain:    v.Chain,
		KDFCost:  v.KDFCost,
		Now:      v.CreatedAt,
	})
	if err != nil {
		return err
	}
	v.EncryptedSeed = updated.EncryptedSeed
	v.PasswordHash = updated.PasswordHash
	v.PasswordSalt = updated.PasswordSalt
	return nil
}

// NextKeyID returns a key identifier never handed out before for the
// account and advances the account's index.
func (v *Vault) NextKeyID(account uint32) keychain.KeyID {
	acc := v.account(account)
	id := keychain.KeyID{Account: account, Index: acc.NextKeyIndex}
	acc.NextKeyIndex++
	return id
}

// PeekKeyIndex returns the next unused key index of the account.
func (v *Vault) PeekKeyIndex(account uint32) uint32 {
	if acc, ok := v.Accounts[account]; ok {
		return acc.NextKeyIndex
	}
	return 0
}

// ObserveKeyID makes sure id is never handed out again, used when a
// scan finds outputs derived with indexes beyond the current one.
func (v *Vault) ObserveKeyID(id keychain.KeyID) {
	acc := v.account(id.Account)
	if id.Index >= acc.NextKeyIndex {
		acc.NextKeyIndex = id.Index + 1
	}
}

func (v *Vault) account(index uint32) *Account {
	if v.Accounts == nil {
		v.Accounts = make(map[uint32]*Account)
	}
	acc, ok := v.Accounts[index]
	if !ok {
		acc = &Account{Index: index}
		v.Accounts[index] = acc
	}
	return acc
}
