package domain

import (
	"crypto/rand"

	"github.com/ironbelly/walletd/pkg/keychain"
	"golang.org/x/crypto/argon2"
)

const (
	passwordSaltSize = 16
	argonTime        = 1
	argonMemory      = 64 * 1024
	argonThreads     = 4
	argonKeyLen      = 32
)

// Vault holds the seed encrypted with the wallet password together with a
// salted password verifier, so the password can be checked without
// decrypting any key material.
type Vault struct {
	EncryptedSeed string
	PasswordHash  []byte
	PasswordSalt  []byte
	KDFCost       int
	Chain         string
	Accounts      map[uint32]*Account
	CreatedAt     int64
}

// Account tracks the next unused key index of a derivation account.
type Account struct {
	Index        uint32
	NextKeyIndex uint32
}

// NewVaultOpts is the struct given to NewVault.
type NewVaultOpts struct {
	Seed     []byte
	Password string
	Chain    string
	// KDFCost is the scrypt cost used to encrypt the seed,
	// keychain.DefaultScryptCost if zero.
	KDFCost int
	Now     int64
}

func (o NewVaultOpts) validate() error {
	if len(o.Seed) <= 0 || len(o.Password) <= 0 {
		return ErrVaultNullSeedOrPassword
	}
	if _, err := keychain.New(o.Seed); err != nil {
		return err
	}
	return nil
}

// NewVault encrypts the seed with the password and returns a new Vault
// holding the default account.
func NewVault(opts NewVaultOpts) (*Vault, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	encryptedSeed, err := keychain.Encrypt(keychain.EncryptOpts{
		PlainText: opts.Seed,
		Password:  opts.Password,
		Cost:      opts.KDFCost,
	})
	if err != nil {
		return nil, err
	}

	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	return &Vault{
		EncryptedSeed: encryptedSeed,
		PasswordHash:  hashPassword(opts.Password, salt),
		PasswordSalt:  salt,
		KDFCost:       opts.KDFCost,
		Chain:         opts.Chain,
		Accounts: map[uint32]*Account{
			DefaultAccount: {Index: DefaultAccount},
		},
		CreatedAt: opts.Now,
	}, nil
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen,
	)
}
