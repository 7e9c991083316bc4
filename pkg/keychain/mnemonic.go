package keychain

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// MinEntropyBytes is the minimum seed length.
	MinEntropyBytes = 16
	// MaxEntropyBytes is the maximum seed length.
	MaxEntropyBytes = 32
)

// NewSeed generates a fresh random seed of the given length in bytes.
func NewSeed(entropyBytes int) ([]byte, error) {
	if err := validateEntropySize(entropyBytes); err != nil {
		return nil, err
	}
	entropy, err := bip39.NewEntropy(entropyBytes * 8)
	if err != nil {
		return nil, ErrEntropy
	}
	return entropy, nil
}

// NewMnemonic generates a fresh seed and returns its mnemonic rendering.
func NewMnemonic(entropyBytes int) (string, error) {
	seed, err := NewSeed(entropyBytes)
	if err != nil {
		return "", err
	}
	return PhraseFromSeed(seed)
}

// PhraseFromSeed renders a seed as a mnemonic phrase.
func PhraseFromSeed(seed []byte) (string, error) {
	if err := validateEntropySize(len(seed)); err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", ErrEntropy
	}
	return mnemonic, nil
}

// SeedFromPhrase recovers the seed a mnemonic phrase was generated from.
// Extra whitespace and letter case are ignored.
func SeedFromPhrase(phrase string) ([]byte, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if normalized == "" {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.EntropyFromMnemonic(normalized)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	return seed, nil
}

func validateEntropySize(n int) error {
	if n < MinEntropyBytes || n > MaxEntropyBytes || n%4 != 0 {
		return ErrEntropy
	}
	return nil
}
