// Package keychain derives every key the wallet uses from a single seed.
// Derivation is pure: the same seed and key identifier always produce the
// same keypair and commitment.
package keychain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrEntropy ...
	ErrEntropy = errors.New(
		"entropy size must be a multiple of 4 bytes in the range [16,32]",
	)
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New("derivation path is malformed")
	// ErrInvalidKeyID ...
	ErrInvalidKeyID = errors.New(
		"key id must be a path in the form \"m/account'/0/index\"",
	)
	// ErrDerivation ...
	ErrDerivation = errors.New("failed to derive a valid scalar")
	// ErrOutputMismatch ...
	ErrOutputMismatch = errors.New("commitment does not match the derived key and value")
)

const (
	tagNonce     = "walletd/nonce"
	tagOffset    = "walletd/offset"
	tagRewind    = "walletd/rewind"
	tagSecretKey = "walletd/secret"
)

// Keychain holds the master extended key of a seed.
type Keychain struct {
	master    *hdkeychain.ExtendedKey
	secretKey [32]byte
	rewindKey [32]byte
}

// New returns the keychain of the given seed.
func New(seed []byte) (*Keychain, error) {
	if err := validateEntropySize(len(seed)); err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	rootPrv, err := master.ECPrivKey()
	if err != nil {
		return nil, err
	}

	secret, _ := blake2b.New256(rootPrv.Serialize())
	secret.Write([]byte(tagSecretKey))

	rewind, _ := blake2b.New256(nil)
	rewind.Write([]byte(tagRewind))
	rewind.Write(rootPrv.PubKey().SerializeCompressed())

	k := &Keychain{master: master}
	copy(k.secretKey[:], secret.Sum(nil))
	copy(k.rewindKey[:], rewind.Sum(nil))
	return k, nil
}

// Derive returns the keypair for the given key identifier.
func (k *Keychain) Derive(id KeyID) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	key := k.master
	for _, step := range id.Path() {
		var err error
		key, err = key.Derive(step)
		if err != nil {
			return nil, nil, fmt.Errorf("derive %s: %w", id, err)
		}
	}
	prvkey, err := key.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}
	return prvkey, prvkey.PubKey(), nil
}

// BlindingFactor returns the blinding factor of the output owned by id.
func (k *Keychain) BlindingFactor(id KeyID) (btcec.ModNScalar, error) {
	prvkey, _, err := k.Derive(id)
	if err != nil {
		return btcec.ModNScalar{}, err
	}
	return prvkey.Key, nil
}

// Commit returns the commitment of an output of the given value owned by
// id.
func (k *Keychain) Commit(id KeyID, value uint64) (mwcrypto.Commitment, error) {
	blind, err := k.BlindingFactor(id)
	if err != nil {
		return mwcrypto.Commitment{}, err
	}
	return mwcrypto.Commit(value, &blind)
}

// BuildOutput returns the commitment and the proof envelope of a new output.
func (k *Keychain) BuildOutput(id KeyID, value uint64) (mwcrypto.Commitment, []byte, error) {
	commit, err := k.Commit(id, value)
	if err != nil {
		return mwcrypto.Commitment{}, nil, err
	}
	envelope, err := mwcrypto.SealEnvelope(k.rewindKey, commit, mwcrypto.EnvelopeContent{
		Value:   value,
		Account: id.Account,
		Index:   id.Index,
	})
	if err != nil {
		return mwcrypto.Commitment{}, nil, err
	}
	return commit, envelope, nil
}

// Recognize opens the envelope of an output and checks that its
// commitment is the one derivable from the recovered key and value.
func (k *Keychain) Recognize(
	commit mwcrypto.Commitment, envelope []byte,
) (KeyID, uint64, error) {
	content, err := mwcrypto.OpenEnvelope(k.rewindKey, commit, envelope)
	if err != nil {
		return KeyID{}, 0, err
	}
	id := KeyID{Account: content.Account, Index: content.Index}
	derived, err := k.Commit(id, content.Value)
	if err != nil {
		return KeyID{}, 0, err
	}
	if derived != commit {
		return KeyID{}, 0, ErrOutputMismatch
	}
	return id, content.Value, nil
}

// RewindKey returns the key used to seal and open proof envelopes.
func (k *Keychain) RewindKey() [32]byte {
	return k.rewindKey
}

// DeriveNonce returns a secret signing nonce bound to the given transcript.
// Two different transcripts never share a nonce.
func (k *Keychain) DeriveNonce(transcript []byte) (btcec.ModNScalar, error) {
	return k.deriveScalar(tagNonce, transcript)
}

// DeriveOffset returns the kernel offset the wallet uses for the
// transaction with the given id.
func (k *Keychain) DeriveOffset(txID []byte) (btcec.ModNScalar, error) {
	return k.deriveScalar(tagOffset, txID)
}

func (k *Keychain) deriveScalar(tag string, data []byte) (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	for ctr := 0; ctr < 256; ctr++ {
		h, _ := blake2b.New256(k.secretKey[:])
		h.Write([]byte(tag))
		h.Write(data)
		h.Write([]byte{byte(ctr)})
		if overflow := s.SetByteSlice(h.Sum(nil)); !overflow && !s.IsZero() {
			return s, nil
		}
	}
	return s, ErrDerivation
}
