package mwcrypto

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeSize is the length of a sealed proof envelope.
const EnvelopeSize = envelopePayloadSize + chacha20poly1305.Overhead

const envelopePayloadSize = 8 + 4 + 4

// ErrEnvelopeMismatch is returned when an envelope was not sealed for the
// given rewind key and commitment.
var ErrEnvelopeMismatch = errors.New("envelope cannot be opened with the given rewind key")

// EnvelopeContent is what an owner can recover from an output's envelope.
type EnvelopeContent struct {
	Value   uint64
	Account uint32
	Index   uint32
}

// SealEnvelope encrypts the value and key identifier of an output under a
// key bound to both the rewind key and the output commitment.
func SealEnvelope(rewindKey [32]byte, commit Commitment, content EnvelopeContent) ([]byte, error) {
	aead, err := envelopeCipher(rewindKey, commit)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, envelopePayloadSize)
	payload = binary.BigEndian.AppendUint64(payload, content.Value)
	payload = binary.BigEndian.AppendUint32(payload, content.Account)
	payload = binary.BigEndian.AppendUint32(payload, content.Index)

	nonce := make([]byte, chacha20poly1305.NonceSize)
	return aead.Seal(nil, nonce, payload, commit[:]), nil
}

// OpenEnvelope recovers the content of an envelope. Envelopes of outputs
// owned by somebody else fail with ErrEnvelopeMismatch.
func OpenEnvelope(rewindKey [32]byte, commit Commitment, envelope []byte) (EnvelopeContent, error) {
	if len(envelope) != EnvelopeSize {
		return EnvelopeContent{}, ErrEnvelopeMismatch
	}
	aead, err := envelopeCipher(rewindKey, commit)
	if err != nil {
		return EnvelopeContent{}, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	payload, err := aead.Open(nil, nonce, envelope, commit[:])
	if err != nil {
		return EnvelopeContent{}, ErrEnvelopeMismatch
	}
	return EnvelopeContent{
		Value:   binary.BigEndian.Uint64(payload[:8]),
		Account: binary.BigEndian.Uint32(payload[8:12]),
		Index:   binary.BigEndian.Uint32(payload[12:16]),
	}, nil
}

// The key is unique per commitment, so a fixed nonce is never reused
// under the same key.
func envelopeCipher(rewindKey [32]byte, commit Commitment) (cipher.AEAD, error) {
	h, _ := blake2b.New256(rewindKey[:])
	h.Write(commit[:])
	return chacha20poly1305.New(h.Sum(nil))
}
