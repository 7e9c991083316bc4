package keychain

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestMnemonicRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{16, 20, 24, 28, 32} {
		seed, err := NewSeed(size)
		require.NoError(t, err)
		require.Len(t, seed, size)

		phrase, err := PhraseFromSeed(seed)
		require.NoError(t, err)

		recovered, err := SeedFromPhrase(phrase)
		require.NoError(t, err)
		require.Equal(t, seed, recovered)
	}

	seed, err := SeedFromPhrase("  ABANDON abandon abandon abandon abandon abandon\nabandon abandon abandon abandon abandon about ")
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), seed)

	phrase, err := PhraseFromSeed(make([]byte, 16))
	require.NoError(t, err)
	require.Equal(t, zeroMnemonic, phrase)
}

func TestFailingSeed(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 8, 15, 17, 33, 64} {
		_, err := NewSeed(size)
		assert.ErrorIs(t, err, ErrEntropy, "size %d", size)
	}

	_, err := NewMnemonic(12)
	require.ErrorIs(t, err, ErrEntropy)

	tests := []string{
		"",
		"abandon abandon abandon",
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon",
		"notaword abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
	}
	for _, phrase := range tests {
		_, err := SeedFromPhrase(phrase)
		assert.ErrorIs(t, err, ErrInvalidMnemonic, phrase)
	}
}

func TestParseKeyID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		output KeyID
		err    error
	}{
		{"m/0'/0/0", KeyID{0, 0}, nil},
		{"m/3'/0/17", KeyID{3, 17}, nil},
		{"0'/0/5", KeyID{0, 5}, nil},
		{"", KeyID{}, ErrNullDerivationPath},
		{"m/", KeyID{}, ErrMalformedDerivationPath},
		{"m/0/0/0", KeyID{}, ErrInvalidKeyID},
		{"m/0'/1/0", KeyID{}, ErrInvalidKeyID},
		{"m/0'/0/0'", KeyID{}, ErrInvalidKeyID},
		{"m/0'/0", KeyID{}, ErrInvalidKeyID},
	}
	for _, tt := range tests {
		id, err := ParseKeyID(tt.input)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.output, id)
		assert.Equal(t, id, mustParseKeyID(t, id.String()))
	}

	path, err := ParseDerivationPath("m/0x54'/0/1")
	require.NoError(t, err)
	require.Equal(t, DerivationPath{hdkeychain.HardenedKeyStart + 84, 0, 1}, path)
	require.Equal(t, "m/84'/0/1", path.String())
}

func mustParseKeyID(t *testing.T, str string) KeyID {
	id, err := ParseKeyID(str)
	require.NoError(t, err)
	return id
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Parallel()

	seed, err := SeedFromPhrase(zeroMnemonic)
	require.NoError(t, err)

	k1, err := New(seed)
	require.NoError(t, err)
	k2, err := New(seed)
	require.NoError(t, err)

	id := KeyID{Account: 0, Index: 3}
	prv1, pub1, err := k1.Derive(id)
	require.NoError(t, err)
	prv2, pub2, err := k2.Derive(id)
	require.NoError(t, err)
	require.Equal(t, prv1.Serialize(), prv2.Serialize())
	require.True(t, pub1.IsEqual(pub2))

	_, other, err := k1.Derive(id.Next())
	require.NoError(t, err)
	require.False(t, pub1.IsEqual(other))

	c1, err := k1.Commit(id, 100)
	require.NoError(t, err)
	c2, err := k2.Commit(id, 100)
	require.NoError(t, err)
	require.Equal(t, c1, c2)

	c3, err := k1.Commit(id, 101)
	require.NoError(t, err)
	require.NotEqual(t, c1, c3)

	require.Equal(t, k1.RewindKey(), k2.RewindKey())

	n1, err := k1.DeriveNonce([]byte("transcript"))
	require.NoError(t, err)
	n2, err := k2.DeriveNonce([]byte("transcript"))
	require.NoError(t, err)
	n3, err := k1.DeriveNonce([]byte("transcript'"))
	require.NoError(t, err)
	require.True(t, n1.Equals(&n2))
	require.False(t, n1.Equals(&n3))
}

func TestRecognize(t *testing.T) {
	t.Parallel()

	seed, err := NewSeed(32)
	require.NoError(t, err)
	k, err := New(seed)
	require.NoError(t, err)

	otherSeed, err := NewSeed(32)
	require.NoError(t, err)
	other, err := New(otherSeed)
	require.NoError(t, err)

	id := KeyID{Account: 0, Index: 9}
	commit, envelope, err := k.BuildOutput(id, 4200)
	require.NoError(t, err)

	gotID, value, err := k.Recognize(commit, envelope)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Equal(t, uint64(4200), value)

	_, _, err = other.Recognize(commit, envelope)
	require.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	plaintext := []byte("super secret seed")
	cyphertext, err := Encrypt(EncryptOpts{
		PlainText: plaintext,
		Password:  "supersecurekey",
		Cost:      1 << 10,
	})
	require.NoError(t, err)

	revealed, err := Decrypt(DecryptOpts{
		CypherText: cyphertext,
		Password:   "supersecurekey",
		Cost:       1 << 10,
	})
	require.NoError(t, err)
	require.True(t, bytes.Equal(plaintext, revealed))

	_, err = Decrypt(DecryptOpts{
		CypherText: cyphertext,
		Password:   "wrong",
		Cost:       1 << 10,
	})
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestFailingEncryptDecrypt(t *testing.T) {
	t.Parallel()

	_, err := Encrypt(EncryptOpts{Password: "pass"})
	require.ErrorIs(t, err, ErrNullPlainText)
	_, err = Encrypt(EncryptOpts{PlainText: []byte("text")})
	require.ErrorIs(t, err, ErrNullPassword)

	_, err = Decrypt(DecryptOpts{Password: "pass"})
	require.ErrorIs(t, err, ErrNullCypherText)
	_, err = Decrypt(DecryptOpts{CypherText: "not base64!", Password: "pass"})
	require.ErrorIs(t, err, ErrInvalidCypherText)
}
