package slate

import (
	"strings"
	"testing"

	"github.com/ironbelly/walletd/pkg/mwcrypto"
	"github.com/stretchr/testify/require"
)

func point(t *testing.T, v uint64) string {
	s := mwcrypto.ScalarFromUint64(v)
	return mwcrypto.CommitmentFromPubKey(mwcrypto.PublicKey(&s)).String()
}

func newTestSlate(t *testing.T) Slate {
	s := New(Standard, 50, 1000)
	s, err := s.WithFee(8)
	require.NoError(t, err)
	offset := mwcrypto.ScalarFromUint64(5)
	s, err = s.WithOffset(mwcrypto.ScalarHex(&offset))
	require.NoError(t, err)
	s = s.WithInputs(Input{Commit: point(t, 70)})
	s = s.WithOutputs(Output{Commit: point(t, 12), Proof: "00"})
	s, err = s.WithParticipant(Participant{
		ID:                0,
		PublicBlindExcess: point(t, 1),
		PublicNonce:       point(t, 2),
		Message:           "for the pizza",
	})
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	return s
}

func TestSlateIsAValue(t *testing.T) {
	t.Parallel()

	s := newTestSlate(t)
	snapshot := s.Clone()

	next := s.WithOutputs(Output{Commit: point(t, 50), Proof: "01"})
	next, err := next.WithParticipant(Participant{
		ID: 1, PublicBlindExcess: point(t, 3), PublicNonce: point(t, 4),
	})
	require.NoError(t, err)

	require.True(t, s.Equal(snapshot))
	require.Len(t, next.Outputs, 2)
	require.Len(t, next.Participants, 2)
	require.NoError(t, next.CheckExtends(s))
}

func TestWithParticipant(t *testing.T) {
	t.Parallel()

	s := newTestSlate(t)
	p, err := s.Participant(0)
	require.NoError(t, err)

	signed := p
	signed.PartialSig = strings.Repeat("ab", mwcrypto.SignatureSize)
	next, err := s.WithParticipant(signed)
	require.NoError(t, err)
	got, _ := next.Participant(0)
	require.Equal(t, signed.PartialSig, got.PartialSig)

	tests := []struct {
		name   string
		mutate func(p Participant) Participant
	}{
		{"excess", func(p Participant) Participant { p.PublicBlindExcess = point(t, 9); return p }},
		{"nonce", func(p Participant) Participant { p.PublicNonce = point(t, 9); return p }},
		{"message", func(p Participant) Participant { p.Message = "other"; return p }},
		{"partial signature", func(p Participant) Participant { p.PartialSig = strings.Repeat("cd", mwcrypto.SignatureSize); return p }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := next.WithParticipant(tt.mutate(signed))
			require.ErrorIs(t, err, ErrParticipantMismatch)
		})
	}

	full, err := s.WithParticipant(Participant{ID: 1, PublicBlindExcess: point(t, 3), PublicNonce: point(t, 4)})
	require.NoError(t, err)
	_, err = full.WithParticipant(Participant{ID: 2, PublicBlindExcess: point(t, 5), PublicNonce: point(t, 6)})
	require.ErrorIs(t, err, ErrInvalidSlate)
}

func TestCheckExtends(t *testing.T) {
	t.Parallel()

	prev := newTestSlate(t)

	tests := []struct {
		name   string
		mutate func(s Slate) Slate
		err    error
	}{
		{"identical", func(s Slate) Slate { return s }, nil},
		{"adds data", func(s Slate) Slate { return s.WithOutputs(Output{Commit: point(t, 50)}) }, nil},
		{"amount", func(s Slate) Slate { s.Amount++; return s }, ErrParticipantMismatch},
		{"fee", func(s Slate) Slate { s.Fee = 1; return s }, ErrParticipantMismatch},
		{"lock height", func(s Slate) Slate { s.LockHeight = 10; return s }, ErrParticipantMismatch},
		{"features", func(s Slate) Slate { s.Features = mwcrypto.HeightLockedKernel; return s }, ErrParticipantMismatch},
		{"kind", func(s Slate) Slate { s.Kind = Invoice; return s }, ErrParticipantMismatch},
		{"offset", func(s Slate) Slate { s.Offset = strings.Repeat("00", 31) + "01"; return s }, ErrParticipantMismatch},
		{"drops input", func(s Slate) Slate { s.Inputs = nil; return s }, ErrParticipantMismatch},
		{"drops output", func(s Slate) Slate { s.Outputs = nil; return s }, ErrParticipantMismatch},
		{"alters participant", func(s Slate) Slate {
			s = s.Clone()
			s.Participants[0].PublicNonce = point(t, 77)
			return s
		}, ErrParticipantMismatch},
		{"drops participant", func(s Slate) Slate { s.Participants = nil; return s }, ErrParticipantMismatch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.mutate(prev.Clone()).CheckExtends(prev)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	s := newTestSlate(t)
	p0, _ := s.Participant(0)
	before := s.Transcript(0, p0.PublicBlindExcess)

	next, err := s.WithParticipant(Participant{ID: 1, PublicBlindExcess: point(t, 3), PublicNonce: point(t, 4)})
	require.NoError(t, err)
	require.Equal(t, before, next.Transcript(0, p0.PublicBlindExcess))

	other, err := s.WithParticipant(Participant{ID: 1, PublicBlindExcess: point(t, 3), PublicNonce: point(t, 5)})
	require.NoError(t, err)
	require.NotEqual(t, next.Transcript(1, point(t, 3)), other.Transcript(1, point(t, 3)))
}

func TestArmor(t *testing.T) {
	t.Parallel()

	s := newTestSlate(t)
	armored, err := Armor(s)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(armored, "BEGINSLATEPACK. "))
	require.True(t, strings.HasSuffix(armored, ". ENDSLATEPACK."))

	decoded, err := Decode(armored)
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))

	// Word boundaries carry no meaning.
	decoded, err = Decode(strings.ReplaceAll(armored, " ", "\n"))
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))
}

func TestFailingDecode(t *testing.T) {
	t.Parallel()

	s := newTestSlate(t)
	armored, err := Armor(s)
	require.NoError(t, err)

	words := strings.Fields(armored)
	body := words[1]
	tampered := strings.Replace(armored, body, reverse(body), 1)

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"empty", "", ErrInvalidArmor},
		{"missing footer", strings.TrimSuffix(armored, "ENDSLATEPACK."), ErrInvalidArmor},
		{"tampered", tampered, ErrChecksumMismatch},
		{"bad json", "{\"id\": 1}", ErrInvalidSlate},
		{"unknown field", "{\"unknown\": 1}", ErrInvalidSlate},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.input)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func reverse(s string) string {
	r := []byte(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
