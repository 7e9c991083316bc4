package application

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
	"github.com/ironbelly/walletd/pkg/slate"
)

// blindExcess returns sum(outputs) - sum(inputs) - offset, the secret
// excess of a participant.
func blindExcess(
	kc *keychain.Keychain, outputs, inputs []keychain.KeyID,
	offset *btcec.ModNScalar,
) (btcec.ModNScalar, error) {
	positive := make([]btcec.ModNScalar, 0, len(outputs))
	for _, id := range outputs {
		blind, err := kc.BlindingFactor(id)
		if err != nil {
			return btcec.ModNScalar{}, err
		}
		positive = append(positive, blind)
	}

	negative := make([]btcec.ModNScalar, 0, len(inputs)+1)
	for _, id := range inputs {
		blind, err := kc.BlindingFactor(id)
		if err != nil {
			return btcec.ModNScalar{}, err
		}
		negative = append(negative, blind)
	}
	if offset != nil {
		negative = append(negative, *offset)
	}

	excess := mwcrypto.SumScalars(positive, negative)
	if excess.IsZero() {
		return btcec.ModNScalar{}, fmt.Errorf("participant excess is zero")
	}
	return excess, nil
}

// publicData returns the public excess and nonce participant id publishes
// for the given secret excess, along with the secret nonce. The nonce is
// bound to the slate transcript, so it is the same every time the
// participant's contribution is rebuilt.
func publicData(
	kc *keychain.Keychain, s slate.Slate, id uint8, excess btcec.ModNScalar,
) (slate.Participant, btcec.ModNScalar, error) {
	xs := mwcrypto.CommitmentFromPubKey(mwcrypto.PublicKey(&excess)).String()

	nonce, err := kc.DeriveNonce(s.Transcript(id, xs))
	if err != nil {
		return slate.Participant{}, btcec.ModNScalar{}, err
	}
	pubNonce := mwcrypto.CommitmentFromPubKey(mwcrypto.PublicKey(&nonce))

	return slate.Participant{
		ID:                id,
		PublicBlindExcess: xs,
		PublicNonce:       pubNonce.String(),
	}, nonce, nil
}

// aggregateKeys returns the sums of the public nonces and public excesses
// of all participants.
func aggregateKeys(s slate.Slate) (nonceSum, keySum *btcec.PublicKey, err error) {
	if len(s.Participants) != int(s.NumParticipants) {
		return nil, nil, fmt.Errorf(
			"%w: expected %d participants, got %d",
			slate.ErrInvalidSlate, s.NumParticipants, len(s.Participants),
		)
	}

	nonces := make([]*btcec.PublicKey, 0, len(s.Participants))
	keys := make([]*btcec.PublicKey, 0, len(s.Participants))
	for _, p := range s.Participants {
		nonce, key, err := participantKeys(p)
		if err != nil {
			return nil, nil, err
		}
		nonces = append(nonces, nonce)
		keys = append(keys, key)
	}

	if nonceSum, err = mwcrypto.SumPublicKeys(nonces); err != nil {
		return nil, nil, err
	}
	if keySum, err = mwcrypto.SumPublicKeys(keys); err != nil {
		return nil, nil, err
	}
	return nonceSum, keySum, nil
}

func participantKeys(p slate.Participant) (nonce, key *btcec.PublicKey, err error) {
	c, err := mwcrypto.ParseCommitment(p.PublicNonce)
	if err != nil {
		return nil, nil, err
	}
	if nonce, err = c.PubKey(); err != nil {
		return nil, nil, err
	}
	if c, err = mwcrypto.ParseCommitment(p.PublicBlindExcess); err != nil {
		return nil, nil, err
	}
	if key, err = c.PubKey(); err != nil {
		return nil, nil, err
	}
	return nonce, key, nil
}

// kernelExcess returns the excess commitment of the transaction, the sum
// of the public excesses of all participants.
func kernelExcess(s slate.Slate) (string, error) {
	_, keySum, err := aggregateKeys(s)
	if err != nil {
		return "", err
	}
	return mwcrypto.CommitmentFromPubKey(keySum).String(), nil
}

// signParticipant adds the partial signature of participant id to the
// slate.
func signParticipant(
	s slate.Slate, id uint8, excess, nonce btcec.ModNScalar,
) (slate.Slate, error) {
	p, err := s.Participant(id)
	if err != nil {
		return slate.Slate{}, err
	}
	nonceSum, keySum, err := aggregateKeys(s)
	if err != nil {
		return slate.Slate{}, err
	}

	sig := mwcrypto.PartialSign(&excess, &nonce, nonceSum, keySum, s.KernelMessage())
	p.PartialSig = sig.String()
	return s.WithParticipant(p)
}

// verifyParticipant checks the partial signature of participant id.
func verifyParticipant(s slate.Slate, id uint8) error {
	p, err := s.Participant(id)
	if err != nil {
		return err
	}
	if p.PartialSig == "" {
		return slate.ErrMissingPartialSig
	}

	sig, err := mwcrypto.ParseSignature(p.PartialSig)
	if err != nil {
		return err
	}
	nonce, key, err := participantKeys(p)
	if err != nil {
		return err
	}
	nonceSum, keySum, err := aggregateKeys(s)
	if err != nil {
		return err
	}
	return mwcrypto.VerifyPartial(
		sig, nonce, key, nonceSum, keySum, s.KernelMessage(),
	)
}

// completeKernel aggregates all partial signatures, verifies the result
// and the transaction balance and sets the kernel of the slate.
func completeKernel(s slate.Slate) (slate.Slate, error) {
	sigs := make([]mwcrypto.Signature, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.PartialSig == "" {
			return slate.Slate{}, slate.ErrMissingPartialSig
		}
		sig, err := mwcrypto.ParseSignature(p.PartialSig)
		if err != nil {
			return slate.Slate{}, err
		}
		sigs = append(sigs, sig)
	}

	sig, err := mwcrypto.Aggregate(sigs)
	if err != nil {
		return slate.Slate{}, err
	}
	_, keySum, err := aggregateKeys(s)
	if err != nil {
		return slate.Slate{}, err
	}
	if err := mwcrypto.Verify(sig, keySum, s.KernelMessage()); err != nil {
		return slate.Slate{}, err
	}

	excess := mwcrypto.CommitmentFromPubKey(keySum)
	offset, err := mwcrypto.ParseScalar(s.Offset)
	if err != nil {
		return slate.Slate{}, err
	}
	inputs, outputs, err := s.Commitments()
	if err != nil {
		return slate.Slate{}, err
	}
	if err := mwcrypto.VerifyKernelSums(
		inputs, outputs, s.Fee, excess, &offset,
	); err != nil {
		return slate.Slate{}, err
	}

	final := s.WithState(slate.Finalized)
	final.Kernel = &slate.Kernel{
		Features:   s.Features,
		Fee:        s.Fee,
		LockHeight: s.LockHeight,
		Excess:     excess.String(),
		ExcessSig:  sig.String(),
	}
	return final, nil
}

// buildOutput derives a new wallet output of the given value.
func buildOutput(
	kc *keychain.Keychain, id keychain.KeyID, value uint64,
) (slate.Output, domain.Output, error) {
	commit, envelope, err := kc.BuildOutput(id, value)
	if err != nil {
		return slate.Output{}, domain.Output{}, err
	}
	return slate.Output{
			Commit: commit.String(),
			Proof:  hex.EncodeToString(envelope),
		}, domain.Output{
			Commit: commit.String(),
			KeyID:  id,
			Value:  value,
			Status: domain.OutputStatusUnconfirmed,
		}, nil
}

func keyIDs(outputs []domain.Output) []keychain.KeyID {
	ids := make([]keychain.KeyID, 0, len(outputs))
	for _, o := range outputs {
		ids = append(ids, o.KeyID)
	}
	return ids
}

func partnerOf(id uint8) uint8 {
	return 1 - id
}
