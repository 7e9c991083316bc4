package application

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ironbelly/walletd/pkg/slate"
)

func validateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validatePayment(s slate.Slate) error {
	if s.State != slate.Initiated && s.State != slate.AwaitingPartnerResponse {
		return fmt.Errorf("%w: slate is in state %s", ErrUnexpectedSlate, s.State)
	}
	if len(s.Participants) != 1 || s.Participants[0].ID != senderID ||
		s.Participants[0].PartialSig != "" {
		return fmt.Errorf(
			"%w: expected the sole public data of the sender", ErrUnexpectedSlate,
		)
	}
	if s.Fee == 0 || s.Offset == "" || len(s.Inputs) == 0 {
		return fmt.Errorf("%w: slate is not funded", ErrUnexpectedSlate)
	}
	return nil
}

func validateInvoice(s slate.Slate) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Kind != slate.Invoice {
		return fmt.Errorf("%w: slate is not an invoice", ErrUnexpectedSlate)
	}
	if len(s.Participants) != 1 || s.Participants[0].ID != issuerID ||
		s.Participants[0].PartialSig != "" {
		return fmt.Errorf(
			"%w: expected the sole public data of the issuer", ErrUnexpectedSlate,
		)
	}
	if len(s.Inputs) != 0 || len(s.Outputs) != 1 || s.Fee != 0 || s.Offset != "" {
		return fmt.Errorf("%w: invoice is already funded", ErrUnexpectedSlate)
	}
	return nil
}

func validateFundedInvoice(s slate.Slate) error {
	if len(s.Participants) != 2 {
		return fmt.Errorf("%w: invoice misses the payer data", ErrUnexpectedSlate)
	}
	payer, err := s.Participant(payerID)
	if err != nil {
		return err
	}
	if payer.PartialSig != "" {
		return fmt.Errorf("%w: payer must sign last", ErrUnexpectedSlate)
	}
	if s.Fee == 0 || s.Offset == "" || len(s.Inputs) == 0 {
		return fmt.Errorf("%w: invoice is not funded", ErrUnexpectedSlate)
	}
	return nil
}

func validateDestination(dest string) error {
	u, err := url.Parse(dest)
	if err != nil || u.Host == "" {
		return ErrInvalidDestination
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return ErrInvalidDestination
	}
}
