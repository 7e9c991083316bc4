// Package slate defines the slate, the document participants of a
// Mimblewimble transaction pass around to build and sign it together.
//
// A Slate is a value: every method returns a new slate and leaves the
// receiver untouched. Contributions are append-only, once a participant
// published its data nobody can alter it.
package slate

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
)

// Version is the slate version produced by this package.
const Version = 4

var (
	// ErrParticipantMismatch ...
	ErrParticipantMismatch = errors.New(
		"slate alters previously fixed data or another participant's contribution",
	)
	// ErrInvalidSlate ...
	ErrInvalidSlate = errors.New("slate is malformed")
	// ErrUnknownParticipant ...
	ErrUnknownParticipant = errors.New("participant not found in slate")
	// ErrMissingPartialSig ...
	ErrMissingPartialSig = errors.New("participant partial signature is missing")
)

// Kind distinguishes who initiates a transaction.
type Kind uint8

const (
	// Standard slates are initiated by the payer.
	Standard Kind = iota
	// Invoice slates are initiated by the payee.
	Invoice
)

func (k Kind) String() string {
	switch k {
	case Standard:
		return "Standard"
	case Invoice:
		return "Invoice"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// State is the negotiation stage of a slate.
type State uint8

const (
	Initiated State = iota
	AwaitingPartnerResponse
	AwaitingFinalization
	Finalized
	Posted
	Cancelled
)

func (s State) String() string {
	switch s {
	case Initiated:
		return "Initiated"
	case AwaitingPartnerResponse:
		return "AwaitingPartnerResponse"
	case AwaitingFinalization:
		return "AwaitingFinalization"
	case Finalized:
		return "Finalized"
	case Posted:
		return "Posted"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Participant is the public contribution of one party.
type Participant struct {
	ID                uint8  `json:"id"`
	PublicBlindExcess string `json:"xs"`
	PublicNonce       string `json:"nonce"`
	PartialSig        string `json:"part,omitempty"`
	Message           string `json:"message,omitempty"`
}

func (p Participant) samePublicData(o Participant) bool {
	return p.ID == o.ID &&
		p.PublicBlindExcess == o.PublicBlindExcess &&
		p.PublicNonce == o.PublicNonce &&
		p.Message == o.Message
}

// Input references an output being spent.
type Input struct {
	Commit string `json:"commit"`
}

// Output is a new output with its proof envelope.
type Output struct {
	Commit string `json:"commit"`
	Proof  string `json:"proof"`
}

// Kernel is set once the slate is finalized.
type Kernel struct {
	Features   mwcrypto.KernelFeatures `json:"features"`
	Fee        uint64                  `json:"fee"`
	LockHeight uint64                  `json:"lock_height,omitempty"`
	Excess     string                  `json:"excess"`
	ExcessSig  string                  `json:"excess_sig"`
}

// Slate is the shared transaction-in-progress.
type Slate struct {
	ID              string                  `json:"id"`
	Version         uint16                  `json:"ver"`
	Kind            Kind                    `json:"kind"`
	State           State                   `json:"sta"`
	NumParticipants uint8                   `json:"num_parts"`
	Amount          uint64                  `json:"amt"`
	Fee             uint64                  `json:"fee"`
	Height          uint64                  `json:"height,omitempty"`
	LockHeight      uint64                  `json:"lock_height,omitempty"`
	Features        mwcrypto.KernelFeatures `json:"feat"`
	Offset          string                  `json:"off,omitempty"`
	Inputs          []Input                 `json:"inputs,omitempty"`
	Outputs         []Output                `json:"outputs,omitempty"`
	Participants    []Participant           `json:"sigs,omitempty"`
	Kernel          *Kernel                 `json:"kernel,omitempty"`
}

// New returns an empty two-party slate.
func New(kind Kind, amount uint64, height uint64) Slate {
	return Slate{
		ID:              uuid.New().String(),
		Version:         Version,
		Kind:            kind,
		State:           Initiated,
		NumParticipants: 2,
		Amount:          amount,
		Height:          height,
		Features:        mwcrypto.PlainKernel,
	}
}

// Clone returns a deep copy of the slate.
func (s Slate) Clone() Slate {
	c := s
	c.Inputs = append([]Input(nil), s.Inputs...)
	c.Outputs = append([]Output(nil), s.Outputs...)
	c.Participants = append([]Participant(nil), s.Participants...)
	if s.Kernel != nil {
		k := *s.Kernel
		c.Kernel = &k
	}
	return c
}

// Equal returns whether two slates carry exactly the same data.
func (s Slate) Equal(o Slate) bool {
	a, err1 := json.Marshal(s)
	b, err2 := json.Marshal(o)
	return err1 == nil && err2 == nil && bytes.Equal(a, b)
}

// WithState returns a copy of the slate in the given state.
func (s Slate) WithState(state State) Slate {
	c := s.Clone()
	c.State = state
	return c
}

// WithFee returns a copy of the slate with the fee set. The fee can be
// fixed only once.
func (s Slate) WithFee(fee uint64) (Slate, error) {
	if s.Fee != 0 && s.Fee != fee {
		return Slate{}, ErrParticipantMismatch
	}
	c := s.Clone()
	c.Fee = fee
	return c, nil
}

// WithOffset returns a copy of the slate with the kernel offset set. The
// offset can be fixed only once.
func (s Slate) WithOffset(offset string) (Slate, error) {
	if _, err := mwcrypto.ParseScalar(offset); err != nil {
		return Slate{}, fmt.Errorf("%w: %s", ErrInvalidSlate, err)
	}
	if s.Offset != "" && s.Offset != offset {
		return Slate{}, ErrParticipantMismatch
	}
	c := s.Clone()
	c.Offset = offset
	return c, nil
}

// WithInputs returns a copy of the slate with the inputs appended. Inputs
// already present are skipped.
func (s Slate) WithInputs(inputs ...Input) Slate {
	c := s.Clone()
	for _, in := range inputs {
		if !containsInput(c.Inputs, in) {
			c.Inputs = append(c.Inputs, in)
		}
	}
	return c
}

// WithOutputs returns a copy of the slate with the outputs appended.
func (s Slate) WithOutputs(outputs ...Output) Slate {
	c := s.Clone()
	for _, out := range outputs {
		if !containsOutput(c.Outputs, out) {
			c.Outputs = append(c.Outputs, out)
		}
	}
	return c
}

// WithParticipant returns a copy of the slate with the given participant
// data. An existing participant can only gain a partial signature, any
// other change fails with ErrParticipantMismatch.
func (s Slate) WithParticipant(p Participant) (Slate, error) {
	c := s.Clone()
	for i, existing := range c.Participants {
		if existing.ID != p.ID {
			continue
		}
		if !existing.samePublicData(p) {
			return Slate{}, ErrParticipantMismatch
		}
		if existing.PartialSig != "" && existing.PartialSig != p.PartialSig {
			return Slate{}, ErrParticipantMismatch
		}
		c.Participants[i] = p
		return c, nil
	}
	if len(c.Participants) >= int(c.NumParticipants) {
		return Slate{}, fmt.Errorf("%w: too many participants", ErrInvalidSlate)
	}
	c.Participants = append(c.Participants, p)
	return c, nil
}

// Participant returns the data of the participant with the given id.
func (s Slate) Participant(id uint8) (Participant, error) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, nil
		}
	}
	return Participant{}, ErrUnknownParticipant
}

// CheckExtends returns ErrParticipantMismatch unless s only adds data on
// top of prev: identical fixed fields and every contribution of prev left
// untouched.
func (s Slate) CheckExtends(prev Slate) error {
	if s.ID != prev.ID ||
		s.Kind != prev.Kind ||
		s.Amount != prev.Amount ||
		s.Features != prev.Features ||
		s.LockHeight != prev.LockHeight ||
		s.NumParticipants != prev.NumParticipants {
		return ErrParticipantMismatch
	}
	if prev.Fee != 0 && s.Fee != prev.Fee {
		return ErrParticipantMismatch
	}
	if prev.Offset != "" && s.Offset != prev.Offset {
		return ErrParticipantMismatch
	}
	for _, in := range prev.Inputs {
		if !containsInput(s.Inputs, in) {
			return ErrParticipantMismatch
		}
	}
	for _, out := range prev.Outputs {
		if !containsOutput(s.Outputs, out) {
			return ErrParticipantMismatch
		}
	}
	for _, p := range prev.Participants {
		cur, err := s.Participant(p.ID)
		if err != nil || !cur.samePublicData(p) {
			return ErrParticipantMismatch
		}
		if p.PartialSig != "" && cur.PartialSig != p.PartialSig {
			return ErrParticipantMismatch
		}
	}
	return nil
}

// Validate checks that every encoded field of the slate is well formed.
func (s Slate) Validate() error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return fmt.Errorf("%w: invalid id", ErrInvalidSlate)
	}
	if s.NumParticipants != 2 {
		return fmt.Errorf("%w: only two-party slates are supported", ErrInvalidSlate)
	}
	if s.Amount == 0 {
		return fmt.Errorf("%w: amount must not be zero", ErrInvalidSlate)
	}
	if s.Offset != "" {
		if _, err := mwcrypto.ParseScalar(s.Offset); err != nil {
			return fmt.Errorf("%w: invalid offset", ErrInvalidSlate)
		}
	}
	for _, in := range s.Inputs {
		if _, err := mwcrypto.ParseCommitment(in.Commit); err != nil {
			return fmt.Errorf("%w: invalid input %s", ErrInvalidSlate, in.Commit)
		}
	}
	for _, out := range s.Outputs {
		if _, err := mwcrypto.ParseCommitment(out.Commit); err != nil {
			return fmt.Errorf("%w: invalid output %s", ErrInvalidSlate, out.Commit)
		}
	}
	seen := make(map[uint8]bool)
	for _, p := range s.Participants {
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicated participant %d", ErrInvalidSlate, p.ID)
		}
		seen[p.ID] = true
		if _, err := mwcrypto.ParseCommitment(p.PublicBlindExcess); err != nil {
			return fmt.Errorf("%w: invalid public excess of participant %d", ErrInvalidSlate, p.ID)
		}
		if _, err := mwcrypto.ParseCommitment(p.PublicNonce); err != nil {
			return fmt.Errorf("%w: invalid public nonce of participant %d", ErrInvalidSlate, p.ID)
		}
		if p.PartialSig != "" {
			if _, err := mwcrypto.ParseSignature(p.PartialSig); err != nil {
				return fmt.Errorf("%w: invalid partial signature of participant %d", ErrInvalidSlate, p.ID)
			}
		}
	}
	return nil
}

// KernelMessage returns the message all participants sign.
func (s Slate) KernelMessage() [32]byte {
	return mwcrypto.KernelMessage(s.Features, s.Fee, s.LockHeight)
}

// Transcript serializes what is fixed when participant id publishes its
// nonce: the immutable fields of the slate, the public data of every
// participant that contributed before it (lower ids) and its own public
// excess. It is the input of deterministic nonce derivation, so the same
// negotiation always yields the same nonce.
func (s Slate) Transcript(id uint8, publicExcess string) []byte {
	var buf bytes.Buffer
	buf.WriteString(s.ID)
	buf.WriteByte(byte(s.Kind))
	buf.WriteByte(byte(s.Features))
	_ = binary.Write(&buf, binary.BigEndian, s.Amount)
	_ = binary.Write(&buf, binary.BigEndian, s.LockHeight)
	for _, p := range s.Participants {
		if p.ID >= id {
			continue
		}
		buf.WriteByte(p.ID)
		buf.WriteString(p.PublicBlindExcess)
		buf.WriteString(p.PublicNonce)
	}
	buf.WriteByte(id)
	buf.WriteString(publicExcess)
	return buf.Bytes()
}

// Commitments decodes the input and output commitments of the slate.
func (s Slate) Commitments() (inputs, outputs []mwcrypto.Commitment, err error) {
	for _, in := range s.Inputs {
		c, err := mwcrypto.ParseCommitment(in.Commit)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, c)
	}
	for _, out := range s.Outputs {
		c, err := mwcrypto.ParseCommitment(out.Commit)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, c)
	}
	return inputs, outputs, nil
}

func containsInput(list []Input, in Input) bool {
	for _, i := range list {
		if i == in {
			return true
		}
	}
	return false
}

func containsOutput(list []Output, out Output) bool {
	for _, o := range list {
		if o == out {
			return true
		}
	}
	return false
}
