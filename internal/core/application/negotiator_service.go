package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/coinselect"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
	"github.com/ironbelly/walletd/pkg/slate"
	log "github.com/sirupsen/logrus"
)

// NegotiatorService drives the slate negotiation of both standard and
// invoice transactions.
//
// Standard: InitSend (sender) -> Receive (receiver) -> Finalize (sender).
// Invoice: IssueInvoice (receiver) -> ProcessInvoice (payer) -> Receive
// (receiver) -> Finalize (payer).
type NegotiatorService interface {
	ports.SlateReceiver

	InitSend(ctx context.Context, req SendRequest) (*slate.Slate, error)
	MarkSent(ctx context.Context, id string) (*slate.Slate, error)
	Receive(ctx context.Context, s slate.Slate, message string) (*slate.Slate, error)
	IssueInvoice(ctx context.Context, amount uint64, message string) (*slate.Slate, error)
	ProcessInvoice(
		ctx context.Context, s slate.Slate, strategy coinselect.Strategy,
		message string,
	) (*slate.Slate, error)
	Finalize(ctx context.Context, s slate.Slate) (*slate.Slate, error)
	Cancel(ctx context.Context, id string) error
	// SendHTTPS creates a transaction, delivers it to the foreign API at
	// dest and finalizes the response. Posting is left to the ledger.
	SendHTTPS(
		ctx context.Context, req SendRequest, dest string,
	) (*domain.WalletTransaction, error)
	PreviewStrategies(ctx context.Context, amount uint64) ([]StrategyPreview, error)
	DecodeSlate(data string) (*slate.Slate, error)
	EncodeSlate(s slate.Slate) (string, error)
}

type negotiatorService struct {
	wallet        *Wallet
	node          ports.NodeClient
	sender        ports.SlateSender
	ledger        LedgerService
	account       uint32
	minConfs      uint64
	selectionOpts coinselect.Opts
}

func NewNegotiatorService(
	wallet *Wallet,
	node ports.NodeClient,
	sender ports.SlateSender,
	ledger LedgerService,
	account uint32,
	minConfs uint64,
	selectionOpts coinselect.Opts,
) NegotiatorService {
	return &negotiatorService{
		wallet:        wallet,
		node:          node,
		sender:        sender,
		ledger:        ledger,
		account:       account,
		minConfs:      minConfs,
		selectionOpts: selectionOpts,
	}
}

func (n *negotiatorService) InitSend(
	ctx context.Context, req SendRequest,
) (*slate.Slate, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	kc, err := n.wallet.keys()
	if err != nil {
		return nil, err
	}
	tip, err := n.node.GetTip(ctx)
	if err != nil {
		return nil, err
	}

	res, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		s := slate.New(slate.Standard, req.Amount, tip.Height)
		s, inputs, change, err := n.fund(
			ctx, kc, s, senderID, req.Strategy, req.Message, tip.Height,
		)
		if err != nil {
			return nil, err
		}

		tx := domain.NewWalletTransaction(
			s, domain.TxOutgoing, senderID, req.Message, n.wallet.now(),
		)
		tx.Inputs = inputs
		tx.Outputs = change
		if err := n.repo().TransactionRepository().AddTransaction(ctx, tx); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := res.(slate.Slate)
	log.Debugf("created transaction %s sending %d", s.ID, s.Amount)
	return &s, nil
}

func (n *negotiatorService) MarkSent(
	ctx context.Context, id string,
) (*slate.Slate, error) {
	res, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		var s slate.Slate
		err := n.repo().TransactionRepository().UpdateTransaction(
			ctx, id,
			func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
				next := tx.Slate
				if tx.Status.Code == domain.TxStatusCodeCreated {
					next = tx.Slate.WithState(slate.AwaitingPartnerResponse)
				}
				if err := tx.Send(next, n.wallet.now()); err != nil {
					return nil, err
				}
				s = tx.Slate
				return tx, nil
			},
		)
		return s, err
	})
	if err != nil {
		return nil, err
	}

	s := res.(slate.Slate)
	return &s, nil
}

func (n *negotiatorService) ReceiveSlate(
	ctx context.Context, s slate.Slate,
) (slate.Slate, error) {
	res, err := n.Receive(ctx, s, "")
	if err != nil {
		return slate.Slate{}, err
	}
	return *res, nil
}

func (n *negotiatorService) Receive(
	ctx context.Context, s slate.Slate, message string,
) (*slate.Slate, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	kc, err := n.wallet.keys()
	if err != nil {
		return nil, err
	}

	var handler func(ctx context.Context) (interface{}, error)
	switch s.Kind {
	case slate.Standard:
		handler = func(ctx context.Context) (interface{}, error) {
			return n.receivePayment(ctx, kc, s, message)
		}
	case slate.Invoice:
		handler = func(ctx context.Context) (interface{}, error) {
			return n.signInvoice(ctx, kc, s)
		}
	default:
		return nil, fmt.Errorf("%w: unknown slate kind", slate.ErrInvalidSlate)
	}

	res, err := n.wallet.mutate(ctx, handler)
	if err != nil {
		return nil, err
	}

	resp := res.(slate.Slate)
	log.Debugf("received slate %s for amount %d", resp.ID, resp.Amount)
	return &resp, nil
}

func (n *negotiatorService) IssueInvoice(
	ctx context.Context, amount uint64, message string,
) (*slate.Slate, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	kc, err := n.wallet.keys()
	if err != nil {
		return nil, err
	}

	res, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		id, err := n.nextKeyID(ctx)
		if err != nil {
			return nil, err
		}
		out, output, err := buildOutput(kc, id, amount)
		if err != nil {
			return nil, err
		}

		s := slate.New(slate.Invoice, amount, 0).WithOutputs(out)
		blind, err := kc.BlindingFactor(id)
		if err != nil {
			return nil, err
		}
		p, _, err := publicData(kc, s, issuerID, blind)
		if err != nil {
			return nil, err
		}
		p.Message = message
		if s, err = s.WithParticipant(p); err != nil {
			return nil, err
		}

		tx := domain.NewWalletTransaction(
			s, domain.TxIncoming, issuerID, message, n.wallet.now(),
		)
		tx.Outputs = []domain.Output{output}
		if err := n.repo().TransactionRepository().AddTransaction(ctx, tx); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := res.(slate.Slate)
	log.Debugf("issued invoice %s for amount %d", s.ID, s.Amount)
	return &s, nil
}

func (n *negotiatorService) ProcessInvoice(
	ctx context.Context, invoice slate.Slate, strategy coinselect.Strategy,
	message string,
) (*slate.Slate, error) {
	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}
	kc, err := n.wallet.keys()
	if err != nil {
		return nil, err
	}
	tip, err := n.node.GetTip(ctx)
	if err != nil {
		return nil, err
	}

	res, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		txRepo := n.repo().TransactionRepository()

		// Paying an invoice twice is not allowed, processing it again
		// returns what was built the first time.
		tx, err := txRepo.GetTransaction(ctx, invoice.ID)
		if err == nil {
			if tx.IsCancelled() {
				return nil, domain.ErrTxCancelled
			}
			if tx.Direction != domain.TxOutgoing || tx.ParticipantID != payerID {
				return nil, slate.ErrParticipantMismatch
			}
			if err := tx.Slate.CheckExtends(invoice); err != nil {
				return nil, err
			}
			return tx.Slate, nil
		}
		if !errors.Is(err, domain.ErrTxNotFound) {
			return nil, err
		}

		s := invoice.Clone()
		if s.Height == 0 {
			s.Height = tip.Height
		}
		s, inputs, change, err := n.fund(
			ctx, kc, s, payerID, strategy, message, tip.Height,
		)
		if err != nil {
			return nil, err
		}
		s = s.WithState(slate.AwaitingPartnerResponse)

		tx = domain.NewWalletTransaction(
			s, domain.TxOutgoing, payerID, message, n.wallet.now(),
		)
		tx.Inputs = inputs
		tx.Outputs = change
		if err := txRepo.AddTransaction(ctx, tx); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := res.(slate.Slate)
	log.Debugf("processed invoice %s paying %d", s.ID, s.Amount)
	return &s, nil
}

func (n *negotiatorService) Finalize(
	ctx context.Context, s slate.Slate,
) (*slate.Slate, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	kc, err := n.wallet.keys()
	if err != nil {
		return nil, err
	}

	// A partner contribution that does not verify aborts the transaction.
	// The cancellation is committed, the verification error returned.
	var abortErr error
	res, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		abortErr = nil
		final, err := n.finalize(ctx, kc, s)
		if err != nil && isProtocolViolation(err) {
			abortErr = err
			return nil, n.cancel(ctx, s.ID, true)
		}
		return final, err
	})
	if err != nil {
		return nil, err
	}
	if abortErr != nil {
		log.WithError(abortErr).Warnf("aborted transaction %s", s.ID)
		return nil, abortErr
	}

	final := res.(slate.Slate)
	log.Debugf("finalized transaction %s", final.ID)
	return &final, nil
}

func (n *negotiatorService) Cancel(ctx context.Context, id string) error {
	_, err := n.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, n.cancel(ctx, id, false)
	})
	if err != nil {
		return err
	}
	log.Debugf("cancelled transaction %s", id)
	return nil
}

func (n *negotiatorService) SendHTTPS(
	ctx context.Context, req SendRequest, dest string,
) (*domain.WalletTransaction, error) {
	if err := validateDestination(dest); err != nil {
		return nil, err
	}

	s, err := n.InitSend(ctx, req)
	if err != nil {
		return nil, err
	}
	if s, err = n.MarkSent(ctx, s.ID); err != nil {
		return nil, err
	}

	resp, err := n.sender.SendSlate(ctx, dest, *s)
	if err != nil {
		if cancelErr := n.Cancel(ctx, s.ID); cancelErr != nil {
			log.WithError(cancelErr).Warnf("failed to cancel transaction %s", s.ID)
		}
		return nil, err
	}

	if _, err := n.Finalize(ctx, resp); err != nil {
		if cancelErr := n.Cancel(ctx, s.ID); cancelErr != nil &&
			!errors.Is(cancelErr, domain.ErrTxAlreadyPosted) {
			log.WithError(cancelErr).Warnf("failed to cancel transaction %s", s.ID)
		}
		return nil, err
	}

	return n.ledger.GetTransaction(ctx, s.ID, false)
}

func (n *negotiatorService) PreviewStrategies(
	ctx context.Context, amount uint64,
) ([]StrategyPreview, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	tip, err := n.node.GetTip(ctx)
	if err != nil {
		return nil, err
	}

	res, err := n.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return n.repo().OutputRepository().GetSpendableOutputs(
			ctx, tip.Height, n.minConfs,
		)
	})
	if err != nil {
		return nil, err
	}

	results, err := coinselect.Preview(
		amount, coins(res.([]domain.Output)), n.selectionOpts,
	)
	if err != nil {
		return nil, err
	}

	previews := make([]StrategyPreview, 0, len(results))
	for _, r := range results {
		previews = append(previews, StrategyPreview{
			Strategy: r.Strategy,
			Amount:   r.Amount,
			Fee:      r.Fee,
			Total:    r.Total,
			Change:   r.Change,
			Inputs:   len(r.Coins),
			Outputs:  r.NumOutputs(n.selectionOpts),
		})
	}
	return previews, nil
}

func (n *negotiatorService) DecodeSlate(data string) (*slate.Slate, error) {
	s, err := slate.Decode(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (n *negotiatorService) EncodeSlate(s slate.Slate) (string, error) {
	return slate.Armor(s)
}

// fund selects the inputs covering the slate amount, reserves them, adds
// a change output if needed and the public data of participant id.
func (n *negotiatorService) fund(
	ctx context.Context, kc *keychain.Keychain, s slate.Slate, id uint8,
	strategy coinselect.Strategy, message string, tipHeight uint64,
) (slate.Slate, []string, []domain.Output, error) {
	outputRepo := n.repo().OutputRepository()

	spendables, err := outputRepo.GetSpendableOutputs(ctx, tipHeight, n.minConfs)
	if err != nil {
		return slate.Slate{}, nil, nil, err
	}
	byCommit := make(map[string]domain.Output, len(spendables))
	for _, o := range spendables {
		byCommit[o.Commit] = o
	}

	selection, err := coinselect.Select(
		s.Amount, strategy, coins(spendables), n.selectionOpts,
	)
	if err != nil {
		return slate.Slate{}, nil, nil, err
	}

	if s, err = s.WithFee(selection.Fee); err != nil {
		return slate.Slate{}, nil, nil, err
	}
	offset, err := kc.DeriveOffset([]byte(s.ID))
	if err != nil {
		return slate.Slate{}, nil, nil, err
	}
	if s, err = s.WithOffset(mwcrypto.ScalarHex(&offset)); err != nil {
		return slate.Slate{}, nil, nil, err
	}

	inputs := make([]string, 0, len(selection.Coins))
	inputIDs := make([]keychain.KeyID, 0, len(selection.Coins))
	for _, c := range selection.Coins {
		s = s.WithInputs(slate.Input{Commit: c.Commit})
		inputs = append(inputs, c.Commit)
		inputIDs = append(inputIDs, byCommit[c.Commit].KeyID)
	}

	var change []domain.Output
	if selection.Change > 0 {
		keyID, err := n.nextKeyID(ctx)
		if err != nil {
			return slate.Slate{}, nil, nil, err
		}
		out, output, err := buildOutput(kc, keyID, selection.Change)
		if err != nil {
			return slate.Slate{}, nil, nil, err
		}
		s = s.WithOutputs(out)
		change = append(change, output)
	}

	excess, err := blindExcess(kc, keyIDs(change), inputIDs, &offset)
	if err != nil {
		return slate.Slate{}, nil, nil, err
	}
	p, _, err := publicData(kc, s, id, excess)
	if err != nil {
		return slate.Slate{}, nil, nil, err
	}
	p.Message = message
	if s, err = s.WithParticipant(p); err != nil {
		return slate.Slate{}, nil, nil, err
	}

	if err := outputRepo.ReserveOutputs(ctx, inputs, s.ID); err != nil {
		return slate.Slate{}, nil, nil, err
	}
	return s, inputs, change, nil
}

// receivePayment adds the receiver's output and signature to a standard
// slate. Receiving the same slate again returns the stored response, any
// other slate with the same id is rejected.
func (n *negotiatorService) receivePayment(
	ctx context.Context, kc *keychain.Keychain, in slate.Slate, message string,
) (slate.Slate, error) {
	if err := validatePayment(in); err != nil {
		return slate.Slate{}, err
	}
	txRepo := n.repo().TransactionRepository()

	tx, err := txRepo.GetTransaction(ctx, in.ID)
	if err == nil {
		if tx.IsCancelled() {
			return slate.Slate{}, domain.ErrTxCancelled
		}
		if tx.Direction != domain.TxIncoming || tx.ParticipantID != receiverID ||
			len(tx.Outputs) != 1 {
			return slate.Slate{}, slate.ErrParticipantMismatch
		}
		resp, _, err := buildPaymentResponse(kc, in, tx.Outputs[0].KeyID, tx.Message)
		if err != nil {
			return slate.Slate{}, err
		}
		if !resp.Equal(tx.Slate) {
			return slate.Slate{}, slate.ErrParticipantMismatch
		}
		return tx.Slate, nil
	}
	if !errors.Is(err, domain.ErrTxNotFound) {
		return slate.Slate{}, err
	}

	keyID, err := n.nextKeyID(ctx)
	if err != nil {
		return slate.Slate{}, err
	}
	resp, output, err := buildPaymentResponse(kc, in, keyID, message)
	if err != nil {
		return slate.Slate{}, err
	}
	excess, err := kernelExcess(resp)
	if err != nil {
		return slate.Slate{}, err
	}

	now := n.wallet.now()
	tx = domain.NewWalletTransaction(resp, domain.TxIncoming, receiverID, message, now)
	tx.Outputs = []domain.Output{output}
	tx.Excess = excess
	if err := tx.Receive(resp, now); err != nil {
		return slate.Slate{}, err
	}
	if err := txRepo.AddTransaction(ctx, tx); err != nil {
		return slate.Slate{}, err
	}
	return resp, nil
}

func buildPaymentResponse(
	kc *keychain.Keychain, in slate.Slate, keyID keychain.KeyID, message string,
) (slate.Slate, domain.Output, error) {
	out, output, err := buildOutput(kc, keyID, in.Amount)
	if err != nil {
		return slate.Slate{}, domain.Output{}, err
	}
	s := in.WithOutputs(out)

	blind, err := kc.BlindingFactor(keyID)
	if err != nil {
		return slate.Slate{}, domain.Output{}, err
	}
	p, nonce, err := publicData(kc, s, receiverID, blind)
	if err != nil {
		return slate.Slate{}, domain.Output{}, err
	}
	p.Message = message
	if s, err = s.WithParticipant(p); err != nil {
		return slate.Slate{}, domain.Output{}, err
	}
	if s, err = signParticipant(s, receiverID, blind, nonce); err != nil {
		return slate.Slate{}, domain.Output{}, err
	}
	return s.WithState(slate.AwaitingFinalization), output, nil
}

// signInvoice adds the issuer's signature to an invoice the payer funded.
// The issuer signs only once, replays must match the stored response.
func (n *negotiatorService) signInvoice(
	ctx context.Context, kc *keychain.Keychain, in slate.Slate,
) (slate.Slate, error) {
	txRepo := n.repo().TransactionRepository()
	tx, err := txRepo.GetTransaction(ctx, in.ID)
	if err != nil {
		return slate.Slate{}, err
	}
	if tx.IsCancelled() {
		return slate.Slate{}, domain.ErrTxCancelled
	}
	if tx.Direction != domain.TxIncoming || tx.ParticipantID != issuerID ||
		tx.Kind != slate.Invoice || len(tx.Outputs) != 1 {
		return slate.Slate{}, slate.ErrParticipantMismatch
	}
	if err := validateFundedInvoice(in); err != nil {
		return slate.Slate{}, err
	}

	alreadySigned := tx.Status.Code >= domain.TxStatusCodeReceived
	if !alreadySigned {
		if err := in.CheckExtends(tx.Slate); err != nil {
			return slate.Slate{}, err
		}
	}

	blind, err := kc.BlindingFactor(tx.Outputs[0].KeyID)
	if err != nil {
		return slate.Slate{}, err
	}
	own, nonce, err := publicData(kc, in, issuerID, blind)
	if err != nil {
		return slate.Slate{}, err
	}
	if p, err := in.Participant(issuerID); err != nil ||
		p.PublicBlindExcess != own.PublicBlindExcess ||
		p.PublicNonce != own.PublicNonce {
		return slate.Slate{}, slate.ErrParticipantMismatch
	}

	resp, err := signParticipant(in, issuerID, blind, nonce)
	if err != nil {
		return slate.Slate{}, err
	}
	resp = resp.WithState(slate.AwaitingFinalization)

	if alreadySigned {
		if !resp.Equal(tx.Slate) {
			return slate.Slate{}, slate.ErrParticipantMismatch
		}
		return tx.Slate, nil
	}

	excess, err := kernelExcess(resp)
	if err != nil {
		return slate.Slate{}, err
	}
	err = txRepo.UpdateTransaction(
		ctx, tx.ID,
		func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
			if err := tx.Receive(resp, n.wallet.now()); err != nil {
				return nil, err
			}
			tx.Excess = excess
			return tx, nil
		},
	)
	if err != nil {
		return slate.Slate{}, err
	}
	return resp, nil
}

// finalize adds the spender's signature to the partner's response and
// completes the kernel. Finalizing the same response again returns the
// stored result.
func (n *negotiatorService) finalize(
	ctx context.Context, kc *keychain.Keychain, in slate.Slate,
) (slate.Slate, error) {
	txRepo := n.repo().TransactionRepository()
	tx, err := txRepo.GetTransaction(ctx, in.ID)
	if err != nil {
		return slate.Slate{}, err
	}
	if tx.IsCancelled() {
		return slate.Slate{}, domain.ErrTxCancelled
	}
	if tx.Direction != domain.TxOutgoing {
		return slate.Slate{}, fmt.Errorf(
			"%w: only the spending party finalizes", ErrUnexpectedSlate,
		)
	}

	alreadyFinalized := tx.Status.Code >= domain.TxStatusCodeFinalized
	if alreadyFinalized {
		if err := tx.Slate.CheckExtends(in); err != nil {
			return slate.Slate{}, err
		}
	} else if err := in.CheckExtends(tx.Slate); err != nil {
		return slate.Slate{}, err
	}

	ownID := tx.ParticipantID
	if err := verifyParticipant(in, partnerOf(ownID)); err != nil {
		return slate.Slate{}, err
	}

	inputIDs := make([]keychain.KeyID, 0, len(tx.Inputs))
	for _, commit := range tx.Inputs {
		o, err := n.repo().OutputRepository().GetOutput(ctx, commit)
		if err != nil {
			return slate.Slate{}, err
		}
		inputIDs = append(inputIDs, o.KeyID)
	}
	offset, err := mwcrypto.ParseScalar(in.Offset)
	if err != nil {
		return slate.Slate{}, err
	}
	excess, err := blindExcess(kc, keyIDs(tx.Outputs), inputIDs, &offset)
	if err != nil {
		return slate.Slate{}, err
	}
	own, nonce, err := publicData(kc, in, ownID, excess)
	if err != nil {
		return slate.Slate{}, err
	}
	if p, err := in.Participant(ownID); err != nil ||
		p.PublicBlindExcess != own.PublicBlindExcess ||
		p.PublicNonce != own.PublicNonce {
		return slate.Slate{}, slate.ErrParticipantMismatch
	}

	signed, err := signParticipant(in, ownID, excess, nonce)
	if err != nil {
		return slate.Slate{}, err
	}
	final, err := completeKernel(signed)
	if err != nil {
		return slate.Slate{}, err
	}

	if alreadyFinalized {
		if !final.WithState(tx.Slate.State).Equal(tx.Slate) {
			return slate.Slate{}, slate.ErrParticipantMismatch
		}
		return tx.Slate, nil
	}

	err = txRepo.UpdateTransaction(
		ctx, tx.ID,
		func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
			if err := tx.Finalize(final, final.Kernel.Excess, n.wallet.now()); err != nil {
				return nil, err
			}
			return tx, nil
		},
	)
	if err != nil {
		return slate.Slate{}, err
	}
	return final, nil
}

// cancel marks the transaction as cancelled and releases its outputs. If
// onlyPending is set, transactions already finalized are left untouched.
func (n *negotiatorService) cancel(
	ctx context.Context, id string, onlyPending bool,
) error {
	if n.wallet.isPosting(id) {
		return ErrTxPostInProgress
	}

	repo := n.repo()
	err := repo.TransactionRepository().UpdateTransaction(
		ctx, id,
		func(tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
			if onlyPending && tx.Status.Code >= domain.TxStatusCodeFinalized {
				return tx, nil
			}
			if err := tx.Cancel(n.wallet.now()); err != nil {
				return nil, err
			}
			return tx, nil
		},
	)
	if err != nil {
		return err
	}

	tx, err := repo.TransactionRepository().GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !tx.IsCancelled() {
		return nil
	}
	if _, err := repo.OutputRepository().ReleaseOutputs(ctx, id); err != nil {
		return err
	}
	_, err = repo.OutputRepository().CancelOutputs(ctx, id)
	return err
}

func (n *negotiatorService) nextKeyID(ctx context.Context) (keychain.KeyID, error) {
	var id keychain.KeyID
	err := n.repo().VaultRepository().UpdateVault(
		ctx, func(v *domain.Vault) (*domain.Vault, error) {
			id = v.NextKeyID(n.account)
			return v, nil
		},
	)
	return id, err
}

func (n *negotiatorService) repo() ports.RepoManager {
	return n.wallet.repo
}

func coins(outputs []domain.Output) []coinselect.Coin {
	list := make([]coinselect.Coin, 0, len(outputs))
	for i := range outputs {
		list = append(list, outputs[i].Coin())
	}
	return list
}

func isProtocolViolation(err error) bool {
	return errors.Is(err, mwcrypto.ErrInvalidSignature) ||
		errors.Is(err, mwcrypto.ErrNonceSumMismatch) ||
		errors.Is(err, mwcrypto.ErrKernelSumMismatch) ||
		errors.Is(err, slate.ErrMissingPartialSig) ||
		errors.Is(err, slate.ErrParticipantMismatch)
}
