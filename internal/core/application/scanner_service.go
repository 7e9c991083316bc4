package application

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultScanBatchSize = 1000
	defaultKeyHorizon    = 1000
)

// ScannerService rebuilds and keeps in sync the wallet's outputs from the
// node's output PMMR.
type ScannerService interface {
	GetPMMRRange(ctx context.Context) (*PMMRRange, error)
	// Scan processes the leaves after lastRetrievedIndex, at most one
	// batch, and returns where the next call should start from.
	Scan(
		ctx context.Context, lastRetrievedIndex, highestIndex uint64,
	) (*ScanResult, error)
	// Restore scans the whole PMMR from scratch. On failure, the result
	// accumulated so far is returned along with the error.
	Restore(ctx context.Context, progress func(ScanResult)) (*ScanResult, error)
}

type scannerService struct {
	wallet     *Wallet
	node       ports.NodeClient
	batchSize  uint64
	keyHorizon uint32
}

func NewScannerService(
	wallet *Wallet, node ports.NodeClient, batchSize uint64, keyHorizon uint32,
) ScannerService {
	if batchSize == 0 {
		batchSize = defaultScanBatchSize
	}
	if keyHorizon == 0 {
		keyHorizon = defaultKeyHorizon
	}
	return &scannerService{wallet, node, batchSize, keyHorizon}
}

func (s *scannerService) GetPMMRRange(ctx context.Context) (*PMMRRange, error) {
	tip, err := s.node.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	indices, err := s.node.GetPMMRIndices(ctx, 0, tip.Height)
	if err != nil {
		return nil, err
	}

	cursor, err := s.getCursor(ctx)
	if err != nil {
		return nil, err
	}
	return &PMMRRange{
		LastRetrievedIndex: cursor.LastRetrievedIndex,
		HighestIndex:       indices.HighestIndex,
	}, nil
}

func (s *scannerService) Scan(
	ctx context.Context, lastRetrievedIndex, highestIndex uint64,
) (*ScanResult, error) {
	if lastRetrievedIndex > highestIndex {
		return nil, ErrInvalidScanRange
	}
	if lastRetrievedIndex == highestIndex {
		return &ScanResult{
			LastRetrievedIndex: lastRetrievedIndex,
			HighestIndex:       highestIndex,
		}, nil
	}
	kc, err := s.wallet.keys()
	if err != nil {
		return nil, err
	}

	cursor, err := s.getCursor(ctx)
	if err != nil {
		return nil, err
	}

	tip, err := s.node.GetTip(ctx)
	if err != nil {
		return nil, err
	}
	end := highestIndex
	if lastRetrievedIndex+s.batchSize < end {
		end = lastRetrievedIndex + s.batchSize
	}
	listing, err := s.node.GetUnspentOutputs(
		ctx, lastRetrievedIndex+1, end, s.batchSize,
	)
	if err != nil {
		return nil, err
	}

	if lastRetrievedIndex > 0 &&
		cursor.LastRetrievedIndex == lastRetrievedIndex &&
		cursor.Root != "" && listing.PrevRoot != "" &&
		listing.PrevRoot != cursor.Root {
		return nil, ErrDesync
	}

	batch := scanBatch{
		start:  lastRetrievedIndex,
		end:    listing.LastRetrievedIndex,
		owned:  recognize(kc, listing.Outputs),
		listed: make(map[string]struct{}, len(listing.Outputs)),
	}
	if batch.end <= lastRetrievedIndex {
		batch.end = end
	}
	for _, o := range listing.Outputs {
		batch.listed[o.Commit] = struct{}{}
	}

	result := &ScanResult{
		LastRetrievedIndex: batch.end,
		HighestIndex:       highestIndex,
	}
	if listing.HighestIndex > result.HighestIndex {
		result.HighestIndex = listing.HighestIndex
	}

	newCursor := domain.ScanCursor{
		LastRetrievedIndex: batch.end,
		HighestIndex:       result.HighestIndex,
		Root:               listing.Root,
		TipHeight:          tip.Height,
		UpdatedAt:          s.wallet.now(),
	}

	if _, err := s.wallet.mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, s.apply(ctx, batch, newCursor, result)
	}); err != nil {
		return nil, err
	}

	scannedOutputsTotal.WithLabelValues("found").Add(float64(result.Found))
	scannedOutputsTotal.WithLabelValues("confirmed").Add(float64(result.Confirmed))
	scannedOutputsTotal.WithLabelValues("spent").Add(float64(result.Spent))
	scanLastIndex.Set(float64(result.LastRetrievedIndex))

	log.Debugf(
		"scanned pmmr range (%d, %d]: %d found, %d confirmed, %d spent",
		lastRetrievedIndex, result.LastRetrievedIndex,
		result.Found, result.Confirmed, result.Spent,
	)
	return result, nil
}

func (s *scannerService) Restore(
	ctx context.Context, progress func(ScanResult),
) (*ScanResult, error) {
	pmmr, err := s.GetPMMRRange(ctx)
	if err != nil {
		return nil, err
	}

	total := &ScanResult{HighestIndex: pmmr.HighestIndex}
	last, highest := uint64(0), pmmr.HighestIndex
	for !total.IsComplete() {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := s.Scan(ctx, last, highest)
		if err != nil {
			return total, err
		}
		total.LastRetrievedIndex = res.LastRetrievedIndex
		total.HighestIndex = res.HighestIndex
		total.Found += res.Found
		total.Confirmed += res.Confirmed
		total.Spent += res.Spent
		if progress != nil {
			progress(*total)
		}
		last, highest = res.LastRetrievedIndex, res.HighestIndex
	}

	log.Infof(
		"restore completed: %d outputs found, %d confirmed, %d spent",
		total.Found, total.Confirmed, total.Spent,
	)
	return total, nil
}

type ownedOutput struct {
	node  ports.NodeOutput
	keyID keychain.KeyID
	value uint64
}

type scanBatch struct {
	start  uint64
	end    uint64
	owned  []ownedOutput
	listed map[string]struct{}
}

func (b scanBatch) covers(mmrIndex uint64) bool {
	return mmrIndex > b.start && mmrIndex <= b.end
}

// apply stores the outcome of a batch together with the new cursor.
func (s *scannerService) apply(
	ctx context.Context, batch scanBatch, cursor domain.ScanCursor,
	result *ScanResult,
) error {
	repo := s.wallet.repo
	outputRepo := repo.OutputRepository()

	accepted := make([]ownedOutput, 0, len(batch.owned))
	if err := repo.VaultRepository().UpdateVault(
		ctx, func(v *domain.Vault) (*domain.Vault, error) {
			accepted = accepted[:0]
			for _, o := range batch.owned {
				horizon := v.PeekKeyIndex(o.keyID.Account) + s.keyHorizon
				if o.keyID.Index > horizon {
					log.Debugf(
						"skipping output %s derived beyond key horizon", o.node.Commit,
					)
					continue
				}
				v.ObserveKeyID(o.keyID)
				accepted = append(accepted, o)
			}
			return v, nil
		},
	); err != nil {
		return err
	}

	newOutputs := make([]domain.Output, 0)
	for _, o := range accepted {
		stored, err := outputRepo.GetOutput(ctx, o.node.Commit)
		if err != nil {
			if !errors.Is(err, domain.ErrOutputNotFound) {
				return err
			}
			newOutputs = append(newOutputs, domain.Output{
				Commit:     o.node.Commit,
				KeyID:      o.keyID,
				Value:      o.value,
				Status:     domain.OutputStatusUnspent,
				Height:     o.node.Height,
				MMRIndex:   o.node.MMRIndex,
				IsCoinbase: o.node.IsCoinbase,
			})
			continue
		}

		wasPending := stored.Status == domain.OutputStatusUnconfirmed ||
			stored.Status == domain.OutputStatusCancelled
		if !wasPending && stored.MMRIndex == o.node.MMRIndex {
			continue
		}
		if err := outputRepo.UpdateOutput(
			ctx, stored.Commit,
			func(out *domain.Output) (*domain.Output, error) {
				out.Confirm(o.node.Height, o.node.MMRIndex)
				out.IsCoinbase = o.node.IsCoinbase
				return out, nil
			},
		); err != nil {
			return err
		}
		if wasPending {
			result.Confirmed++
		}
	}

	count, err := outputRepo.AddOutputs(ctx, newOutputs)
	if err != nil {
		return err
	}
	result.Found += count

	// Outputs the wallet believes unspent inside the scanned range but no
	// longer listed by the node were spent.
	candidates, err := outputRepo.GetOutputsByStatus(
		ctx, domain.OutputStatusUnspent, domain.OutputStatusLocked,
	)
	if err != nil {
		return err
	}
	for _, o := range candidates {
		if o.MMRIndex == 0 || !batch.covers(o.MMRIndex) {
			continue
		}
		if _, ok := batch.listed[o.Commit]; ok {
			continue
		}
		if err := outputRepo.UpdateOutput(
			ctx, o.Commit,
			func(out *domain.Output) (*domain.Output, error) {
				out.Spend()
				return out, nil
			},
		); err != nil {
			return err
		}
		result.Spent++
	}

	return repo.ScanCursorRepository().UpdateCursor(ctx, cursor)
}

// recognize returns the outputs of the listing owned by the wallet.
func recognize(kc *keychain.Keychain, outputs []ports.NodeOutput) []ownedOutput {
	owned := make([]ownedOutput, 0)
	for _, o := range outputs {
		commit, err := mwcrypto.ParseCommitment(o.Commit)
		if err != nil {
			continue
		}
		envelope, err := hex.DecodeString(o.Proof)
		if err != nil {
			continue
		}
		id, value, err := kc.Recognize(commit, envelope)
		if err != nil {
			continue
		}
		owned = append(owned, ownedOutput{node: o, keyID: id, value: value})
	}
	return owned
}

func (s *scannerService) getCursor(ctx context.Context) (*domain.ScanCursor, error) {
	res, err := s.wallet.read(ctx, func(ctx context.Context) (interface{}, error) {
		return s.wallet.repo.ScanCursorRepository().GetCursor(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.ScanCursor), nil
}
