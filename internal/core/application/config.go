package application

import (
	"fmt"
	"time"

	"github.com/ironbelly/walletd/internal/core/ports"
	dbbadger "github.com/ironbelly/walletd/internal/infrastructure/storage/db/badger"
	"github.com/ironbelly/walletd/pkg/coinselect"
	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
)

const (
	DBBadger = "badger"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger: {},
	}
)

type Config struct {
	DBType   string
	DBConfig interface{}

	Node   ports.NodeClient
	Sender ports.SlateSender
	Clock  clock.Clock

	Chain              string
	Account            uint32
	MinConfirmations   uint64
	BaseFee            uint64
	MaxInputs          int
	ScanBatchSize      uint64
	KeyHorizon         uint32
	KDFCost            int
	RefreshConcurrency int
	RefreshRate        int
	ObserveInterval    time.Duration

	repo       ports.RepoManager
	handle     *Wallet
	wallet     WalletService
	ledger     LedgerService
	scanner    ScannerService
	negotiator NegotiatorService
	listener   BlockchainListener
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("db type not supported")
	}
	if c.Node == nil {
		return fmt.Errorf("missing node client")
	}
	if c.Sender == nil {
		return fmt.Errorf("missing slate sender")
	}
	if len(c.Chain) <= 0 {
		return fmt.Errorf("missing chain")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	return nil
}

func (c *Config) RepoManager() ports.RepoManager {
	repo, _ := c.repoManager()
	return repo
}

func (c *Config) Wallet() *Wallet {
	w, _ := c.walletHandle()
	return w
}

func (c *Config) WalletService() WalletService {
	svc, _ := c.walletService()
	return svc
}

func (c *Config) LedgerService() LedgerService {
	svc, _ := c.ledgerService()
	return svc
}

func (c *Config) ScannerService() ScannerService {
	svc, _ := c.scannerService()
	return svc
}

func (c *Config) NegotiatorService() NegotiatorService {
	svc, _ := c.negotiatorService()
	return svc
}

func (c *Config) BlockchainListener() BlockchainListener {
	l, _ := c.blockchainListener()
	return l
}

func (c *Config) repoManager() (ports.RepoManager, error) {
	if c.repo == nil {
		if c.DBType == DBBadger {
			datadir, _ := c.DBConfig.(string)
			repoManager, err := dbbadger.NewRepoManager(datadir, log.New())
			if err != nil {
				return nil, err
			}
			c.repo = repoManager
		}
	}
	return c.repo, nil
}

func (c *Config) walletHandle() (*Wallet, error) {
	if c.handle == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		c.handle = NewWallet(repo, c.Clock)
	}
	return c.handle, nil
}

func (c *Config) walletService() (WalletService, error) {
	if c.wallet == nil {
		w, err := c.walletHandle()
		if err != nil {
			return nil, err
		}
		c.wallet = NewWalletService(w, c.Chain, c.KDFCost)
	}
	return c.wallet, nil
}

func (c *Config) ledgerService() (LedgerService, error) {
	if c.ledger == nil {
		w, err := c.walletHandle()
		if err != nil {
			return nil, err
		}
		c.ledger = NewLedgerService(
			w, c.Node, c.MinConfirmations, c.RefreshConcurrency, c.RefreshRate,
		)
	}
	return c.ledger, nil
}

func (c *Config) scannerService() (ScannerService, error) {
	if c.scanner == nil {
		w, err := c.walletHandle()
		if err != nil {
			return nil, err
		}
		c.scanner = NewScannerService(w, c.Node, c.ScanBatchSize, c.KeyHorizon)
	}
	return c.scanner, nil
}

func (c *Config) negotiatorService() (NegotiatorService, error) {
	if c.negotiator == nil {
		w, err := c.walletHandle()
		if err != nil {
			return nil, err
		}
		ledger, err := c.ledgerService()
		if err != nil {
			return nil, err
		}
		c.negotiator = NewNegotiatorService(
			w, c.Node, c.Sender, ledger, c.Account, c.MinConfirmations,
			coinselect.Opts{BaseFee: c.BaseFee, MaxInputs: c.MaxInputs},
		)
	}
	return c.negotiator, nil
}

func (c *Config) blockchainListener() (BlockchainListener, error) {
	if c.listener == nil {
		w, err := c.walletHandle()
		if err != nil {
			return nil, err
		}
		ledger, err := c.ledgerService()
		if err != nil {
			return nil, err
		}
		scanner, err := c.scannerService()
		if err != nil {
			return nil, err
		}
		c.listener = NewBlockchainListener(w, ledger, scanner, c.ObserveInterval)
	}
	return c.listener, nil
}
