package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/internal/infrastructure/node/grinapi"
	"github.com/ironbelly/walletd/internal/infrastructure/transport/https"
	"github.com/ironbelly/walletd/internal/infrastructure/transport/tor"
	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the wallet
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ChainKey is the network the wallet operates on, either mainnet or
	// testnet
	ChainKey = "CHAIN"
	// NodeEndpointKey is the url of the node's api. Defaults to the local
	// node of the configured chain
	NodeEndpointKey = "NODE_ENDPOINT"
	// NodeAPISecretKey is the secret of the node's foreign api, if any
	NodeAPISecretKey = "NODE_API_SECRET"
	// NodeRequestTimeoutKey is the timeout in seconds of every node request
	NodeRequestTimeoutKey = "NODE_REQUEST_TIMEOUT"
	// NodeRateLimitKey is the max number of requests per second sent to
	// the node
	NodeRateLimitKey = "NODE_RATE_LIMIT"
	// MinConfirmationsKey is the number of confirmations after which an
	// output can be spent
	MinConfirmationsKey = "MINIMUM_CONFIRMATIONS"
	// AccountKey is the index of the account the wallet spends from
	AccountKey = "ACCOUNT"
	// BaseFeeKey is the fee, in nanogrin, paid per unit of transaction
	// weight
	BaseFeeKey = "BASE_FEE"
	// MaxInputsKey caps the number of inputs of a transaction
	MaxInputsKey = "MAX_INPUTS"
	// ScanBatchSizeKey is the number of PMMR leaves fetched per scan step
	ScanBatchSizeKey = "SCAN_BATCH_SIZE"
	// KeyHorizonKey is how far beyond the last used key index a scan
	// recognizes outputs
	KeyHorizonKey = "KEY_HORIZON"
	// KDFCostKey is the scrypt cost used to seal the seed
	KDFCostKey = "KDF_COST"
	// RefreshConcurrencyKey is the number of kernel lookups run in parallel
	// when refreshing transactions
	RefreshConcurrencyKey = "REFRESH_CONCURRENCY"
	// RefreshIntervalKey is the interval in seconds between two automatic
	// refreshes of the daemon. Zero disables them
	RefreshIntervalKey = "REFRESH_INTERVAL"
	// ListenAddrKey is the address the foreign api listens on
	ListenAddrKey = "LISTEN_ADDR"
	// SendTimeoutKey is the timeout in seconds of a slate delivery
	SendTimeoutKey = "SEND_TIMEOUT"
	// TorEnabledKey publishes the foreign api as an onion service
	TorEnabledKey = "TOR_ENABLED"
	// TorControlAddrKey is the address of the control port of tor
	TorControlAddrKey = "TOR_CONTROL_ADDR"
	// TorControlPasswordKey is the password of the control port of tor
	TorControlPasswordKey = "TOR_CONTROL_PASSWORD"
	// TorVirtualPortKey is the port of the onion address
	TorVirtualPortKey = "TOR_VIRTUAL_PORT"
	// TorSocksAddrKey is the address of the socks proxy of tor, used to
	// send slates to onion addresses
	TorSocksAddrKey = "TOR_SOCKS_ADDR"
	// MetricsEnabledKey exposes prometheus metrics next to the foreign api
	MetricsEnabledKey = "METRICS_ENABLED"

	DbLocation  = "db"
	TorLocation = "tor"

	onionKeyFile = "onion_v3_private_key"

	MainnetChain = "mainnet"
	TestnetChain = "testnet"
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("walletd", false)

	defaultNodeEndpoints = map[string]string{
		MainnetChain: "http://127.0.0.1:3413",
		TestnetChain: "http://127.0.0.1:13413",
	}
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("WALLETD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(ChainKey, MainnetChain)
	vip.SetDefault(NodeRequestTimeoutKey, 30)
	vip.SetDefault(NodeRateLimitKey, 50)
	vip.SetDefault(MinConfirmationsKey, 10)
	vip.SetDefault(AccountKey, 0)
	vip.SetDefault(BaseFeeKey, 500000)
	vip.SetDefault(MaxInputsKey, 500)
	vip.SetDefault(ScanBatchSizeKey, 1000)
	vip.SetDefault(KeyHorizonKey, 1000)
	vip.SetDefault(KDFCostKey, 1<<15)
	vip.SetDefault(RefreshConcurrencyKey, 8)
	vip.SetDefault(RefreshIntervalKey, 60)
	vip.SetDefault(ListenAddrKey, "127.0.0.1:3415")
	vip.SetDefault(SendTimeoutKey, 60)
	vip.SetDefault(TorEnabledKey, false)
	vip.SetDefault(TorControlAddrKey, "127.0.0.1:9051")
	vip.SetDefault(TorVirtualPortKey, 80)
	vip.SetDefault(MetricsEnabledKey, false)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	log.SetLevel(log.Level(GetInt(LogLevelKey)))
	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint(key string) uint64 {
	return vip.GetUint64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// Set overrides the value of key, used to apply command line flags.
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDBDatadir returns the directory of the store, one per chain.
func GetDBDatadir() string {
	return filepath.Join(GetDatadir(), DbLocation, GetString(ChainKey))
}

func GetNodeEndpoint() string {
	if endpoint := GetString(NodeEndpointKey); endpoint != "" {
		return endpoint
	}
	return defaultNodeEndpoints[GetString(ChainKey)]
}

// NewNodeClient returns the client of the configured node.
func NewNodeClient() (ports.NodeClient, error) {
	opts := grinapi.Opts{
		Endpoint:  GetNodeEndpoint(),
		APISecret: GetString(NodeAPISecretKey),
		Timeout:   time.Duration(GetInt(NodeRequestTimeoutKey)) * time.Second,
		RateLimit: GetInt(NodeRateLimitKey),
	}
	if addr := GetString(TorSocksAddrKey); addr != "" {
		endpoint, err := grinapi.ParseEndpoint(opts.Endpoint)
		if err == nil && tor.IsOnion(endpoint.Host) {
			if opts.Dial, err = tor.NewDialer(addr); err != nil {
				return nil, err
			}
		}
	}
	return grinapi.NewClient(opts)
}

// NewSlateSender returns the sender used to deliver slates to other
// wallets.
func NewSlateSender() (ports.SlateSender, error) {
	return https.NewSender(https.SenderOpts{
		Timeout:      time.Duration(GetInt(SendTimeoutKey)) * time.Second,
		TorSocksAddr: GetString(TorSocksAddrKey),
	})
}

// NewOnionService returns the onion service the foreign api is published
// with, nil if tor is disabled.
func NewOnionService() (*tor.OnionService, error) {
	if !GetBool(TorEnabledKey) {
		return nil, nil
	}
	return tor.NewOnionService(tor.OnionOpts{
		ControlAddr:     GetString(TorControlAddrKey),
		ControlPassword: GetString(TorControlPasswordKey),
		VirtualPort:     GetInt(TorVirtualPortKey),
		KeyPath:         filepath.Join(GetDatadir(), TorLocation, onionKeyFile),
	})
}

// NewAppConfig returns the application config wired to the given node and
// sender.
func NewAppConfig(
	node ports.NodeClient, sender ports.SlateSender,
) (*application.Config, error) {
	cfg := &application.Config{
		DBType:             application.DBBadger,
		DBConfig:           GetDBDatadir(),
		Node:               node,
		Sender:             sender,
		Clock:              clock.NewDefaultClock(),
		Chain:              GetString(ChainKey),
		Account:            uint32(GetUint(AccountKey)),
		MinConfirmations:   GetUint(MinConfirmationsKey),
		BaseFee:            GetUint(BaseFeeKey),
		MaxInputs:          GetInt(MaxInputsKey),
		ScanBatchSize:      GetUint(ScanBatchSizeKey),
		KeyHorizon:         uint32(GetUint(KeyHorizonKey)),
		KDFCost:            GetInt(KDFCostKey),
		RefreshConcurrency: GetInt(RefreshConcurrencyKey),
		RefreshRate:        GetInt(NodeRateLimitKey),
		ObserveInterval:    time.Duration(GetInt(RefreshIntervalKey)) * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	chain := GetString(ChainKey)
	if _, ok := defaultNodeEndpoints[chain]; !ok {
		return fmt.Errorf(
			"%s must be either %s or %s", ChainKey, MainnetChain, TestnetChain,
		)
	}

	if _, err := grinapi.ParseEndpoint(GetNodeEndpoint()); err != nil {
		return fmt.Errorf("%s: %s", NodeEndpointKey, err)
	}

	if GetInt(MinConfirmationsKey) < 1 {
		return fmt.Errorf("%s must be at least 1", MinConfirmationsKey)
	}
	if GetInt(BaseFeeKey) < 1 {
		return fmt.Errorf("%s must be at least 1", BaseFeeKey)
	}
	if GetInt(ScanBatchSizeKey) < 1 {
		return fmt.Errorf("%s must be at least 1", ScanBatchSizeKey)
	}
	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf("%s must be in range [0, 6]", LogLevelKey)
	}

	if GetBool(TorEnabledKey) && GetString(TorControlAddrKey) == "" {
		return fmt.Errorf("%s is required when tor is enabled", TorControlAddrKey)
	}
	return nil
}

func initDatadir() error {
	if err := makeDirectoryIfNotExists(GetDBDatadir()); err != nil {
		return err
	}
	if GetBool(TorEnabledKey) {
		if err := makeDirectoryIfNotExists(
			filepath.Join(GetDatadir(), TorLocation),
		); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
