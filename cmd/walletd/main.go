package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironbelly/walletd/internal/config"
	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/interfaces/foreignapi"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const passwordEnv = "WALLETD_PASSWORD"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	app = &cobra.Command{
		Use:   "walletd",
		Short: "wallet daemon",
		Long: "walletd unlocks the wallet, receives slates on its foreign api and " +
			"keeps transactions and outputs in sync with the node",
		Version:       formatVersion(),
		RunE:          action,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	passwordFile string
)

func init() {
	app.Flags().StringVarP(&passwordFile, "password-file", "", "", "the file containing the password of the wallet, alternatively set "+passwordEnv)
}

func main() {
	if err := app.Execute(); err != nil {
		log.Fatal(err)
	}
}

func action(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(); err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	cfg, err := newAppConfig()
	if err != nil {
		return err
	}
	defer cfg.Wallet().Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.WalletService().UnlockWallet(ctx, password); err != nil {
		return fmt.Errorf("failed to unlock wallet: %w", err)
	}
	log.Info("wallet unlocked")

	if config.GetInt(config.RefreshIntervalKey) > 0 {
		listener := cfg.BlockchainListener()
		listener.ObserveBlockchain()
		defer listener.StopObserveBlockchain()
	}

	srv, err := newServer()
	if err != nil {
		return err
	}

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Listen(ctx, cfg.NegotiatorService())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		log.Info("shutting down daemon")
		cancel()
		err = <-errC
	case err = <-errC:
	}

	log.Info("exiting")
	return err
}

func newAppConfig() (*application.Config, error) {
	node, err := config.NewNodeClient()
	if err != nil {
		return nil, err
	}
	sender, err := config.NewSlateSender()
	if err != nil {
		return nil, err
	}
	return config.NewAppConfig(node, sender)
}

func newServer() (*foreignapi.Server, error) {
	opts := foreignapi.ServerOpts{
		Address:     config.GetString(config.ListenAddrKey),
		WithMetrics: config.GetBool(config.MetricsEnabledKey),
	}
	onion, err := config.NewOnionService()
	if err != nil {
		return nil, err
	}
	if onion != nil {
		opts.Publisher = onion
	}
	return foreignapi.NewServer(opts)
}

func readPassword() (string, error) {
	if passwordFile == "" {
		password := os.Getenv(passwordEnv)
		if password == "" {
			return "", fmt.Errorf("missing password, use --password-file or %s", passwordEnv)
		}
		return password, nil
	}

	buf, err := os.ReadFile(passwordFile)
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}
