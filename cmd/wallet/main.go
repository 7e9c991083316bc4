package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ironbelly/walletd/internal/config"
	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/urfave/cli/v2"
)

const passwordEnv = "WALLETD_PASSWORD"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	slateFlag = &cli.StringFlag{
		Name:     "slate",
		Usage:    "the slate, either armored or json, or the path of a file containing it",
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "the path of the file where to store the resulting slate",
	}
	messageFlag = &cli.StringFlag{
		Name:  "message",
		Usage: "an optional message attached to the transaction",
	}
	strategyFlag = &cli.StringFlag{
		Name:  "strategy",
		Usage: "the coin selection strategy, either smallest or all",
		Value: "smallest",
	}
	passwordFlag = &cli.StringFlag{
		Name:    "password",
		Usage:   "the password of the wallet",
		EnvVars: []string{passwordEnv},
	}
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "the data directory of the wallet",
	}
	chainFlag = &cli.StringFlag{
		Name:  "chain",
		Usage: "the chain to operate on, either mainnet or testnet",
	}
	nodeFlag = &cli.StringFlag{
		Name:  "node",
		Usage: "the url of the node api",
	}
)

func main() {
	app := cli.NewApp()

	app.Version = formatVersion()
	app.Name = "wallet"
	app.Usage = "Command line interface to operate the wallet"
	app.Flags = []cli.Flag{datadirFlag, chainFlag, nodeFlag}
	app.Before = initConfig
	app.Commands = append(
		app.Commands,
		&genseed,
		&initwallet,
		&phrase,
		&checkpassword,
		&changepassword,
		&info,
		&scan,
		&strategies,
		&send,
		&receive,
		&invoice,
		&pay,
		&finalize,
		&post,
		&cancel,
		&txs,
		&tx,
		&outputs,
		&decode,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func initConfig(ctx *cli.Context) error {
	overrides := map[string]string{
		config.DatadirKey:      ctx.String(datadirFlag.Name),
		config.ChainKey:        ctx.String(chainFlag.Name),
		config.NodeEndpointKey: ctx.String(nodeFlag.Name),
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := os.Setenv("WALLETD_"+key, value); err != nil {
			return err
		}
	}
	return config.InitConfig()
}

// getConfig opens the wallet store and wires the services to the
// configured node. The returned func closes the store.
func getConfig() (*application.Config, func(), error) {
	node, err := config.NewNodeClient()
	if err != nil {
		return nil, nil, err
	}
	sender, err := config.NewSlateSender()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewAppConfig(node, sender)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Wallet().Close, nil
}

// getUnlockedConfig is like getConfig but also unlocks the wallet with the
// password given by flag or environment.
func getUnlockedConfig(ctx *cli.Context) (*application.Config, func(), error) {
	password := ctx.String(passwordFlag.Name)
	if password == "" {
		return nil, nil, fmt.Errorf("missing password, use --password or %s", passwordEnv)
	}

	cfg, cleanup, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.WalletService().UnlockWallet(ctx.Context, password); err != nil {
		cleanup()
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

// readSlate returns the slate given either as a file path or inline.
func readSlate(ctx *cli.Context) (string, error) {
	arg := ctx.String(slateFlag.Name)
	if arg == "" {
		return "", fmt.Errorf("missing slate")
	}
	if data, err := os.ReadFile(arg); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	return arg, nil
}

// writeSlate prints the armored slate and, if requested, stores it in a
// file too.
func writeSlate(ctx *cli.Context, armored string) error {
	if out := ctx.String(outFlag.Name); out != "" {
		if err := os.WriteFile(out, []byte(armored+"\n"), 0600); err != nil {
			return fmt.Errorf("writing to file: %w", err)
		}
	}
	fmt.Println(armored)
	return nil
}

func printJSON(resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(buf))
}

func fatal(err error) {
	e := application.ToError(err)
	if e.Code == application.ErrorCodeInternal {
		_, _ = fmt.Fprintf(os.Stderr, "[wallet] %v\n", err)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[wallet] %s\n", e)
	}
	os.Exit(1)
}

func formatVersion() string {
	return fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date)
}
