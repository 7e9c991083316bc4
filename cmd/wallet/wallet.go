package main

import (
	"fmt"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/urfave/cli/v2"
)

var genseed = cli.Command{
	Name:  "genseed",
	Usage: "generate a new mnemonic",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "entropy",
			Usage: "the number of bytes of entropy, multiple of 4 in range [16, 32]",
		},
	},
	Action: genSeedAction,
}

var initwallet = cli.Command{
	Name:  "init",
	Usage: "initialize the wallet with a mnemonic and a password",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "seed",
			Usage:    "the mnemonic of the wallet",
			Required: true,
		},
		passwordFlag,
		&cli.BoolFlag{
			Name:  "restore",
			Usage: "scan the chain to restore the outputs of the wallet",
		},
	},
	Action: initWalletAction,
}

var phrase = cli.Command{
	Name:   "phrase",
	Usage:  "show the mnemonic of the wallet",
	Flags:  []cli.Flag{passwordFlag},
	Action: phraseAction,
}

var checkpassword = cli.Command{
	Name:   "checkpassword",
	Usage:  "check the password of the wallet without unlocking it",
	Flags:  []cli.Flag{passwordFlag},
	Action: checkPasswordAction,
}

var changepassword = cli.Command{
	Name:  "changepassword",
	Usage: "change the password of the wallet",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.StringFlag{
			Name:     "new_password",
			Usage:    "the new password of the wallet",
			Required: true,
		},
	},
	Action: changePasswordAction,
}

var info = cli.Command{
	Name:  "info",
	Usage: "show the status and the balance of the wallet",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "update the pending transactions before computing the balance",
		},
	},
	Action: infoAction,
}

func genSeedAction(ctx *cli.Context) error {
	cfg, cleanup, err := getConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	mnemonic, err := cfg.WalletService().GenSeed(ctx.Context, ctx.Int("entropy"))
	if err != nil {
		return err
	}
	fmt.Println(mnemonic)
	return nil
}

func initWalletAction(ctx *cli.Context) error {
	password := ctx.String(passwordFlag.Name)
	if password == "" {
		return fmt.Errorf("missing password, use --password or %s", passwordEnv)
	}

	cfg, cleanup, err := getConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.WalletService()
	if err := svc.InitWallet(ctx.Context, ctx.String("seed"), password); err != nil {
		return err
	}
	fmt.Println("wallet initialized")

	if !ctx.Bool("restore") {
		return nil
	}
	if err := svc.UnlockWallet(ctx.Context, password); err != nil {
		return err
	}
	return restore(ctx, cfg)
}

func phraseAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	mnemonic, err := cfg.WalletService().GetPhrase(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Println(mnemonic)
	return nil
}

func checkPasswordAction(ctx *cli.Context) error {
	cfg, cleanup, err := getConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	ok, err := cfg.WalletService().CheckPassword(
		ctx.Context, ctx.String(passwordFlag.Name),
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("password is not valid")
	}
	fmt.Println("password is valid")
	return nil
}

func changePasswordAction(ctx *cli.Context) error {
	cfg, cleanup, err := getConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.WalletService().ChangePassword(
		ctx.Context, ctx.String(passwordFlag.Name), ctx.String("new_password"),
	); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func infoAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := cfg.WalletService().GetStatus(ctx.Context)
	if err != nil {
		return err
	}
	summary, err := cfg.LedgerService().GetSummary(ctx.Context, ctx.Bool("refresh"))
	if err != nil {
		return err
	}

	printJSON(map[string]interface{}{
		"chain":                 status.Chain,
		"created_at":            formatTime(status.CreatedAt),
		"tip_height":            summary.TipHeight,
		"minimum_confirmations": summary.MinConfirmations,
		"total":                 formatAmount(summary.Total),
		"spendable":             formatAmount(summary.Spendable),
		"awaiting_confirmation": formatAmount(summary.AwaitingConfirmation),
		"locked":                formatAmount(summary.Locked),
	})
	return nil
}

func restore(ctx *cli.Context, cfg *application.Config) error {
	res, err := cfg.ScannerService().Restore(
		ctx.Context, func(r application.ScanResult) {
			fmt.Printf("scanned %d/%d\n", r.LastRetrievedIndex, r.HighestIndex)
		},
	)
	if res != nil {
		printScanResult(*res)
	}
	return err
}

func printScanResult(res application.ScanResult) {
	printJSON(map[string]interface{}{
		"last_retrieved_index": res.LastRetrievedIndex,
		"highest_index":        res.HighestIndex,
		"found":                res.Found,
		"confirmed":            res.Confirmed,
		"spent":                res.Spent,
	})
}
