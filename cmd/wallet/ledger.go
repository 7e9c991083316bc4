package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var outputStatuses = map[string]domain.OutputStatus{
	"unconfirmed": domain.OutputStatusUnconfirmed,
	"unspent":     domain.OutputStatusUnspent,
	"locked":      domain.OutputStatusLocked,
	"spent":       domain.OutputStatusSpent,
	"cancelled":   domain.OutputStatusCancelled,
}

var refreshFlag = &cli.BoolFlag{
	Name:  "refresh",
	Usage: "ask the node whether pending transactions are confirmed",
}

var scan = cli.Command{
	Name:  "scan",
	Usage: "scan the outputs of the chain for the ones of the wallet",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.BoolFlag{
			Name:  "restore",
			Usage: "scan from scratch instead of resuming",
		},
	},
	Action: scanAction,
}

var txs = cli.Command{
	Name:   "txs",
	Usage:  "list the transactions of the wallet",
	Flags:  []cli.Flag{passwordFlag, refreshFlag},
	Action: listTransactionsAction,
}

var tx = cli.Command{
	Name:  "tx",
	Usage: "show a transaction of the wallet",
	Flags: []cli.Flag{
		passwordFlag,
		refreshFlag,
		&cli.StringFlag{
			Name:     "id",
			Usage:    "the id of the transaction",
			Required: true,
		},
	},
	Action: getTransactionAction,
}

var outputs = cli.Command{
	Name:  "outputs",
	Usage: "list the outputs of the wallet",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.StringSliceFlag{
			Name:  "status",
			Usage: "filter by status: unconfirmed, unspent, locked, spent or cancelled",
		},
	},
	Action: listOutputsAction,
}

func scanAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if ctx.Bool("restore") {
		return restore(ctx, cfg)
	}

	svc := cfg.ScannerService()
	rng, err := svc.GetPMMRRange(ctx.Context)
	if err != nil {
		return err
	}

	total := application.ScanResult{
		LastRetrievedIndex: rng.LastRetrievedIndex,
		HighestIndex:       rng.HighestIndex,
	}
	for !total.IsComplete() {
		res, err := svc.Scan(ctx.Context, total.LastRetrievedIndex, total.HighestIndex)
		if err != nil {
			printScanResult(total)
			return err
		}
		total.LastRetrievedIndex = res.LastRetrievedIndex
		total.HighestIndex = res.HighestIndex
		total.Found += res.Found
		total.Confirmed += res.Confirmed
		total.Spent += res.Spent
		fmt.Printf("scanned %d/%d\n", total.LastRetrievedIndex, total.HighestIndex)
	}

	// Outputs below the cursor are not visited again, the node tells
	// whether they are still unspent.
	spent, err := cfg.LedgerService().RefreshOutputs(ctx.Context)
	if err != nil {
		printScanResult(total)
		return err
	}
	total.Spent += spent
	printScanResult(total)
	return nil
}

func listTransactionsAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := cfg.LedgerService().ListTransactions(ctx.Context, ctx.Bool(refreshFlag.Name))
	// A failed refresh still lists everything, the error is reported after.
	var batchErr *application.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return err
	}

	res := make([]map[string]interface{}, 0, len(list))
	for _, t := range list {
		res = append(res, transactionInfo(t))
	}
	printJSON(res)
	return err
}

func getTransactionAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := cfg.LedgerService().GetTransaction(
		ctx.Context, ctx.String("id"), ctx.Bool(refreshFlag.Name),
	)
	if err != nil {
		return err
	}
	printTransaction(*t)
	return nil
}

func listOutputsAction(ctx *cli.Context) error {
	statuses := make([]domain.OutputStatus, 0)
	for _, s := range ctx.StringSlice("status") {
		status, ok := outputStatuses[strings.ToLower(s)]
		if !ok {
			return fmt.Errorf("unknown output status %s", s)
		}
		statuses = append(statuses, status)
	}

	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := cfg.LedgerService().ListOutputs(ctx.Context, statuses...)
	if err != nil {
		return err
	}

	res := make([]map[string]interface{}, 0, len(list))
	for _, o := range list {
		res = append(res, map[string]interface{}{
			"commit":      o.Commit,
			"key_id":      o.KeyID.String(),
			"value":       formatAmount(o.Value),
			"status":      o.Status.String(),
			"height":      o.Height,
			"mmr_index":   o.MMRIndex,
			"locked_by":   o.LockedBy,
			"tx_id":       o.TxID,
			"is_coinbase": o.IsCoinbase,
		})
	}
	printJSON(res)
	return nil
}

func printTransaction(t domain.WalletTransaction) {
	printJSON(transactionInfo(t))
}

func transactionInfo(t domain.WalletTransaction) map[string]interface{} {
	info := map[string]interface{}{
		"id":         t.ID,
		"direction":  t.Direction.String(),
		"kind":       t.Kind.String(),
		"status":     t.Status.String(),
		"amount":     formatAmount(t.Amount),
		"fee":        formatAmount(t.Fee),
		"inputs":     t.Inputs,
		"outputs":    len(t.Outputs),
		"created_at": formatTime(t.CreatedAt),
		"updated_at": formatTime(t.UpdatedAt),
	}
	if t.Excess != "" {
		info["excess"] = t.Excess
	}
	if t.KernelHeight > 0 {
		info["kernel_height"] = t.KernelHeight
		info["confirmed_at"] = formatTime(t.ConfirmedAt)
	}
	if t.Message != "" {
		info["message"] = t.Message
	}
	if t.FailureReason != "" {
		info["failure_reason"] = t.FailureReason
	}
	return info
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).Format(time.RFC3339)
}
